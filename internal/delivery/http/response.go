package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"tradedesk/internal/domain"
)

const (
	requestTimeout = 5 * time.Second
	defaultLimit   = 50
	maxLimit       = 500
)

// Response represents a standardized API response
type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   interface{} `json:"error,omitempty"`
}

// ConflictOutput is the body of a repeated state transition: the request is
// a no-op and the current resource is returned
type ConflictOutput struct {
	AlreadySettled bool        `json:"already_settled"`
	Current        interface{} `json:"current,omitempty"`
}

// SuccessResponse sends a success response
func SuccessResponse(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusOK, Response{
		Status: "success",
		Data:   data,
	})
}

// SuccessMessageResponse sends a success response with a message
func SuccessMessageResponse(c echo.Context, message string, data interface{}) error {
	return c.JSON(http.StatusOK, Response{
		Status:  "success",
		Message: message,
		Data:    data,
	})
}

// CreatedResponse sends a 201 Created response
func CreatedResponse(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusCreated, Response{
		Status: "success",
		Data:   data,
	})
}

// ErrorResponse sends an error response
func ErrorResponse(c echo.Context, statusCode int, message string, err interface{}) error {
	return c.JSON(statusCode, Response{
		Status:  "error",
		Message: message,
		Error:   err,
	})
}

// BadRequestResponse sends a 400 Bad Request response
func BadRequestResponse(c echo.Context, message string) error {
	return ErrorResponse(c, http.StatusBadRequest, message, nil)
}

// UnauthorizedResponse sends a 401 Unauthorized response
func UnauthorizedResponse(c echo.Context, message string) error {
	return ErrorResponse(c, http.StatusUnauthorized, message, nil)
}

// ForbiddenResponse sends a 403 Forbidden response
func ForbiddenResponse(c echo.Context, message string) error {
	return ErrorResponse(c, http.StatusForbidden, message, nil)
}

// NotFoundResponse sends a 404 Not Found response
func NotFoundResponse(c echo.Context, message string) error {
	return ErrorResponse(c, http.StatusNotFound, message, nil)
}

// InternalServerErrorResponse sends a 500 Internal Server Error response.
// Causes are logged by the caller, never returned to the client.
func InternalServerErrorResponse(c echo.Context, message string) error {
	return ErrorResponse(c, http.StatusInternalServerError, message, nil)
}

// DomainErrorResponse maps a service error to its status code. A conflict is
// answered as a no-op success carrying current.
func DomainErrorResponse(c echo.Context, log *zap.Logger, err error, current interface{}) error {
	switch domain.KindOf(err) {
	case domain.ErrConflict:
		return SuccessMessageResponse(c, domain.Message(err, "Already processed"), ConflictOutput{
			AlreadySettled: true,
			Current:        current,
		})
	case domain.ErrValidation, domain.ErrInsufficientFunds:
		return BadRequestResponse(c, domain.Message(err, "Invalid request"))
	case domain.ErrNotFound:
		return NotFoundResponse(c, domain.Message(err, "Not found"))
	case domain.ErrUnauthorized:
		return UnauthorizedResponse(c, domain.Message(err, "Unauthorized"))
	case domain.ErrForbidden:
		return ForbiddenResponse(c, domain.Message(err, "Forbidden"))
	case domain.ErrDependency:
		log.Error("Dependency failure", zap.String("path", c.Path()), zap.Error(err))
		return ErrorResponse(c, http.StatusBadGateway, domain.Message(err, "Upstream failure"), nil)
	}

	log.Error("Unhandled error", zap.String("path", c.Path()), zap.Error(err))
	return InternalServerErrorResponse(c, "Internal server error")
}

func requestContext(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

func pathID(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, domain.NewValidationError("invalid %s", name)
	}
	return id, nil
}

func queryLimit(c echo.Context) int {
	limit, err := strconv.Atoi(c.QueryParam("limit"))
	if err != nil || limit <= 0 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}
