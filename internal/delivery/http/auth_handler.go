package http

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"tradedesk/internal/delivery/http/dto"
	"tradedesk/internal/middleware"
	"tradedesk/internal/usecase"
)

const minPasswordLength = 6

// AuthHandler handles authentication-related requests
type AuthHandler struct {
	accounts     *usecase.AccountService
	tokens       *middleware.TokenIssuer
	secureCookie bool
	log          *zap.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(accounts *usecase.AccountService, tokens *middleware.TokenIssuer, secureCookie bool, log *zap.Logger) *AuthHandler {
	return &AuthHandler{
		accounts:     accounts,
		tokens:       tokens,
		secureCookie: secureCookie,
		log:          log.Named("auth"),
	}
}

// Login handles user login
// POST /api/auth/login
func (h *AuthHandler) Login(c echo.Context) error {
	var req dto.LoginRequest
	if err := c.Bind(&req); err != nil {
		return BadRequestResponse(c, "Invalid request payload")
	}

	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		return BadRequestResponse(c, "Username and password are required")
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	user, err := h.accounts.Authenticate(ctx, req.Username, func(hash string) bool {
		return bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.Password)) == nil
	})
	if err != nil {
		return DomainErrorResponse(c, h.log, err, nil)
	}

	token, err := h.tokens.Generate(user.ID, user.Role)
	if err != nil {
		h.log.Error("Failed to generate token", zap.String("user_id", user.ID.String()), zap.Error(err))
		return InternalServerErrorResponse(c, "Failed to generate token")
	}

	maxAge := int(h.tokens.TTL().Seconds())
	c.SetCookie(&http.Cookie{
		Name:     middleware.TokenCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   maxAge,
	})

	return SuccessResponse(c, dto.LoginResponse{
		Token:     token,
		ExpiresIn: maxAge,
		User:      dto.NewUserOutput(user),
	})
}

// Logout handles user logout
// POST /api/auth/logout
func (h *AuthHandler) Logout(c echo.Context) error {
	c.SetCookie(&http.Cookie{
		Name:     middleware.TokenCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookie,
		MaxAge:   -1,
	})

	return SuccessMessageResponse(c, "Logged out", nil)
}

// Register handles user registration
// POST /api/auth/register
func (h *AuthHandler) Register(c echo.Context) error {
	var req dto.RegisterRequest
	if err := c.Bind(&req); err != nil {
		return BadRequestResponse(c, "Invalid request payload")
	}

	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		return BadRequestResponse(c, "Username and password are required")
	}

	if len(req.Password) < minPasswordLength {
		return BadRequestResponse(c, "Password must be at least 6 characters")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.log.Error("Failed to hash password", zap.Error(err))
		return InternalServerErrorResponse(c, "Failed to hash password")
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	user, err := h.accounts.Register(ctx, req.Username, req.Email, string(hashedPassword))
	if err != nil {
		return DomainErrorResponse(c, h.log, err, nil)
	}

	return CreatedResponse(c, dto.NewUserOutput(user))
}
