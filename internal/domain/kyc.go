package domain

import (
	"time"

	"github.com/google/uuid"
)

// KYCSubmission is a user's identity document submission awaiting review
type KYCSubmission struct {
	ID             uuid.UUID  `json:"id"`
	UserID         uuid.UUID  `json:"user_id"`
	FullName       string     `json:"full_name"`
	DocumentType   string     `json:"document_type"`
	DocumentNumber string     `json:"document_number"`
	DocumentURL    string     `json:"document_url"`
	Status         string     `json:"status"`
	ReviewNote     string     `json:"review_note,omitempty"`
	ReviewedBy     *uuid.UUID `json:"reviewed_by,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	ReviewedAt     *time.Time `json:"reviewed_at,omitempty"`
}

// KYC status constants, shared by submissions and User.KYCStatus
const (
	KYCNone     = "none"
	KYCPending  = "pending"
	KYCApproved = "approved"
	KYCRejected = "rejected"
)

// DocumentType constants
const (
	DocumentPassport      = "passport"
	DocumentNationalID    = "national_id"
	DocumentDriverLicense = "driver_license"
)

// ValidDocumentType reports whether t is an accepted document type
func ValidDocumentType(t string) bool {
	switch t {
	case DocumentPassport, DocumentNationalID, DocumentDriverLicense:
		return true
	}
	return false
}
