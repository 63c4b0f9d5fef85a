package dto

// CreateTicketRequest opens a support ticket
type CreateTicketRequest struct {
	Subject string `json:"subject"`
	Message string `json:"message"`
}

// TicketMessageRequest replies on a ticket
type TicketMessageRequest struct {
	Message string `json:"message"`
}

// KYCSubmitRequest is an identity document submission
type KYCSubmitRequest struct {
	FullName       string `json:"full_name"`
	DocumentType   string `json:"document_type"`
	DocumentNumber string `json:"document_number"`
	DocumentURL    string `json:"document_url"`
}

// KYCReviewRequest approves or rejects a submission
type KYCReviewRequest struct {
	Approve bool   `json:"approve"`
	Note    string `json:"note"`
}
