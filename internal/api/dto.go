package api

import "github.com/starford/fehu/internal/models"

// FormListResponse wraps the registered-forms listing.
type FormListResponse struct {
	Forms []*models.FormDefinition `json:"forms"`
	Total int                      `json:"total"`
}

// CreateSubmissionRequest is the request body for submitting a record.
type CreateSubmissionRequest struct {
	Values map[string]string `json:"values"`
}

// ResponseListResponse wraps a form's record listing.
type ResponseListResponse struct {
	Responses []*models.SubmissionRecord `json:"responses"`
	Total     int                        `json:"total"`
}

// InvitationRequest is the request body for emailing share links.
type InvitationRequest struct {
	Recipients []string `json:"recipients"`
	Link       string   `json:"link"`
}

// InvitationResult reports delivery for one recipient.
type InvitationResult struct {
	Recipient string `json:"recipient"`
	Sent      bool   `json:"sent"`
	Error     string `json:"error,omitempty"`
}

// InvitationResponse wraps per-recipient delivery results.
type InvitationResponse struct {
	Results []InvitationResult `json:"results"`
}
