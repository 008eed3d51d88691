package moderation

import "github.com/google/uuid"

// OverrideRequest represents a moderator's reversal of a decision
type OverrideRequest struct {
	ContentType       string `json:"content_type" validate:"required,content_type"`
	ContentID         string `json:"content_id" validate:"required"`
	NewClassification string `json:"new_classification" validate:"required,classification"`
	Reason            string `json:"reason" validate:"required,max=2000"`
}

// OverrideResponse returns the appended ledger entry
type OverrideResponse struct {
	Entry *AuditLogEntry `json:"entry"`
}

// AuditListFilter mirrors QueryFilter for the HTTP layer, parsed from
// query parameters in the handler
type AuditListFilter struct {
	Since          string `json:"since,omitempty"`
	Until          string `json:"until,omitempty"`
	Classification string `json:"classification,omitempty"`
	ContentType    string `json:"content_type,omitempty"`
	ContentID      string `json:"content_id,omitempty"`
	Limit          int    `json:"limit,omitempty"`
	Offset         int    `json:"offset,omitempty"`
}

// ref builds a ContentReference from an override request. AuthorID is
// resolved from the ledger, not the request.
func (r *OverrideRequest) ref() ContentReference {
	return ContentReference{
		ContentType: ContentType(r.ContentType),
		ContentID:   r.ContentID,
		AuthorID:    uuid.Nil,
	}
}
