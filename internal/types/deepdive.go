package types

import "time"

// Deep-dive request statuses.
const (
	DeepDivePending   = "pending"
	DeepDiveCompleted = "completed"
)

// DeepDiveSubmitRequest is the body of POST /api/deep-dive/submit.
type DeepDiveSubmitRequest struct {
	BusinessName string   `json:"businessName" validate:"required,min=1"`
	BusinessURL  string   `json:"businessUrl" validate:"omitempty,url"`
	Email        string   `json:"email,omitempty" validate:"omitempty,email"`
	AIEngines    []string `json:"aiEngines" validate:"required,min=1,dive,oneof=openai claude gemini copilot perplexity"`
	QueryCount   int      `json:"queryCount" validate:"gte=1,lte=500"`
	QueryTypes   []string `json:"queryTypes" validate:"omitempty,dive,oneof=consumer business"`
	Notes        string   `json:"notes,omitempty"`
}

// Validate validates the DeepDiveSubmitRequest using the validator.
func (r *DeepDiveSubmitRequest) Validate() error {
	if err := newValidator().Struct(r); err != nil {
		return toValidationError(err)
	}
	return nil
}

// DeepDiveResults are the analyst findings attached when a request completes.
type DeepDiveResults struct {
	CompetitorsMentioned []Competitor `json:"competitorsMentioned"`
	YourMentions         int          `json:"yourMentions"`
	ExtractedQueries     []string     `json:"extractedQueries"`
	Recommendations      []string     `json:"recommendations"`
}

// DeepDiveUpdateRequest is the body of POST /api/deep-dive/admin/update.
type DeepDiveUpdateRequest struct {
	ID      string          `json:"id" validate:"required"`
	Results DeepDiveResults `json:"results"`
}

// Validate validates the DeepDiveUpdateRequest using the validator.
func (r *DeepDiveUpdateRequest) Validate() error {
	if err := newValidator().Struct(r); err != nil {
		return toValidationError(err)
	}
	if r.Results.YourMentions < 0 {
		return &ValidationError{Field: "results.yourMentions", Message: "must be >= 0"}
	}
	return nil
}

// DeepDiveRequest is a manual analysis request tracked from pending to completed.
type DeepDiveRequest struct {
	ID           string           `json:"id"`
	BusinessName string           `json:"businessName"`
	BusinessURL  string           `json:"businessUrl,omitempty"`
	Email        string           `json:"email,omitempty"`
	AIEngines    []string         `json:"aiEngines"`
	QueryCount   int              `json:"queryCount"`
	QueryTypes   []string         `json:"queryTypes,omitempty"`
	Notes        string           `json:"notes,omitempty"`
	Status       string           `json:"status"`
	Results      *DeepDiveResults `json:"results,omitempty"`
	CreatedAt    time.Time        `json:"createdAt"`
	CompletedAt  *time.Time       `json:"completedAt,omitempty"`
}
