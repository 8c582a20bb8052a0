// Package types provides type definitions for structured data used throughout the AI visibility system.
package types

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Provider identifiers accepted by the orchestrator.
const (
	ProviderOpenAI     = "openai"
	ProviderClaude     = "claude"
	ProviderGemini     = "gemini"
	ProviderCopilot    = "copilot"
	ProviderPerplexity = "perplexity"
)

// KnownProviders lists every provider a test run may target, in display order.
var KnownProviders = []string{ProviderOpenAI, ProviderClaude, ProviderGemini, ProviderCopilot, ProviderPerplexity}

// IsKnownProvider reports whether id is on the provider allow-list.
func IsKnownProvider(id string) bool {
	for _, p := range KnownProviders {
		if p == id {
			return true
		}
	}
	return false
}

// Query types a run can generate.
const (
	QueryTypeConsumer = "consumer"
	QueryTypeBusiness = "business"
)

// CustomQueries holds caller-supplied questions that replace generated ones.
type CustomQueries struct {
	Consumer []string `json:"consumer"`
	Business []string `json:"business"`
}

// Total returns the number of custom questions.
func (c *CustomQueries) Total() int {
	if c == nil {
		return 0
	}
	return len(c.Consumer) + len(c.Business)
}

// TestRunRequest is the body of POST /api/test/run.
type TestRunRequest struct {
	Providers       []string       `json:"providers" validate:"required,min=1,unique,dive,oneof=openai claude gemini copilot perplexity"`
	QueryTypes      []string       `json:"queryTypes" validate:"required,min=1,unique,dive,oneof=consumer business"`
	ConsumerQueries int            `json:"consumerQueries" validate:"gte=0"`
	BusinessQueries int            `json:"businessQueries" validate:"gte=0"`
	CustomQueries   *CustomQueries `json:"customQueries,omitempty"`
}

// TotalQueries is the number of questions each provider is asked.
func (r *TestRunRequest) TotalQueries() int {
	if r.CustomQueries != nil {
		return r.CustomQueries.Total()
	}
	return r.ConsumerQueries + r.BusinessQueries
}

// HasQueryType reports whether the run includes queryType.
func (r *TestRunRequest) HasQueryType(queryType string) bool {
	for _, qt := range r.QueryTypes {
		if qt == queryType {
			return true
		}
	}
	return false
}

// Validate validates the request shape and the custom query rules.
func (r *TestRunRequest) Validate() error {
	if err := newValidator().Struct(r); err != nil {
		return toValidationError(err)
	}

	if r.CustomQueries == nil {
		return nil
	}
	if len(r.CustomQueries.Consumer) != r.ConsumerQueries {
		return &ValidationError{
			Field:   "customQueries.consumer",
			Message: fmt.Sprintf("expected %d consumer queries, got %d", r.ConsumerQueries, len(r.CustomQueries.Consumer)),
		}
	}
	if len(r.CustomQueries.Business) != r.BusinessQueries {
		return &ValidationError{
			Field:   "customQueries.business",
			Message: fmt.Sprintf("expected %d business queries, got %d", r.BusinessQueries, len(r.CustomQueries.Business)),
		}
	}
	for i, q := range r.CustomQueries.Consumer {
		if strings.TrimSpace(q) == "" {
			return &ValidationError{Field: fmt.Sprintf("customQueries.consumer[%d]", i), Message: "query must not be empty"}
		}
	}
	for i, q := range r.CustomQueries.Business {
		if strings.TrimSpace(q) == "" {
			return &ValidationError{Field: fmt.Sprintf("customQueries.business[%d]", i), Message: "query must not be empty"}
		}
	}
	return nil
}

// JobSpec is the submission payload a remote backend accepts.
type JobSpec struct {
	Providers       []string       `json:"providers"`
	QueryTypes      []string       `json:"query_types"`
	ConsumerQueries int            `json:"consumer_queries"`
	BusinessQueries int            `json:"business_queries"`
	CustomQueries   *CustomQueries `json:"custom_queries,omitempty"`
}

// Spec converts the request into the backend submission payload.
func (r *TestRunRequest) Spec() JobSpec {
	return JobSpec{
		Providers:       r.Providers,
		QueryTypes:      r.QueryTypes,
		ConsumerQueries: r.ConsumerQueries,
		BusinessQueries: r.BusinessQueries,
		CustomQueries:   r.CustomQueries,
	}
}

// ValidationError reports a request field that failed validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// newValidator returns a validator that reports JSON field names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// toValidationError converts the first validator failure into a ValidationError.
func toValidationError(err error) error {
	errs, ok := err.(validator.ValidationErrors)
	if !ok || len(errs) == 0 {
		return err
	}
	fe := errs[0]
	field := fe.Namespace()
	if idx := strings.Index(field, "."); idx >= 0 {
		field = field[idx+1:]
	}

	var msg string
	switch fe.Tag() {
	case "required":
		msg = "is required"
	case "min":
		msg = fmt.Sprintf("must contain at least %s item(s)", fe.Param())
	case "unique":
		msg = "must not contain duplicates"
	case "oneof":
		msg = fmt.Sprintf("%v is not one of [%s]", fe.Value(), fe.Param())
	case "gte":
		msg = fmt.Sprintf("must be >= %s", fe.Param())
	case "email":
		msg = "must be a valid email address"
	case "url":
		msg = "must be a valid URL"
	default:
		msg = fmt.Sprintf("failed %q validation", fe.Tag())
	}
	return &ValidationError{Field: field, Message: msg}
}
