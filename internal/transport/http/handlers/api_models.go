package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
)

// ErrorResponse represents a generic error payload with trace ID for debugging.
type ErrorResponse struct {
	Error             string `json:"error"`
	RateLimited       bool   `json:"rate_limited,omitempty"`
	RemainingAttempts *int   `json:"remaining_attempts,omitempty"`
	TraceID           string `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error response with trace ID from context.
func NewErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	traceID, _ := c.Get("trace_id")
	traceIDStr, _ := traceID.(string)

	return ErrorResponse{
		Error:   errorMsg,
		TraceID: traceIDStr,
	}
}

// MessageResponse represents a simple message payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// UserSummary describes the view of the signed-in account returned by the API.
type UserSummary struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name,omitempty"`
}

// SignUpRequest defines the account registration payload.
type SignUpRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	Name            string `json:"name"`
}

// SignUpResponse is returned when registration is accepted. Most deployments
// require email confirmation before the first sign-in.
type SignUpResponse struct {
	Message string `json:"message"`
}

// LoginRequest defines the payload for the login endpoint.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse describes the response for a successful login.
type LoginResponse struct {
	User *UserSummary `json:"user,omitempty"`
}

// RecoverRequest holds the password reset dispatch payload.
type RecoverRequest struct {
	Email string `json:"email"`
}

// PasswordUpdateRequest holds the new password for the signed-in account.
type PasswordUpdateRequest struct {
	Password string `json:"password"`
}

// PasswordStrengthRequest holds a candidate password for grading.
type PasswordStrengthRequest struct {
	Password string `json:"password"`
	Email    string `json:"email"`
}

// PasswordStrengthResponse feeds the signup form's strength meter.
type PasswordStrengthResponse struct {
	Strength string `json:"strength"`
}

// SessionResponse exposes the session store's observable state for UI bootstrap.
type SessionResponse struct {
	State   string       `json:"state"`
	Loading bool         `json:"loading"`
	User    *UserSummary `json:"user,omitempty"`
}

// HealthResponse reports liveness.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}

// ReadinessResponse reports readiness per dependency.
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}
