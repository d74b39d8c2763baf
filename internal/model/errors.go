package model

import (
	"fmt"
	"strings"
)

// Severity grades a validation result.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// ErrorCode is a closed set of validation failure codes.
type ErrorCode string

const (
	CodeUnauthorized        ErrorCode = "UNAUTHORIZED"
	CodeInvalidState        ErrorCode = "INVALID_STATE"
	CodeGameNotFound        ErrorCode = "GAME_NOT_FOUND"
	CodeMissingTarget       ErrorCode = "MISSING_TARGET"
	CodeWrongRoom           ErrorCode = "WRONG_ROOM"
	CodeHostageLimitReached ErrorCode = "HOSTAGE_LIMIT_REACHED"
	CodeMissingDependency   ErrorCode = "MISSING_DEPENDENCY"
	CodeMutuallyExclusive   ErrorCode = "MUTUALLY_EXCLUSIVE"
	CodeRoleCountMismatch   ErrorCode = "ROLE_COUNT_MISMATCH"
	CodeTiedVote            ErrorCode = "TIED_VOTE"
	CodeInsufficientPlayers ErrorCode = "INSUFFICIENT_PLAYERS"
	CodeTooManyPlayers      ErrorCode = "TOO_MANY_PLAYERS"
	CodeTeamImbalance       ErrorCode = "TEAM_IMBALANCE"
	CodeNotLeader           ErrorCode = "NOT_LEADER"
	CodeVoteNotActive       ErrorCode = "VOTE_NOT_ACTIVE"
	CodeVoteActive          ErrorCode = "VOTE_ACTIVE"
	CodeHostagesNotLocked   ErrorCode = "HOSTAGES_NOT_LOCKED"
	CodeAlreadyJoined       ErrorCode = "ALREADY_JOINED"
	CodeNameTaken           ErrorCode = "NAME_TAKEN"
)

// ValidationError is a structured, user-presentable command failure.
type ValidationError struct {
	Code       ErrorCode      `json:"code"`
	Message    string         `json:"message"`
	Severity   Severity       `json:"severity"`
	Suggestion string         `json:"suggestion,omitempty"`
	Context    map[string]any `json:"context,omitempty"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewValidationError builds an error-severity validation failure.
func NewValidationError(code ErrorCode, msg string) *ValidationError {
	return &ValidationError{Code: code, Message: msg, Severity: SeverityError}
}

// WithSuggestion attaches an actionable hint and returns the error.
func (e *ValidationError) WithSuggestion(s string) *ValidationError {
	e.Suggestion = s
	return e
}

// WithContext attaches a context value and returns the error.
func (e *ValidationError) WithContext(key string, v any) *ValidationError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = v
	return e
}

// ValidationErrors aggregates several validation failures.
type ValidationErrors []*ValidationError

func (es ValidationErrors) Error() string {
	msgs := make([]string, len(es))
	for i, e := range es {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

// Errors returns only the error-severity entries.
func (es ValidationErrors) Errors() ValidationErrors {
	var out ValidationErrors
	for _, e := range es {
		if e.Severity == SeverityError {
			out = append(out, e)
		}
	}
	return out
}

// Warnings returns only the warning-severity entries.
func (es ValidationErrors) Warnings() ValidationErrors {
	var out ValidationErrors
	for _, e := range es {
		if e.Severity == SeverityWarning {
			out = append(out, e)
		}
	}
	return out
}
