package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure: no infrastructure dependency.

var (
	// Validation errors
	ErrInvalidAction        = errors.New("unknown quest action")
	ErrInvalidBoost         = errors.New("boost amount must not be negative")
	ErrInvalidTemplate      = errors.New("quest template is invalid")
	ErrInvalidResponse      = errors.New("response must be accept or decline")
	ErrMissingUser          = errors.New("caller identity is required")
	ErrQuestNotActive       = errors.New("quest instance is not active")
	ErrSessionNotActive     = errors.New("live session is not active")
	ErrSelfSuggestion       = errors.New("cannot suggest a quest to your own live session")
	ErrSuggestionNotPending = errors.New("suggestion has already been answered")
	ErrChallengeExists      = errors.New("an active challenge already exists for this category")
	ErrInvalidDevice        = errors.New("device token is required")
	ErrInvalidNotifyType    = errors.New("unknown notification type")
	ErrInvalidCategory      = errors.New("challenge category is required")

	// Not-found errors
	ErrQuestNotFound      = errors.New("quest template not found")
	ErrInstanceNotFound   = errors.New("quest instance not found")
	ErrChallengeNotFound  = errors.New("challenge not found")
	ErrSessionNotFound    = errors.New("live session not found")
	ErrSuggestionNotFound = errors.New("suggestion not found")
	ErrUnknownJob         = errors.New("unknown scheduled job")

	// Permission errors
	ErrNotSessionOwner  = errors.New("only the live session owner may do this")
	ErrNotInstanceOwner = errors.New("quest instance belongs to another user")

	// Capacity errors: the attempted mutation is not applied
	ErrActiveQuestCap    = errors.New("active quest limit reached")
	ErrQuestAlreadyHeld  = errors.New("user already holds this quest")
	ErrInsufficientFunds = errors.New("insufficient currency balance")

	// Collaborator errors: soft failures inside sweeps
	ErrGeneration  = errors.New("quest generation failed")
	ErrPushGateway = errors.New("push gateway failed")

	// Not-yet-provisioned resources
	ErrFeatureUnavailable = errors.New("feature tables are not provisioned")
)

// ErrorClass is the handling category of an error.
type ErrorClass string

const (
	ClassValidation    ErrorClass = "validation"
	ClassNotFound      ErrorClass = "not_found"
	ClassForbidden     ErrorClass = "forbidden"
	ClassCapacity      ErrorClass = "capacity"
	ClassCollaborator  ErrorClass = "collaborator"
	ClassUnprovisioned ErrorClass = "unprovisioned"
	ClassInternal      ErrorClass = "internal"
)

var classes = []struct {
	class ErrorClass
	errs  []error
}{
	{ClassValidation, []error{
		ErrInvalidAction, ErrInvalidBoost, ErrInvalidTemplate, ErrInvalidResponse,
		ErrMissingUser, ErrQuestNotActive, ErrSessionNotActive, ErrSelfSuggestion,
		ErrSuggestionNotPending, ErrChallengeExists, ErrInvalidDevice, ErrInvalidNotifyType,
		ErrInvalidCategory,
	}},
	{ClassNotFound, []error{
		ErrQuestNotFound, ErrInstanceNotFound, ErrChallengeNotFound,
		ErrSessionNotFound, ErrSuggestionNotFound, ErrUnknownJob,
	}},
	{ClassForbidden, []error{ErrNotSessionOwner, ErrNotInstanceOwner}},
	{ClassCapacity, []error{ErrActiveQuestCap, ErrQuestAlreadyHeld, ErrInsufficientFunds}},
	{ClassCollaborator, []error{ErrGeneration, ErrPushGateway}},
	{ClassUnprovisioned, []error{ErrFeatureUnavailable}},
}

// Classify maps err onto the error taxonomy. Unknown errors are internal.
func Classify(err error) ErrorClass {
	for _, c := range classes {
		for _, target := range c.errs {
			if errors.Is(err, target) {
				return c.class
			}
		}
	}
	return ClassInternal
}
