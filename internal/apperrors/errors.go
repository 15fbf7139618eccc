// Package apperrors defines the typed error variants surfaced by the
// service layer. Handlers translate them into HTTP statuses and the
// nested response payloads clients parse.
package apperrors

import "fmt"

// Rule identifies which placement constraint a cart line violated.
type Rule string

const (
	RuleArchived          Rule = "archived"
	RuleShopClosed        Rule = "shop_closed"
	RuleInsufficientStock Rule = "insufficient_stock"
)

// PlacementError reports the first cart line that failed during order
// placement. The ids are preserved so the client can highlight the
// exact cart item and constraint.
type PlacementError struct {
	CartLineID      uint
	StockPositionID uint
	Rule            Rule
	Message         string
}

func (e *PlacementError) Error() string {
	return fmt.Sprintf("cart line %d (stock position %d): %s: %s",
		e.CartLineID, e.StockPositionID, e.Rule, e.Message)
}

// ValidationError carries field-level problems with the caller's
// input. Recoverable by correcting the request.
type ValidationError struct {
	Fields map[string][]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %v", e.Fields)
}

// NewValidation builds a single-field validation error.
func NewValidation(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string][]string{field: {message}}}
}

// Add appends a message for a field.
func (e *ValidationError) Add(field, message string) {
	if e.Fields == nil {
		e.Fields = map[string][]string{}
	}
	e.Fields[field] = append(e.Fields[field], message)
}

// NotFoundError reports an absent referenced entity (user, shop,
// stock position, cart).
type NotFoundError struct {
	Resource string
	Message  string
}

func (e *NotFoundError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Resource + " not found"
}

// NotFound builds a NotFoundError for a resource.
func NotFound(resource string) *NotFoundError {
	return &NotFoundError{Resource: resource}
}

// ConflictError reports a uniqueness or integrity violation on write.
// Mapped to a 400-class response since it usually reflects a stale
// client view.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// ForbiddenError reports an authenticated caller acting outside its
// permissions, e.g. importing a price list for a shop it does not
// represent.
type ForbiddenError struct {
	Message string
}

func (e *ForbiddenError) Error() string { return e.Message }

// FatalError wraps a persistence failure that may have left
// inconsistent state, such as a commit or rollback error during
// placement. Surfaced as a server error for operator attention,
// never silently retried.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string { return "fatal: " + e.Err.Error() }

func (e *FatalError) Unwrap() error { return e.Err }
