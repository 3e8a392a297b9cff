// internal/dispatcher/errors.go
package dispatcher

import (
	"fmt"
	"strings"
)

// ValidationError rejects a malformed or out-of-bounds request. It is
// raised before any scope consultation: malformed input cannot be safely
// evaluated for authorization.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// AuthorizationError denies a request. MissingScopes names every required
// scope absent from the grant, in required order; Reasons carries guard
// policy denials. No connector is invoked on this path.
type AuthorizationError struct {
	MissingScopes []string
	Reasons       []string
}

func (e *AuthorizationError) Error() string {
	if len(e.MissingScopes) > 0 {
		return "missing required scopes: " + strings.Join(e.MissingScopes, ", ")
	}
	if len(e.Reasons) > 0 {
		return "request blocked: " + strings.Join(e.Reasons, ", ")
	}
	return "not authorized"
}

// NotFoundError reports an unknown tool name.
type NotFoundError struct {
	Tool string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("tool %q not found", e.Tool)
}
