package domain

import (
	"errors"
	"fmt"
)

// ErrUnauthorized is the single failure outcome of the signin path. Unknown
// email and wrong password both collapse into it so callers cannot enumerate
// registered accounts.
var ErrUnauthorized = errors.New("unauthorized")

// ErrWorkspaceRequired reports a signup whose workspace name is empty once
// surrounding whitespace is stripped.
var ErrWorkspaceRequired = errors.New("workspace name required")

// EmailExistsError reports a signup against an already registered email.
type EmailExistsError struct {
	Email string
}

func (e *EmailExistsError) Error() string {
	return fmt.Sprintf("email already exists: %s", e.Email)
}

// IsEmailExists reports whether err is an EmailExistsError.
func IsEmailExists(err error) bool {
	var target *EmailExistsError
	return errors.As(err, &target)
}
