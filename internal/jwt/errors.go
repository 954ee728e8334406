package jwt

import "fmt"

// Kind classifies why token verification failed.
type Kind string

const (
	KindMalformed        Kind = "malformed"
	KindBadSignature     Kind = "bad_signature"
	KindIssuerMismatch   Kind = "issuer_mismatch"
	KindAudienceMismatch Kind = "audience_mismatch"
	KindExpired          Kind = "expired"
)

// TokenError reports the first verification check that failed.
type TokenError struct {
	Kind  Kind
	cause error
}

func (e *TokenError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("token %s: %v", e.Kind, e.cause)
	}
	return fmt.Sprintf("token %s", e.Kind)
}

func (e *TokenError) Unwrap() error {
	return e.cause
}
