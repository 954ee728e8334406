// Package jwt issues and verifies the signed session tokens used by the
// chat service. Signing and verification are separate capabilities over an
// Ed25519 keypair: an Issuer holds the private half, a Verifier needs only
// the public half.
package jwt

import (
	"crypto/ed25519"
	"fmt"
	"time"

	gojose "github.com/go-jose/go-jose/v4"
	gojwt "github.com/go-jose/go-jose/v4/jwt"

	"github.com/loopchat/chatd/internal/domain"
)

const (
	// TokenIssuer and TokenAudience are fixed for every token this service
	// signs; verification rejects anything else.
	TokenIssuer   = "chat_server"
	TokenAudience = "chat_web"

	// TokenDuration is the lifetime of a session token.
	TokenDuration = 7 * 24 * time.Hour
)

// UserClaims is the public-safe projection of a user embedded in a token.
// It deliberately mirrors domain.User minus the password hash.
type UserClaims struct {
	ID          int64     `json:"id"`
	WorkspaceID int64     `json:"ws_id"`
	Fullname    string    `json:"fullname"`
	Email       string    `json:"email"`
	CreatedAt   time.Time `json:"created_at"`
}

// User converts the claims back into a domain user.
func (c UserClaims) User() domain.User {
	return domain.User{
		ID:          c.ID,
		WorkspaceID: c.WorkspaceID,
		Fullname:    c.Fullname,
		Email:       c.Email,
		CreatedAt:   c.CreatedAt,
	}
}

// Issuer signs session tokens with the service's private key.
type Issuer struct {
	key ed25519.PrivateKey
	now func() time.Time
}

// NewIssuer constructs an Issuer from an Ed25519 private key.
func NewIssuer(key ed25519.PrivateKey) *Issuer {
	return &Issuer{key: key, now: time.Now}
}

// Sign produces a compact serialized token carrying the user's public
// claims plus issuer, audience, issue time, and expiry.
func (i *Issuer) Sign(user domain.User) (string, error) {
	signer, err := gojose.NewSigner(
		gojose.SigningKey{Algorithm: gojose.EdDSA, Key: i.key},
		(&gojose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		return "", fmt.Errorf("new signer: %w", err)
	}

	now := i.now().UTC()
	std := gojwt.Claims{
		Issuer:   TokenIssuer,
		Audience: gojwt.Audience{TokenAudience},
		IssuedAt: gojwt.NewNumericDate(now),
		Expiry:   gojwt.NewNumericDate(now.Add(TokenDuration)),
	}
	custom := UserClaims{
		ID:          user.ID,
		WorkspaceID: user.WorkspaceID,
		Fullname:    user.Fullname,
		Email:       user.Email,
		CreatedAt:   user.CreatedAt,
	}

	token, err := gojwt.Signed(signer).Claims(std).Claims(custom).Serialize()
	if err != nil {
		return "", fmt.Errorf("serialize token: %w", err)
	}
	return token, nil
}

// Verifier checks session tokens with only the public key. It keeps no
// state between calls and is safe for unbounded concurrent use.
type Verifier struct {
	key ed25519.PublicKey
	now func() time.Time
}

// NewVerifier constructs a Verifier from an Ed25519 public key.
func NewVerifier(key ed25519.PublicKey) *Verifier {
	return &Verifier{key: key, now: time.Now}
}

// Verify validates the token and returns the embedded user. Checks run in a
// fixed order and fail with the kind of the first violation: malformed
// token, bad signature, issuer mismatch, audience mismatch, expiry.
func (v *Verifier) Verify(token string) (domain.User, error) {
	parsed, err := gojwt.ParseSigned(token, []gojose.SignatureAlgorithm{gojose.EdDSA})
	if err != nil {
		return domain.User{}, &TokenError{Kind: KindMalformed, cause: err}
	}

	if err := parsed.Claims(v.key); err != nil {
		return domain.User{}, &TokenError{Kind: KindBadSignature, cause: err}
	}

	// Signature is verified above; a payload that fails to decode into the
	// claim types is a malformed token, not a signature failure.
	var std gojwt.Claims
	var custom UserClaims
	if err := parsed.UnsafeClaimsWithoutVerification(&std, &custom); err != nil {
		return domain.User{}, &TokenError{Kind: KindMalformed, cause: err}
	}

	if std.Issuer != TokenIssuer {
		return domain.User{}, &TokenError{Kind: KindIssuerMismatch}
	}
	if !std.Audience.Contains(TokenAudience) {
		return domain.User{}, &TokenError{Kind: KindAudienceMismatch}
	}
	if std.Expiry == nil || !v.now().Before(std.Expiry.Time()) {
		return domain.User{}, &TokenError{Kind: KindExpired}
	}

	return custom.User(), nil
}
