// Package password hashes and verifies credentials using argon2id in the
// PHC string format. The encoded form carries its own parameters and salt,
// so verification needs no state beyond the stored string.
package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	hashTime    uint32 = 3
	hashMemory  uint32 = 64 * 1024
	hashThreads uint8  = 2
	hashKeyLen  uint32 = 32
	hashSaltLen        = 16

	// maxHashMemory caps the memory parameter (KiB) accepted from a stored
	// hash so a crafted row cannot demand a multi-GB allocation.
	maxHashMemory uint32 = 1 << 20
)

// ErrInvalidHash reports a stored hash that does not parse as a well-formed
// argon2id PHC string. Verification surfaces it instead of panicking on
// corrupt rows.
var ErrInvalidHash = errors.New("invalid password hash")

// Hash returns an argon2id hash string embedding parameters and a fresh
// random salt.
func Hash(password string) (string, error) {
	salt := make([]byte, hashSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	sum := argon2.IDKey([]byte(password), salt, hashTime, hashMemory, hashThreads, hashKeyLen)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		hashMemory,
		hashTime,
		hashThreads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(sum),
	), nil
}

// Verify recomputes the digest for password against the encoded hash and
// compares in constant time. A malformed encoded value yields ErrInvalidHash.
func Verify(password, encoded string) (bool, error) {
	params, salt, expected, err := decode(encoded)
	if err != nil {
		return false, err
	}

	actual := argon2.IDKey([]byte(password), salt, params.time, params.memory, params.threads, uint32(len(expected)))
	return subtle.ConstantTimeCompare(actual, expected) == 1, nil
}

type hashParams struct {
	memory  uint32
	time    uint32
	threads uint8
}

func decode(encoded string) (hashParams, []byte, []byte, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return hashParams{}, nil, nil, ErrInvalidHash
	}

	version, err := parseIntParam(parts[2], "v=")
	if err != nil || version != argon2.Version {
		return hashParams{}, nil, nil, ErrInvalidHash
	}

	params, err := parseParams(parts[3])
	if err != nil {
		return hashParams{}, nil, nil, ErrInvalidHash
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return hashParams{}, nil, nil, ErrInvalidHash
	}

	digest, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return hashParams{}, nil, nil, ErrInvalidHash
	}

	// argon2.IDKey panics on zero time or parallelism and on a zero key
	// length; an out-of-range parameter is a malformed hash, not a crash.
	if params.time < 1 || params.threads < 1 || params.memory > maxHashMemory {
		return hashParams{}, nil, nil, ErrInvalidHash
	}
	if len(salt) == 0 || len(digest) == 0 {
		return hashParams{}, nil, nil, ErrInvalidHash
	}

	return params, salt, digest, nil
}

func parseParams(value string) (hashParams, error) {
	parts := strings.Split(value, ",")
	if len(parts) != 3 {
		return hashParams{}, ErrInvalidHash
	}

	memory, err := parseIntParam(parts[0], "m=")
	if err != nil {
		return hashParams{}, ErrInvalidHash
	}
	timeCost, err := parseIntParam(parts[1], "t=")
	if err != nil {
		return hashParams{}, ErrInvalidHash
	}
	threads, err := parseIntParam(parts[2], "p=")
	if err != nil || threads > 255 {
		return hashParams{}, ErrInvalidHash
	}

	return hashParams{memory: uint32(memory), time: uint32(timeCost), threads: uint8(threads)}, nil
}

func parseIntParam(value, prefix string) (int, error) {
	if !strings.HasPrefix(value, prefix) {
		return 0, ErrInvalidHash
	}
	parsed, err := strconv.ParseUint(strings.TrimPrefix(value, prefix), 10, 32)
	if err != nil {
		return 0, ErrInvalidHash
	}
	return int(parsed), nil
}
