// Package password hashes and verifies user passwords with Argon2id.
//
// Hashes are stored in the PHC string format so that the algorithm, its cost
// parameters and the salt travel with the digest:
//
//	$argon2id$v=19$m=19456,t=2,p=1$<salt>$<digest>
//
// Salt and digest use unpadded standard base64.
package password

import (
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"golang.org/x/crypto/argon2"
)

const (
	// MaxLength is the longest password accepted, in characters.
	MaxLength = 128

	algorithm = "argon2id"
)

// Bounds on parameters read back from a stored hash. Anything outside them
// is treated as a corrupted hash rather than fed to argon2.
const (
	maxMemory     = 1 << 20 // KiB, 1 GiB
	maxIterations = 16
	minSaltLength = 8
	maxSaltLength = 64
	minKeyLength  = 16
	maxKeyLength  = 64
)

// Params are the Argon2id cost parameters.
type Params struct {
	Memory      uint32 // KiB
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultParams matches the OWASP baseline for Argon2id.
var DefaultParams = Params{
	Memory:      19456,
	Iterations:  2,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

// Hasher hashes and verifies passwords. The zero value is not usable; use
// NewHasher or NewDefaultHasher.
type Hasher struct {
	params Params
}

func NewHasher(p Params) *Hasher {
	return &Hasher{params: p}
}

func NewDefaultHasher() *Hasher {
	return NewHasher(DefaultParams)
}

// Hash derives an encoded hash for password with a fresh random salt.
// Two calls with the same password yield different strings.
func (h *Hasher) Hash(password string) (string, error) {
	if err := validateInput(password); err != nil {
		return "", err
	}

	salt := common.GenerateRandByteArray(int(h.params.SaltLength))
	key := argon2.IDKey([]byte(password), salt, h.params.Iterations, h.params.Memory, h.params.Parallelism, h.params.KeyLength)

	return encode(h.params, salt, key), nil
}

// Verify checks password against an encoded hash produced by Hash.
//
// It returns common.ErrPasswordHashFormat when encoded cannot be parsed and
// common.ErrInvalidCredentials when the password does not match.
func (h *Hasher) Verify(password, encoded string) error {
	if err := validateInput(password); err != nil {
		return err
	}

	p, salt, want, err := decode(encoded)
	if err != nil {
		return err
	}

	got := argon2.IDKey([]byte(password), salt, p.Iterations, p.Memory, p.Parallelism, uint32(len(want)))
	if subtle.ConstantTimeCompare(got, want) != 1 {
		return common.ErrInvalidCredentials
	}
	return nil
}

// CheckHash reports whether encoded is a well-formed hash Verify can use.
// It returns common.ErrPasswordHashFormat otherwise.
func CheckHash(encoded string) error {
	_, _, _, err := decode(encoded)
	return err
}

func validateInput(password string) error {
	n := utf8.RuneCountInString(password)
	if n == 0 || n > MaxLength {
		return common.ErrInvalidPasswordInput
	}
	return nil
}

func encode(p Params, salt, key []byte) string {
	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithm, argon2.Version,
		p.Memory, p.Iterations, p.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	)
}

func decode(encoded string) (Params, []byte, []byte, error) {
	var p Params

	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" {
		return p, nil, nil, fmt.Errorf("%w: unexpected number of fields", common.ErrPasswordHashFormat)
	}
	if parts[1] != algorithm {
		return p, nil, nil, fmt.Errorf("%w: unsupported algorithm %q", common.ErrPasswordHashFormat, parts[1])
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return p, nil, nil, fmt.Errorf("%w: version: %v", common.ErrPasswordHashFormat, err)
	}
	if version != argon2.Version {
		return p, nil, nil, fmt.Errorf("%w: unsupported version %d", common.ErrPasswordHashFormat, version)
	}

	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.Memory, &p.Iterations, &p.Parallelism); err != nil {
		return p, nil, nil, fmt.Errorf("%w: params: %v", common.ErrPasswordHashFormat, err)
	}
	if p.Memory == 0 || p.Iterations == 0 || p.Parallelism == 0 {
		return p, nil, nil, fmt.Errorf("%w: zero cost parameter", common.ErrPasswordHashFormat)
	}
	if p.Memory > maxMemory || p.Iterations > maxIterations {
		return p, nil, nil, fmt.Errorf("%w: cost parameter out of range", common.ErrPasswordHashFormat)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) < minSaltLength || len(salt) > maxSaltLength {
		return p, nil, nil, fmt.Errorf("%w: salt", common.ErrPasswordHashFormat)
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) < minKeyLength || len(key) > maxKeyLength {
		return p, nil, nil, fmt.Errorf("%w: digest", common.ErrPasswordHashFormat)
	}

	p.SaltLength = uint32(len(salt))
	p.KeyLength = uint32(len(key))
	return p, salt, key, nil
}
