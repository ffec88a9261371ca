// Package password hashes and verifies account passwords with salted slow
// hashes. Encoded hashes are self-describing, so a Chain can keep verifying
// older encodings after the configured algorithm changes.
package password

import (
	"strings"

	"github.com/koustreak/gardien/internal/errs"
)

// Hasher produces and checks encoded password hashes.
type Hasher interface {
	// Hash returns the encoded salted hash of pw.
	Hash(pw string) (string, error)

	// Verify reports whether pw matches encoded. A mismatch is (false, nil);
	// an error means encoded could not be parsed.
	Verify(pw, encoded string) (bool, error)

	// Matches reports whether encoded was produced by this hasher's
	// algorithm.
	Matches(encoded string) bool
}

const (
	AlgorithmBcrypt = "bcrypt"
	AlgorithmArgon2 = "argon2id"
)

// Config selects and tunes the hashing algorithm for new hashes.
type Config struct {
	Algorithm  string       `yaml:"algorithm"`
	BcryptCost int          `yaml:"bcrypt_cost"`
	Argon2     Argon2Params `yaml:"argon2"`
}

func DefaultConfig() Config {
	return Config{
		Algorithm:  AlgorithmBcrypt,
		BcryptCost: DefaultBcryptCost,
		Argon2:     DefaultArgon2Params(),
	}
}

// FromConfig builds a Chain that hashes with the configured algorithm and
// still verifies hashes written by the other one.
func FromConfig(cfg Config) (*Chain, error) {
	b, err := NewBcrypt(cfg.BcryptCost)
	if err != nil {
		return nil, err
	}
	a, err := NewArgon2(cfg.Argon2)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(cfg.Algorithm) {
	case "", AlgorithmBcrypt:
		return NewChain(b, a), nil
	case AlgorithmArgon2, "argon2":
		return NewChain(a, b), nil
	default:
		return nil, errs.Newf(errs.ErrKindConfiguration, "unsupported password algorithm %q", cfg.Algorithm)
	}
}
