package password

import (
	"errors"
	"strings"

	"github.com/koustreak/gardien/internal/errs"
	"golang.org/x/crypto/bcrypt"
)

const DefaultBcryptCost = bcrypt.DefaultCost

// Bcrypt hashes with bcrypt. It verifies $2a$, $2b$ and $2y$ hashes, so
// tables filled by other stacks keep working.
type Bcrypt struct {
	cost int
}

var _ Hasher = (*Bcrypt)(nil)

// NewBcrypt creates a bcrypt hasher. cost 0 selects DefaultBcryptCost.
func NewBcrypt(cost int) (*Bcrypt, error) {
	if cost == 0 {
		cost = DefaultBcryptCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, errs.Newf(errs.ErrKindConfiguration,
			"bcrypt cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	return &Bcrypt{cost: cost}, nil
}

func (b *Bcrypt) Hash(pw string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(pw), b.cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", errs.New(errs.ErrKindValidation, "password must be at most 72 bytes")
	}
	if err != nil {
		return "", errs.Wrap(errs.ErrKindUnknown, "bcrypt hash", err)
	}
	return string(h), nil
}

func (b *Bcrypt) Verify(pw, encoded string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(encoded), []byte(pw))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, errs.Wrap(errs.ErrKindInvalidInput, "malformed bcrypt hash", err)
	}
}

func (b *Bcrypt) Matches(encoded string) bool {
	for _, p := range []string{"$2a$", "$2b$", "$2y$"} {
		if strings.HasPrefix(encoded, p) {
			return true
		}
	}
	return false
}
