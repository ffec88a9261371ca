package password

import "github.com/koustreak/gardien/internal/errs"

// Chain hashes with its first hasher and verifies with whichever hasher
// recognises the encoding.
type Chain struct {
	hashers []Hasher
}

var _ Hasher = (*Chain)(nil)

// NewChain panics when given no hashers.
func NewChain(primary Hasher, fallbacks ...Hasher) *Chain {
	if primary == nil {
		panic("password: nil primary hasher")
	}
	return &Chain{hashers: append([]Hasher{primary}, fallbacks...)}
}

func (c *Chain) Hash(pw string) (string, error) {
	return c.hashers[0].Hash(pw)
}

func (c *Chain) Verify(pw, encoded string) (bool, error) {
	for _, h := range c.hashers {
		if h.Matches(encoded) {
			return h.Verify(pw, encoded)
		}
	}
	return false, errs.New(errs.ErrKindInvalidInput, "unrecognised password hash format")
}

func (c *Chain) Matches(encoded string) bool {
	for _, h := range c.hashers {
		if h.Matches(encoded) {
			return true
		}
	}
	return false
}

// NeedsRehash reports whether encoded was produced by a fallback hasher.
func (c *Chain) NeedsRehash(encoded string) bool {
	return !c.hashers[0].Matches(encoded)
}
