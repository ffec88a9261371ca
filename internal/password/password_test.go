package password

import (
	"strings"
	"testing"

	"github.com/koustreak/gardien/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func fastArgon2(t *testing.T) *Argon2 {
	t.Helper()
	a, err := NewArgon2(Argon2Params{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 16})
	require.NoError(t, err)
	return a
}

func fastBcrypt(t *testing.T) *Bcrypt {
	t.Helper()
	b, err := NewBcrypt(bcrypt.MinCost)
	require.NoError(t, err)
	return b
}

func TestHashers_RoundTrip(t *testing.T) {
	hashers := map[string]Hasher{
		"bcrypt": fastBcrypt(t),
		"argon2": fastArgon2(t),
	}

	for name, h := range hashers {
		t.Run(name, func(t *testing.T) {
			enc, err := h.Hash("s3cret-pass")
			require.NoError(t, err)
			assert.NotContains(t, enc, "s3cret-pass")
			assert.True(t, h.Matches(enc))

			again, err := h.Hash("s3cret-pass")
			require.NoError(t, err)
			assert.NotEqual(t, enc, again, "hashes are salted")

			ok, err := h.Verify("s3cret-pass", enc)
			require.NoError(t, err)
			assert.True(t, ok)

			ok, err = h.Verify("wrong", enc)
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestBcrypt_AcceptsPHPPrefix(t *testing.T) {
	b := fastBcrypt(t)
	enc, err := b.Hash("secret")
	require.NoError(t, err)

	php := "$2y$" + strings.TrimPrefix(enc, "$2a$")
	assert.True(t, b.Matches(php))
	ok, err := b.Verify("secret", php)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestBcrypt_TooLong(t *testing.T) {
	_, err := fastBcrypt(t).Hash(strings.Repeat("x", 73))
	assert.True(t, errs.IsValidation(err))
}

func TestArgon2_Malformed(t *testing.T) {
	a := fastArgon2(t)
	for _, enc := range []string{
		"",
		"$argon2id$v=19$m=8192,t=1$c2FsdA$a2V5",
		"$argon2id$v=18$m=8192,t=1,p=1$c2FsdA$a2V5",
		"$argon2id$v=19$m=8192,t=1,p=1$***$a2V5",
	} {
		_, err := a.Verify("x", enc)
		assert.True(t, errs.IsInvalidInput(err), enc)
	}
}

func TestChain(t *testing.T) {
	b, a := fastBcrypt(t), fastArgon2(t)
	c := NewChain(a, b)

	legacy, err := b.Hash("secret")
	require.NoError(t, err)

	ok, err := c.Verify("secret", legacy)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, c.NeedsRehash(legacy))

	fresh, err := c.Hash("secret")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(fresh, "$argon2id$"))
	assert.False(t, c.NeedsRehash(fresh))

	_, err = c.Verify("secret", "plaintext")
	assert.True(t, errs.IsInvalidInput(err))
}

func TestFromConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BcryptCost = bcrypt.MinCost
	cfg.Argon2 = Argon2Params{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 16}

	c, err := FromConfig(cfg)
	require.NoError(t, err)
	enc, err := c.Hash("pw")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(enc, "$2a$"))

	cfg.Algorithm = "argon2id"
	c, err = FromConfig(cfg)
	require.NoError(t, err)
	enc, err = c.Hash("pw")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(enc, "$argon2id$"))

	cfg.Algorithm = "md5"
	_, err = FromConfig(cfg)
	assert.True(t, errs.IsConfiguration(err))

	cfg.Algorithm = ""
	cfg.BcryptCost = 99
	_, err = FromConfig(cfg)
	assert.True(t, errs.IsConfiguration(err))
}
