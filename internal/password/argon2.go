package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/koustreak/gardien/internal/errs"
	"golang.org/x/crypto/argon2"
)

const argon2Prefix = "$" + AlgorithmArgon2 + "$"

// Argon2Params tunes argon2id. Memory is in KiB.
type Argon2Params struct {
	Memory      uint32 `yaml:"memory"`
	Time        uint32 `yaml:"time"`
	Parallelism uint8  `yaml:"parallelism"`
	SaltLength  uint32 `yaml:"salt_length"`
	KeyLength   uint32 `yaml:"key_length"`
}

func DefaultArgon2Params() Argon2Params {
	return Argon2Params{Memory: 64 * 1024, Time: 3, Parallelism: 2, SaltLength: 16, KeyLength: 32}
}

func (p Argon2Params) validate() error {
	switch {
	case p.Memory < 8*1024:
		return errs.New(errs.ErrKindConfiguration, "argon2 memory must be at least 8192 KiB")
	case p.Time < 1:
		return errs.New(errs.ErrKindConfiguration, "argon2 time must be at least 1")
	case p.Parallelism < 1:
		return errs.New(errs.ErrKindConfiguration, "argon2 parallelism must be at least 1")
	case p.SaltLength < 16 || p.KeyLength < 16:
		return errs.New(errs.ErrKindConfiguration, "argon2 salt and key lengths must be at least 16")
	}
	return nil
}

// Argon2 hashes with argon2id and encodes in PHC string format:
// $argon2id$v=19$m=65536,t=3,p=2$<salt>$<hash>
type Argon2 struct {
	params Argon2Params
}

var _ Hasher = (*Argon2)(nil)

func NewArgon2(p Argon2Params) (*Argon2, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	return &Argon2{params: p}, nil
}

func (a *Argon2) Hash(pw string) (string, error) {
	salt := make([]byte, a.params.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", errs.Wrap(errs.ErrKindUnknown, "read salt", err)
	}
	key := argon2.IDKey([]byte(pw), salt, a.params.Time, a.params.Memory, a.params.Parallelism, a.params.KeyLength)

	return fmt.Sprintf("%sv=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2Prefix, argon2.Version,
		a.params.Memory, a.params.Time, a.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key)), nil
}

func (a *Argon2) Verify(pw, encoded string) (bool, error) {
	p, salt, key, err := decodePHC(encoded)
	if err != nil {
		return false, err
	}
	got := argon2.IDKey([]byte(pw), salt, p.Time, p.Memory, p.Parallelism, uint32(len(key)))
	return subtle.ConstantTimeCompare(got, key) == 1, nil
}

func (a *Argon2) Matches(encoded string) bool {
	return strings.HasPrefix(encoded, argon2Prefix)
}

func decodePHC(encoded string) (Argon2Params, []byte, []byte, error) {
	var p Argon2Params
	bad := func(what string) (Argon2Params, []byte, []byte, error) {
		return p, nil, nil, errs.New(errs.ErrKindInvalidInput, "malformed argon2 hash: "+what)
	}

	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != AlgorithmArgon2 {
		return bad("format")
	}
	if parts[2] != "v="+strconv.Itoa(argon2.Version) {
		return bad("version")
	}

	for _, kv := range strings.Split(parts[3], ",") {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			return bad("parameters")
		}
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return bad("parameter " + k)
		}
		switch k {
		case "m":
			p.Memory = uint32(n)
		case "t":
			p.Time = uint32(n)
		case "p":
			if n > 255 {
				return bad("parallelism")
			}
			p.Parallelism = uint8(n)
		default:
			return bad("parameter " + k)
		}
	}
	if p.Memory == 0 || p.Time == 0 || p.Parallelism == 0 {
		return bad("parameters")
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) == 0 {
		return bad("salt")
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return bad("key")
	}
	return p, salt, key, nil
}
