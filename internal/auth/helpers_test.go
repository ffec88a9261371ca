package auth_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/koustreak/gardien/internal/auth"
	"github.com/koustreak/gardien/internal/database/dbtest"
	"github.com/koustreak/gardien/internal/password"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time           { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

type fixture struct {
	probe   *dbtest.Probe
	engine  *auth.Engine
	clock   *clock
	logPath string
	mapping auth.Mapping
}

// newFixture opens an in-memory database, runs ddl, then builds an engine.
func newFixture(t *testing.T, ddl []string, opts ...auth.Option) *fixture {
	t.Helper()
	probe := dbtest.NewProbe(dbtest.OpenMemory(t))
	dbtest.MustExec(t, probe, ddl...)

	f := &fixture{
		probe:   probe,
		clock:   &clock{t: time.Date(2026, 5, 4, 10, 30, 0, 0, time.UTC)},
		logPath: filepath.Join(t.TempDir(), "auth_erreurs.log"),
	}
	f.mapping = auth.DefaultMapping()
	f.mapping.LogFile = f.logPath

	hasher, err := password.NewBcrypt(bcrypt.MinCost)
	require.NoError(t, err)

	base := []auth.Option{
		auth.WithMapping(f.mapping),
		auth.WithHasher(hasher),
		auth.WithClock(f.clock.now),
	}
	f.engine, err = auth.NewWithDB(context.Background(), probe, append(base, opts...)...)
	require.NoError(t, err)
	probe.Reset()
	return f
}

// inserts counts recorded INSERT statements.
func (f *fixture) inserts() int {
	n := 0
	for _, s := range f.probe.Statements() {
		if strings.HasPrefix(strings.ToUpper(s), "INSERT") {
			n++
		}
	}
	return n
}

const legacyTable = `CREATE TABLE utilisateur (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	login VARCHAR(255) NOT NULL UNIQUE,
	mot_de_passe VARCHAR(255) NOT NULL,
	nom TEXT NOT NULL,
	prenom TEXT NOT NULL,
	bio TEXT,
	role TEXT NOT NULL DEFAULT 'user'
)`
