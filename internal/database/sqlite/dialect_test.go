package sqlite

import (
	"context"
	"testing"

	"github.com/koustreak/gardien/internal/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openMemory(t *testing.T) *database.Conn {
	t.Helper()
	db, err := database.Open(context.Background(), &database.Config{
		Engine:   database.EngineSQLite,
		Database: database.MemoryDatabase,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestBuildDSN(t *testing.T) {
	d := Dialect{}

	dsn, err := d.BuildDSN(&database.Config{Database: database.MemoryDatabase})
	require.NoError(t, err)
	assert.Equal(t, ":memory:", dsn)

	dsn, err = d.BuildDSN(&database.Config{Database: "/var/lib/app/auth.db"})
	require.NoError(t, err)
	assert.Contains(t, dsn, "file:/var/lib/app/auth.db?")
	assert.Contains(t, dsn, "busy_timeout")
}

func TestDescribeColumns_Normalises(t *testing.T) {
	ctx := context.Background()
	db := openMemory(t)

	spec := database.TableSpec{Table: "utilisateur", LoginColumn: "login", PasswordColumn: "mot_de_passe"}
	for _, stmt := range (Dialect{}).CreateTableDDL(spec) {
		_, err := db.Exec(ctx, stmt)
		require.NoError(t, err)
	}
	_, err := db.Exec(ctx, `ALTER TABLE "utilisateur" ADD COLUMN "nom" TEXT NOT NULL DEFAULT ''`)
	require.NoError(t, err)

	cols, err := Dialect{}.DescribeColumns(ctx, db, "utilisateur")
	require.NoError(t, err)

	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	assert.Equal(t, []string{"id", "login", "mot_de_passe", "created_at", "updated_at", "nom"}, names)

	assert.True(t, cols[0].AutoIncrement)
	assert.False(t, cols[0].Nullable)
	assert.False(t, cols[1].Nullable)
	assert.Nil(t, cols[1].Default)
	if assert.NotNil(t, cols[3].Default) {
		assert.Equal(t, "CURRENT_TIMESTAMP", *cols[3].Default)
	}
	assert.Equal(t, "DATETIME", cols[3].DeclaredType)
}

func TestDescribeColumns_MissingTableIsEmpty(t *testing.T) {
	cols, err := Dialect{}.DescribeColumns(context.Background(), openMemory(t), "nope")
	require.NoError(t, err)
	assert.Empty(t, cols)
}

func TestDescribeColumns_CompositeKeyIsNotAutoIncrement(t *testing.T) {
	ctx := context.Background()
	db := openMemory(t)
	_, err := db.Exec(ctx, `CREATE TABLE m (a INTEGER, b INTEGER, PRIMARY KEY (a, b))`)
	require.NoError(t, err)

	cols, err := Dialect{}.DescribeColumns(ctx, db, "m")
	require.NoError(t, err)
	require.Len(t, cols, 2)
	assert.False(t, cols[0].AutoIncrement)
	assert.False(t, cols[1].AutoIncrement)
}

func TestAddTimestampColumnDDL_BackfillsRows(t *testing.T) {
	ctx := context.Background()
	db := openMemory(t)
	_, err := db.Exec(ctx, `CREATE TABLE legacy (login TEXT)`)
	require.NoError(t, err)
	_, err = db.Exec(ctx, `INSERT INTO legacy (login) VALUES ('x')`)
	require.NoError(t, err)

	for _, stmt := range (Dialect{}).AddTimestampColumnDDL("legacy", "created_at") {
		_, err := db.Exec(ctx, stmt)
		require.NoError(t, err)
	}

	var missing int
	require.NoError(t, db.QueryRow(ctx, `SELECT COUNT(*) FROM legacy WHERE created_at IS NULL`).Scan(&missing))
	assert.Zero(t, missing)
}

func TestTableExistsQuery(t *testing.T) {
	ctx := context.Background()
	db := openMemory(t)
	_, err := db.Exec(ctx, `CREATE TABLE present (v INTEGER)`)
	require.NoError(t, err)

	var n int
	require.NoError(t, db.QueryRow(ctx, Dialect{}.TableExistsQuery(), "present").Scan(&n))
	assert.Equal(t, 1, n)
	require.NoError(t, db.QueryRow(ctx, Dialect{}.TableExistsQuery(), "absent").Scan(&n))
	assert.Zero(t, n)
}
