package mysql

import (
	"database/sql"
	"errors"
	"testing"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/koustreak/gardien/internal/database"
	"github.com/koustreak/gardien/internal/errs"
	"github.com/stretchr/testify/assert"
)

func TestBuildDSN(t *testing.T) {
	dsn := buildDSN(&database.Config{
		Host:     "db.local",
		Database: "app",
		User:     "auth",
		Password: "p@ss:word",
	})

	assert.Contains(t, dsn, "tcp(db.local:3306)/app")
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, dsn, "clientFoundRows=true")
	assert.Contains(t, dsn, "charset=utf8mb4")

	parsed, err := gomysql.ParseDSN(dsn)
	assert.NoError(t, err)
	assert.Equal(t, "p@ss:word", parsed.Passwd)
}

func TestDialect_DDL(t *testing.T) {
	d := Dialect{}
	spec := database.TableSpec{Table: "utilisateur", LoginColumn: "login", PasswordColumn: "mot_de_passe"}

	ddl := d.CreateTableDDL(spec)
	assert.Len(t, ddl, 1)
	assert.Contains(t, ddl[0], "CREATE TABLE IF NOT EXISTS `utilisateur`")
	assert.Contains(t, ddl[0], "`id` INT AUTO_INCREMENT PRIMARY KEY")
	assert.Contains(t, ddl[0], "`login` VARCHAR(255) COLLATE utf8mb4_bin NOT NULL UNIQUE")
	assert.Equal(t, "BINARY `login`", d.ExactMatch("`login`"))
	assert.Contains(t, ddl[0], "`updated_at` TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP")

	assert.Equal(t,
		[]string{"ALTER TABLE `utilisateur` ADD COLUMN `created_at` TIMESTAMP DEFAULT CURRENT_TIMESTAMP"},
		d.AddTimestampColumnDDL("utilisateur", "created_at"))
	assert.Contains(t, d.AddTimestampColumnDDL("utilisateur", "updated_at")[0], "ON UPDATE CURRENT_TIMESTAMP")
	assert.Empty(t, d.UpdatedAtTriggerDDL("utilisateur"))
	assert.Equal(t, database.TouchNative, d.TouchMode())
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind errs.ErrKind
	}{
		{"duplicate entry", &gomysql.MySQLError{Number: 1062, Message: "Duplicate entry"}, errs.ErrKindConflict},
		{"access denied", &gomysql.MySQLError{Number: 1045, Message: "Access denied"}, errs.ErrKindConnectionFailed},
		{"unknown database", &gomysql.MySQLError{Number: 1049}, errs.ErrKindConnectionFailed},
		{"table access denied", &gomysql.MySQLError{Number: 1142}, errs.ErrKindPermissionDenied},
		{"syntax", &gomysql.MySQLError{Number: 1064}, errs.ErrKindQueryFailed},
		{"network", errors.New("dial tcp: connection refused"), errs.ErrKindConnectionFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, errs.KindOf(mapError(tt.err, "op")))
		})
	}
	assert.Nil(t, mapError(nil, "op"))
}

func TestNormalizeColumn(t *testing.T) {
	id := normalizeColumn("id", "int", "NO", nullString(""), "auto_increment")
	assert.True(t, id.AutoIncrement)
	assert.False(t, id.Nullable)
	assert.Nil(t, id.Default)

	ts := normalizeColumn("created_at", "timestamp", "YES", nullString("CURRENT_TIMESTAMP"), "DEFAULT_GENERATED")
	assert.False(t, ts.AutoIncrement)
	assert.True(t, ts.Nullable)
	if assert.NotNil(t, ts.Default) {
		assert.Equal(t, "CURRENT_TIMESTAMP", *ts.Default)
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
