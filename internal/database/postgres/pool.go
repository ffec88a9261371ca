package postgres

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/koustreak/gardien/internal/database"
)

const (
	defaultPort    = 5432
	defaultSSLMode = "disable"
)

// buildDSN constructs a keyword/value connection string and lets pgx parse
// it once so malformed settings fail at configuration time.
func buildDSN(cfg *database.Config) (string, error) {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = defaultSSLMode
	}
	port := cfg.Port
	if port == 0 {
		port = defaultPort
	}

	pairs := []string{
		"host=" + quoteValue(cfg.Host),
		fmt.Sprintf("port=%d", port),
		"user=" + quoteValue(cfg.User),
		"dbname=" + quoteValue(cfg.Database),
		"sslmode=" + quoteValue(sslMode),
	}
	if cfg.Password != "" {
		pairs = append(pairs, "password="+quoteValue(cfg.Password))
	}
	if cfg.Charset != "" && !strings.EqualFold(cfg.Charset, "utf8mb4") {
		pairs = append(pairs, "client_encoding="+quoteValue(cfg.Charset))
	}
	dsn := strings.Join(pairs, " ")

	if _, err := pgx.ParseConfig(dsn); err != nil {
		return "", err
	}
	return dsn, nil
}

// quoteValue single-quotes a keyword/value setting, escaping \ and '.
func quoteValue(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}
