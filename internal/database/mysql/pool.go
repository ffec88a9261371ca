package mysql

import (
	"net"
	"strconv"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/koustreak/gardien/internal/database"
)

const (
	defaultPort    = 3306
	defaultCharset = "utf8mb4"
)

// buildDSN constructs the MySQL DSN through the driver's own Config so that
// passwords with special characters are escaped correctly.
//
// parseTime=true      → DATETIME/TIMESTAMP scan as time.Time
// clientFoundRows=true → UPDATE reports matched rows, not changed rows
func buildDSN(cfg *database.Config) string {
	port := cfg.Port
	if port == 0 {
		port = defaultPort
	}
	charset := cfg.Charset
	if charset == "" {
		charset = defaultCharset
	}

	c := gomysql.NewConfig()
	c.User = cfg.User
	c.Passwd = cfg.Password
	c.Net = "tcp"
	c.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(port))
	c.DBName = cfg.Database
	c.ParseTime = true
	c.ClientFoundRows = true
	c.Params = map[string]string{"charset": charset}

	return c.FormatDSN()
}
