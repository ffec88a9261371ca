package database

import (
	"context"
	"regexp"
	"sync"

	"github.com/koustreak/gardien/internal/errs"
)

// TouchMode describes how an engine keeps updated_at current on UPDATE.
type TouchMode int

const (
	// TouchNative: the column definition refreshes itself (ON UPDATE clause).
	TouchNative TouchMode = iota
	// TouchApplication: the engine cannot do it; callers assign updated_at
	// on every INSERT and UPDATE.
	TouchApplication
	// TouchTrigger: a trigger and its backing function emulate the clause.
	TouchTrigger
)

func (m TouchMode) String() string {
	switch m {
	case TouchNative:
		return "native"
	case TouchApplication:
		return "application"
	case TouchTrigger:
		return "trigger"
	default:
		return "unknown"
	}
}

// Dialect is the per-engine strategy. Adding an engine means adding one
// implementation and registering it; nothing else branches on Engine.
//
// Identifiers handed to DDL builders must already have passed
// ValidateIdentifier.
type Dialect interface {
	Engine() Engine

	// DriverName is the database/sql driver name the engine registers.
	DriverName() string

	// BuildDSN turns a validated Config into a driver connection string.
	BuildDSN(cfg *Config) (string, error)

	// BindType is the sqlx bind type used to rebind "?" placeholders.
	BindType() int

	// QuoteIdent quotes a validated identifier.
	QuoteIdent(name string) string

	// MaxOpenConns caps the pool; 0 means use the configured value.
	MaxOpenConns() int

	// TableExistsQuery returns a statement taking the table name as its only
	// argument and yielding a single count.
	TableExistsQuery() string

	// DescribeColumns lists the columns of table in declaration order,
	// normalised to ColumnInfo. An absent table yields an empty slice.
	DescribeColumns(ctx context.Context, q Querier, table string) ([]ColumnInfo, error)

	// CreateTableDDL returns the statements creating the user table.
	CreateTableDDL(spec TableSpec) []string

	// AddTimestampColumnDDL returns the statements adding a convention
	// timestamp column to an existing table.
	AddTimestampColumnDDL(table, column string) []string

	// UpdatedAtTriggerDDL returns the statements installing the updated_at
	// trigger. Empty unless TouchMode is TouchTrigger.
	UpdatedAtTriggerDDL(table string) []string

	TouchMode() TouchMode

	// ExactMatch wraps a quoted column so that comparing it with "=" is
	// case and accent sensitive whatever the column collation.
	ExactMatch(quotedColumn string) string

	// LoginColumnType is the type of the login column in CreateTableDDL.
	LoginColumnType() string

	// MapError converts a driver error into *errs.Error.
	MapError(err error, msg string) error
}

var (
	registryMu sync.RWMutex
	registry   = map[Engine]Dialect{}
)

// Register makes a dialect available to Open. Engine packages call it from
// init.
func Register(d Dialect) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[d.Engine()] = d
}

// Lookup returns the registered dialect for engine.
func Lookup(engine Engine) (Dialect, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	d, ok := registry[engine]
	if !ok {
		return nil, errs.Newf(errs.ErrKindConfiguration,
			"no dialect registered for engine %q", engine)
	}
	return d, nil
}

const maxIdentifierLen = 64

var identRe = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// ValidateIdentifier accepts table and column names made only of letters,
// digits and underscores. Every identifier embedded in SQL text goes through
// it first.
func ValidateIdentifier(name string) error {
	if len(name) == 0 || len(name) > maxIdentifierLen || !identRe.MatchString(name) {
		return errs.Newf(errs.ErrKindInvalidInput, "invalid identifier %q", name)
	}
	return nil
}
