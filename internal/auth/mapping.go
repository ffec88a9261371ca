package auth

import (
	"github.com/koustreak/gardien/internal/database"
	"github.com/koustreak/gardien/internal/errs"
)

// Mapping binds the engine to a physical table and names the columns that
// play the login and password roles.
type Mapping struct {
	Table          string `yaml:"table"`
	LoginColumn    string `yaml:"login_column"`
	PasswordColumn string `yaml:"password_column"`
	LogFile        string `yaml:"log_file"`
	AutoCreate     bool   `yaml:"auto_create"`

	// TokenColumn and TokenExpiryColumn enable one-time login tokens when
	// both are set and exist in the table.
	TokenColumn       string `yaml:"token_column"`
	TokenExpiryColumn string `yaml:"token_expiry_column"`
}

// DefaultMapping returns the mapping used when none is configured.
func DefaultMapping() Mapping {
	return Mapping{
		Table:          "utilisateur",
		LoginColumn:    "login",
		PasswordColumn: "mot_de_passe",
		LogFile:        "auth_erreurs.log",
		AutoCreate:     true,
	}
}

// Validate checks every configured identifier.
func (m Mapping) Validate() error {
	ids := map[string]string{
		"table":           m.Table,
		"login_column":    m.LoginColumn,
		"password_column": m.PasswordColumn,
	}
	if m.TokenColumn != "" || m.TokenExpiryColumn != "" {
		ids["token_column"] = m.TokenColumn
		ids["token_expiry_column"] = m.TokenExpiryColumn
	}
	for name, id := range ids {
		if err := database.ValidateIdentifier(id); err != nil {
			return errs.Wrap(errs.ErrKindConfiguration, "invalid auth."+name, err)
		}
	}
	if m.LoginColumn == m.PasswordColumn {
		return errs.New(errs.ErrKindConfiguration, "auth.login_column and auth.password_column must differ")
	}
	return nil
}

func (m Mapping) tableSpec() database.TableSpec {
	return database.TableSpec{Table: m.Table, LoginColumn: m.LoginColumn, PasswordColumn: m.PasswordColumn}
}

func (m Mapping) tokensConfigured() bool {
	return m.TokenColumn != "" && m.TokenExpiryColumn != ""
}
