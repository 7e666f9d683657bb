// Package postgres registers the PostgreSQL dialector with the gorm-backed
// result store. Import it for its side effect.
package postgres

import (
	"errors"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/karstlab/mofpipe/pkg/pipeline/infrastructure/store/gormstore"
)

func init() {
	gormstore.RegisterDialector("postgres", func(dsn string) (gorm.Dialector, error) {
		if dsn == "" {
			return nil, errors.New("PostgreSQL DSN cannot be empty")
		}
		return postgres.Open(dsn), nil
	})
}
