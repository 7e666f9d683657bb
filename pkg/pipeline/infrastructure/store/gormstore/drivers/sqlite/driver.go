// Package sqlite registers the SQLite dialector with the gorm-backed result
// store. Import it for its side effect:
//
//	import _ "github.com/karstlab/mofpipe/pkg/pipeline/infrastructure/store/gormstore/drivers/sqlite"
package sqlite

import (
	"errors"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/karstlab/mofpipe/pkg/pipeline/infrastructure/store/gormstore"
)

func init() {
	gormstore.RegisterDialector("sqlite", func(dsn string) (gorm.Dialector, error) {
		if dsn == "" {
			return nil, errors.New("SQLite database path cannot be empty")
		}
		return sqlite.Open(dsn), nil
	})
}
