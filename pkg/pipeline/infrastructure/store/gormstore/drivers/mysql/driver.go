// Package mysql registers the MySQL dialector with the gorm-backed result
// store. Import it for its side effect.
package mysql

import (
	"errors"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/karstlab/mofpipe/pkg/pipeline/infrastructure/store/gormstore"
)

func init() {
	gormstore.RegisterDialector("mysql", func(dsn string) (gorm.Dialector, error) {
		if dsn == "" {
			return nil, errors.New("MySQL DSN cannot be empty")
		}
		return mysql.Open(dsn), nil
	})
}
