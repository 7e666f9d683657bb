// Package gormstore provides a GORM-backed ResultStore usable with SQLite,
// PostgreSQL and MySQL. The sequence number every record receives on Put is
// the table's auto-increment column, so it is monotonic store-wide even with
// concurrent writers on different hosts.
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/karstlab/mofpipe/pkg/pipeline/core/domain/model"
	"github.com/karstlab/mofpipe/pkg/pipeline/core/domain/store"
	"github.com/karstlab/mofpipe/pkg/pipeline/support/util/exception"
	logger "github.com/karstlab/mofpipe/pkg/pipeline/support/util/logger"
)

const moduleName = "gormstore"

// Config holds the persistent store settings.
type Config struct {
	// Driver selects the registered dialector ("sqlite", "postgres", "mysql").
	Driver string `yaml:"driver"`
	// DSN is the driver-specific data source name.
	DSN string `yaml:"dsn"`
}

// Store is a persistent ResultStore on a SQL database via GORM.
type Store struct {
	db *gorm.DB
}

// Open connects to the database selected by config and migrates the record
// table.
func Open(cfg Config) (*Store, error) {
	factory, err := dialectorFor(cfg.Driver)
	if err != nil {
		return nil, exception.NewPipelineError(moduleName, "resolving database driver", err, false, false)
	}
	dialector, err := factory(cfg.DSN)
	if err != nil {
		return nil, exception.NewPipelineError(moduleName, "building database dialector", err, false, false)
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, exception.NewPipelineErrorf(moduleName, "connecting to '%s' database", cfg.Driver, false, true, err)
	}
	if err := db.AutoMigrate(&JobRecordEntity{}); err != nil {
		return nil, exception.NewPipelineError(moduleName, "migrating job record table", err, false, false)
	}
	logger.Infof("Opened %s result store.", cfg.Driver)
	return &Store{db: db}, nil
}

// NewStore wraps an existing gorm connection, migrating the record table.
func NewStore(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&JobRecordEntity{}); err != nil {
		return nil, exception.NewPipelineError(moduleName, "migrating job record table", err, false, false)
	}
	return &Store{db: db}, nil
}

// Put appends a record. The DB assigns the sequence number, which is copied
// back onto the record. Duplicate ids are rejected with ErrRecordExists.
func (s *Store) Put(ctx context.Context, record *model.JobRecord) error {
	entity, err := fromDomain(record)
	if err != nil {
		return err
	}
	entity.Sequence = 0 // let the DB assign it

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Check-then-insert inside the transaction so duplicates surface as
		// ErrRecordExists on every dialect; some do not report a constraint
		// violation GORM can translate.
		var count int64
		if err := tx.Model(&JobRecordEntity{}).Where("id = ?", record.ID).Count(&count).Error; err != nil {
			return exception.NewPipelineErrorf(moduleName,
				"checking record '%s'", record.ID, false, true, err)
		}
		if count > 0 {
			return exception.NewPipelineErrorf(moduleName,
				"record '%s' already stored", record.ID, false, false, exception.ErrRecordExists)
		}
		return tx.Create(entity).Error
	})
	if err != nil {
		if errors.Is(err, exception.ErrRecordExists) {
			return err
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) || isUniqueViolation(err) {
			return exception.NewPipelineErrorf(moduleName,
				"record '%s' already stored", record.ID, false, false, exception.ErrRecordExists)
		}
		if exception.IsPipelineError(err) {
			return err
		}
		return exception.NewPipelineErrorf(moduleName,
			"storing record '%s'", record.ID, false, true, err)
	}
	record.Sequence = entity.Sequence
	return nil
}

// Query returns all records matching the filter, ordered by sequence.
// Conditions on indexed fields are pushed down to SQL; arbitrary metadata
// keys are applied in memory after the fetch, with identical semantics to the
// in-memory store.
func (s *Store) Query(ctx context.Context, filter store.Filter) ([]*model.JobRecord, error) {
	q := s.db.WithContext(ctx).Model(&JobRecordEntity{})
	for _, c := range filter.Conditions {
		if clause, args, ok := sqlClause(c); ok {
			q = q.Where(clause, args...)
		}
	}

	var entities []JobRecordEntity
	if err := q.Order("sequence ASC").Find(&entities).Error; err != nil {
		return nil, exception.NewPipelineError(moduleName, "querying job records", err, false, true)
	}

	var out []*model.JobRecord
	for i := range entities {
		r, err := toDomain(&entities[i])
		if err != nil {
			return nil, err
		}
		if store.MatchesAll(r, filter) {
			out = append(out, r)
		}
	}
	return out, nil
}

// FindByID returns the record with the given id.
func (s *Store) FindByID(ctx context.Context, id string) (*model.JobRecord, error) {
	var entity JobRecordEntity
	err := s.db.WithContext(ctx).First(&entity, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, exception.NewPipelineErrorf(moduleName,
			"record '%s' not found", id, false, false, exception.ErrRecordNotFound)
	}
	if err != nil {
		return nil, exception.NewPipelineErrorf(moduleName, "loading record '%s'", id, false, true, err)
	}
	return toDomain(&entity)
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// sqlClause translates a condition into a SQL where clause when the field
// maps to a real column. Unmapped metadata fields return ok=false and are
// filtered in memory instead.
func sqlClause(c store.Condition) (string, []interface{}, bool) {
	column := ""
	switch c.Field {
	case "name":
		column = "name"
	case "status":
		column = "status"
	case "sequence":
		column = "sequence"
	case "metadata." + model.MetaStructureName:
		column = "structure_name"
	case "metadata." + model.MetaBatchTag:
		column = "batch_tag"
	case "metadata." + model.MetaJobInfo:
		column = "job_info"
	default:
		return "", nil, false
	}

	op := ""
	switch c.Op {
	case store.OpEq:
		op = "="
	case store.OpGt:
		op = ">"
	case store.OpGte:
		op = ">="
	case store.OpLt:
		op = "<"
	default:
		return "", nil, false
	}
	return fmt.Sprintf("%s %s ?", column, op), []interface{}{c.Value}, true
}

// isUniqueViolation matches unique constraint errors across the supported
// dialects that GORM does not translate to ErrDuplicatedKey.
func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate entry") ||
		strings.Contains(msg, "unique failed")
}

var _ store.ResultStore = (*Store)(nil)
