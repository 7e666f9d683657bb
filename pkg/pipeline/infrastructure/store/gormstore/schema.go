package gormstore

import (
	"time"
)

// JobRecordEntity is a schema model used for persistence.
type JobRecordEntity struct {
	// ID carries its own unique index because the SQLite dialector promotes
	// the auto-increment column to the primary key, dropping the primaryKey
	// tag declared here.
	ID string `gorm:"primaryKey;uniqueIndex:idx_pipeline_job_record_id"`
	// Sequence is DB-assigned and monotonically increasing, giving every
	// record a store-wide position usable in range queries.
	Sequence      int64  `gorm:"autoIncrement;uniqueIndex"`
	Name          string `gorm:"index"`
	StructureName string `gorm:"index"`
	BatchTag      string `gorm:"index"`
	JobInfo       string `gorm:"index"`
	Metadata      []byte
	Output        []byte
	Status        string
	Failures      []byte
	CreatedAt     time.Time
}

func (JobRecordEntity) TableName() string {
	return "pipeline_job_record"
}
