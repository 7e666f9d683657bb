package gormstore

import (
	"encoding/json"

	"github.com/karstlab/mofpipe/pkg/pipeline/core/domain/model"
	"github.com/karstlab/mofpipe/pkg/pipeline/support/util/exception"
	"github.com/karstlab/mofpipe/pkg/pipeline/support/util/serialization"
)

// fromDomain converts a domain record into its persistence entity.
func fromDomain(r *model.JobRecord) (*JobRecordEntity, error) {
	metadata, err := serialization.MarshalMetadata(r.Metadata)
	if err != nil {
		return nil, err
	}
	var failures []byte
	if len(r.Failures) > 0 {
		failures, err = json.Marshal(r.Failures)
		if err != nil {
			return nil, exception.NewPipelineError(moduleName, "Failed to serialize record failures", err, false, false)
		}
	}
	return &JobRecordEntity{
		ID:            r.ID,
		Sequence:      r.Sequence,
		Name:          r.Name,
		StructureName: r.Metadata[model.MetaStructureName],
		BatchTag:      r.Metadata[model.MetaBatchTag],
		JobInfo:       r.Metadata[model.MetaJobInfo],
		Metadata:      metadata,
		Output:        []byte(r.Output),
		Status:        string(r.Status),
		Failures:      failures,
		CreatedAt:     r.CreatedAt,
	}, nil
}

// toDomain converts a persistence entity back into a domain record.
func toDomain(e *JobRecordEntity) (*model.JobRecord, error) {
	r := &model.JobRecord{
		ID:        e.ID,
		Name:      e.Name,
		Status:    model.JobStatus(e.Status),
		Sequence:  e.Sequence,
		CreatedAt: e.CreatedAt,
	}
	if err := serialization.UnmarshalMetadata(e.Metadata, &r.Metadata); err != nil {
		return nil, err
	}
	if len(e.Output) > 0 {
		r.Output = json.RawMessage(e.Output)
	}
	if len(e.Failures) > 0 {
		if err := json.Unmarshal(e.Failures, &r.Failures); err != nil {
			return nil, exception.NewPipelineError(moduleName, "Failed to deserialize record failures", err, false, false)
		}
	}
	return r, nil
}
