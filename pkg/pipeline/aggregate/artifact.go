package aggregate

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"

	storageAdapter "github.com/karstlab/mofpipe/pkg/pipeline/adapter/storage"
	"github.com/karstlab/mofpipe/pkg/pipeline/core/domain/model"
	"github.com/karstlab/mofpipe/pkg/pipeline/support/util/exception"
	logger "github.com/karstlab/mofpipe/pkg/pipeline/support/util/logger"
)

// ArtifactWriter persists the summary mapping of an aggregation pass as a
// gzip-compressed JSON object. Each pass overwrites the batch's artifact, so
// re-aggregating an identical record set is idempotent.
type ArtifactWriter struct {
	store   storageAdapter.ObjectStore
	bucket  string
	baseDir string
}

// NewArtifactWriter creates an ArtifactWriter targeting the given bucket and
// base directory.
func NewArtifactWriter(store storageAdapter.ObjectStore, bucket, baseDir string) (*ArtifactWriter, error) {
	if store == nil {
		return nil, exception.NewPipelineError(moduleName, "object store is required", nil, false, false)
	}
	return &ArtifactWriter{store: store, bucket: bucket, baseDir: baseDir}, nil
}

// ObjectName returns the artifact location for a batch tag.
func (w *ArtifactWriter) ObjectName(batchTag string) string {
	name := fmt.Sprintf("%s/summary.json.gz", batchTag)
	if w.baseDir != "" {
		name = w.baseDir + "/" + name
	}
	return name
}

// Write serializes and uploads the summaries of one aggregation pass.
func (w *ArtifactWriter) Write(ctx context.Context, batchTag string, summaries map[string]*model.SummaryRecord) error {
	payload, err := json.Marshal(summaries)
	if err != nil {
		return exception.NewPipelineError(moduleName, "serializing summary artifact", err, false, false)
	}

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(payload); err != nil {
		return exception.NewPipelineError(moduleName, "compressing summary artifact", err, false, false)
	}
	if err := gz.Close(); err != nil {
		return exception.NewPipelineError(moduleName, "finalizing summary artifact", err, false, false)
	}

	objectName := w.ObjectName(batchTag)
	if err := w.store.Upload(ctx, w.bucket, objectName, &buf, "application/gzip"); err != nil {
		return exception.NewPipelineErrorf(moduleName,
			"uploading summary artifact '%s'", objectName, false, true, err)
	}
	logger.Infof("Wrote summary artifact for batch '%s' to '%s' (%d structures).", batchTag, objectName, len(summaries))
	return nil
}

// Read downloads and decodes a batch's summary artifact.
func (w *ArtifactWriter) Read(ctx context.Context, batchTag string) (map[string]*model.SummaryRecord, error) {
	objectName := w.ObjectName(batchTag)
	rc, err := w.store.Download(ctx, w.bucket, objectName)
	if err != nil {
		return nil, exception.NewPipelineErrorf(moduleName,
			"downloading summary artifact '%s'", objectName, false, true, err)
	}
	defer rc.Close()

	gz, err := gzip.NewReader(rc)
	if err != nil {
		return nil, exception.NewPipelineError(moduleName, "decompressing summary artifact", err, false, false)
	}
	defer gz.Close()

	var summaries map[string]*model.SummaryRecord
	if err := json.NewDecoder(gz).Decode(&summaries); err != nil {
		return nil, exception.NewPipelineError(moduleName, "decoding summary artifact", err, false, false)
	}
	return summaries, nil
}
