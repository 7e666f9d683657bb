package aggregate

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	storageAdapter "github.com/karstlab/mofpipe/pkg/pipeline/adapter/storage"
	"github.com/karstlab/mofpipe/pkg/pipeline/core/domain/model"
	"github.com/karstlab/mofpipe/pkg/pipeline/support/util/exception"
	logger "github.com/karstlab/mofpipe/pkg/pipeline/support/util/logger"
)

// summaryRow is the flat Parquet schema of one structure's summary.
type summaryRow struct {
	StructureName     string `parquet:"name=structure_name, type=BYTE_ARRAY, convertedtype=UTF8"`
	BatchTag          string `parquet:"name=batch_tag, type=BYTE_ARRAY, convertedtype=UTF8"`
	HasCompleteOutput bool   `parquet:"name=has_complete_output, type=BOOLEAN"`
	IsMOF             bool   `parquet:"name=is_mof, type=BOOLEAN"`
	Provisional       bool   `parquet:"name=provisional, type=BOOLEAN"`
	NoLongerMOF       bool   `parquet:"name=no_longer_mof, type=BOOLEAN"`
}

// ParquetExporter writes an aggregation pass's summaries as a Parquet file
// for downstream analytical queries.
type ParquetExporter struct {
	store   storageAdapter.ObjectStore
	bucket  string
	baseDir string
}

// NewParquetExporter creates a ParquetExporter targeting the given bucket and
// base directory.
func NewParquetExporter(store storageAdapter.ObjectStore, bucket, baseDir string) (*ParquetExporter, error) {
	if store == nil {
		return nil, exception.NewPipelineError(moduleName, "object store is required", nil, false, false)
	}
	return &ParquetExporter{store: store, bucket: bucket, baseDir: baseDir}, nil
}

// Export writes one Parquet file per pass under
// <baseDir>/<batchTag>/summary_<timestamp>.parquet.
func (e *ParquetExporter) Export(ctx context.Context, batchTag string, summaries map[string]*model.SummaryRecord) (err error) {
	if len(summaries) == 0 {
		logger.Infof("No summaries to export for batch '%s', skipping Parquet file generation.", batchTag)
		return nil
	}

	rows := make([]summaryRow, 0, len(summaries))
	for _, name := range SortedNames(summaries) {
		s := summaries[name]
		rows = append(rows, summaryRow{
			StructureName:     name,
			BatchTag:          s.Metadata[model.MetaBatchTag],
			HasCompleteOutput: s.HasCompleteOutput,
			IsMOF:             s.IsMOF,
			Provisional:       s.Provisional,
			NoLongerMOF:       s.NoLongerMOF,
		})
	}

	buf := new(bytes.Buffer)
	pw, err := writer.NewParquetWriterFromWriter(buf, new(summaryRow), int64(len(rows)))
	if err != nil {
		return exception.NewPipelineError(moduleName, "creating Parquet writer", err, false, false)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, row := range rows {
		if err := pw.Write(row); err != nil {
			return exception.NewPipelineErrorf(moduleName,
				"writing summary row for '%s'", row.StructureName, false, false, err)
		}
	}

	// The library can panic during finalization on schema mismatches.
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = exception.NewPipelineErrorf(moduleName,
					"Parquet writer panicked during finalization: %v", r, false, false)
			}
		}()
		if werr := pw.WriteStop(); werr != nil {
			err = exception.NewPipelineError(moduleName, "finalizing Parquet file", werr, false, false)
		}
	}()
	if err != nil {
		return err
	}

	objectName := fmt.Sprintf("%s/summary_%s.parquet", batchTag, time.Now().Format("20060102150405"))
	if e.baseDir != "" {
		objectName = e.baseDir + "/" + objectName
	}
	if err := e.store.Upload(ctx, e.bucket, objectName, buf, "application/octet-stream"); err != nil {
		return exception.NewPipelineErrorf(moduleName,
			"uploading Parquet export '%s'", objectName, false, true, err)
	}
	logger.Infof("Exported %d summary rows for batch '%s' to '%s'.", len(rows), batchTag, objectName)
	return nil
}
