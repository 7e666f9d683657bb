package aggregate

import (
	"fmt"
	"sort"

	"github.com/karstlab/mofpipe/pkg/pipeline/core/domain/model"
)

// BatchReport is the caller-facing tally of one aggregation pass.
type BatchReport struct {
	BatchTag string `json:"batch_tag"`
	// Total is the number of structures with at least one record.
	Total int `json:"total"`
	// Complete counts structures whose chain reached a terminal state.
	Complete int `json:"complete"`
	// MOF counts structures whose final verdict is positive.
	MOF int `json:"mof"`
	// Pending counts structures still in flight, reported with a provisional
	// verdict.
	Pending int `json:"pending"`
	// NoLongerMOF counts structures that satisfied the initial criteria but
	// failed them after relaxation.
	NoLongerMOF int `json:"no_longer_mof"`
}

// BuildReport tallies the summaries of one aggregation pass.
func BuildReport(batchTag string, summaries map[string]*model.SummaryRecord) *BatchReport {
	report := &BatchReport{BatchTag: batchTag, Total: len(summaries)}
	for _, s := range summaries {
		if s.HasCompleteOutput {
			report.Complete++
		} else {
			report.Pending++
		}
		if s.IsMOF && !s.Provisional {
			report.MOF++
		}
		if s.NoLongerMOF {
			report.NoLongerMOF++
		}
	}
	return report
}

// String renders the report as a single log-friendly line.
func (r *BatchReport) String() string {
	return fmt.Sprintf("batch '%s': %d structures, %d complete, %d MOF, %d pending, %d no longer MOF after relaxation",
		r.BatchTag, r.Total, r.Complete, r.MOF, r.Pending, r.NoLongerMOF)
}

// SortedNames returns the structure names of a summary map in stable order.
func SortedNames(summaries map[string]*model.SummaryRecord) []string {
	names := make([]string, 0, len(summaries))
	for name := range summaries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
