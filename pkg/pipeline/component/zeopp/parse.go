package zeopp

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/karstlab/mofpipe/pkg/pipeline/core/domain/model"
	"github.com/karstlab/mofpipe/pkg/pipeline/support/util/exception"
)

// parseVolpo parses a .volpo report into probe metrics. The report is a
// sequence of "KEY: value" pairs on a handful of lines; lines mentioning
// PROBE_OCCUPIABLE duplicate data from earlier lines and are skipped.
// Non-numeric values are dropped.
func parseVolpo(data string) (model.ProbeMetrics, error) {
	metrics := model.ProbeMetrics{}
	for _, line := range strings.Split(data, "\n") {
		if strings.Contains(line, "PROBE_OCCUPIABLE") {
			continue
		}
		key := ""
		for _, tok := range strings.Fields(line) {
			if idx := strings.Index(tok, ":"); idx >= 0 {
				key = tok[:idx]
				continue
			}
			if key == "" {
				continue
			}
			if v, err := strconv.ParseFloat(tok, 64); err == nil {
				metrics[key] = v
			}
			key = ""
		}
	}
	if len(metrics) == 0 {
		return nil, exception.NewPipelineError(moduleName,
			"volpo report contained no parseable metrics", nil, true, false)
	}
	return metrics, nil
}

// parseRes parses a .res report. The file is a single whitespace-separated
// line whose second and third tokens are the largest cavity diameter and the
// pore-limiting diameter.
func parseRes(data string) (model.ProbeMetrics, error) {
	fields := strings.Fields(data)
	if len(fields) < 3 {
		return nil, exception.NewPipelineError(moduleName,
			fmt.Sprintf("res report has %d fields, want at least 3", len(fields)), nil, true, false)
	}
	lcd, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return nil, exception.NewPipelineErrorf(moduleName, "parsing LCD from res report", true, false, err)
	}
	pld, err := strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return nil, exception.NewPipelineErrorf(moduleName, "parsing PLD from res report", true, false, err)
	}
	return model.ProbeMetrics{
		model.MetricLCD: lcd,
		model.MetricPLD: pld,
	}, nil
}
