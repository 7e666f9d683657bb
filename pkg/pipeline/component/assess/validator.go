// Package assess decides whether a structure's pore metrics qualify it as a
// MOF candidate. The decision is a pure function of one probe's metrics.
package assess

import (
	"fmt"

	"github.com/karstlab/mofpipe/pkg/pipeline/core/domain/model"
	"github.com/karstlab/mofpipe/pkg/pipeline/support/util/exception"
)

const moduleName = "assess"

// DefaultProbe is the sorbate whose metrics drive the MOF criteria.
const DefaultProbe = "N2"

// Thresholds on the decision probe's metrics.
const (
	// MinPLD is the minimum pore-limiting diameter in angstroms.
	MinPLD = 2.5
	// MinAccessibleVolumeFraction is the minimum probe-occupiable accessible
	// volume fraction.
	MinAccessibleVolumeFraction = 0.3
)

// requiredMetrics must all be present for a verdict to be computed.
var requiredMetrics = []string{
	model.MetricPLD,
	model.MetricPOAV,
	model.MetricPONAV,
	model.MetricPOAVFraction,
	model.MetricPONAVFraction,
}

// Validator applies the MOF acceptance criteria to pore metrics.
type Validator struct {
	probe string
}

// NewValidator creates a Validator deciding on the given probe's metrics.
// An empty probe selects DefaultProbe.
func NewValidator(probe string) *Validator {
	if probe == "" {
		probe = DefaultProbe
	}
	return &Validator{probe: probe}
}

// Probe returns the sorbate this validator decides on.
func (v *Validator) Probe() string {
	return v.probe
}

// Validate computes the MOF verdict from the decision probe's metrics. A
// structure passes when its pore-limiting diameter exceeds MinPLD, its
// accessible volume fraction exceeds MinAccessibleVolumeFraction, and the
// accessible fraction exceeds the non-accessible fraction. Missing probe or
// metric fields yield an error wrapping ErrMissingMetric.
func (v *Validator) Validate(metrics model.PoreMetrics) (*model.ValidationVerdict, error) {
	pm, ok := metrics.Probe(v.probe)
	if !ok {
		return nil, exception.NewPipelineErrorf(moduleName,
			"no metrics for decision probe '%s'", v.probe, true, false, exception.ErrMissingMetric)
	}
	for _, key := range requiredMetrics {
		if _, ok := pm.Get(key); !ok {
			return nil, exception.NewPipelineErrorf(moduleName,
				"probe '%s' metrics missing field '%s'", v.probe, key, true, false,
				fmt.Errorf("%w: %s", exception.ErrMissingMetric, key))
		}
	}

	isMOF := pm[model.MetricPLD] > MinPLD &&
		pm[model.MetricPOAVFraction] > MinAccessibleVolumeFraction &&
		pm[model.MetricPOAVFraction] > pm[model.MetricPONAVFraction]

	return &model.ValidationVerdict{
		IsMOF:   isMOF,
		Probe:   v.probe,
		Metrics: pm,
	}, nil
}
