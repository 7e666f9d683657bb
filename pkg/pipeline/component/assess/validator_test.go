package assess_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karstlab/mofpipe/pkg/pipeline/component/assess"
	"github.com/karstlab/mofpipe/pkg/pipeline/core/domain/model"
	"github.com/karstlab/mofpipe/pkg/pipeline/support/util/exception"
)

func metricsWith(pld, poavFrac, ponavFrac float64) model.PoreMetrics {
	return model.PoreMetrics{
		"N2": model.ProbeMetrics{
			model.MetricPLD:           pld,
			model.MetricLCD:           pld + 2,
			model.MetricPOAV:          500,
			model.MetricPONAV:         50,
			model.MetricPOAVFraction:  poavFrac,
			model.MetricPONAVFraction: ponavFrac,
		},
	}
}

func TestValidateCriteria(t *testing.T) {
	cases := []struct {
		name      string
		pld       float64
		poavFrac  float64
		ponavFrac float64
		isMOF     bool
	}{
		{"all criteria pass", 5.0, 0.45, 0.05, true},
		{"pld too small", 2.4, 0.45, 0.05, false},
		{"pld exactly at threshold", 2.5, 0.45, 0.05, false},
		{"accessible fraction too small", 5.0, 0.25, 0.05, false},
		{"non-accessible dominates", 5.0, 0.35, 0.40, false},
		{"fractions equal", 5.0, 0.35, 0.35, false},
	}
	v := assess.NewValidator("")
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			verdict, err := v.Validate(metricsWith(tc.pld, tc.poavFrac, tc.ponavFrac))
			require.NoError(t, err)
			assert.Equal(t, tc.isMOF, verdict.IsMOF)
			assert.Equal(t, "N2", verdict.Probe)
			assert.NotEmpty(t, verdict.Metrics)
		})
	}
}

func TestValidateMissingProbe(t *testing.T) {
	v := assess.NewValidator("CO2")
	_, err := v.Validate(metricsWith(5.0, 0.45, 0.05))
	require.Error(t, err)
	assert.True(t, errors.Is(err, exception.ErrMissingMetric))

	var pe *exception.PipelineError
	require.True(t, errors.As(err, &pe))
	assert.True(t, pe.IsSkippable())
}

func TestValidateMissingField(t *testing.T) {
	metrics := metricsWith(5.0, 0.45, 0.05)
	delete(metrics["N2"], model.MetricPONAVFraction)

	v := assess.NewValidator("N2")
	_, err := v.Validate(metrics)
	require.Error(t, err)
	assert.True(t, errors.Is(err, exception.ErrMissingMetric))
	assert.Contains(t, err.Error(), model.MetricPONAVFraction)
}

func TestDefaultProbe(t *testing.T) {
	assert.Equal(t, assess.DefaultProbe, assess.NewValidator("").Probe())
	assert.Equal(t, "CO2", assess.NewValidator("CO2").Probe())
}
