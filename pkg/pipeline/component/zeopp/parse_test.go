package zeopp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karstlab/mofpipe/pkg/pipeline/core/domain/model"
)

const sampleVolpo = `@ MgMOF74_N2.volpo Unitcell_volume: 1353.49   Density: 0.90926   POAV_A^3: 657.788 POAV_Volume_fraction: 0.48599 POAV_cm^3/g: 0.53449 PONAV_A^3: 0 PONAV_Volume_fraction: 0 PONAV_cm^3/g: 0
Number_of_channels: 1 Channel_volume_A^3: 657.788
Number_of_pockets: 0 Pocket_volume_A^3:
PROBE_OCCUPIABLE results: POAV_A^3: 999 POAV_Volume_fraction: 0.99
`

func TestParseVolpo(t *testing.T) {
	metrics, err := parseVolpo(sampleVolpo)
	require.NoError(t, err)

	assert.InDelta(t, 657.788, metrics[model.MetricPOAV], 1e-9)
	assert.InDelta(t, 0.48599, metrics[model.MetricPOAVFraction], 1e-9)
	assert.InDelta(t, 0.0, metrics[model.MetricPONAV], 1e-9)
	assert.InDelta(t, 0.0, metrics[model.MetricPONAVFraction], 1e-9)
	assert.InDelta(t, 1353.49, metrics["Unitcell_volume"], 1e-9)

	// the PROBE_OCCUPIABLE line must not clobber the occupiable values
	assert.NotEqual(t, 999.0, metrics[model.MetricPOAV])
}

func TestParseVolpoEmpty(t *testing.T) {
	_, err := parseVolpo("\n\n")
	require.Error(t, err)
}

func TestParseRes(t *testing.T) {
	metrics, err := parseRes("MgMOF74.res    14.95483 10.56727  14.95483\n")
	require.NoError(t, err)

	assert.InDelta(t, 14.95483, metrics[model.MetricLCD], 1e-9)
	assert.InDelta(t, 10.56727, metrics[model.MetricPLD], 1e-9)
}

func TestParseResMalformed(t *testing.T) {
	_, err := parseRes("only two")
	require.Error(t, err)

	_, err = parseRes("name notanumber 10.5 11.0")
	require.Error(t, err)
}
