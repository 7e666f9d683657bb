package zeopp_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karstlab/mofpipe/pkg/pipeline/component/zeopp"
)

func TestProbeRadius(t *testing.T) {
	cases := []struct {
		sorbate string
		radius  float64
	}{
		{"N2", 3.72 / 2},
		{"CO2", 3.3 / 2},
		{"H2O", 2.641 / 2},
		{"He", 2.551 / 2},
		{"CH4", 3.758 / 2},
	}
	for _, tc := range cases {
		r, err := zeopp.ProbeRadius(tc.sorbate)
		require.NoError(t, err, tc.sorbate)
		assert.InDelta(t, tc.radius, r, 1e-9, tc.sorbate)
	}
}

func TestProbeRadiusUnknownSorbate(t *testing.T) {
	_, err := zeopp.ProbeRadius("C60")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "C60")
}

func TestKnownSorbates(t *testing.T) {
	assert.NoError(t, zeopp.KnownSorbates([]string{"N2", "CO2", "H2O"}))
	assert.Error(t, zeopp.KnownSorbates([]string{"N2", "unobtainium"}))
}
