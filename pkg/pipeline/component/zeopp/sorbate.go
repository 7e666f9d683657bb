package zeopp

import (
	"fmt"

	"github.com/karstlab/mofpipe/pkg/pipeline/support/util/exception"
)

// kineticDiameters maps sorbate names to kinetic diameters in angstroms
// (https://doi.org/10.1039/B802426J). Probe radii passed to the analysis
// tool are half these values.
var kineticDiameters = map[string]float64{
	// noble gases
	"He": 2.551,
	"Ne": 2.82,
	"Ar": 3.542,
	"Kr": 3.655,
	"Xe": 4.047,
	// diatomic gases
	"H2":  2.8585,
	"D2":  2.8585,
	"N2":  3.72,
	"O2":  3.467,
	"Cl2": 4.217,
	"Br2": 4.296,
	// oxides
	"CO":  3.69,
	"CO2": 3.3,
	"NO":  3.492,
	"N2O": 3.838,
	"SO2": 4.112,
	"COS": 4.130,
	// others
	"H2O": 2.641,
	"CH4": 3.758,
	"NH3": 3.62,
	"H2S": 3.623,
}

// ProbeRadius returns the probe radius in angstroms for a named sorbate.
func ProbeRadius(sorbate string) (float64, error) {
	d, ok := kineticDiameters[sorbate]
	if !ok {
		return 0, exception.NewPipelineError(moduleName,
			fmt.Sprintf("unknown sorbate '%s'", sorbate), nil, false, false)
	}
	return d / 2.0, nil
}

// KnownSorbates reports whether every named sorbate has a tabulated diameter.
func KnownSorbates(sorbates []string) error {
	for _, s := range sorbates {
		if _, err := ProbeRadius(s); err != nil {
			return err
		}
	}
	return nil
}
