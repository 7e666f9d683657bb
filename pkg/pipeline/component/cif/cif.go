// Package cif reads and writes crystal structures in a pragmatic subset of
// the CIF format: P1 symmetry, cell parameters plus a fractional-coordinate
// atom site loop. That covers the files exchanged with the pore-analysis
// tool and the structure databases this pipeline consumes.
package cif

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/karstlab/mofpipe/pkg/pipeline/core/domain/model"
	"github.com/karstlab/mofpipe/pkg/pipeline/support/util/exception"
)

const moduleName = "cif"

// cell holds the six lattice parameters of a CIF file.
type cell struct {
	a, b, c                float64
	alpha, beta, gamma     float64
	haveLen, haveAng       int
}

// Load parses a structure from a CIF file. The structure name is the file's
// base name without extension.
func Load(path string) (*model.Structure, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, exception.NewStructureParseError(moduleName, path, err)
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	s, err := Parse(string(data), name)
	if err != nil {
		return nil, exception.NewStructureParseError(moduleName, path, err)
	}
	return s, nil
}

// Parse parses CIF text into a structure with the given name.
func Parse(data, name string) (*model.Structure, error) {
	var c cell
	var species []string
	var coords [][3]float64

	lines := strings.Split(data, "\n")
	for i := 0; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "_cell_") {
			if err := c.set(line); err != nil {
				return nil, err
			}
			continue
		}
		if line != "loop_" {
			continue
		}

		// Collect the loop's column headers.
		var headers []string
		j := i + 1
		for ; j < len(lines); j++ {
			h := strings.TrimSpace(lines[j])
			if !strings.HasPrefix(h, "_") {
				break
			}
			headers = append(headers, h)
		}
		symCol, xCol := -1, -1
		for k, h := range headers {
			switch h {
			case "_atom_site_type_symbol":
				symCol = k
			case "_atom_site_label":
				if symCol < 0 {
					symCol = k
				}
			case "_atom_site_fract_x":
				xCol = k
			}
		}
		if symCol < 0 || xCol < 0 {
			// Not the atom site loop; skip its rows.
			for ; j < len(lines); j++ {
				row := strings.TrimSpace(lines[j])
				if row == "" || row == "loop_" || strings.HasPrefix(row, "_") {
					break
				}
			}
			i = j - 1
			continue
		}

		for ; j < len(lines); j++ {
			row := strings.TrimSpace(lines[j])
			if row == "" || row == "loop_" || strings.HasPrefix(row, "_") {
				break
			}
			fields := strings.Fields(row)
			if len(fields) < len(headers) || xCol+2 >= len(fields) {
				return nil, fmt.Errorf("atom site row '%s' has %d fields, want %d", row, len(fields), len(headers))
			}
			x, err := parseCIFNumber(fields[xCol])
			if err != nil {
				return nil, err
			}
			y, err := parseCIFNumber(fields[xCol+1])
			if err != nil {
				return nil, err
			}
			z, err := parseCIFNumber(fields[xCol+2])
			if err != nil {
				return nil, err
			}
			species = append(species, stripLabelDigits(fields[symCol]))
			coords = append(coords, [3]float64{x, y, z})
		}
		i = j - 1
	}

	if c.haveLen != 3 || c.haveAng != 3 {
		return nil, fmt.Errorf("incomplete cell parameters (%d lengths, %d angles)", c.haveLen, c.haveAng)
	}
	if len(species) == 0 {
		return nil, fmt.Errorf("no atom sites found")
	}

	return &model.Structure{
		Name:    name,
		Species: species,
		Coords:  coords,
		Lattice: c.matrix(),
	}, nil
}

// Write serializes a structure to a P1 CIF file at the given path.
func Write(path string, s *model.Structure) error {
	a, b, cLen, alpha, beta, gamma := LatticeParameters(s.Lattice)

	var sb strings.Builder
	fmt.Fprintf(&sb, "data_%s\n", s.Name)
	fmt.Fprintf(&sb, "_symmetry_space_group_name_H-M   'P 1'\n")
	fmt.Fprintf(&sb, "_cell_length_a   %.6f\n", a)
	fmt.Fprintf(&sb, "_cell_length_b   %.6f\n", b)
	fmt.Fprintf(&sb, "_cell_length_c   %.6f\n", cLen)
	fmt.Fprintf(&sb, "_cell_angle_alpha   %.6f\n", alpha)
	fmt.Fprintf(&sb, "_cell_angle_beta   %.6f\n", beta)
	fmt.Fprintf(&sb, "_cell_angle_gamma   %.6f\n", gamma)
	sb.WriteString("loop_\n")
	sb.WriteString(" _atom_site_type_symbol\n")
	sb.WriteString(" _atom_site_label\n")
	sb.WriteString(" _atom_site_fract_x\n")
	sb.WriteString(" _atom_site_fract_y\n")
	sb.WriteString(" _atom_site_fract_z\n")
	for i, sp := range s.Species {
		fmt.Fprintf(&sb, "  %s  %s%d  %.6f  %.6f  %.6f\n",
			sp, sp, i, s.Coords[i][0], s.Coords[i][1], s.Coords[i][2])
	}

	if err := os.WriteFile(path, []byte(sb.String()), 0644); err != nil {
		return exception.NewPipelineErrorf(moduleName, "writing structure to '%s'", path, false, false, err)
	}
	return nil
}

// LatticeParameters converts a row-vector lattice matrix back to the six
// cell parameters (lengths in angstroms, angles in degrees).
func LatticeParameters(l [3][3]float64) (a, b, c, alpha, beta, gamma float64) {
	norm := func(v [3]float64) float64 {
		return math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
	}
	dot := func(u, v [3]float64) float64 {
		return u[0]*v[0] + u[1]*v[1] + u[2]*v[2]
	}
	a, b, c = norm(l[0]), norm(l[1]), norm(l[2])
	alpha = math.Acos(dot(l[1], l[2])/(b*c)) * 180 / math.Pi
	beta = math.Acos(dot(l[0], l[2])/(a*c)) * 180 / math.Pi
	gamma = math.Acos(dot(l[0], l[1])/(a*b)) * 180 / math.Pi
	return
}

func (c *cell) set(line string) error {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return nil
	}
	v, err := parseCIFNumber(fields[1])
	if err != nil {
		return fmt.Errorf("cell parameter '%s': %w", fields[0], err)
	}
	switch fields[0] {
	case "_cell_length_a":
		c.a, c.haveLen = v, c.haveLen+1
	case "_cell_length_b":
		c.b, c.haveLen = v, c.haveLen+1
	case "_cell_length_c":
		c.c, c.haveLen = v, c.haveLen+1
	case "_cell_angle_alpha":
		c.alpha, c.haveAng = v, c.haveAng+1
	case "_cell_angle_beta":
		c.beta, c.haveAng = v, c.haveAng+1
	case "_cell_angle_gamma":
		c.gamma, c.haveAng = v, c.haveAng+1
	}
	return nil
}

// matrix builds the row-vector lattice matrix from cell parameters using the
// standard crystallographic convention (a along x, b in the xy plane).
func (c *cell) matrix() [3][3]float64 {
	rad := math.Pi / 180
	ca, cb := math.Cos(c.alpha*rad), math.Cos(c.beta*rad)
	cg, sg := math.Cos(c.gamma*rad), math.Sin(c.gamma*rad)

	v := math.Sqrt(1 - ca*ca - cb*cb - cg*cg + 2*ca*cb*cg)
	return [3][3]float64{
		{c.a, 0, 0},
		{c.b * cg, c.b * sg, 0},
		{c.c * cb, c.c * (ca - cb*cg) / sg, c.c * v / sg},
	}
}

// parseCIFNumber parses a CIF numeric value, tolerating a trailing
// parenthesized uncertainty like "0.1234(5)".
func parseCIFNumber(tok string) (float64, error) {
	if idx := strings.Index(tok, "("); idx >= 0 {
		tok = tok[:idx]
	}
	return strconv.ParseFloat(tok, 64)
}

// stripLabelDigits reduces an atom site label like "C12" to its element
// symbol.
func stripLabelDigits(label string) string {
	end := len(label)
	for end > 0 {
		ch := label[end-1]
		if ch < '0' || ch > '9' {
			break
		}
		end--
	}
	return label[:end]
}
