package model

import (
	"encoding/json"
	"time"

	"github.com/karstlab/mofpipe/pkg/pipeline/support/util/exception"
	logger "github.com/karstlab/mofpipe/pkg/pipeline/support/util/logger"

	"github.com/google/uuid"
)

// JobStatus represents the state of a pipeline job record or run.
type JobStatus string

const (
	StatusSubmitted JobStatus = "SUBMITTED"
	StatusRunning   JobStatus = "RUNNING"
	StatusCompleted JobStatus = "COMPLETED"
	StatusFailed    JobStatus = "FAILED"
)

// String returns the string representation of the JobStatus.
func (s JobStatus) String() string {
	return string(s)
}

// IsFinished checks if the JobStatus represents a terminal state.
func (s JobStatus) IsFinished() bool {
	switch s {
	case StatusCompleted, StatusFailed:
		return true
	default:
		return false
	}
}

// Stage labels of the MOF discovery chain. The post-relaxation analysis stage
// appears in a record set only when relaxation ran and converged.
const (
	StageAnalyzeInitial  = "zeopp_initial"
	StageValidateInitial = "validate_initial"
	StageRelax           = "ff_relax"
	StageAnalyzeFinal    = "zeopp_final"
)

// Standard metadata keys attached to every job record.
const (
	MetaStructureName = "structure_name"
	MetaBatchTag      = "batch_tag"
	MetaJobInfo       = "job_info"
	MetaStageName     = "stage_name"
)

// JobInfoMOFDiscovery is the job_info metadata value tagged on every MOF
// discovery submission.
const JobInfoMOFDiscovery = "mof discovery"

// Structure is an immutable crystal structure: species, fractional
// coordinates and a periodic cell. Relaxation produces a new Structure value,
// never mutates one in place.
type Structure struct {
	Name    string        `json:"name"`
	Species []string      `json:"species"`
	Coords  [][3]float64  `json:"coords"`
	Lattice [3][3]float64 `json:"lattice"`
}

// NumSites returns the number of atomic sites.
func (s Structure) NumSites() int {
	return len(s.Species)
}

// WithCoords returns a new Structure with the given fractional coordinates
// and everything else copied from the receiver.
func (s Structure) WithCoords(coords [][3]float64) Structure {
	out := Structure{
		Name:    s.Name,
		Species: make([]string, len(s.Species)),
		Coords:  make([][3]float64, len(coords)),
		Lattice: s.Lattice,
	}
	copy(out.Species, s.Species)
	copy(out.Coords, coords)
	return out
}

// Metric field names as they appear in zeo++ text output.
const (
	MetricPLD           = "PLD"
	MetricLCD           = "LCD"
	MetricPOAV          = "POAV_A^3"
	MetricPONAV         = "PONAV_A^3"
	MetricPOAVFraction  = "POAV_Volume_fraction"
	MetricPONAVFraction = "PONAV_Volume_fraction"
)

// ProbeMetrics holds the numeric fields parsed from one probe's analysis
// output, keyed by the tool's field names.
type ProbeMetrics map[string]float64

// Get retrieves the value for the specified metric field.
func (pm ProbeMetrics) Get(key string) (float64, bool) {
	v, ok := pm[key]
	return v, ok
}

// Merge copies all fields from other into pm, overwriting existing keys.
func (pm ProbeMetrics) Merge(other ProbeMetrics) {
	for k, v := range other {
		pm[k] = v
	}
}

// PoreMetrics maps probe names (e.g. "N2", "CO2") to their geometric metrics.
// Probes whose analysis failed are simply absent; an empty map is a valid
// all-probes-failed value.
type PoreMetrics map[string]ProbeMetrics

// Probe retrieves the metrics for the given probe name.
func (m PoreMetrics) Probe(name string) (ProbeMetrics, bool) {
	pm, ok := m[name]
	return pm, ok
}

// ValidationVerdict is the MOF-criteria decision derived from a single
// probe's pore metrics. Pure function of the metrics.
type ValidationVerdict struct {
	IsMOF   bool         `json:"is_mof"`
	Probe   string       `json:"probe"`
	Metrics ProbeMetrics `json:"metrics"`
}

// RelaxationResult is the outcome of one force-field relaxation. A
// non-converged relaxation is a normal terminal state, not an error: the
// structure is treated as unrelaxed downstream.
type RelaxationResult struct {
	Structure      Structure `json:"structure"`
	ForceConverged bool      `json:"is_force_converged"`
	Energy         float64   `json:"energy"`
	MaxForce       float64   `json:"max_force"`
	Steps          int       `json:"steps"`
}

// JobRecord is the persisted output of one executed stage. Records are
// append-only: once written to the result store they are never mutated.
// Sequence is assigned by the store on Put, monotonically per store.
type JobRecord struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Metadata  map[string]string `json:"metadata"`
	Output    json.RawMessage   `json:"output,omitempty"`
	Status    JobStatus         `json:"status"`
	Failures  []string          `json:"failures,omitempty"`
	Sequence  int64             `json:"sequence"`
	CreatedAt time.Time         `json:"created_at"`
}

// NewJobRecord creates a new JobRecord for the given stage label with a fresh
// unique id. The metadata map is copied.
func NewJobRecord(name string, metadata map[string]string) *JobRecord {
	md := make(map[string]string, len(metadata))
	for k, v := range metadata {
		md[k] = v
	}
	return &JobRecord{
		ID:        NewID(),
		Name:      name,
		Metadata:  md,
		Status:    StatusRunning,
		CreatedAt: time.Now(),
	}
}

// MarkAsCompleted sets the record status to COMPLETED with the given payload.
func (r *JobRecord) MarkAsCompleted(output json.RawMessage) {
	r.Status = StatusCompleted
	r.Output = output
}

// MarkAsFailed sets the record status to FAILED and folds the error into a
// structured failure marker instead of propagating it.
func (r *JobRecord) MarkAsFailed(err error) {
	r.Status = StatusFailed
	if err != nil {
		msg := exception.ExtractErrorMessage(err)
		for _, existing := range r.Failures {
			if existing == msg {
				logger.Debugf("Skipped adding duplicate failure '%s' to JobRecord (ID: %s).", msg, r.ID)
				return
			}
		}
		r.Failures = append(r.Failures, msg)
	}
}

// StructureName returns the structure_name metadata value.
func (r *JobRecord) StructureName() string {
	return r.Metadata[MetaStructureName]
}

// BatchTag returns the batch_tag metadata value.
func (r *JobRecord) BatchTag() string {
	return r.Metadata[MetaBatchTag]
}

// Clone returns a deep copy of the record.
func (r *JobRecord) Clone() *JobRecord {
	out := *r
	out.Metadata = make(map[string]string, len(r.Metadata))
	for k, v := range r.Metadata {
		out.Metadata[k] = v
	}
	if r.Output != nil {
		out.Output = make(json.RawMessage, len(r.Output))
		copy(out.Output, r.Output)
	}
	if r.Failures != nil {
		out.Failures = make([]string, len(r.Failures))
		copy(out.Failures, r.Failures)
	}
	return &out
}

// SummaryRecord is the per-structure reduction of a batch's job records.
// Provisional marks a verdict reported from the initial analysis while the
// chain is still in flight; NoLongerMOF marks structures whose initial
// verdict was true but whose post-relaxation verdict is false.
type SummaryRecord struct {
	Metadata          map[string]string          `json:"metadata"`
	HasCompleteOutput bool                       `json:"has_complete_output"`
	IsMOF             bool                       `json:"is_mof"`
	Provisional       bool                       `json:"provisional,omitempty"`
	NoLongerMOF       bool                       `json:"no_longer_mof,omitempty"`
	StageOutputs      map[string]json.RawMessage `json:"stage_outputs,omitempty"`
}

// NewID generates a new UUID string.
func NewID() string {
	return uuid.New().String()
}
