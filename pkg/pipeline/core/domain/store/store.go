// Package store defines the result store boundary: an append-only, queryable
// document store for job records. Corrections never mutate a record; they
// happen by writing new aggregated summaries.
package store

import (
	"context"
	"strconv"
	"strings"

	"github.com/karstlab/mofpipe/pkg/pipeline/core/domain/model"
)

// CompareOp is a comparison operator usable in query conditions.
type CompareOp string

const (
	OpEq  CompareOp = "eq"
	OpGt  CompareOp = "gt"
	OpGte CompareOp = "gte"
	OpLt  CompareOp = "lt"
)

// Condition is a single field predicate. Field is either a top-level record
// field ("name", "sequence", "status") or a nested metadata field addressed
// as "metadata.<key>". Numeric comparisons apply to "sequence" only; metadata
// values compare as strings.
type Condition struct {
	Field string
	Op    CompareOp
	Value interface{}
}

// Filter is a conjunction of conditions.
type Filter struct {
	Conditions []Condition
}

// Eq builds an equality condition.
func Eq(field string, value interface{}) Condition {
	return Condition{Field: field, Op: OpEq, Value: value}
}

// Gt builds a strictly-greater-than condition.
func Gt(field string, value interface{}) Condition {
	return Condition{Field: field, Op: OpGt, Value: value}
}

// Where builds a filter from the given conditions.
func Where(conds ...Condition) Filter {
	return Filter{Conditions: conds}
}

// ResultStore is the shared, append-only job record store. Concurrent writers
// append independent records keyed by unique ids; readers must tolerate
// concurrently-arriving records (eventual consistency, not snapshot
// isolation).
type ResultStore interface {
	// Put appends a record, assigning its Sequence. A record whose ID already
	// exists is rejected with exception.ErrRecordExists.
	Put(ctx context.Context, record *model.JobRecord) error
	// Query returns all records matching the filter, ordered by Sequence.
	Query(ctx context.Context, filter Filter) ([]*model.JobRecord, error)
	// FindByID returns the record with the given id, or
	// exception.ErrRecordNotFound.
	FindByID(ctx context.Context, id string) (*model.JobRecord, error)
	// Close releases resources held by the store.
	Close() error
}

// Matches reports whether a record satisfies a single condition. It is the
// reference predicate semantics shared by store implementations that filter
// in memory.
func Matches(r *model.JobRecord, c Condition) bool {
	if strings.HasPrefix(c.Field, "metadata.") {
		key := strings.TrimPrefix(c.Field, "metadata.")
		actual, ok := r.Metadata[key]
		if !ok {
			return false
		}
		want, wantNum := toFloat(c.Value)
		if c.Op == OpEq {
			if wantNum {
				actualNum, err := strconv.ParseFloat(actual, 64)
				return err == nil && actualNum == want
			}
			return actual == toString(c.Value)
		}
		// Range comparison on a metadata field compares numerically.
		actualNum, err := strconv.ParseFloat(actual, 64)
		if err != nil || !wantNum {
			return false
		}
		return compare(actualNum, want, c.Op)
	}

	switch c.Field {
	case "name":
		return c.Op == OpEq && r.Name == toString(c.Value)
	case "status":
		return c.Op == OpEq && string(r.Status) == toString(c.Value)
	case "sequence":
		want, ok := toFloat(c.Value)
		if !ok {
			return false
		}
		return compare(float64(r.Sequence), want, c.Op)
	default:
		return false
	}
}

// MatchesAll reports whether a record satisfies every condition of a filter.
func MatchesAll(r *model.JobRecord, f Filter) bool {
	for _, c := range f.Conditions {
		if !Matches(r, c) {
			return false
		}
	}
	return true
}

func compare(actual, want float64, op CompareOp) bool {
	switch op {
	case OpEq:
		return actual == want
	case OpGt:
		return actual > want
	case OpGte:
		return actual >= want
	case OpLt:
		return actual < want
	default:
		return false
	}
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func toString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
