package core

import (
	"fmt"

	"github.com/baxromumarov/econ-indicators/internal/indicator"
)

type Status string

const (
	StatusOK             Status = "ok"
	StatusNoData         Status = "no_data"
	StatusUpstreamError  Status = "upstream_error"
	StatusSchemaMismatch Status = "schema_mismatch"
	StatusStale          Status = "stale"
)

const (
	MsgNoData      = "No data available for the current selection"
	MsgUpstream    = "Upstream unavailable"
	MsgSchema      = "Unexpected response format"
	MsgStaleServed = "Upstream unavailable, showing stored data"
)

// PairResult reports how one (entity, indicator) fetch went.
type PairResult struct {
	Entity    string `json:"entity"`
	Indicator string `json:"indicator"`
	Status    Status `json:"status"`
	Rows      int    `json:"rows"`
	Cached    bool   `json:"cached,omitempty"`
	Error     string `json:"error,omitempty"`
}

type Result struct {
	Source string          `json:"source"`
	Table  indicator.Table `json:"table"`
	Pairs  []PairResult    `json:"pairs"`
}

// Warnings turns pair statuses into messages for the user. A selection
// that simply has no data gets one message; failures are reported per pair.
func (r Result) Warnings() []string {
	var out []string
	failed := false
	for _, p := range r.Pairs {
		pair := p.Entity + "/" + p.Indicator
		switch p.Status {
		case StatusUpstreamError:
			failed = true
			out = append(out, fmt.Sprintf("%s for %s", MsgUpstream, pair))
		case StatusSchemaMismatch:
			failed = true
			out = append(out, fmt.Sprintf("%s for %s", MsgSchema, pair))
		case StatusStale:
			out = append(out, fmt.Sprintf("%s for %s", MsgStaleServed, pair))
		}
	}
	if r.Table.IsEmpty() && !failed {
		return append([]string{MsgNoData}, out...)
	}
	if !r.Table.IsEmpty() {
		for _, p := range r.Pairs {
			if p.Status == StatusNoData {
				out = append(out, fmt.Sprintf("No data for %s/%s", p.Entity, p.Indicator))
			}
		}
	}
	return out
}

// Count returns how many pairs ended with status.
func (r Result) Count(status Status) int {
	n := 0
	for _, p := range r.Pairs {
		if p.Status == status {
			n++
		}
	}
	return n
}
