package report

import (
	"fmt"
	"strings"
	"time"

	"tracker/diagnosis"
	"tracker/memory"
)

// Cycle is the read-only summary handed to observers after every cycle.
type Cycle struct {
	RunID string    `json:"run_id"`
	Cycle uint64    `json:"cycle"`
	At    time.Time `json:"at"`
	State string    `json:"state"`

	TokensAdded    int  `json:"tokens_added"`
	TotalTokens    int  `json:"total_tokens"`
	Vocabulary     int  `json:"vocabulary"`
	FellBack       bool `json:"fell_back"`
	Subpatterns    int  `json:"subpatterns"`
	RawPatterns    int  `json:"raw_patterns"`
	CapacityEvents int  `json:"capacity_events"`

	Budget     int  `json:"budget"`
	Nominal    int  `json:"nominal"`
	Iterations int  `json:"iterations"`
	Exhaustive bool `json:"exhaustive"`

	Partners      int   `json:"partners"`
	StoredKeys    []int `json:"stored_keys"`
	StoredRecords []int `json:"stored_records"`

	Pressure         float64 `json:"pressure"`
	NextBudgetFactor float64 `json:"next_budget_factor"`
	Pruned           int     `json:"pruned"`

	Recognitions int                `json:"recognitions"`
	Found        bool               `json:"found"`
	Exploits     int                `json:"exploits"`
	ProbeDenied  bool               `json:"probe_denied"`
	Injections   int                `json:"injections"`
	DriftEvents  int                `json:"drift_events"`
	SelfTest     diagnosis.SelfTest `json:"self_test"`

	Findings []diagnosis.Finding `json:"findings,omitempty"`
	Drift    Drift               `json:"drift"`
	Err      string              `json:"error,omitempty"`
}

func (c Cycle) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "cycle=%d tokens=+%d/%d subpatterns=%d raw=%d iter=%d/%d partners=%d",
		c.Cycle, c.TokensAdded, c.TotalTokens, c.Subpatterns, c.RawPatterns, c.Iterations, c.Nominal, c.Partners)
	fmt.Fprintf(&b, " pressure=%.2f pruned=%d recog=%d exploit=%d inject=%d drift=%d",
		c.Pressure, c.Pruned, c.Recognitions, c.Exploits, c.Injections, c.DriftEvents)
	return b.String()
}

// Drift holds population metrics over the whole pool.
type Drift struct {
	// Specialization is the share of distinct keys held by exactly one partner.
	Specialization float64 `json:"specialization"`
	// CollisionRisk is the share of keys that hold two or more records.
	CollisionRisk float64 `json:"collision_risk"`
	// Fragmentation is 1 - (largest partner key count / distinct keys).
	Fragmentation float64 `json:"fragmentation"`
	DistinctKeys  int     `json:"distinct_keys"`
}

// Measure computes drift metrics without mutating the pool.
func Measure(pool *memory.Pool) Drift {
	owners := make(map[int]int)
	var keys, collided, largest int

	for _, partner := range pool.Partners() {
		st := partner.Store.Stats()
		keys += st.Keys
		collided += st.CollidedKeys
		if st.Keys > largest {
			largest = st.Keys
		}
		for _, k := range partner.Store.Keys() {
			owners[k]++
		}
	}

	d := Drift{DistinctKeys: len(owners)}
	if len(owners) == 0 {
		return d
	}

	unique := 0
	for _, n := range owners {
		if n == 1 {
			unique++
		}
	}
	d.Specialization = float64(unique) / float64(len(owners))
	if keys > 0 {
		d.CollisionRisk = float64(collided) / float64(keys)
	}
	d.Fragmentation = 1 - float64(largest)/float64(len(owners))
	return d
}
