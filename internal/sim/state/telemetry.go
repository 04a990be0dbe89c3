package state

import (
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/signalsfoundry/roadsim/roadnet"
)

// AgentTelemetry is the per-agent record kept after every tick.
type AgentTelemetry struct {
	// AgentID identifies the mobile entity.
	AgentID uuid.UUID

	// Tick is the tick that produced the record.
	Tick uint64

	// Segment, Entry, Curviline and Jutting locate the entity after the commit.
	Segment   roadnet.SegmentID
	Entry     roadnet.ConnectionID
	Curviline float64
	Jutting   float64

	// Speed is the linear speed in m/s derived from the last transform.
	Speed float64

	// Advance is the curviline distance requested by the driver. Zero when
	// the agent has no driver or did not act.
	Advance float64

	// StaticPercepts and DynamicPercepts count the culling results of the
	// perception pass that preceded the decision.
	StaticPercepts  int
	DynamicPercepts int

	// UpdatedAt is the simulation time after the tick.
	UpdatedAt time.Time
}

// TelemetryState is a concurrency-safe store of agent telemetry.
type TelemetryState struct {
	mu      sync.RWMutex
	byAgent map[uuid.UUID]*AgentTelemetry
}

// NewTelemetryState creates an empty store.
func NewTelemetryState() *TelemetryState {
	return &TelemetryState{byAgent: make(map[uuid.UUID]*AgentTelemetry)}
}

// Update stores a copy of m, replacing the previous record of the agent.
func (t *TelemetryState) Update(m *AgentTelemetry) {
	if m == nil || m.AgentID == uuid.Nil {
		return
	}
	cp := *m

	t.mu.Lock()
	defer t.mu.Unlock()
	t.byAgent[m.AgentID] = &cp
}

// Get returns a copy of the record of agent, or nil.
func (t *TelemetryState) Get(agent uuid.UUID) *AgentTelemetry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	m, ok := t.byAgent[agent]
	if !ok {
		return nil
	}
	cp := *m
	return &cp
}

// Remove drops the record of agent.
func (t *TelemetryState) Remove(agent uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.byAgent, agent)
}

// ListAll returns copies of every record ordered by agent id.
func (t *TelemetryState) ListAll() []*AgentTelemetry {
	t.mu.RLock()
	out := make([]*AgentTelemetry, 0, len(t.byAgent))
	for _, v := range t.byAgent {
		cp := *v
		out = append(out, &cp)
	}
	t.mu.RUnlock()

	slices.SortFunc(out, func(a, b *AgentTelemetry) int {
		return strings.Compare(a.AgentID.String(), b.AgentID.String())
	})
	return out
}

// Len returns the number of agents with a record.
func (t *TelemetryState) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.byAgent)
}
