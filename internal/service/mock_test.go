package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/Strob0t/GovForge/internal/adapter/keylock"
	"github.com/Strob0t/GovForge/internal/adapter/memory"
	"github.com/Strob0t/GovForge/internal/config"
	"github.com/Strob0t/GovForge/internal/domain/audit"
	"github.com/Strob0t/GovForge/internal/domain/cognitive"
	"github.com/Strob0t/GovForge/internal/domain/proposal"
	"github.com/Strob0t/GovForge/internal/domain/vote"
	"github.com/Strob0t/GovForge/internal/port/database"
	"github.com/Strob0t/GovForge/internal/port/workflow"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// Ensure mockStore implements database.Store at compile time.
var _ database.Store = (*mockStore)(nil)

// mockStore wraps the in-memory store with error hooks.
type mockStore struct {
	*memory.Store

	mu        sync.Mutex
	updateErr error
}

func (m *mockStore) UpdateProposal(ctx context.Context, p *proposal.Proposal, entries ...audit.Entry) error {
	m.mu.Lock()
	err := m.updateErr
	m.mu.Unlock()
	if err != nil {
		return err
	}
	return m.Store.UpdateProposal(ctx, p, entries...)
}

func (m *mockStore) failUpdates(err error) {
	m.mu.Lock()
	m.updateErr = err
	m.mu.Unlock()
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type mockAnalyzer struct {
	mu      sync.Mutex
	summary *cognitive.Summary
	err     error
	calls   int
}

func (m *mockAnalyzer) Analyze(_ context.Context, _ cognitive.Request) (*cognitive.Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.summary.Clone(), nil
}

type mockEngine struct {
	mu       sync.Mutex
	failures int // number of leading calls that fail; -1 fails forever
	err      error
	calls    int
	requests []workflow.Request
}

func (m *mockEngine) Dispatch(_ context.Context, req workflow.Request) (*workflow.Ack, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.requests = append(m.requests, req)
	if m.failures < 0 || m.calls <= m.failures {
		if m.err != nil {
			return nil, m.err
		}
		return nil, errors.New("engine unavailable")
	}
	return &workflow.Ack{RunID: "run-1"}, nil
}

func (m *mockEngine) setFailures(n int) {
	m.mu.Lock()
	m.failures = n
	m.mu.Unlock()
}

func (m *mockEngine) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type recordingHub struct {
	mu     sync.Mutex
	events []string
}

func (h *recordingHub) BroadcastEvent(_ context.Context, eventType string, _ any) {
	h.mu.Lock()
	h.events = append(h.events, eventType)
	h.mu.Unlock()
}

func (h *recordingHub) count(eventType string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, e := range h.events {
		if e == eventType {
			n++
		}
	}
	return n
}

type mapCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (c *mapCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *mapCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.data == nil {
		c.data = make(map[string][]byte)
	}
	c.data[key] = value
	return nil
}

func (c *mapCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

type fixture struct {
	store    *mockStore
	gov      *GovernanceService
	analysis *AnalysisService
	exec     *ExecutionService
	analyzer *mockAnalyzer
	engine   *mockEngine
	hub      *recordingHub
	clock    *fakeClock
}

// Registered voters and their power under the default 70/30 weights:
// alice 715, bob 152, dave 210. eve has no stake and is ineligible.
var testVoters = []vote.Voter{
	{ID: "alice", Stake: 1000, Reputation: 50},
	{ID: "bob", Stake: 200, Reputation: 40},
	{ID: "dave", Stake: 300, Reputation: 0},
	{ID: "eve", Stake: 0, Reputation: 90},
}

const totalEligible = 715 + 152 + 210

func newFixture(t *testing.T, mutate ...func(*config.Governance)) *fixture {
	t.Helper()
	cfg := config.Defaults().Governance
	cfg.Approvers = []string{"carol"}
	for _, fn := range mutate {
		fn(&cfg)
	}

	store := &mockStore{Store: memory.NewStore()}
	lk := keylock.New()
	clock := &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	hub := &recordingHub{}

	gov, err := NewGovernanceService(store, lk, &cfg)
	if err != nil {
		t.Fatalf("NewGovernanceService: %v", err)
	}
	gov.SetClock(clock.Now)
	gov.SetBroadcaster(hub)

	analyzer := &mockAnalyzer{summary: &cognitive.Summary{AlignmentScore: 0.8, Confidence: 0.9, Insights: []string{"aligned"}}}
	analysis := NewAnalysisService(store, lk, analyzer, time.Second, time.Second)
	analysis.SetClock(clock.Now)
	analysis.SetBroadcaster(hub)
	gov.SetAnalysis(analysis)

	engine := &mockEngine{}
	exec := NewExecutionService(store, lk, engine, ExecutionConfig{
		MaxAttempts:    3,
		BaseBackoff:    time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		AttemptTimeout: time.Second,
		LockTimeout:    time.Second,
		ClaimLease:     time.Minute,
	})
	exec.SetClock(clock.Now)
	exec.SetBroadcaster(hub)
	gov.SetExecution(exec)

	for i := range testVoters {
		v := testVoters[i]
		if err := store.UpsertVoter(context.Background(), &v); err != nil {
			t.Fatal(err)
		}
	}

	f := &fixture{store: store, gov: gov, analysis: analysis, exec: exec, analyzer: analyzer, engine: engine, hub: hub, clock: clock}
	t.Cleanup(f.wait)
	return f
}

func (f *fixture) wait() {
	f.analysis.Wait()
	f.exec.Wait()
}
