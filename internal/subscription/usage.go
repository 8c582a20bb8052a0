package subscription

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonathan/ai-visibility/internal/db"
)

// ErrLimitReached is returned when a user has no tests left this month.
var ErrLimitReached = errors.New("monthly test limit reached")

// UsageStore counts test runs per user and month.
type UsageStore interface {
	Count(ctx context.Context, userID, month string) (int, error)
	Increment(ctx context.Context, userID, month string) (int, error)
}

// Usage is a user's standing for the current month.
type Usage struct {
	UserID         string   `json:"userId"`
	Tier           string   `json:"tier"`
	Month          string   `json:"month"`
	TestsUsed      int      `json:"testsUsed"`
	TestsRemaining int      `json:"testsRemaining"` // -1 when unlimited
	Limits         Limits   `json:"limits"`
	Decision       Decision `json:"canRunTest"`
}

// Tracker combines a usage store with the tier rules.
type Tracker struct {
	store UsageStore
	now   func() time.Time
}

// NewTracker creates a tracker over store.
func NewTracker(store UsageStore) *Tracker {
	return &Tracker{store: store, now: time.Now}
}

// Current returns the user's usage for this month.
func (t *Tracker) Current(ctx context.Context, userID, tier string) (*Usage, error) {
	month := db.MonthKey(t.now())
	used, err := t.store.Count(ctx, userID, month)
	if err != nil {
		return nil, err
	}
	return t.usage(userID, tier, month, used), nil
}

// Record counts one more test for the user this month.
func (t *Tracker) Record(ctx context.Context, userID, tier string) (*Usage, error) {
	month := db.MonthKey(t.now())
	used, err := t.store.Increment(ctx, userID, month)
	if err != nil {
		return nil, err
	}
	return t.usage(userID, tier, month, used), nil
}

// Consume records one test if the tier still allows it this month.
func (t *Tracker) Consume(ctx context.Context, userID, tier string) (*Usage, error) {
	current, err := t.Current(ctx, userID, tier)
	if err != nil {
		return nil, err
	}
	if !current.Decision.Allowed {
		return current, fmt.Errorf("%s: %w", current.Decision.Reason, ErrLimitReached)
	}
	return t.Record(ctx, userID, tier)
}

func (t *Tracker) usage(userID, tier, month string, used int) *Usage {
	tier = Normalize(tier)
	return &Usage{
		UserID:         userID,
		Tier:           tier,
		Month:          month,
		TestsUsed:      used,
		TestsRemaining: TestsRemaining(used, tier),
		Limits:         LimitsFor(tier),
		Decision:       CanRunTest(used, tier),
	}
}

// PostgresUsage stores usage in the test_usage table.
type PostgresUsage struct {
	db *db.DB
}

// NewPostgresUsage creates a usage store over database.
func NewPostgresUsage(database *db.DB) *PostgresUsage {
	return &PostgresUsage{db: database}
}

// Count implements UsageStore.
func (p *PostgresUsage) Count(ctx context.Context, userID, month string) (int, error) {
	u, err := p.db.GetUsage(ctx, userID, month)
	if err != nil || u == nil {
		return 0, err
	}
	return u.TestCount, nil
}

// Increment implements UsageStore.
func (p *PostgresUsage) Increment(ctx context.Context, userID, month string) (int, error) {
	return p.db.IncrementUsage(ctx, userID, month)
}

// MemoryUsage keeps usage in process; counts are lost on restart.
type MemoryUsage struct {
	mu     sync.Mutex
	counts map[string]int
}

// NewMemoryUsage creates an empty in-process usage store.
func NewMemoryUsage() *MemoryUsage {
	return &MemoryUsage{counts: make(map[string]int)}
}

// Count implements UsageStore.
func (m *MemoryUsage) Count(_ context.Context, userID, month string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[userID+"|"+month], nil
}

// Increment implements UsageStore.
func (m *MemoryUsage) Increment(_ context.Context, userID, month string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := userID + "|" + month
	m.counts[key]++
	return m.counts[key], nil
}
