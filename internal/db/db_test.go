package db

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/ai-visibility/internal/types"
)

// setupTestDB connects to TEST_DATABASE_URL and applies migrations.
// Skipped when the variable is unset or the database is unreachable.
func setupTestDB(t *testing.T) *DB {
	t.Helper()
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("Skipping integration test: TEST_DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	db, err := Connect(ctx, dbURL)
	if err != nil {
		t.Skipf("Skipping integration test: failed to connect to DB: %v", err)
	}
	require.NoError(t, db.Migrate(context.Background()))
	t.Cleanup(db.Close)
	return db
}

func TestMigrations_Embedded(t *testing.T) {
	migrations, err := Migrations()
	require.NoError(t, err)
	require.Len(t, migrations, 2)
	assert.Equal(t, "001_deep_dive_requests.sql", migrations[0].Name)
	assert.Contains(t, migrations[0].SQL, "CREATE TABLE IF NOT EXISTS deep_dive_requests")
	assert.Equal(t, "002_test_usage.sql", migrations[1].Name)
}

func TestMonthKey(t *testing.T) {
	at := time.Date(2025, time.March, 31, 23, 30, 0, 0, time.FixedZone("AEST", 10*3600))
	assert.Equal(t, "2025-03", MonthKey(at))
}

func TestDeepDiveCRUD(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	id := "DD-" + uuid.NewString()
	req := &types.DeepDiveRequest{
		ID:           id,
		BusinessName: "Acme Plumbing",
		Email:        "owner@acme.example",
		AIEngines:    []string{"openai", "claude"},
		QueryCount:   25,
		Status:       types.DeepDivePending,
		CreatedAt:    time.Now().UTC().Truncate(time.Millisecond),
	}
	require.NoError(t, db.CreateDeepDive(ctx, req))
	t.Cleanup(func() { _, _ = db.DeleteDeepDive(context.Background(), id) })

	got, err := db.GetDeepDive(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, []string{"openai", "claude"}, got.AIEngines)
	assert.Equal(t, types.DeepDivePending, got.Status)
	assert.Nil(t, got.Results)
	assert.Nil(t, got.CompletedAt)

	results := types.DeepDiveResults{
		YourMentions:         4,
		CompetitorsMentioned: []types.Competitor{{Name: "Rival Pipes", Count: 7}},
		Recommendations:      []string{"Publish pricing"},
	}
	ok, err := db.CompleteDeepDive(ctx, id, results, time.Now())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = db.CompleteDeepDive(ctx, id, results, time.Now())
	require.NoError(t, err)
	assert.False(t, ok, "completed requests stay completed")

	got, err = db.GetDeepDive(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, types.DeepDiveCompleted, got.Status)
	require.NotNil(t, got.Results)
	assert.Equal(t, 4, got.Results.YourMentions)
	assert.NotNil(t, got.CompletedAt)

	list, err := db.ListDeepDives(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, list)

	deleted, err := db.DeleteDeepDive(ctx, id)
	require.NoError(t, err)
	assert.True(t, deleted)

	got, err = db.GetDeepDive(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestUsage(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	user := "user-" + uuid.NewString()

	u, err := db.GetUsage(ctx, user, "2025-01")
	require.NoError(t, err)
	assert.Nil(t, u)

	n, err := db.IncrementUsage(ctx, user, "2025-01")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = db.IncrementUsage(ctx, user, "2025-01")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	u, err = db.GetUsage(ctx, user, "2025-01")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, 2, u.TestCount)

	u, err = db.GetUsage(ctx, user, "2025-02")
	require.NoError(t, err)
	assert.Nil(t, u)
}
