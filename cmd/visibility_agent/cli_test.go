package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/ai-visibility/internal/config"
	"github.com/jonathan/ai-visibility/internal/server"
	"github.com/jonathan/ai-visibility/internal/subscription"
	"github.com/jonathan/ai-visibility/internal/types"
)

// isolate points every setting at a temp directory and clears anything a
// local .env may have set.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("RESULTS_DIR", filepath.Join(dir, "results"))
	t.Setenv("BUSINESS_CONFIG", filepath.Join(dir, "config.yaml"))
	t.Setenv("DEEP_DIVE_FILE", filepath.Join(dir, "data", "deep-dive-requests.json"))
	for _, key := range []string{"BACKEND_URL", "DATABASE_URL", "REDIS_ADDR", "INDEX_PATH", "WORKER_MODE", "PORT"} {
		t.Setenv(key, "")
	}
	settingsPath = ""
	return dir
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	hashPasswordCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestNewApp_LocalWiring(t *testing.T) {
	dir := isolate(t)
	t.Setenv("INDEX_PATH", filepath.Join(dir, "index", "runs.db"))

	settings, err := loadSettings(nil)
	require.NoError(t, err)

	a, err := newApp(context.Background(), settings)
	require.NoError(t, err)
	defer a.Close()

	assert.False(t, a.runs.RemoteMode())
	assert.FileExists(t, filepath.Join(dir, "index", "runs.db"))

	list, err := a.reports.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)

	usage, err := a.usage.Current(context.Background(), "user-1", subscription.TierFree)
	require.NoError(t, err)
	assert.Equal(t, 5, usage.TestsRemaining)
}

func TestNewApp_RemoteWiring(t *testing.T) {
	isolate(t)
	t.Setenv("BACKEND_URL", "http://backend.example/")

	settings, err := loadSettings(nil)
	require.NoError(t, err)

	a, err := newApp(context.Background(), settings)
	require.NoError(t, err)
	defer a.Close()
	assert.True(t, a.runs.RemoteMode())
}

func TestNewApp_LLMWorkerNeedsKey(t *testing.T) {
	isolate(t)
	t.Setenv("WORKER_MODE", config.WorkerModeLLM)
	t.Setenv("GEMINI_API_KEY", "")

	settings, err := loadSettings(nil)
	require.NoError(t, err)

	_, err = newApp(context.Background(), settings)
	assert.ErrorContains(t, err, "GEMINI_API_KEY")
}

func TestLoadSettings_InvalidOverride(t *testing.T) {
	isolate(t)
	_, err := loadSettings(func(s *config.Settings) { s.WorkerMode = "docker" })
	assert.ErrorContains(t, err, "worker_mode")
}

func TestBuildRunRequest_DefaultsFromBusiness(t *testing.T) {
	dir := isolate(t)
	store := config.NewBusinessStore(filepath.Join(dir, "config.yaml"))
	require.NoError(t, store.Save(&config.BusinessConfig{
		Name:    "Acme Plumbing",
		Queries: config.QueryCounts{Consumer: 7, Business: 3},
	}))

	runProviders = []string{types.ProviderClaude}
	runQueryTypes = []string{types.QueryTypeConsumer, types.QueryTypeBusiness}
	runConsumer, runBusiness, runQueries = 0, 2, ""
	t.Cleanup(func() { runBusiness = 0 })

	settings, err := loadSettings(nil)
	require.NoError(t, err)
	req, err := buildRunRequest(settings)
	require.NoError(t, err)
	assert.Equal(t, 7, req.ConsumerQueries)
	assert.Equal(t, 2, req.BusinessQueries)
}

func TestReportsAndDeepDiveCommands_Empty(t *testing.T) {
	isolate(t)

	out, err := execute(t, "", "reports", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No reports found.")

	out, err = execute(t, "", "deep-dive", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No deep dive requests.")

	_, err = execute(t, "", "reports", "delete", "Nobody_2025-01-01T00:00:00")
	assert.ErrorContains(t, err, "not found")
}

func TestTokenCommand(t *testing.T) {
	isolate(t)
	t.Setenv("JWT_SECRET", "cli-test-secret-0123456789abcdef")

	out, err := execute(t, "", "token", "--user", "user-9", "--tier", "pro")
	require.NoError(t, err)

	jwtConfig, err := config.NewJWTConfig()
	require.NoError(t, err)
	claims, err := server.NewJWTService(jwtConfig).ValidateToken(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "user-9", claims.GetUserID())
	assert.Equal(t, subscription.TierPro, claims.GetTier())

	tokenUser = ""
	_, err = execute(t, "", "token", "--user", "")
	assert.ErrorContains(t, err, "--user is required")
}

func TestHashPasswordCommand(t *testing.T) {
	isolate(t)
	t.Setenv("BCRYPT_COST", "10")
	t.Setenv("PASSWORD_PEPPER", "")

	out, err := execute(t, "s3cret\n", "hash-password")
	require.NoError(t, err)

	passwords, err := config.NewPasswordConfig()
	require.NoError(t, err)
	assert.True(t, passwords.VerifyPassword("s3cret", strings.TrimSpace(out)))
}
