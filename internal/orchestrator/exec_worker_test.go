package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/ai-visibility/internal/storage"
)

func TestExtractFilePath(t *testing.T) {
	tests := []struct {
		name   string
		output string
		marker string
		want   string
	}{
		{"queries", "Generating...\nSaved to: results/Acme/openai_queries_Acme_20250101_120000.csv\n", markerQueries, "results/Acme/openai_queries_Acme_20250101_120000.csv"},
		{"case insensitive", "Responses SAVED TO: /tmp/r.csv", markerResponses, "/tmp/r.csv"},
		{"trailing period", "HTML report saved to: /tmp/report.html.", markerReport, "/tmp/report.html"},
		{"first match wins", "saved to: a.csv\nsaved to: b.csv", markerResponses, "a.csv"},
		{"missing", "nothing here", markerQueries, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractFilePath(tt.output, tt.marker))
		})
	}
}

func TestExecWorker_ArtifactKeys(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.NewFSStore(filepath.Join(dir, "results"))
	require.NoError(t, err)
	w := &ExecWorker{Dir: dir, Store: store}

	key, err := w.artifact("Saved to: results/Acme/openai_queries_Acme_20250101_120000.csv", markerQueries)
	require.NoError(t, err)
	assert.Equal(t, "Acme/openai_queries_Acme_20250101_120000.csv", key)

	key, err = w.artifact("Saved to: /elsewhere/q.csv", markerQueries)
	require.NoError(t, err)
	assert.Equal(t, "/elsewhere/q.csv", key)

	_, err = w.artifact("done", markerQueries)
	assert.Error(t, err)
}

func writeScript(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "scripts"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "scripts", name), []byte(body), 0o755))
}

func TestExecWorker_RunsScripts(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses sh as the script interpreter")
	}
	dir := t.TempDir()
	store, err := storage.NewFSStore(filepath.Join(dir, "results"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("WORKER_GREETING=hello\n"), 0o644))

	// The stub provider script echoes its action and the dotenv value.
	writeScript(t, dir, "openai_script.py", `
case "$4" in
  generate) echo "$WORKER_GREETING"; echo "Saved to: results/Acme/openai_queries_Acme_20250101_120000.csv" ;;
  collect) echo "Responses saved to: results/Acme/openai_responses_testrun_$8_20250101_120100.csv" ;;
esac
`)
	writeScript(t, dir, ReportScript, `echo "HTML report saved to: results/Acme/openai_report_testrun_$6_20250101_120200.html."`)

	w := &ExecWorker{Python: "sh", Dir: dir, ConfigPath: "config.yaml", EnvFile: filepath.Join(dir, ".env"), Store: store}
	task := Task{RunID: "42", Provider: "openai"}
	ctx := context.Background()

	queries, err := w.Generate(ctx, task)
	require.NoError(t, err)
	assert.Equal(t, "Acme/openai_queries_Acme_20250101_120000.csv", queries)

	out, err := w.run(ctx, "openai_script.py", "--config", "c", "--action", "generate")
	require.NoError(t, err)
	assert.Contains(t, out, "hello")

	responses, err := w.Collect(ctx, task, queries)
	require.NoError(t, err)
	assert.Equal(t, "Acme/openai_responses_testrun_42_20250101_120100.csv", responses)

	report, err := w.Report(ctx, task, "Acme/openai_responses_testrun_42_20250101_120100.csv")
	require.NoError(t, err)
	assert.Equal(t, "Acme/openai_report_testrun_42_20250101_120200.html", report)
}

func TestExecWorker_ScriptFailure(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses sh as the script interpreter")
	}
	dir := t.TempDir()
	store, err := storage.NewFSStore(filepath.Join(dir, "results"))
	require.NoError(t, err)
	writeScript(t, dir, "claude_script.py", "echo 'missing API key' >&2\nexit 3\n")

	w := &ExecWorker{Python: "sh", Dir: dir, Store: store}
	_, err = w.Generate(context.Background(), Task{Provider: "claude"})
	assert.ErrorContains(t, err, "python script failed with code 3: missing API key")
}
