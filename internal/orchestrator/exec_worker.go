package orchestrator

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/jonathan/ai-visibility/internal/storage"
)

// Output markers the provider scripts print before the path they wrote.
const (
	markerQueries   = "Saved to:"
	markerResponses = "saved to:"
	markerReport    = "report saved to:"
)

// ReportScript is the script that turns a responses file into a report.
const ReportScript = "4_generate_report.py"

// ExecWorker runs the Python provider scripts as child processes.
type ExecWorker struct {
	Python     string // interpreter, "python" when empty
	Dir        string // working directory holding the scripts
	ConfigPath string // business profile passed as --config
	EnvFile    string // optional dotenv file merged into the child env
	Store      *storage.FSStore
}

// Generate implements Worker.
func (w *ExecWorker) Generate(ctx context.Context, task Task) (string, error) {
	out, err := w.run(ctx, w.script(task.Provider), "--config", w.ConfigPath, "--action", "generate")
	if err != nil {
		return "", err
	}
	return w.artifact(out, markerQueries)
}

// Collect implements Worker.
func (w *ExecWorker) Collect(ctx context.Context, task Task, queriesKey string) (string, error) {
	out, err := w.run(ctx, w.script(task.Provider),
		"--config", w.ConfigPath,
		"--action", "collect",
		"--queries", w.Store.Abs(queriesKey),
		"--test-run-id", task.RunID)
	if err != nil {
		return "", err
	}
	return w.artifact(out, markerResponses)
}

// Report implements Worker.
func (w *ExecWorker) Report(ctx context.Context, task Task, responsesKey string) (string, error) {
	out, err := w.run(ctx, ReportScript,
		"--analysis", w.Store.Abs(responsesKey),
		"--config", w.ConfigPath,
		"--test-run-id", task.RunID)
	if err != nil {
		return "", err
	}
	return w.artifact(out, markerReport)
}

func (w *ExecWorker) script(provider string) string {
	return provider + "_script.py"
}

func (w *ExecWorker) run(ctx context.Context, script string, args ...string) (string, error) {
	python := w.Python
	if python == "" {
		python = "python"
	}
	cmd := exec.CommandContext(ctx, python, append([]string{filepath.Join("scripts", script)}, args...)...)
	cmd.Dir = w.Dir

	env, err := w.env()
	if err != nil {
		return "", err
	}
	cmd.Env = env

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	log.Printf("[orchestrator] running %s %s", script, strings.Join(args, " "))
	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return "", fmt.Errorf("python script failed with code %d: %s", exitErr.ExitCode(), strings.TrimSpace(stderr.String()))
		}
		return "", fmt.Errorf("failed to start python process: %w", err)
	}
	return stdout.String(), nil
}

// env is the parent environment overlaid with the worker dotenv file.
func (w *ExecWorker) env() ([]string, error) {
	env := os.Environ()
	if w.EnvFile == "" {
		return env, nil
	}
	vars, err := godotenv.Read(w.EnvFile)
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("[orchestrator] worker env file %s not found, using process env", w.EnvFile)
			return env, nil
		}
		return nil, fmt.Errorf("failed to read worker env file: %w", err)
	}
	for k, v := range vars {
		env = append(env, k+"="+v)
	}
	return env, nil
}

// artifact finds the path printed after marker and converts it to a
// storage key. Paths outside the store are returned as absolute paths.
func (w *ExecWorker) artifact(output, marker string) (string, error) {
	path := extractFilePath(output, marker)
	if path == "" {
		return "", fmt.Errorf("script output has no %q line", marker)
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(w.Dir, path)
	}
	key, err := w.Store.Rel(path)
	if err != nil {
		return path, nil
	}
	return key, nil
}

// extractFilePath returns the text after the first line containing marker,
// matched case-insensitively, with a trailing period removed.
func extractFilePath(output, marker string) string {
	lowerMarker := strings.ToLower(marker)
	for _, line := range strings.Split(output, "\n") {
		idx := strings.Index(strings.ToLower(line), lowerMarker)
		if idx < 0 {
			continue
		}
		path := strings.TrimSpace(line[idx+len(marker):])
		return strings.TrimSpace(strings.TrimSuffix(path, "."))
	}
	return ""
}
