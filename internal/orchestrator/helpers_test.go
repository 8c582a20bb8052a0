package orchestrator

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jonathan/ai-visibility/internal/config"
	"github.com/jonathan/ai-visibility/internal/llm"
	"github.com/jonathan/ai-visibility/internal/runindex"
	"github.com/jonathan/ai-visibility/internal/storage"
)

// fakeLLM answers as a scripted market: Claude always recommends the
// business and Rival Pipes; OpenAI never names the business and mentions
// Rival Pipes on every other answer.
type fakeLLM struct {
	mu      sync.Mutex
	answers map[string]int
	prompts []string
}

func newFakeLLM() *fakeLLM {
	return &fakeLLM{answers: make(map[string]int)}
}

func (f *fakeLLM) GenerateContent(_ context.Context, prompt string, _ llm.ModelTier) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)

	switch {
	case strings.Contains(prompt, "You are Claude"):
		f.answers["claude"]++
		return "I'd call Acme Plumbing first, or Rival Pipes if they are booked.", nil
	case strings.Contains(prompt, "You are OpenAI"):
		f.answers["openai"]++
		if f.answers["openai"]%2 == 1 {
			return "Rival Pipes and Drain Kings are both popular.", nil
		}
		return "Drain Kings has good reviews.", nil
	default:
		return "No recommendation.", nil
	}
}

func (f *fakeLLM) GenerateJSON(_ context.Context, prompt string, _ llm.ModelTier) (string, error) {
	queries := make([]string, 15)
	for i := range queries {
		queries[i] = fmt.Sprintf("%q", fmt.Sprintf("Who is the best plumber near me, option %d?", i+1))
	}
	return "```json\n{\"queries\": [" + strings.Join(queries, ", ") + "]}\n```", nil
}

func (f *fakeLLM) GetModel(tier llm.ModelTier) string { return "fake-" + string(tier) }

func (f *fakeLLM) Close() error { return nil }

func (f *fakeLLM) answered(provider string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.answers[provider]
}

// stubWorker delegates to an inner worker unless a phase is overridden.
type stubWorker struct {
	inner     Worker
	generate  func(ctx context.Context, task Task) (string, error)
	collect   func(ctx context.Context, task Task, queriesKey string) (string, error)
	mu        sync.Mutex
	generated int
}

func (s *stubWorker) Generate(ctx context.Context, task Task) (string, error) {
	s.mu.Lock()
	s.generated++
	s.mu.Unlock()
	if s.generate != nil {
		return s.generate(ctx, task)
	}
	return s.inner.Generate(ctx, task)
}

func (s *stubWorker) Collect(ctx context.Context, task Task, queriesKey string) (string, error) {
	if s.collect != nil {
		return s.collect(ctx, task, queriesKey)
	}
	return s.inner.Collect(ctx, task, queriesKey)
}

func (s *stubWorker) Report(ctx context.Context, task Task, responsesKey string) (string, error) {
	return s.inner.Report(ctx, task, responsesKey)
}

type env struct {
	store  *storage.FSStore
	index  runindex.Index
	llm    *fakeLLM
	worker *LLMWorker
	local  *Local
	reg    *Registry
}

func newEnv(t *testing.T) *env {
	t.Helper()
	root := t.TempDir()
	store, err := storage.NewFSStore(filepath.Join(root, "results"))
	require.NoError(t, err)

	business := config.NewBusinessStore(filepath.Join(root, "config.yaml"))
	require.NoError(t, business.Save(&config.BusinessConfig{
		Name:        "Acme Plumbing",
		URL:         "https://acme.example",
		Location:    "Sydney",
		Competitors: []string{"Rival Pipes", "Drain Kings"},
	}))

	fake := newFakeLLM()
	worker := NewLLMWorker(fake, store)
	reg := NewRegistry(worker)
	idx := runindex.NewFileIndex(store)
	return &env{
		store:  store,
		index:  idx,
		llm:    fake,
		worker: worker,
		reg:    reg,
		local:  NewLocal(store, idx, reg, business, 2),
	}
}

type staticBusiness struct {
	cfg config.BusinessConfig
}

func (s staticBusiness) Load() (*config.BusinessConfig, error) {
	c := s.cfg
	c.Normalize()
	return &c, nil
}
