package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/querynest/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/querynest/internal/core/domain"
	"github.com/custodia-labs/querynest/internal/core/ports/driving"
)

const brief = `# Overview

Teams choose one of the problem statements below and demo a prototype on Sunday.

# Problem Statement 1: Inventory Tracker

Build an inventory tracker for a small grocery store that warns the owner when stock runs low.

# Problem Statement 2: Route Planner

Design a delivery route planner for a bakery that respects customer delivery windows.
`

func memoryConfig(t *testing.T) *memory.ConfigStore {
	t.Helper()
	cfg := memory.NewConfigStore()
	require.NoError(t, cfg.Set("storage.backend", "memory"))
	return cfg
}

func TestNew_MemoryPipelineEndToEnd(t *testing.T) {
	a, err := New(Options{ConfigDir: t.TempDir(), ConfigStore: memoryConfig(t)})
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, a.Close()) })
	ctx := context.Background()

	doc, err := a.Documents.ProcessUpload(ctx, []byte(brief), "brief.md")
	require.NoError(t, err)
	assert.Equal(t, "text/markdown", doc.MIMEType)
	assert.True(t, doc.IsActive)
	assert.True(t, doc.FullyIndexed())

	titles, err := a.Documents.ListSections(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Overview",
		"Problem Statement 1: Inventory Tracker",
		"Problem Statement 2: Route Planner",
	}, titles)

	result, err := a.Queries.AnswerQuery(ctx, driving.AnswerRequest{Query: "What should the route planner respect?"})
	require.NoError(t, err)
	assert.NotEmpty(t, result.Answer)
	assert.Contains(t, result.SourceSections, "Problem Statement 2: Route Planner")
	require.NotNil(t, result.Validation)

	summary, err := a.Queries.Summarize(ctx, driving.SummaryRequest{Scope: domain.ScopeFull})
	require.NoError(t, err)
	assert.Equal(t, domain.ModeFullSummary, summary.Mode)

	families, err := a.Metrics.Registry().Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "querynest_queries_total")
}

func TestNew_SQLiteStorage(t *testing.T) {
	dataDir := t.TempDir()
	cfg := memory.NewConfigStore()
	require.NoError(t, cfg.Set("storage.backend", "sqlite"))
	require.NoError(t, cfg.Set("storage.data_dir", dataDir))

	a, err := New(Options{ConfigDir: t.TempDir(), ConfigStore: cfg, Session: "cli"})
	require.NoError(t, err)

	_, err = a.Documents.ProcessUpload(context.Background(), []byte(brief), "brief.txt")
	require.NoError(t, err)
	require.NoError(t, a.Close())

	_, err = os.Stat(filepath.Join(dataDir, "querynest.db"))
	assert.NoError(t, err)

	reopened, err := New(Options{ConfigDir: t.TempDir(), ConfigStore: cfg, Session: "cli"})
	require.NoError(t, err)
	defer reopened.Close()

	active, err := reopened.Documents.Active(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "brief.txt", active.Name)
}

func TestNew_PromptTemplatesWritten(t *testing.T) {
	configDir := t.TempDir()
	a, err := New(Options{ConfigDir: configDir, ConfigStore: memoryConfig(t)})
	require.NoError(t, err)
	defer a.Close()

	require.NotNil(t, a.Prompts)
	_, err = a.Prompts.Load("answer")
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(configDir, "prompts", "answer.txt"))
	assert.NoError(t, err)
}

func TestNew_UnsupportedUpload(t *testing.T) {
	a, err := New(Options{ConfigStore: memoryConfig(t), ConfigDir: t.TempDir()})
	require.NoError(t, err)
	defer a.Close()

	_, err = a.Documents.ProcessUpload(context.Background(), []byte{0x00, 0x01, 0xfe}, "blob.bin")
	assert.True(t, errors.Is(err, domain.ErrUnsupportedFormat))
}

func TestNew_FallbackWarning(t *testing.T) {
	cfg := memoryConfig(t)
	require.NoError(t, cfg.Set("llm.provider", "openai"))

	a, err := New(Options{ConfigStore: cfg, ConfigDir: t.TempDir()})
	require.NoError(t, err)
	defer a.Close()

	require.NotEmpty(t, a.Warnings)
	assert.Contains(t, a.Warnings[0], "openai")
}
