package correlation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/ai-visibility/internal/artifacts"
	"github.com/jonathan/ai-visibility/internal/runindex"
	"github.com/jonathan/ai-visibility/internal/storage"
)

const business = "Acme_Plumbing"

func setup(t *testing.T) (*storage.FSStore, runindex.Index, *Resolver) {
	t.Helper()
	store, err := storage.NewFSStore(t.TempDir())
	require.NoError(t, err)
	idx := runindex.NewFileIndex(store)
	return store, idx, NewResolver(store, idx)
}

func write(t *testing.T, store storage.Store, names ...string) {
	t.Helper()
	for _, name := range names {
		require.NoError(t, store.Write(context.Background(), business, name, []byte("x")))
	}
}

func putRun(t *testing.T, idx runindex.Index, id, stamp string) {
	t.Helper()
	at, err := artifacts.ParseStamp(stamp)
	require.NoError(t, err)
	require.NoError(t, idx.PutRun(context.Background(), runindex.RunMetadata{
		TestRunID: id, Providers: []string{"openai", "claude"}, Timestamp: at, BusinessDir: business,
	}))
}

func names(list []artifacts.Artifact) []string {
	out := make([]string, 0, len(list))
	for _, a := range list {
		out = append(out, a.Name)
	}
	return out
}

// Artifacts named with a run id are grouped by that id even when their
// timestamps straddle a minute boundary.
func TestResolve_UsesRunIDAcrossMinuteBoundary(t *testing.T) {
	store, idx, r := setup(t)
	putRun(t, idx, "1705329000000", "20240115_143000")
	write(t, store,
		"openai_report_testrun_1705329000000_20240115_143059.html",
		"claude_report_testrun_1705329000000_20240115_143102.html",
		"openai_responses_testrun_1705329000000_20240115_143050.csv",
		"gemini_report_testrun_other_20240115_143059.html",
	)

	set, err := r.Resolve(context.Background(), business+"_2024-01-15T14:30:59")
	require.NoError(t, err)
	assert.Equal(t, "1705329000000", set.RunID)
	assert.ElementsMatch(t, []string{
		"claude_report_testrun_1705329000000_20240115_143102.html",
		"openai_report_testrun_1705329000000_20240115_143059.html",
		"openai_responses_testrun_1705329000000_20240115_143050.csv",
	}, names(set.Artifacts))

	reports := set.OfKind(artifacts.KindReport, "")
	assert.Len(t, reports, 2)
	assert.Len(t, set.OfKind(artifacts.KindReport, "claude"), 1)
}

// Without a matching run, artifacts from the same minute are used.
func TestResolve_FallsBackToMinute(t *testing.T) {
	store, _, r := setup(t)
	write(t, store,
		"openai_report_20240115_143012.html",
		"claude_report_20240115_143045.html",
		"openai_report_20240115_143101.html",
		"notes.txt",
	)

	set, err := r.Resolve(context.Background(), business+"_2024-01-15T14:30:12")
	require.NoError(t, err)
	assert.Empty(t, set.RunID)
	assert.Equal(t, []string{
		"claude_report_20240115_143045.html",
		"openai_report_20240115_143012.html",
	}, names(set.Artifacts))
}

// A run found in the index whose id appears in no filename does not hide
// legacy artifacts from the same minute.
func TestResolve_IndexedRunWithoutArtifacts(t *testing.T) {
	store, idx, r := setup(t)
	putRun(t, idx, "ghost", "20240115_143000")
	write(t, store, "openai_report_20240115_143030.html")

	set, err := r.Resolve(context.Background(), business+"_2024-01-15T14:30:30")
	require.NoError(t, err)
	assert.Empty(t, set.RunID)
	assert.Len(t, set.Artifacts, 1)
}

func TestResolve_NotFound(t *testing.T) {
	store, _, r := setup(t)
	write(t, store, "openai_report_20240115_143012.html")

	_, err := r.Resolve(context.Background(), business+"_2024-01-16T09:00:00")
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = r.Resolve(context.Background(), "Nobody_2024-01-16T09:00:00")
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = r.Resolve(context.Background(), "garbage")
	assert.True(t, errors.Is(err, artifacts.ErrInvalidReportID))
}

func TestListRuns_GroupsByRunIDAndMinute(t *testing.T) {
	store, _, r := setup(t)
	write(t, store,
		"openai_report_testrun_100_20240115_143059.html",
		"claude_report_testrun_100_20240115_143102.html",
		"openai_report_20240116_090001.html",
		"openai_report_20240116_090030.html",
		"claude_report_20240116_090045.html",
		"openai_queries_Acme_Plumbing_20240117_100000.csv",
	)

	groups, err := r.ListRuns(context.Background())
	require.NoError(t, err)
	require.Len(t, groups, 2)

	legacy := groups[0]
	assert.Equal(t, business+"_2024-01-16T09:00:01", legacy.ID)
	assert.Empty(t, legacy.RunID)
	assert.Equal(t, []string{
		"claude_report_20240116_090045.html",
		"openai_report_20240116_090001.html",
	}, names(legacy.Reports))

	run := groups[1]
	assert.Equal(t, "100", run.RunID)
	assert.Equal(t, business+"_2024-01-15T14:30:59", run.ID)
	assert.Len(t, run.Reports, 2)
}

func TestDeleteReport_ExactTimestampOnly(t *testing.T) {
	ctx := context.Background()
	store, _, r := setup(t)
	write(t, store,
		"openai_queries_Acme_Plumbing_20240115_143000.csv",
		"openai_report_testrun_1_20240115_143000.html",
		"claude_report_testrun_1_20240115_143001.html",
		"openai_report_20240115_150000.html",
	)

	deleted, err := r.DeleteReport(ctx, business+"_2024-01-15T14:30:00")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		business + "/openai_queries_Acme_Plumbing_20240115_143000.csv",
		business + "/openai_report_testrun_1_20240115_143000.html",
	}, deleted)

	left, err := store.List(ctx, business)
	require.NoError(t, err)
	assert.Len(t, left, 2)

	_, err = r.DeleteReport(ctx, business+"_2024-01-15T14:30:00")
	assert.True(t, errors.Is(err, ErrNotFound))
}

// A nearer run of another business must not shadow this business's run.
func TestResolve_IgnoresRunsOfOtherBusinesses(t *testing.T) {
	store, idx, r := setup(t)
	putRun(t, idx, "200", "20240115_140100")
	other, err := artifacts.ParseStamp("20240115_140110")
	require.NoError(t, err)
	require.NoError(t, idx.PutRun(context.Background(), runindex.RunMetadata{
		TestRunID: "300", Providers: []string{"openai"}, Timestamp: other, BusinessDir: "Other_Co",
	}))
	write(t, store,
		"claude_report_testrun_200_20240115_140110.html",
		"openai_report_testrun_200_20240115_140205.html",
	)

	groups, err := r.ListRuns(context.Background())
	require.NoError(t, err)
	require.Len(t, groups, 1)
	require.Len(t, groups[0].Reports, 2)

	set, err := r.Resolve(context.Background(), groups[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "200", set.RunID)
	assert.Len(t, set.OfKind(artifacts.KindReport, ""), 2)
}

// Query files written by scripts before the run id was known are attached
// to the run they were generated for.
func TestResolve_AttachesUntaggedQueryFiles(t *testing.T) {
	store, idx, r := setup(t)
	putRun(t, idx, "1705329000000", "20240115_143000")
	write(t, store,
		"openai_queries_Acme_Plumbing_20240115_143005.csv",
		"claude_queries_Acme_Plumbing_20240115_150000.csv",
		"openai_report_testrun_1705329000000_20240115_143059.html",
		"custom_queries_testrun_1705329000000_20240115_143000.csv",
	)

	set, err := r.Resolve(context.Background(), business+"_2024-01-15T14:30:59")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		"openai_report_testrun_1705329000000_20240115_143059.html",
		"custom_queries_testrun_1705329000000_20240115_143000.csv",
		"openai_queries_Acme_Plumbing_20240115_143005.csv",
	}, names(set.Artifacts))

	shared := set.OfKind(artifacts.KindQueries, artifacts.SharedProvider)
	require.Len(t, shared, 1)
	assert.Equal(t, "1705329000000", shared[0].RunID)
}
