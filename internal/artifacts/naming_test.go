package artifacts

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseName(t *testing.T) {
	tests := []struct {
		name     string
		wantOK   bool
		provider string
		kind     Kind
		runID    string
		stamp    string
	}{
		{
			name: "claude_report_testrun_1705290000000_20240115_143022.html", wantOK: true,
			provider: "claude", kind: KindReport, runID: "1705290000000", stamp: "20240115_143022",
		},
		{
			name: "openai_responses_testrun_abc-1_20240115_143500.csv", wantOK: true,
			provider: "openai", kind: KindResponses, runID: "abc-1", stamp: "20240115_143500",
		},
		{
			name: "openai_analysis_testrun_abc-1_20240115_143500.csv", wantOK: true,
			provider: "openai", kind: KindAnalysis, runID: "abc-1", stamp: "20240115_143500",
		},
		{
			name: "perplexity_queries_Acme_Plumbing_20240115_142900.csv", wantOK: true,
			provider: "perplexity", kind: KindQueries, stamp: "20240115_142900",
		},
		{
			name: "gemini_queries_20240115_142900.txt", wantOK: true,
			provider: "gemini", kind: KindQueries, stamp: "20240115_142900",
		},
		{
			name: "copilot_responses_20240115_142900_report.html", wantOK: true,
			provider: "copilot", kind: KindReport, stamp: "20240115_142900",
		},
		{
			name: "claude_responses_testrun_1759574542000_20251004_105222.csv", wantOK: true,
			provider: "claude", kind: KindResponses, runID: "1759574542000", stamp: "20251004_105222",
		},
		{
			name: "claude_queries_testrun_1759574542000_20251004_105222.csv", wantOK: true,
			provider: "claude", kind: KindQueries, runID: "1759574542000", stamp: "20251004_105222",
		},
		{
			name: "custom_queries_testrun_1759574542000_20251004_105222.csv", wantOK: true,
			provider: SharedProvider, kind: KindQueries, runID: "1759574542000", stamp: "20251004_105222",
		},
		{
			name: "custom_queries_Acme_20240115_143022.csv", wantOK: true,
			provider: SharedProvider, kind: KindQueries, stamp: "20240115_143022",
		},
		{name: "bard_report_20240115_143022.html"},
		{name: "custom_queries_Acme.csv"},
		{name: "claude_report_testrun_1.html"},
		{name: "claude_summary_20240115_143022.html"},
		{name: ".test_run_1705290000000.json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, ok := ParseName("Acme_Plumbing", tt.name)
			require.Equal(t, tt.wantOK, ok)
			if !ok {
				return
			}
			assert.Equal(t, tt.provider, a.Provider)
			assert.Equal(t, tt.kind, a.Kind)
			assert.Equal(t, tt.runID, a.RunID)
			assert.Equal(t, tt.stamp, a.Timestamp)
			assert.Equal(t, "Acme_Plumbing/"+tt.name, a.Key())
		})
	}
}

func TestStampOf_UsesLastOccurrence(t *testing.T) {
	stamp, ok := StampOf("claude_queries_20240101_000000_copy_20240115_143022.csv")
	require.True(t, ok)
	assert.Equal(t, "20240115_143022", stamp)

	_, ok = StampOf("claude_queries.csv")
	assert.False(t, ok)
}

func TestStampOf_IgnoresDigitsOfMillisecondRunID(t *testing.T) {
	name := ResponsesName("claude", "1759574542000", "20251004_105222")
	stamp, ok := StampOf(name)
	require.True(t, ok)
	assert.Equal(t, "20251004_105222", stamp)

	a, ok := ParseName("Acme", name)
	require.True(t, ok)
	id := ReportID(a.BusinessDir, a.Timestamp)
	assert.Equal(t, "Acme_2025-10-04T10:52:22", id)

	dir, parsed, err := ParseReportID(id)
	require.NoError(t, err)
	assert.Equal(t, "Acme", dir)
	assert.Equal(t, "20251004_105222", parsed)

	_, ok = StampOf("claude_report_testrun_120240115_1430221.html")
	assert.False(t, ok)
}

func TestTimestampConversions(t *testing.T) {
	assert.Equal(t, "2024-01-15T14:30:22", ISOFromStamp("20240115_143022"))
	assert.Equal(t, "20240115_143022", StampFromISO("2024-01-15T14:30:22"))
	assert.Equal(t, "20240115_143022", StampFromISO("2024-01-15T14:30:22.123Z"))
	assert.Equal(t, "20240115_1430", MinuteOf("20240115_143022"))

	ts, err := ParseStamp("20240115_143022")
	require.NoError(t, err)
	assert.Equal(t, "20240115_143022", FormatStamp(ts))
}

func TestReportID_RoundTrip(t *testing.T) {
	id := ReportID("Acme_Plumbing", "20240115_143022")
	assert.Equal(t, "Acme_Plumbing_2024-01-15T14:30:22", id)

	dir, stamp, err := ParseReportID(id)
	require.NoError(t, err)
	assert.Equal(t, "Acme_Plumbing", dir)
	assert.Equal(t, "20240115_143022", stamp)
}

func TestParseReportID_Invalid(t *testing.T) {
	for _, id := range []string{"", "nounderscore", "_2024-01-15T14:30:22", "Acme_", "Acme_yesterday"} {
		_, _, err := ParseReportID(id)
		assert.True(t, errors.Is(err, ErrInvalidReportID), id)
	}
}

func TestBusinessNames(t *testing.T) {
	assert.Equal(t, "Acme_Plumbing", BusinessDir("  Acme   Plumbing "))
	assert.Equal(t, "Acme Plumbing", BusinessName("Acme_Plumbing"))
}

func TestFileNames(t *testing.T) {
	responses := ResponsesName("claude", "42", "20240115_143022")
	assert.Equal(t, "claude_responses_testrun_42_20240115_143022.csv", responses)
	assert.Equal(t, "claude_analysis_testrun_42_20240115_143022.csv", AnalysisName(responses))
	assert.Equal(t, "claude_report_testrun_42_20240115_143022.html", ReportName("claude", "42", "20240115_143022"))
	assert.Equal(t, "claude_queries_testrun_42_20240115_143022.csv", QueriesName("claude", "42", "20240115_143022"))
	assert.Equal(t, "custom_queries_testrun_42_20240115_143022.csv", CustomQueriesName("42", "20240115_143022"))

	for _, name := range []string{
		responses,
		AnalysisName(responses),
		ReportName("claude", "42", "20240115_143022"),
		QueriesName("claude", "42", "20240115_143022"),
		CustomQueriesName("42", "20240115_143022"),
	} {
		a, ok := ParseName("Acme", name)
		require.True(t, ok, name)
		assert.Equal(t, "42", a.RunID)
	}
}
