package artifacts

import (
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"
)

// Kind classifies an artifact by what stage produced it.
type Kind string

// Artifact kinds.
const (
	KindQueries   Kind = "queries"
	KindResponses Kind = "responses"
	KindAnalysis  Kind = "analysis"
	KindReport    Kind = "report"
)

// StampLayout is the timestamp format embedded in artifact filenames.
const StampLayout = "20060102_150405"

// ISOLayout is the timestamp format used in report ids.
const ISOLayout = "2006-01-02T15:04:05"

var (
	providerPrefixPattern = regexp.MustCompile(`^(openai|claude|gemini|copilot|perplexity)_`)
	runIDPattern          = regexp.MustCompile(`testrun_([A-Za-z0-9-]+)`)
	// Digits on either side belong to something else, e.g. a millisecond
	// run id directly before the stamp.
	stampPattern = regexp.MustCompile(`(?:^|\D)(\d{8}_\d{6})(?:\D|$)`)
)

// SharedProvider marks artifacts used by every provider of a run, such as
// the caller's custom queries.
const SharedProvider = "custom"

const customQueriesPrefix = "custom_queries_"

// ErrInvalidReportID is returned when a report id cannot be split into a
// business directory and a timestamp.
var ErrInvalidReportID = errors.New("invalid report id")

// Artifact is a file produced by a provider worker, described by its name.
type Artifact struct {
	BusinessDir string `json:"businessDir"`
	Name        string `json:"name"`
	Provider    string `json:"provider"`
	Kind        Kind   `json:"kind"`
	RunID       string `json:"runId,omitempty"`
	Timestamp   string `json:"timestamp"`
	Ext         string `json:"ext"`
}

// Key is the storage locator for the artifact: businessDir/name.
func (a Artifact) Key() string {
	return a.BusinessDir + "/" + a.Name
}

// Minute is the timestamp truncated to minute precision.
func (a Artifact) Minute() string {
	return MinuteOf(a.Timestamp)
}

// ParseName recovers artifact attributes from a filename. Files that do
// not start with a known provider, carry no timestamp, or have no
// recognisable kind are rejected.
func ParseName(businessDir, name string) (Artifact, bool) {
	if strings.HasPrefix(name, customQueriesPrefix) {
		return parseCustomQueries(businessDir, name)
	}
	m := providerPrefixPattern.FindStringSubmatch(name)
	if m == nil {
		return Artifact{}, false
	}
	stamp, ok := StampOf(name)
	if !ok {
		return Artifact{}, false
	}

	ext := strings.TrimPrefix(path.Ext(name), ".")
	a := Artifact{
		BusinessDir: businessDir,
		Name:        name,
		Provider:    m[1],
		Timestamp:   stamp,
		Ext:         ext,
	}
	if rm := runIDPattern.FindStringSubmatch(name); rm != nil {
		a.RunID = rm[1]
	}

	if ext == "html" {
		if !strings.Contains(name, "report") && !strings.Contains(name, "responses") {
			return Artifact{}, false
		}
		a.Kind = KindReport
		return a, true
	}

	kind, ok := dataKind(name[len(m[0]):])
	if !ok {
		return Artifact{}, false
	}
	a.Kind = kind
	return a, true
}

func parseCustomQueries(businessDir, name string) (Artifact, bool) {
	stamp, ok := StampOf(name)
	if !ok {
		return Artifact{}, false
	}
	a := Artifact{
		BusinessDir: businessDir,
		Name:        name,
		Provider:    SharedProvider,
		Kind:        KindQueries,
		Timestamp:   stamp,
		Ext:         strings.TrimPrefix(path.Ext(name), "."),
	}
	if rm := runIDPattern.FindStringSubmatch(name); rm != nil {
		a.RunID = rm[1]
	}
	return a, true
}

// dataKind classifies a non-HTML artifact by the token after the provider,
// falling back to an embedded _kind token.
func dataKind(rest string) (Kind, bool) {
	kinds := []Kind{KindAnalysis, KindResponses, KindQueries}
	for _, k := range kinds {
		if strings.HasPrefix(rest, string(k)) {
			return k, true
		}
	}
	for _, k := range kinds {
		if strings.Contains(rest, "_"+string(k)) {
			return k, true
		}
	}
	return "", false
}

// StampOf returns the last YYYYMMDD_HHMMSS occurrence in name.
func StampOf(name string) (string, bool) {
	all := stampPattern.FindAllStringSubmatch(name, -1)
	if len(all) == 0 {
		return "", false
	}
	return all[len(all)-1][1], true
}

// MinuteOf truncates a filename timestamp to YYYYMMDD_HHMM.
func MinuteOf(stamp string) string {
	if len(stamp) < 13 {
		return stamp
	}
	return stamp[:13]
}

// ISOFromStamp converts YYYYMMDD_HHMMSS to YYYY-MM-DDTHH:MM:SS.
func ISOFromStamp(stamp string) string {
	if len(stamp) != 15 {
		return stamp
	}
	return fmt.Sprintf("%s-%s-%sT%s:%s:%s",
		stamp[0:4], stamp[4:6], stamp[6:8], stamp[9:11], stamp[11:13], stamp[13:15])
}

// StampFromISO converts an ISO timestamp back to the filename form by
// dropping separators and keeping the first 15 characters.
func StampFromISO(iso string) string {
	s := strings.NewReplacer("-", "", ":", "").Replace(iso)
	s = strings.Replace(s, "T", "_", 1)
	if len(s) > 15 {
		s = s[:15]
	}
	return s
}

// ParseStamp parses a filename timestamp in the local time zone.
func ParseStamp(stamp string) (time.Time, error) {
	return time.ParseInLocation(StampLayout, stamp, time.Local)
}

// FormatStamp renders t as a filename timestamp.
func FormatStamp(t time.Time) string {
	return t.Format(StampLayout)
}

// ReportID builds the public id of a test run report.
func ReportID(businessDir, stamp string) string {
	return businessDir + "_" + ISOFromStamp(stamp)
}

// ParseReportID splits a report id at its last underscore into the
// business directory and the filename timestamp.
func ParseReportID(id string) (businessDir, stamp string, err error) {
	idx := strings.LastIndex(id, "_")
	if idx <= 0 || idx == len(id)-1 {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidReportID, id)
	}
	businessDir, iso := id[:idx], id[idx+1:]
	if _, err := time.Parse(ISOLayout, iso); err != nil {
		return "", "", fmt.Errorf("%w: %q: bad timestamp", ErrInvalidReportID, id)
	}
	return businessDir, StampFromISO(iso), nil
}

// BusinessDir derives the results directory name for a business.
func BusinessDir(businessName string) string {
	return strings.Join(strings.Fields(businessName), "_")
}

// BusinessName derives a display name from a results directory name.
func BusinessName(businessDir string) string {
	return strings.ReplaceAll(businessDir, "_", " ")
}

// QueriesName names a provider's generated query file for a run.
func QueriesName(provider, runID, stamp string) string {
	return fmt.Sprintf("%s_queries_testrun_%s_%s.csv", provider, runID, stamp)
}

// ResponsesName names a provider's collected responses for a run.
func ResponsesName(provider, runID, stamp string) string {
	return fmt.Sprintf("%s_responses_testrun_%s_%s.csv", provider, runID, stamp)
}

// AnalysisName names the analysed variant of a responses file.
func AnalysisName(responsesName string) string {
	return strings.Replace(responsesName, "responses", "analysis", 1)
}

// ReportName names a provider's HTML report for a run.
func ReportName(provider, runID, stamp string) string {
	return fmt.Sprintf("%s_report_testrun_%s_%s.html", provider, runID, stamp)
}

// CustomQueriesName names the shared custom query file of a run.
func CustomQueriesName(runID, stamp string) string {
	return fmt.Sprintf("%stestrun_%s_%s.csv", customQueriesPrefix, runID, stamp)
}
