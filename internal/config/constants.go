package config

const (
	// DefaultMaxPreview is the default cap on sanitized text previews, in characters.
	DefaultMaxPreview = 4000
	// APILogsDir holds one JSON event log per test that issued API calls.
	APILogsDir = "api-logs"
	// ReportsDir holds the run-level metrics reports.
	ReportsDir = "reports"
	// MetricsJSONFile is the structured run metrics summary.
	MetricsJSONFile = "api-metrics.json"
	// MetricsTextFile is the flat human-readable run metrics summary.
	MetricsTextFile = "api-metrics.txt"
	// ScreenshotsDir holds PNG screenshots.
	ScreenshotsDir = "screenshots"
	// TracesDir holds one trace archive per browser test.
	TracesDir = "traces"
	// VideosDir holds page recordings.
	VideosDir = "videos"
	// ResultsDir holds per-test results and cross-test state.
	ResultsDir = "test-results"
	// AttachmentsDir holds report attachments, one directory per test.
	AttachmentsDir = "test-results/attachments"
	// AuthStateFile is the persisted authenticated browser storage state.
	AuthStateFile = "auth-state.json"
	// LastContactFile is the persisted identity of the last created contact.
	LastContactFile = "test-results/last_contact.json"
)

// ArtifactDirs lists every directory prepared once before a run starts.
var ArtifactDirs = []string{
	APILogsDir,
	ReportsDir,
	ScreenshotsDir,
	TracesDir,
	VideosDir,
	ResultsDir,
	AttachmentsDir,
}
