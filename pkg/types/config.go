package types

import "time"

// HTTPConfig holds settings for the shared HTTP session used by the direct
// fetch strategy.
type HTTPConfig struct {
	// Timeout bounds a GET request including the body transfer (default 60s).
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// HeadTimeout bounds the preflight HEAD request (default 20s).
	HeadTimeout time.Duration `json:"head_timeout" yaml:"head_timeout"`

	// UserAgent is sent with every request. Browser-like by default since
	// several portals reject unknown agents.
	UserAgent string `json:"user_agent" yaml:"user_agent"`

	// MaxAttempts is the total number of transport attempts for retryable
	// failures (default 5).
	MaxAttempts int `json:"max_attempts" yaml:"max_attempts"`

	// Cookies maps a host suffix to a Cookie header value.
	Cookies map[string]string `json:"-" yaml:"-"`
}

// FetchConfig holds settings for the direct fetch strategy.
type FetchConfig struct {
	HTTPConfig `yaml:",inline"`

	// Preflight enables the best-effort HEAD request before the GET.
	Preflight bool `json:"preflight" yaml:"preflight"`

	// ThrottleDelay is slept after every successful download (default 700ms).
	ThrottleDelay time.Duration `json:"throttle_delay" yaml:"throttle_delay"`
}

// BrowserConfig holds settings for the browser fallback strategy.
type BrowserConfig struct {
	// Headless runs the browser without a window.
	Headless bool `json:"headless" yaml:"headless"`

	// ExecPath overrides the Chrome/Chromium executable.
	ExecPath string `json:"exec_path,omitempty" yaml:"exec_path,omitempty"`

	// UserAgent overrides the browser user agent when set.
	UserAgent string `json:"user_agent,omitempty" yaml:"user_agent,omitempty"`

	// NavigationTimeout bounds the navigation to the target URL (default 90s).
	NavigationTimeout time.Duration `json:"navigation_timeout" yaml:"navigation_timeout"`

	// PrimeTimeout bounds the priming visit to the site origin (default 15s).
	PrimeTimeout time.Duration `json:"prime_timeout" yaml:"prime_timeout"`

	// ClickTimeout bounds the attempt to click a PDF link (default 3s).
	ClickTimeout time.Duration `json:"click_timeout" yaml:"click_timeout"`

	// PollInterval and PollAttempts control how long the strategy waits for
	// a download event after the click attempt (default 200ms x 30).
	PollInterval time.Duration `json:"poll_interval" yaml:"poll_interval"`
	PollAttempts int           `json:"poll_attempts" yaml:"poll_attempts"`
}

// HarvestConfig groups everything a batch run needs.
type HarvestConfig struct {
	// DestDir receives the PDFs and, by default, the reports.
	DestDir string `json:"dest_dir" yaml:"dest_dir"`

	// UseFallback enables the browser strategy after a direct fetch failure.
	UseFallback bool `json:"use_fallback" yaml:"use_fallback"`

	Fetch   FetchConfig   `json:"fetch" yaml:"fetch"`
	Browser BrowserConfig `json:"browser" yaml:"browser"`

	// ReportPath is the CSV report file (default <DestDir>/report.csv).
	ReportPath string `json:"report_path" yaml:"report_path"`

	// SummaryPath is the YAML run summary (default <DestDir>/summary.yaml).
	SummaryPath string `json:"summary_path" yaml:"summary_path"`

	// HistoryPath is the SQLite run history (default <DestDir>/.pdf-harvest/history.db).
	HistoryPath string `json:"history_path" yaml:"history_path"`

	// MetricsPath, when set, receives a Prometheus textfile after the run.
	MetricsPath string `json:"metrics_path,omitempty" yaml:"metrics_path,omitempty"`
}
