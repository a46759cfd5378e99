// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// RunSummary aggregates the outcomes of one batch run.
type RunSummary struct {
	// RunID identifies the run in the history store.
	RunID string `json:"run_id" yaml:"run_id"`

	DestDir    string    `json:"dest_dir" yaml:"dest_dir"`
	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time `json:"finished_at" yaml:"finished_at"`

	Succeeded int `json:"succeeded" yaml:"succeeded"`
	Failed    int `json:"failed" yaml:"failed"`

	// ByMethod counts successes per strategy method.
	ByMethod map[Method]int `json:"by_method" yaml:"by_method"`

	// Bytes is the total size of all written files.
	Bytes int64 `json:"bytes" yaml:"bytes"`

	// FailedURLs lists the URLs without a downloaded file, in input order.
	FailedURLs []string `json:"failed_urls,omitempty" yaml:"failed_urls,omitempty"`
}

// Total returns the number of URLs processed.
func (s RunSummary) Total() int {
	return s.Succeeded + s.Failed
}

// HasFailures reports whether any URL failed.
func (s RunSummary) HasFailures() bool {
	return s.Failed > 0
}

// Add folds one outcome into the summary.
func (s *RunSummary) Add(o Outcome) {
	if o.Result == nil {
		s.Failed++
		s.FailedURLs = append(s.FailedURLs, o.URL)
		return
	}
	s.Succeeded++
	s.Bytes += o.Result.ByteCount
	if s.ByMethod == nil {
		s.ByMethod = make(map[Method]int)
	}
	s.ByMethod[o.Result.Method]++
}
