// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines the data structures shared by the pdf-harvest
// strategies, the batch orchestrator, and the report writers.
package types

import (
	"fmt"
	"strconv"
	"strings"
)

// DownloadRequest is a single unit of work: one URL and the directory its
// PDF is written to.
type DownloadRequest struct {
	URL     string `json:"url" yaml:"url"`
	DestDir string `json:"dest_dir" yaml:"dest_dir"`
}

// Method identifies which strategy produced a downloaded file.
type Method string

const (
	MethodNone            Method = ""
	MethodDirect          Method = "direct"
	MethodBrowserDownload Method = "browser-download"
	MethodBrowserBody     Method = "browser-body"
)

// DownloadResult describes a PDF written to disk by a successful strategy.
type DownloadResult struct {
	// FileName is the base name of the written file.
	FileName string `json:"file_name" yaml:"file_name"`

	// FilePath is FileName joined with the destination directory.
	FilePath string `json:"file_path" yaml:"file_path"`

	Method Method `json:"method" yaml:"method"`

	// HTTPStatus is the status of the response the bytes came from, or 0
	// when the strategy could not observe one.
	HTTPStatus int `json:"http_status" yaml:"http_status"`

	// ByteCount equals the size of the written file.
	ByteCount int64 `json:"byte_count" yaml:"byte_count"`
}

// Stage names a strategy in a failure record.
type Stage string

const (
	StageDirectFetch     Stage = "direct"
	StageBrowserFallback Stage = "browser"
)

// StageError is the failure of one strategy for one URL.
type StageError struct {
	Stage   Stage  `json:"stage" yaml:"stage"`
	Message string `json:"message" yaml:"message"`
}

func (e StageError) String() string {
	return string(e.Stage) + ": " + e.Message
}

// DownloadFailure collects the errors of every strategy tried for a URL,
// in the order they were tried.
type DownloadFailure struct {
	URL         string       `json:"url" yaml:"url"`
	StageErrors []StageError `json:"stage_errors" yaml:"stage_errors"`
}

// Add appends a stage error.
func (f *DownloadFailure) Add(stage Stage, err error) {
	f.StageErrors = append(f.StageErrors, StageError{Stage: stage, Message: err.Error()})
}

// Error joins the stage errors with " | ".
func (f *DownloadFailure) Error() string {
	parts := make([]string, 0, len(f.StageErrors))
	for _, se := range f.StageErrors {
		parts = append(parts, se.String())
	}
	return strings.Join(parts, " | ")
}

// Outcome is the single record emitted per input URL. Exactly one of
// Result and Failure is non-nil.
type Outcome struct {
	// Index is the zero-based position of URL in the input sequence.
	Index   int
	URL     string
	Result  *DownloadResult
	Failure *DownloadFailure
}

// Succeeded reports whether a strategy produced a file.
func (o Outcome) Succeeded() bool {
	return o.Result != nil
}

// Record flattens the outcome into a report row.
func (o Outcome) Record() ReportRecord {
	rec := ReportRecord{URL: o.URL, Success: o.Result != nil}
	if o.Result != nil {
		rec.FileName = o.Result.FileName
		rec.Method = o.Result.Method
		rec.HTTPStatus = o.Result.HTTPStatus
		rec.ByteCount = o.Result.ByteCount
	}
	if o.Failure != nil {
		rec.ErrorText = o.Failure.Error()
	}
	return rec
}

// ReportRecord is one persisted report row.
type ReportRecord struct {
	URL        string `json:"url" yaml:"url"`
	FileName   string `json:"file_name" yaml:"file_name"`
	Method     Method `json:"method" yaml:"method"`
	HTTPStatus int    `json:"http_status" yaml:"http_status"`
	ByteCount  int64  `json:"byte_count" yaml:"byte_count"`
	Success    bool   `json:"success" yaml:"success"`
	ErrorText  string `json:"error,omitempty" yaml:"error,omitempty"`
}

// ReportHeader is the column order used by CSV reports.
var ReportHeader = []string{"url", "file_name", "method", "http_status", "byte_count", "success", "error"}

// Fields returns the record in ReportHeader order. Zero status and byte
// counts of failed rows are rendered as empty cells.
func (r ReportRecord) Fields() []string {
	status, size := "", ""
	if r.HTTPStatus != 0 {
		status = strconv.Itoa(r.HTTPStatus)
	}
	if r.Success {
		size = strconv.FormatInt(r.ByteCount, 10)
	}
	return []string{
		r.URL,
		r.FileName,
		string(r.Method),
		status,
		size,
		strconv.FormatBool(r.Success),
		r.ErrorText,
	}
}

// ParseReportRecord is the inverse of Fields.
func ParseReportRecord(fields []string) (ReportRecord, error) {
	if len(fields) != len(ReportHeader) {
		return ReportRecord{}, fmt.Errorf("expected %d fields, got %d", len(ReportHeader), len(fields))
	}
	rec := ReportRecord{
		URL:       fields[0],
		FileName:  fields[1],
		Method:    Method(fields[2]),
		ErrorText: fields[6],
	}
	var err error
	if fields[3] != "" {
		if rec.HTTPStatus, err = strconv.Atoi(fields[3]); err != nil {
			return ReportRecord{}, fmt.Errorf("parsing http_status: %w", err)
		}
	}
	if fields[4] != "" {
		if rec.ByteCount, err = strconv.ParseInt(fields[4], 10, 64); err != nil {
			return ReportRecord{}, fmt.Errorf("parsing byte_count: %w", err)
		}
	}
	if rec.Success, err = strconv.ParseBool(fields[5]); err != nil {
		return ReportRecord{}, fmt.Errorf("parsing success: %w", err)
	}
	return rec, nil
}

// ProgressStage marks where the orchestrator is for the current URL.
type ProgressStage string

const (
	ProgressStarted  ProgressStage = "started"
	ProgressDirect   ProgressStage = "direct"
	ProgressBrowser  ProgressStage = "browser"
	ProgressFinished ProgressStage = "finished"
)

// Progress is a notification emitted while a batch runs.
type Progress struct {
	Index int
	Total int
	URL   string
	Stage ProgressStage
}
