// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package harvest runs a batch of URLs through the download strategies:
// direct fetch first, then the browser fallback when enabled. It yields
// exactly one outcome per input URL, in input order.
package harvest

import (
	"context"
	"errors"
	"io"
	"iter"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pdiddy/pdf-harvest/internal/fsutil"
	"github.com/pdiddy/pdf-harvest/pkg/types"
)

// Strategy downloads one URL into a directory.
type Strategy interface {
	Fetch(ctx context.Context, rawURL, destDir string) (*types.DownloadResult, error)
}

// Options controls a batch run.
type Options struct {
	// UseFallback enables the browser strategy after a direct failure.
	UseFallback bool

	// Progress, when set, is called synchronously at each step.
	Progress func(types.Progress)
}

// Orchestrator sequences the strategies over a batch.
type Orchestrator struct {
	direct   Strategy
	fallback Strategy
	opts     Options
	log      *logrus.Logger
}

// New returns an Orchestrator. fallback may be nil, which disables the
// browser stage regardless of opts.UseFallback.
func New(direct, fallback Strategy, opts Options, log *logrus.Logger) *Orchestrator {
	if log == nil {
		log = logrus.New()
		log.SetOutput(io.Discard)
	}
	return &Orchestrator{direct: direct, fallback: fallback, opts: opts, log: log}
}

var errEmptyURL = errors.New("empty URL")

// Run returns a lazy sequence of outcomes. URLs are resolved one at a time
// as the sequence is consumed. The destination directory is created on
// first use; if that fails, every URL is reported with the filesystem
// error. A cancelled ctx ends the sequence before the next URL.
func (o *Orchestrator) Run(ctx context.Context, urls []string, destDir string) iter.Seq[types.Outcome] {
	return func(yield func(types.Outcome) bool) {
		dirErr := fsutil.EnsureDir(destDir)
		if dirErr != nil {
			o.log.WithError(dirErr).WithField("dest", destDir).Error("destination directory unavailable")
		}

		for i, raw := range urls {
			if ctx.Err() != nil {
				o.log.WithField("remaining", len(urls)-i).Warn("batch cancelled")
				return
			}
			out := o.resolve(ctx, i, len(urls), strings.TrimSpace(raw), destDir, dirErr)
			if !yield(out) {
				return
			}
		}
	}
}

func (o *Orchestrator) resolve(ctx context.Context, i, total int, rawURL, destDir string, dirErr error) types.Outcome {
	out := types.Outcome{Index: i, URL: rawURL}
	log := o.log.WithFields(logrus.Fields{"url": rawURL, "index": i + 1, "total": total})
	o.notify(i, total, rawURL, types.ProgressStarted)
	defer o.notify(i, total, rawURL, types.ProgressFinished)

	failure := &types.DownloadFailure{URL: rawURL}
	switch {
	case rawURL == "":
		failure.Add(types.StageDirectFetch, errEmptyURL)
		out.Failure = failure
		log.Warn("skipping empty URL")
		return out
	case dirErr != nil:
		failure.Add(types.StageDirectFetch, dirErr)
		out.Failure = failure
		return out
	}

	start := time.Now()
	o.notify(i, total, rawURL, types.ProgressDirect)
	res, err := o.direct.Fetch(ctx, rawURL, destDir)
	if err == nil {
		log.WithFields(logrus.Fields{
			"stage":   types.StageDirectFetch,
			"method":  res.Method,
			"status":  res.HTTPStatus,
			"bytes":   res.ByteCount,
			"elapsed": time.Since(start).Round(time.Millisecond),
		}).Info("downloaded")
		out.Result = res
		return out
	}
	failure.Add(types.StageDirectFetch, err)
	log.WithError(err).WithField("stage", types.StageDirectFetch).Info("direct fetch failed")

	if !o.opts.UseFallback || o.fallback == nil || ctx.Err() != nil {
		out.Failure = failure
		return out
	}

	start = time.Now()
	o.notify(i, total, rawURL, types.ProgressBrowser)
	res, err = o.fallback.Fetch(ctx, rawURL, destDir)
	if err == nil {
		log.WithFields(logrus.Fields{
			"stage":   types.StageBrowserFallback,
			"method":  res.Method,
			"status":  res.HTTPStatus,
			"bytes":   res.ByteCount,
			"elapsed": time.Since(start).Round(time.Millisecond),
		}).Info("downloaded")
		out.Result = res
		return out
	}
	failure.Add(types.StageBrowserFallback, err)
	log.WithError(err).WithField("stage", types.StageBrowserFallback).Warn("browser fallback failed")

	out.Failure = failure
	return out
}

func (o *Orchestrator) notify(i, total int, rawURL string, stage types.ProgressStage) {
	if o.opts.Progress == nil {
		return
	}
	o.opts.Progress(types.Progress{Index: i, Total: total, URL: rawURL, Stage: stage})
}

// Summarize drains seq into a RunSummary. When each is set it is called
// with every outcome before it is counted.
func Summarize(seq iter.Seq[types.Outcome], each func(types.Outcome)) types.RunSummary {
	var s types.RunSummary
	for out := range seq {
		if each != nil {
			each(out)
		}
		s.Add(out)
	}
	return s
}
