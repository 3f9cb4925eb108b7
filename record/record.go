// Package record turns test reports into case events and uploads them to a
// test session.
package record

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"

	"github.com/perfgo/subsetter/client"
	"github.com/perfgo/subsetter/model"
	"github.com/perfgo/subsetter/runner"
)

const DefaultPostChunk = 1000

// Client is the part of the service client the recorder needs.
type Client interface {
	Events(ctx context.Context, session string, payload *model.EventsPayload) error
}

// Options describe where and how events are uploaded.
type Options struct {
	// Session is builds/<build>/test_sessions/<id>.
	Session  string
	Group    string
	NoBuild  bool
	Metadata map[string]any
	// PostChunk is the maximum number of events per request.
	PostChunk int
}

// Stats summarizes one recording.
type Stats struct {
	Files    int
	Events   int
	Chunks   int
	Passed   int
	Failed   int
	Skipped  int
	Duration float64
	// NoMatch is the first pattern that matched no file. Nothing is
	// uploaded in that case.
	NoMatch string
}

type Recorder struct {
	logger  zerolog.Logger
	client  Client
	adapter runner.Adapter
	opts    Options
}

func New(logger zerolog.Logger, c Client, adapter runner.Adapter, opts Options) *Recorder {
	if opts.PostChunk <= 0 {
		opts.PostChunk = DefaultPostChunk
	}
	return &Recorder{logger: logger, client: c, adapter: adapter, opts: opts}
}

// Record parses every report found under paths and uploads the events.
// Reports are all parsed before the first upload, so a malformed report
// means nothing is uploaded.
func (r *Recorder) Record(ctx context.Context, paths []string) (Stats, error) {
	files, noMatch, err := r.Expand(paths)
	if err != nil {
		return Stats{}, err
	}
	if noMatch != "" {
		// a build that failed before running any test ends up here, which
		// is not an error of the recording
		r.logger.Warn().Msgf("No matches found: %s", noMatch)
		return Stats{NoMatch: noMatch}, nil
	}

	events, err := r.Parse(files)
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{Files: len(files), Events: len(events)}
	for _, e := range events {
		switch e.Status {
		case model.StatusPassed:
			stats.Passed++
		case model.StatusFailed:
			stats.Failed++
		case model.StatusSkipped:
			stats.Skipped++
		}
		stats.Duration += e.Duration
	}

	if len(events) == 0 {
		r.logger.Warn().Int("files", len(files)).Msg("No test cases found in the reports")
		return stats, nil
	}

	chunks, err := r.Upload(ctx, events)
	stats.Chunks = chunks
	return stats, err
}

// Expand resolves globs and directories into report files. When a pattern
// matches nothing it is returned as noMatch.
func (r *Recorder) Expand(paths []string) (files []string, noMatch string, err error) {
	for _, p := range paths {
		matches, err := doublestar.FilepathGlob(p)
		if err != nil {
			return nil, "", model.Usagef("invalid report path %q: %v", p, err)
		}
		if len(matches) == 0 {
			return nil, p, nil
		}

		for _, m := range matches {
			info, err := os.Stat(m)
			if err != nil {
				return nil, "", fmt.Errorf("failed to stat %s: %w", m, err)
			}
			if !info.IsDir() {
				files = append(files, m)
				continue
			}

			found, err := doublestar.Glob(os.DirFS(m), "**/"+r.adapter.ReportPattern(), doublestar.WithFilesOnly())
			if err != nil {
				return nil, "", fmt.Errorf("failed to scan %s: %w", m, err)
			}
			r.logger.Debug().Str("dir", m).Str("pattern", r.adapter.ReportPattern()).Int("reports", len(found)).Msg("Scanned report directory")
			for _, f := range found {
				files = append(files, filepath.Join(m, filepath.FromSlash(f)))
			}
		}
	}
	return files, "", nil
}

// Parse reads all reports and pools their events.
func (r *Recorder) Parse(files []string) ([]model.CaseEvent, error) {
	var events []model.CaseEvent
	for _, f := range files {
		evs, err := r.adapter.ParseReport(f)
		if err != nil {
			return nil, fmt.Errorf("failed to parse report %s: %w", f, err)
		}
		r.logger.Debug().Str("file", f).Int("events", len(evs)).Msg("Parsed report")
		events = append(events, evs...)
	}
	return events, nil
}

// Upload sends the events in chunks of at most PostChunk events, one request
// at a time. It returns the number of chunks sent.
func (r *Recorder) Upload(ctx context.Context, events []model.CaseEvent) (int, error) {
	sent := 0
	for _, chunk := range Chunk(events, r.opts.PostChunk) {
		err := r.client.Events(ctx, r.opts.Session, &model.EventsPayload{
			Events:     chunk,
			TestRunner: r.adapter.Name(),
			Group:      r.opts.Group,
			NoBuild:    r.opts.NoBuild,
			Metadata:   r.opts.Metadata,
		})
		if errors.Is(err, client.ErrDryRun) {
			continue
		}
		if err != nil {
			return sent, fmt.Errorf("failed to record %d events: %w", len(chunk), err)
		}
		sent++
		r.logger.Debug().Int("events", len(chunk)).Int("chunk", sent).Msg("Events recorded")
	}
	return sent, nil
}

// Chunk splits events into consecutive slices of at most size elements.
func Chunk(events []model.CaseEvent, size int) [][]model.CaseEvent {
	if size <= 0 {
		size = DefaultPostChunk
	}
	chunks := make([][]model.CaseEvent, 0, (len(events)+size-1)/size)
	for start := 0; start < len(events); start += size {
		end := min(start+size, len(events))
		chunks = append(chunks, events[start:end])
	}
	return chunks
}
