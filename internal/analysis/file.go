package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/sawring/sawring/internal/classifier"
	"github.com/sawring/sawring/internal/conf"
	"github.com/sawring/sawring/internal/errors"
	"github.com/sawring/sawring/internal/events"
	"github.com/sawring/sawring/internal/logger"
	"github.com/sawring/sawring/internal/pipeline"
	"github.com/sawring/sawring/internal/sources"
)

// Output formats accepted by File.
const (
	FormatTable = "table"
	FormatJSON  = "json"
)

// FileResult summarizes an offline run.
type FileResult struct {
	Path       string         `json:"path"`
	Duration   time.Duration  `json:"duration"` // audio time covered
	BytesFed   uint64         `json:"bytes_fed"`
	Frames     uint64         `json:"frames"`
	Inferences uint64         `json:"inferences"`
	Skipped    uint64         `json:"skipped"`
	Events     []events.Event `json:"events"`
}

// FileOptions configure File. A nil Classifier loads the configured model.
type FileOptions struct {
	Path       string
	Format     string
	Classifier classifier.Classifier
}

// File replays a WAV recording through the pipeline as fast as it can be
// read. Inference ticks run on the recording's own clock, so results do
// not depend on machine speed. Events are written to out as they occur,
// stamped with their offset from the start of the file.
func File(ctx context.Context, settings *conf.Settings, opts FileOptions, out io.Writer) (*FileResult, error) {
	log := GetLogger().With(logger.String("path", opts.Path))

	switch opts.Format {
	case "", FormatTable, FormatJSON:
	default:
		return nil, errors.Newf("unsupported output format %q", opts.Format).
			Component("analysis").
			Category(errors.CategoryValidation).
			Build()
	}

	sampleRate := settings.Frame.SampleRate
	src := sources.NewFileSource(opts.Path, sampleRate, settings.FrameSizeBytes(), false)

	epoch := time.Unix(0, 0).UTC()
	clock := epoch
	session, err := pipeline.New(pipeline.Options{
		Settings:   settings,
		Source:     src,
		Classifier: opts.Classifier,
		Now:        func() time.Time { return clock },
	})
	if err != nil {
		return nil, err
	}
	defer session.Close()

	if err := src.Connect(ctx); err != nil {
		return nil, err
	}
	defer src.Close()

	printer := newEventPrinter(out, opts.Format, epoch)
	result := &FileResult{Path: opts.Path}

	interval := settings.Classifier.Interval
	next := epoch.Add(interval)
	width := max(1, settings.Frame.SampleWidth)
	var samples int64

	buf := make([]byte, src.ReadSize())
	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		n, readErr := src.Read(buf)
		if n > 0 {
			session.Ingest(buf[:n])
			samples += int64(n / width)
			clock = epoch.Add(time.Duration(samples) * time.Second / time.Duration(sampleRate))

			for !next.After(clock) {
				evs, err := session.Infer(next)
				if err != nil && !isExpectedSkip(err) {
					log.Warn("inference failed", logger.Error(err), logger.Time("at", next))
				}
				for _, ev := range evs {
					printer.print(ev)
				}
				result.Events = append(result.Events, evs...)
				next = next.Add(interval)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return result, readErr
		}
	}

	st := session.Status()
	result.Duration = clock.Sub(epoch)
	result.BytesFed = st.BytesFed
	result.Frames = st.FramesEmitted
	result.Inferences = st.Inferences
	result.Skipped = st.SkippedInferences

	if err := printer.flush(); err != nil {
		return result, err
	}
	log.Info("file analysis complete",
		logger.Duration("audio", result.Duration),
		logger.Uint64("frames", result.Frames),
		logger.Uint64("inferences", result.Inferences),
		logger.Int("events", len(result.Events)))
	return result, nil
}

func isExpectedSkip(err error) bool {
	return errors.IsCategory(err, errors.CategoryFeatureDegenerate) ||
		errors.IsCategory(err, errors.CategoryClassifierUnavailable)
}

// eventPrinter writes events as an aligned table or as JSON lines.
type eventPrinter struct {
	epoch time.Time
	json  *json.Encoder
	table *tabwriter.Writer
	rows  int
}

func newEventPrinter(out io.Writer, format string, epoch time.Time) *eventPrinter {
	p := &eventPrinter{epoch: epoch}
	if format == FormatJSON {
		p.json = json.NewEncoder(out)
	} else {
		p.table = tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	}
	return p
}

func (p *eventPrinter) print(ev events.Event) {
	if p.json != nil {
		_ = p.json.Encode(ev)
		return
	}
	if p.rows == 0 {
		fmt.Fprintln(p.table, "OFFSET\tKIND\tLABEL\tCONFIDENCE\tACTION\tDURATION")
	}
	p.rows++

	duration := "-"
	if ev.Kind == events.KindEnd {
		duration = ev.Duration.String()
	}
	action := ev.Action
	if action == "" {
		action = "-"
	}
	fmt.Fprintf(p.table, "%.3fs\t%s\t%s\t%.0f%%\t%s\t%s\n",
		ev.Timestamp.Sub(p.epoch).Seconds(), ev.Kind, ev.Label, ev.Confidence*100, action, duration)
}

func (p *eventPrinter) flush() error {
	if p.table == nil {
		return nil
	}
	if p.rows == 0 {
		fmt.Fprintln(p.table, "no gestures detected")
	}
	return p.table.Flush()
}
