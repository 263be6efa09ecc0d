package provider

import (
	"context"
	"fmt"
	"slices"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"reelscrape/internal/logging"
	"reelscrape/internal/media"
)

// RunOptions tune one Runner.Run call.
type RunOptions struct {
	// SourceIDs restricts the run to these sources, in rank order. Empty means all.
	SourceIDs []string
	// HeadersSupported is passed to every scraper through its Context.
	HeadersSupported bool
	// Progress receives per-source progress. May be nil.
	Progress func(sourceID string, percent int)
}

// RunOutput is the first stream a run produced and where it came from.
type RunOutput struct {
	SourceID string
	EmbedID  string // Empty when the source returned the stream directly
	Stream   media.StreamDescriptor
}

// Runner tries sources in rank order, then the embeds each source returns,
// until one yields a stream.
type Runner struct {
	registry *Registry
	log      logrus.FieldLogger
}

// NewRunner creates a Runner over registry.
func NewRunner(registry *Registry, log logrus.FieldLogger) *Runner {
	return &Runner{registry: registry, log: log.WithField("component", "runner")}
}

// Run resolves q. Provider failures are logged and skipped; only context
// cancellation aborts the run. When nothing yields a stream the error wraps
// media.ErrNotFound.
func (r *Runner) Run(ctx context.Context, q media.MediaQuery, opts RunOptions) (*RunOutput, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("invalid query: %w", err)
	}

	sources, err := r.selectSources(opts.SourceIDs)
	if err != nil {
		return nil, err
	}

	for _, src := range sources {
		id := src.Registration().ID
		log := r.log.WithField("provider", id)

		var sink ProgressFunc
		if opts.Progress != nil {
			sink = func(p int) { opts.Progress(id, p) }
		}
		sc := NewContext(opts.HeadersSupported, sink)

		res, err := Scrape(ctx, src, sc, q)
		if err != nil {
			if media.IsCancelled(err) || ctx.Err() != nil {
				return nil, err
			}
			logging.Failure(log, err, "source failed")
			continue
		}

		if len(res.Streams) > 0 {
			return &RunOutput{SourceID: id, Stream: res.Streams[0]}, nil
		}

		out, err := r.runEmbeds(ctx, sc, log, res.Embeds)
		if err != nil {
			return nil, err
		}
		if out != nil {
			out.SourceID = id
			return out, nil
		}
		log.Debug("source produced nothing playable")
	}

	return nil, media.NotFoundf("no provider could resolve %q", q.Title)
}

// runEmbeds returns the first stream produced by embeds, or nil when none
// produced one. Only cancellation is returned as an error.
func (r *Runner) runEmbeds(ctx context.Context, sc *Context, log logrus.FieldLogger, refs []media.EmbedRef) (*RunOutput, error) {
	for _, ref := range refs {
		e, ok := r.registry.Embed(ref.EmbedID)
		if !ok {
			log.WithField("embed", ref.EmbedID).Debug("no scraper for embed")
			continue
		}

		res, err := e.Scrape(ctx, sc, ref.URL)
		if err != nil {
			if media.IsCancelled(err) || ctx.Err() != nil {
				return nil, err
			}
			logging.Failure(log.WithField("embed", ref.EmbedID), err, "embed failed")
			continue
		}
		if len(res.Streams) > 0 {
			return &RunOutput{EmbedID: ref.EmbedID, Stream: res.Streams[0]}, nil
		}
	}
	return nil, nil
}

func (r *Runner) selectSources(ids []string) ([]Source, error) {
	all := r.registry.Sources()
	if len(ids) == 0 {
		return all, nil
	}

	out := lo.Filter(all, func(s Source, _ int) bool { return slices.Contains(ids, s.Registration().ID) })
	if len(out) == 0 {
		return nil, fmt.Errorf("no enabled source matches %v", ids)
	}
	return out, nil
}
