// internal/feed/aggregate.go
//
// Feed assembly: fan out one fetch per selected source, normalize, merge.
//
// Context
// -------
// Sources are independent, so their fetches run concurrently; the page
// loop inside each stays sequential (cursor dependency).  Merge order is
// the selection order — per-source post lists are concatenated with no
// cross-source sort or dedup, since records carry no identity across
// sources.  The first non-nil profile in selection order wins.
//
// Failure policy
// --------------
// A source that fails mid-fetch contributes whatever pages it already
// produced; the other sources are unaffected.  Missing credential or an
// empty selection is the deliberate empty state, not an error — the
// widget must always render.
package feed

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gridfolio/gridfolio/internal/metrics"
	"github.com/gridfolio/gridfolio/internal/notion"
)

// Fetcher is the slice of the Notion client the aggregator needs.
type Fetcher interface {
	FetchAll(ctx context.Context, databaseID, credential string) ([]notion.Page, error)
}

// Feed is the assembled response body for one widget read.
type Feed struct {
	Profile *Profile `json:"profile"`
	Posts   []Post   `json:"posts"`
}

// Aggregator orchestrates fetch + normalize across a selected id set.
type Aggregator struct {
	fetcher Fetcher
	// Cap on concurrent source fetches; selections are small (plan
	// limits), this only guards the pro merge path.
	maxConcurrent int
}

// NewAggregator wires the aggregator to a fetcher.
func NewAggregator(f Fetcher) *Aggregator {
	return &Aggregator{fetcher: f, maxConcurrent: 8}
}

// Assemble fetches every selected database concurrently and merges the
// results.  It never returns an error: degraded inputs produce the empty
// feed shape.
func (a *Aggregator) Assemble(ctx context.Context, credential string, databaseIDs []string) *Feed {
	metrics.FeedRequestsTotal.Inc()
	start := time.Now()
	defer func() { metrics.FeedAssemblySeconds.Observe(time.Since(start).Seconds()) }()

	out := &Feed{Posts: []Post{}}
	if credential == "" || len(databaseIDs) == 0 {
		return out
	}

	// Indexed result slots keep merge order stable regardless of which
	// source finishes first.
	pagesBySource := make([][]notion.Page, len(databaseIDs))

	var g errgroup.Group
	g.SetLimit(a.maxConcurrent)
	for i, id := range databaseIDs {
		g.Go(func() error {
			pages, err := a.fetcher.FetchAll(ctx, id, credential)
			if err != nil {
				// Partial pages still count; the error stays local to
				// this source.
				zap.S().Warnw("source fetch degraded",
					"database_id", id,
					"pages", len(pages),
					"err", err,
				)
			}
			pagesBySource[i] = pages
			return nil
		})
	}
	_ = g.Wait()

	// Normalize sequentially in selection order so the first-profile-wins
	// rule is deterministic across merged sources.
	for _, pages := range pagesBySource {
		for _, page := range pages {
			post, profile := Normalize(page)
			if profile != nil {
				if out.Profile == nil {
					out.Profile = profile
				}
				// Later profile candidates are ignored, not posts.
				continue
			}
			out.Posts = append(out.Posts, *post)
		}
	}
	return out
}
