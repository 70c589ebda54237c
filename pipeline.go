package assistant

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// PaperFetcher searches one external paper source.
type PaperFetcher interface {
	Name() PaperSource
	Fetch(ctx context.Context, keywords []string, limit int) ([]Candidate, error)
}

// RelevanceScorer rates a candidate against the thesis topic.
type RelevanceScorer interface {
	Score(ctx context.Context, req ScoreRequest) (Assessment, error)
}

// ScanOptions configures one pipeline run.
type ScanOptions struct {
	// Topic and Keywords come from the settings record
	Topic    string
	Keywords []string

	// MaxPerSource bounds each source's result count
	MaxPerSource int

	// Threshold is the minimum accepted score
	Threshold float64

	// MaxScored bounds scoring calls per run; 0 means MaxPerSource per source
	MaxScored int

	// Progress is called after each scored candidate
	Progress func(done, total int)
}

// ScanResult counts what a run did.
type ScanResult struct {
	RunID      string
	Fetched    int
	Duplicates int
	Scored     int
	Accepted   int
	Rejected   int
	Failed     int
	Skipped    int

	// SourceErrors holds one entry per failed source
	SourceErrors []error
}

// PipelineOptions configures NewPipeline.
type PipelineOptions struct {
	Logger *zap.Logger
	Now    func() time.Time

	// RequestTimeout bounds each scoring attempt. Zero keeps the default.
	RequestTimeout time.Duration

	// Retry overrides the per-call timeout and retry policy
	Retry *retryPolicy
}

// Pipeline fetches, deduplicates, scores and stores candidate papers.
type Pipeline struct {
	store    *Store
	fetchers []PaperFetcher
	scorer   RelevanceScorer
	log      *zap.Logger
	now      func() time.Time
	retry    retryPolicy
}

// NewPipeline creates a pipeline over the given sources and scorer.
func NewPipeline(store *Store, fetchers []PaperFetcher, scorer RelevanceScorer, opts *PipelineOptions) *Pipeline {
	if opts == nil {
		opts = &PipelineOptions{}
	}
	p := &Pipeline{
		store:    store,
		fetchers: fetchers,
		scorer:   scorer,
		log:      nopIfNil(opts.Logger),
		now:      opts.Now,
		retry:    defaultRetry,
	}
	if opts.Retry != nil {
		p.retry = *opts.Retry
	}
	if opts.RequestTimeout > 0 {
		p.retry.Timeout = opts.RequestTimeout
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p
}

// Run executes one scan. A failing source or scoring call is logged and
// skipped; only store failures abort the run.
func (p *Pipeline) Run(ctx context.Context, opts ScanOptions) (*ScanResult, error) {
	if len(opts.Keywords) == 0 {
		return nil, &ConfigError{Field: "paper_keywords", Reason: "at least one keyword is required"}
	}
	if opts.MaxPerSource <= 0 {
		opts.MaxPerSource = 30
	}
	res := &ScanResult{RunID: uuid.NewString()}
	log := p.log.With(zap.String("run_id", res.RunID))
	log.Info("paper scan started", zap.Strings("keywords", opts.Keywords), zap.Int("sources", len(p.fetchers)))

	candidates := p.fetchAll(ctx, log, opts, res)
	res.Fetched = len(candidates)

	fresh, err := p.dedup(ctx, candidates)
	if err != nil {
		return nil, err
	}
	res.Duplicates = res.Fetched - len(fresh)

	budget := opts.MaxScored
	if budget <= 0 {
		budget = opts.MaxPerSource * max(len(p.fetchers), 1)
	}
	if len(fresh) > budget {
		res.Skipped = len(fresh) - budget
		fresh = fresh[:budget]
	}

	for i, c := range fresh {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := p.process(ctx, log, opts, c, res); err != nil {
			return res, err
		}
		if opts.Progress != nil {
			opts.Progress(i+1, len(fresh))
		}
	}

	if err := p.store.SetStateTime(ctx, StateLastScan, p.now()); err != nil {
		return res, err
	}
	log.Info("paper scan finished",
		zap.Int("fetched", res.Fetched),
		zap.Int("duplicates", res.Duplicates),
		zap.Int("scored", res.Scored),
		zap.Int("accepted", res.Accepted),
		zap.Int("rejected", res.Rejected),
		zap.Int("failed", res.Failed),
		zap.Int("skipped", res.Skipped))
	return res, nil
}

// fetchAll queries every source concurrently. Results keep source order.
func (p *Pipeline) fetchAll(ctx context.Context, log *zap.Logger, opts ScanOptions, res *ScanResult) []Candidate {
	results := make([][]Candidate, len(p.fetchers))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for i, f := range p.fetchers {
		g.Go(func() error {
			var got []Candidate
			err := p.retry.do(gctx, func(ctx context.Context) error {
				var err error
				got, err = f.Fetch(ctx, opts.Keywords, opts.MaxPerSource)
				return err
			})
			if err != nil {
				err = &ExternalServiceError{Service: string(f.Name()), Op: "fetch", Err: err}
				log.Warn("paper source failed, skipping", zap.String("source", string(f.Name())), zap.Error(err))
				mu.Lock()
				res.SourceErrors = append(res.SourceErrors, err)
				mu.Unlock()
				return nil
			}
			if len(got) > opts.MaxPerSource {
				got = got[:opts.MaxPerSource]
			}
			log.Debug("fetched candidates", zap.String("source", string(f.Name())), zap.Int("count", len(got)))
			results[i] = got
			return nil
		})
	}
	// Workers never return errors; failures are recorded above.
	_ = g.Wait()

	var all []Candidate
	for _, r := range results {
		all = append(all, r...)
	}
	return all
}

// dedup drops candidates repeated in the batch or already stored.
func (p *Pipeline) dedup(ctx context.Context, candidates []Candidate) ([]Candidate, error) {
	seen := make(map[string]bool, len(candidates))
	bySource := make(map[PaperSource][]string)
	var unique []Candidate
	for _, c := range candidates {
		c.ExternalID = strings.TrimSpace(c.ExternalID)
		if c.ExternalID == "" || seen[c.key()] {
			continue
		}
		seen[c.key()] = true
		unique = append(unique, c)
		bySource[c.Source] = append(bySource[c.Source], c.ExternalID)
	}

	known := make(map[PaperSource]map[string]bool, len(bySource))
	for source, ids := range bySource {
		k, err := p.store.KnownPaperIDs(ctx, source, ids)
		if err != nil {
			return nil, fmt.Errorf("dedup: %w", err)
		}
		known[source] = k
	}

	fresh := unique[:0]
	for _, c := range unique {
		if !known[c.Source][c.ExternalID] {
			fresh = append(fresh, c)
		}
	}
	return fresh, nil
}

// process scores one candidate and stores it when it clears the threshold.
func (p *Pipeline) process(ctx context.Context, log *zap.Logger, opts ScanOptions, c Candidate, res *ScanResult) error {
	var a Assessment
	err := p.retry.do(ctx, func(ctx context.Context) error {
		var err error
		a, err = p.scorer.Score(ctx, ScoreRequest{
			ThesisTopic: opts.Topic,
			Keywords:    opts.Keywords,
			Title:       c.Title,
			Abstract:    c.Abstract,
		})
		return err
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		res.Failed++
		log.Warn("scoring failed, skipping paper",
			zap.String("source", string(c.Source)),
			zap.String("external_id", c.ExternalID),
			zap.Error(err))
		return nil
	}
	res.Scored++

	if math.IsNaN(a.Score) || a.Score < opts.Threshold {
		res.Rejected++
		log.Debug("paper below threshold",
			zap.String("external_id", c.ExternalID),
			zap.Float64("score", a.Score))
		return nil
	}

	paper := &Paper{
		Source:       c.Source,
		ExternalID:   c.ExternalID,
		Title:        c.Title,
		Abstract:     c.Abstract,
		URL:          c.URL,
		Authors:      c.Authors,
		PublishedAt:  c.PublishedAt,
		Score:        a.Score,
		Summary:      a.Summary,
		Tags:         strings.Join(a.Tags, ", "),
		DiscoveredAt: p.now(),
	}
	inserted, err := p.store.InsertPaper(ctx, paper)
	if err != nil {
		return err
	}
	if inserted {
		res.Accepted++
		log.Info("paper accepted",
			zap.Int64("paper_id", paper.ID),
			zap.String("source", string(c.Source)),
			zap.Float64("score", a.Score),
			zap.String("title", c.Title))
	} else {
		res.Duplicates++
	}
	return nil
}

// ScanFromSettings runs the pipeline with the current settings record.
func (p *Pipeline) ScanFromSettings(ctx context.Context, st Settings, cfg *Config) (*ScanResult, error) {
	return p.Run(ctx, ScanOptions{
		Topic:        st.ThesisTopic,
		Keywords:     st.Keywords,
		MaxPerSource: cfg.MaxPapersPerDay,
		Threshold:    cfg.ScoreThreshold,
		MaxScored:    cfg.MaxPapersPerDay,
	})
}
