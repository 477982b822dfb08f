// Package producer discovers article URLs for the worker fleet. The
// primary source is a web archive's CDX index; when the archive stops
// yielding it latches onto scraping the portals directly.
package producer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/gustavoa6791/k8s-colcap-news/internal/config"
	"github.com/gustavoa6791/k8s-colcap-news/internal/store"
	"github.com/gustavoa6791/k8s-colcap-news/internal/types"
)

// Producer runs the discovery loop: walk the (index, domain) grid, push
// deduplicated tasks, and respect queue backpressure so workers set the
// pace.
type Producer struct {
	cfg     *config.Config
	st      store.Store
	archive *ArchiveDiscoverer
	portal  *PortalDiscoverer
	indexes []ArchiveIndex
	logger  *slog.Logger

	// zeroYields counts consecutive grid positions with no new tasks.
	// Once it reaches MaxArchiveFailures the producer latches onto the
	// portal fallback and stays there.
	zeroYields     int
	portalFallback bool
}

// New creates a producer. The index list must already be resolved; a
// producer without indexes cannot run the archive path.
func New(cfg *config.Config, st store.Store, indexes []ArchiveIndex, logger *slog.Logger) *Producer {
	return &Producer{
		cfg:     cfg,
		st:      st,
		archive: NewArchiveDiscoverer(cfg.Archive, logger),
		portal:  NewPortalDiscoverer(cfg.Producer, cfg.Archive.FetchTimeout, logger),
		indexes: indexes,
		logger:  logger.With("component", "producer"),
	}
}

// Run executes the discovery loop until the context is cancelled.
func (p *Producer) Run(ctx context.Context) error {
	if len(p.indexes) == 0 {
		return types.ErrNoIndexes
	}

	domains := p.cfg.Producer.TargetDomains
	gridLen := int64(len(p.indexes) * len(domains))

	p.logger.Info("producer starting",
		"indexes", len(p.indexes), "domains", len(domains))
	p.record(ctx, "info", fmt.Sprintf("discovery started: %d indexes x %d domains", len(p.indexes), len(domains)))

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := p.waitForDemand(ctx); err != nil {
			return err
		}

		if p.portalFallback {
			if err := p.runPortalCycle(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				p.pauseOnError(ctx, err)
			}
			continue
		}

		pos, err := p.st.GetInt(ctx, store.KeyProducerPosition)
		if err != nil {
			p.pauseOnError(ctx, err)
			continue
		}
		if pos >= gridLen {
			p.record(ctx, "info", "archive grid exhausted, restarting from the top")
			if err := p.st.SetInt(ctx, store.KeyProducerPosition, 0); err != nil {
				p.pauseOnError(ctx, err)
				continue
			}
			if err := sleepCtx(ctx, p.cfg.Producer.RestartPause); err != nil {
				return err
			}
			continue
		}

		index := p.indexes[pos/int64(len(domains))]
		domain := domains[pos%int64(len(domains))]

		pushed, err := p.runArchivePosition(ctx, index, domain)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.pauseOnError(ctx, err)
			continue
		}

		if err := p.st.SetInt(ctx, store.KeyProducerPosition, pos+1); err != nil {
			p.logger.Warn("could not advance position cursor", "error", err)
		}

		p.trackYield(ctx, pushed)

		delay := p.cfg.Producer.DelayBetweenDomains
		if (pos+1)%int64(len(domains)) == 0 {
			delay = p.cfg.Producer.DelayBetweenIndexes
		}
		if err := sleepCtx(ctx, delay); err != nil {
			return err
		}
	}
}

// waitForDemand blocks while the queue holds enough work. Workers drain
// the queue; the producer only tops it up below the threshold.
func (p *Producer) waitForDemand(ctx context.Context) error {
	for {
		n, err := p.st.QueueLen(ctx, store.KeyQueue)
		if err != nil {
			p.logger.Warn("queue length check failed", "error", err)
			return nil // proceed, the push will surface a real outage
		}
		if n <= p.cfg.Producer.QueueLowThreshold {
			return nil
		}
		p.logger.Debug("queue above threshold, waiting",
			"depth", n, "threshold", p.cfg.Producer.QueueLowThreshold)
		if err := sleepCtx(ctx, p.cfg.Producer.WaitCheckInterval); err != nil {
			return err
		}
	}
}

// runArchivePosition queries one (index, domain) pair and pushes the new
// tasks. Returns the number actually enqueued after dedup.
func (p *Producer) runArchivePosition(ctx context.Context, index ArchiveIndex, domain string) (int, error) {
	tasks, err := p.archive.Discover(ctx, index, domain)
	if err != nil {
		return 0, err
	}

	pushed, err := p.enqueue(ctx, tasks)
	if err != nil {
		return pushed, err
	}

	p.record(ctx, "info", fmt.Sprintf("%s %s: %d found, %d enqueued", index.ID, domain, len(tasks), pushed))
	return pushed, nil
}

// runPortalCycle scrapes the live portals once and enqueues the yield.
func (p *Producer) runPortalCycle(ctx context.Context) error {
	tasks, err := p.portal.Discover(ctx, p.cfg.Producer.TargetDomains)
	if err != nil {
		return err
	}

	pushed, err := p.enqueue(ctx, tasks)
	if err != nil {
		return err
	}

	p.record(ctx, "info", fmt.Sprintf("portal cycle: %d found, %d enqueued", len(tasks), pushed))

	// A productive scan rescans sooner than an empty one.
	pause := p.cfg.Producer.RestartPause
	if pushed > 0 {
		pause = p.cfg.Producer.ErrorPause
	}
	return sleepCtx(ctx, pause)
}

// enqueue pushes tasks that have not been seen before. The URL goes into
// the processed set before the queue push, so a crash between the two
// loses the task rather than duplicating it.
func (p *Producer) enqueue(ctx context.Context, tasks []types.Task) (int, error) {
	pushed := 0
	for i := range tasks {
		task := &tasks[i]

		known, err := p.st.SetContains(ctx, store.KeyProcessedURLs, task.URL)
		if err != nil {
			return pushed, err
		}
		if known {
			continue
		}
		if err := p.st.SetAdd(ctx, store.KeyProcessedURLs, task.URL); err != nil {
			return pushed, err
		}

		payload, err := task.Encode()
		if err != nil {
			p.logger.Warn("task encode failed", "url", task.URL, "error", err)
			continue
		}
		if err := p.st.PushHead(ctx, store.KeyQueue, payload); err != nil {
			return pushed, err
		}
		pushed++
	}
	return pushed, nil
}

// trackYield applies the fallback latch: three consecutive empty grid
// positions mean the archive has nothing left for us.
func (p *Producer) trackYield(ctx context.Context, pushed int) {
	if pushed > 0 {
		p.zeroYields = 0
		return
	}
	p.zeroYields++
	if p.zeroYields >= p.cfg.Producer.MaxArchiveFailures && !p.portalFallback {
		p.portalFallback = true
		p.logger.Warn("archive yield exhausted, switching to portal scraping",
			"consecutive_empty", p.zeroYields)
		p.record(ctx, "warn", "archive exhausted, switched to live portal scraping")
	}
}

// pauseOnError logs, records, and sleeps the configured error pause.
func (p *Producer) pauseOnError(ctx context.Context, err error) {
	p.logger.Error("discovery cycle failed", "error", err)
	p.record(ctx, "error", err.Error())
	_ = sleepCtx(ctx, p.cfg.Producer.ErrorPause)
}

// record appends to the bounded operational log stream the dashboard
// tails. Failures here are never worth stopping discovery for.
func (p *Producer) record(ctx context.Context, level, msg string) {
	entry := types.NewLogEntry(level, msg)
	b, err := json.Marshal(entry)
	if err != nil {
		return
	}
	if err := p.st.TrimmedPush(ctx, store.KeyProducerLogs, string(b), store.MaxProducerLogs); err != nil {
		p.logger.Debug("log stream push failed", "error", err)
	}
}
