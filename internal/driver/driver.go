// Package driver orchestrates a backup run. It streams descriptors out of
// every configured provider, drops duplicates and blacklisted destinations,
// feeds the rest to a sync pool, and tallies what happened.
package driver

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"repovault/internal/gitsync"
	"repovault/internal/output"
	"repovault/internal/provider"
)

// Options tune a run. A zero ErrorThreshold never aborts.
type Options struct {
	Workers        int
	ErrorThreshold int
	Blacklist      []string
	DryRun         bool
}

// Failure pairs a descriptor with the error that sank it.
type Failure struct {
	Desc provider.Descriptor
	Err  error
}

// Result is what a finished run looks like.
type Result struct {
	Stats        Stats
	Failures     []Failure
	ProviderErrs []error
	Aborted      bool
}

// ExitCode maps the result onto the process exit code: 0 for a clean run,
// 1 when anything failed but the run completed, 2 when the failure
// threshold aborted it.
func (r *Result) ExitCode() int {
	switch {
	case r.Aborted:
		return 2
	case len(r.Failures) > 0 || len(r.ProviderErrs) > 0:
		return 1
	default:
		return 0
	}
}

// Driver wires providers to a sync pool for one run.
type Driver struct {
	providers []provider.Provider
	pool      *gitsync.Pool
	sink      output.Sink
	logger    *zap.Logger
	opts      Options
	blacklist *Blacklist
}

// New builds a driver. The pool may be nil only for dry runs, which never
// dispatch.
func New(providers []provider.Provider, pool *gitsync.Pool, sink output.Sink, logger *zap.Logger, opts Options) (*Driver, error) {
	if pool == nil && !opts.DryRun {
		return nil, errors.New("driver: pool is nil")
	}
	if sink == nil {
		return nil, errors.New("driver: sink is nil")
	}
	if logger == nil {
		return nil, errors.New("driver: logger is nil")
	}
	return &Driver{
		providers: providers,
		pool:      pool,
		sink:      sink,
		logger:    logger.Named("driver"),
		opts:      opts,
		blacklist: NewBlacklist(opts.Blacklist),
	}, nil
}

// Run drives one backup to completion and reports what happened. The
// returned error is non-nil only when ctx was canceled; every other problem
// lands in the Result.
//
// Discovery and dispatch overlap: descriptors are handed to the pool as
// they arrive, and outcomes are collected while waiting for a free worker.
// When the failure threshold trips, discovery is canceled and no further
// repository is dispatched, but syncs already running are awaited and
// counted.
func (d *Driver) Run(ctx context.Context) (*Result, error) {
	names := make([]string, 0, len(d.providers))
	for _, p := range d.providers {
		names = append(names, p.Name())
	}
	if len(names) == 0 {
		d.logger.Warn("no providers configured, nothing to back up")
	}
	d.emit(output.RunStarted(names, d.opts.Workers))

	discCtx, cancelDiscovery := context.WithCancel(ctx)
	defer cancelDiscovery()

	// Fan every provider into one stream. A provider failing mid-stream
	// must not cancel its siblings, so the group collects errors on the
	// side instead of propagating them.
	merged := make(chan provider.Descriptor)
	var (
		perrMu       sync.Mutex
		providerErrs []error
	)
	var g errgroup.Group
	for _, p := range d.providers {
		g.Go(func() error {
			descs, errc := p.Repositories(discCtx)
			for desc := range descs {
				select {
				case merged <- desc:
				case <-discCtx.Done():
					// Drop it and drain; the provider stops on the same
					// context.
				}
			}
			if err := <-errc; err != nil && !errors.Is(err, context.Canceled) {
				perrMu.Lock()
				providerErrs = append(providerErrs, err)
				perrMu.Unlock()
			}
			return nil
		})
	}
	discoveryDone := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(merged)
		close(discoveryDone)
	}()

	var (
		stats    Stats
		failures []Failure
		aborted  bool
		canceled bool
	)
	seen := make(map[string]struct{})

	var requests chan<- gitsync.Request
	var outcomes <-chan gitsync.Outcome
	if !d.opts.DryRun {
		d.pool.Start(ctx)
		requests = d.pool.Requests()
		outcomes = d.pool.Outcomes()
	}

	handleOutcome := func(out gitsync.Outcome) {
		if out.Err == nil {
			stats.Succeeded++
			d.logger.Info("synced",
				zap.String("dest", out.Desc.Dest),
				zap.String("action", string(out.Action)))
			d.emit(output.RepoSynced(out.Desc.Dest, out.Desc.URL, string(out.Action)))
			return
		}
		stats.Failed++
		failures = append(failures, Failure{Desc: out.Desc, Err: out.Err})
		d.logger.Warn("sync failed", zap.String("dest", out.Desc.Dest), zap.Error(out.Err))
		d.emit(output.RepoFailed(out.Desc.Dest, out.Desc.URL, out.Err))

		if d.opts.ErrorThreshold > 0 && stats.Failed >= d.opts.ErrorThreshold && !aborted {
			aborted = true
			d.logger.Error("failure threshold reached, aborting discovery",
				zap.Int("failed", stats.Failed),
				zap.Int("threshold", d.opts.ErrorThreshold))
			cancelDiscovery()
		}
	}

dispatch:
	for desc := range merged {
		if ctx.Err() != nil {
			canceled = true
			break
		}
		stats.Total++
		if _, dup := seen[desc.Dest]; dup {
			stats.Ignored++
			d.logger.Debug("duplicate destination ignored", zap.String("dest", desc.Dest))
			continue
		}
		seen[desc.Dest] = struct{}{}
		if d.blacklist.Matches(desc.Dest) {
			stats.Ignored++
			d.logger.Info("blacklisted", zap.String("dest", desc.Dest))
			continue
		}
		if d.opts.DryRun {
			stats.Planned++
			d.emit(output.RepoPlanned(desc.Dest, desc.URL))
			continue
		}

		// Submit, and keep collecting outcomes while all workers are busy;
		// anything else would deadlock the pool against the dispatcher.
		for {
			select {
			case requests <- gitsync.Request{Desc: desc}:
			case out := <-outcomes:
				handleOutcome(out)
				if aborted {
					// The descriptor in hand was never dispatched; uncount
					// it so the tallies stay balanced.
					stats.Total--
					break dispatch
				}
				continue
			case <-ctx.Done():
				canceled = true
				stats.Total--
				break dispatch
			}
			break
		}
	}

	// Intake is over. Wait out the workers and collect what is in flight.
	if !d.opts.DryRun {
		d.pool.Close()
		for out := range outcomes {
			handleOutcome(out)
		}
	}
	<-discoveryDone
	if ctx.Err() != nil {
		canceled = true
	}

	perrMu.Lock()
	collected := providerErrs
	perrMu.Unlock()
	for _, err := range collected {
		d.logger.Warn("provider finished with error", zap.Error(err))
	}

	result := &Result{
		Stats:        stats,
		Failures:     failures,
		ProviderErrs: collected,
		Aborted:      aborted,
	}

	if !canceled && !stats.Consistent() {
		// Accounting bug if it ever fires.
		d.logger.Error("statistics do not balance",
			zap.Int("total", stats.Total),
			zap.Int("ignored", stats.Ignored),
			zap.Int("planned", stats.Planned),
			zap.Int("succeeded", stats.Succeeded),
			zap.Int("failed", stats.Failed))
	}

	d.logger.Info("run finished",
		zap.Int("total", stats.Total),
		zap.Int("ignored", stats.Ignored),
		zap.Int("succeeded", stats.Succeeded),
		zap.Int("failed", stats.Failed),
		zap.Bool("aborted", aborted))

	d.emit(output.RunFinished(output.Summary{
		Total:     stats.Total,
		Ignored:   stats.Ignored,
		Planned:   stats.Planned,
		Succeeded: stats.Succeeded,
		Failed:    stats.Failed,
		Aborted:   aborted,
		ExitCode:  result.ExitCode(),
	}))

	if canceled {
		return result, ctx.Err()
	}
	return result, nil
}

func (d *Driver) emit(e output.Event) {
	if err := d.sink.Write(e); err != nil {
		d.logger.Warn("output sink error", zap.Error(err))
	}
}
