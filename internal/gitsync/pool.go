package gitsync

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"repovault/internal/provider"
)

// Request asks the pool to sync one repository.
type Request struct {
	Desc provider.Descriptor
}

// Outcome reports one finished sync attempt.
type Outcome struct {
	Desc   provider.Descriptor
	Action Action
	Err    error
}

// Pool runs a fixed number of sync workers fed through a request channel.
//
// Channel semantics:
//   - Start launches the workers; call it exactly once.
//   - Sends on Requests block while every worker is busy, which is the
//     backpressure the dispatcher relies on.
//   - Exactly one Outcome is delivered per accepted Request, in completion
//     order, except after the context is canceled.
//   - Close ends intake; once the workers drain, the outcomes channel is
//     closed.
//
// The pool does not de-duplicate destinations. Submitting the same
// destination while a sync for it is still running yields an Outcome
// wearing ErrPathInUse.
type Pool struct {
	syncer  Syncer
	logger  *zap.Logger
	workers int

	requests chan Request
	outcomes chan Outcome

	mu       sync.Mutex
	inFlight map[string]struct{}

	wg sync.WaitGroup
}

// NewPool builds a pool of workers around syncer.
func NewPool(syncer Syncer, workers int, logger *zap.Logger) (*Pool, error) {
	if syncer == nil {
		return nil, errors.New("gitsync: syncer is nil")
	}
	if workers <= 0 {
		return nil, fmt.Errorf("gitsync: workers must be >= 1, got %d", workers)
	}
	if logger == nil {
		return nil, errors.New("gitsync: logger is nil")
	}
	return &Pool{
		syncer:   syncer,
		logger:   logger.Named("pool"),
		workers:  workers,
		requests: make(chan Request),
		outcomes: make(chan Outcome, workers),
		inFlight: make(map[string]struct{}, workers),
	}, nil
}

// Start launches the workers and arranges for the outcomes channel to close
// once Close has been called and all workers have drained.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.work(ctx, i)
	}
	go func() {
		p.wg.Wait()
		close(p.outcomes)
	}()
}

// Requests is the intake channel. The caller submits work here and must
// call Close when no more requests are coming.
func (p *Pool) Requests() chan<- Request { return p.requests }

// Outcomes delivers one entry per accepted request. It is closed after
// Close once every worker has finished.
func (p *Pool) Outcomes() <-chan Outcome { return p.outcomes }

// Close ends intake. Outstanding syncs keep running to completion.
func (p *Pool) Close() { close(p.requests) }

func (p *Pool) work(ctx context.Context, id int) {
	defer p.wg.Done()
	logger := p.logger.With(zap.Int("worker", id))

	for req := range p.requests {
		out := Outcome{Desc: req.Desc}
		if err := p.claim(req.Desc.Dest); err != nil {
			out.Err = err
		} else {
			logger.Debug("syncing", zap.String("dest", req.Desc.Dest))
			out.Action, out.Err = p.syncer.Sync(ctx, req.Desc)
			p.release(req.Desc.Dest)
		}

		select {
		case p.outcomes <- out:
		case <-ctx.Done():
			logger.Debug("dropping outcome after cancellation",
				zap.String("dest", req.Desc.Dest))
		}
	}
}

func (p *Pool) claim(dest string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, busy := p.inFlight[dest]; busy {
		return fmt.Errorf("%w: %s", ErrPathInUse, dest)
	}
	p.inFlight[dest] = struct{}{}
	return nil
}

func (p *Pool) release(dest string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.inFlight, dest)
}
