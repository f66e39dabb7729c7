package schedule

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/keshon/voxline/internal/engine"
	"github.com/keshon/voxline/pkg/retrylimit"
)

// ErrQueueFull reports that the dispatch queue rejected a job. Treated as a
// transient delivery failure: the caller logs it and moves on.
var ErrQueueFull = errors.New("dispatch queue full")

const queueSize = 64

type job struct {
	req     engine.DispatchRequest
	timeout time.Duration
}

// Pool delivers voice lines through a bounded worker pool with an adaptive
// global rate limit, shared by the reactive path and the scheduler so a
// burst of schedule fires cannot flood the transport. Delivery errors halve
// the send rate; recovery restores it.
type Pool struct {
	dispatcher engine.Dispatcher
	limiter    *retrylimit.AdaptiveLimiter
	jobs       chan job
	workers    int
	log        zerolog.Logger
	wg         sync.WaitGroup
}

// NewPool creates a pool with the given worker count and a sustained
// firesPerSecond ceiling across all workers.
func NewPool(dispatcher engine.Dispatcher, workers int, firesPerSecond float64, log zerolog.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{
		dispatcher: dispatcher,
		limiter:    retrylimit.NewAdaptiveLimiter(0.2, firesPerSecond),
		jobs:       make(chan job, queueSize),
		workers:    workers,
		log:        log,
	}
}

// Run consumes jobs until ctx is canceled, then drains nothing further and
// returns once in-flight deliveries finish.
func (p *Pool) Run(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
	<-ctx.Done()
	p.wg.Wait()
}

func (p *Pool) worker(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-p.jobs:
			if err := p.limiter.Wait(ctx); err != nil {
				return
			}
			p.deliver(ctx, j)
		}
	}
}

// deliver makes exactly one send attempt. A failed delivery is logged and
// dropped, never replayed, so an unreachable transport cannot cause repeat
// spam when it comes back.
func (p *Pool) deliver(ctx context.Context, j job) {
	jctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	if err := p.dispatcher.Dispatch(jctx, j.req); err != nil {
		// Transport trouble halves the send rate; a fatal error (missing
		// clip, bad channel) says nothing about transport health.
		var fatal *retrylimit.FatalError
		if !errors.As(err, &fatal) {
			p.limiter.Failure()
		}
		p.log.Error().Err(err).
			Str("session", j.req.SessionID).
			Str("voice_line", j.req.VoiceLineID).
			Float64("send_rate", p.limiter.CurrentLimit()).
			Msg("voice line delivery failed")
		return
	}
	p.limiter.Success()
	p.log.Info().
		Str("session", j.req.SessionID).
		Str("voice_line", j.req.VoiceLineID).
		Msg("voice line delivered")
}

// Enqueue submits a delivery without blocking. A full queue returns
// ErrQueueFull instead of stalling the scheduler tick.
func (p *Pool) Enqueue(req engine.DispatchRequest, timeout time.Duration) error {
	select {
	case p.jobs <- job{req: req, timeout: timeout}:
		return nil
	default:
		return ErrQueueFull
	}
}
