package strategy

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/arrayforge/arrayforge/pkg/engine"
	"github.com/arrayforge/arrayforge/pkg/project"
)

// Result reports the outcome of one strategy run.
type Result struct {
	Strategy string
	Err      error
}

type job struct {
	strategy Strategy
	project  *project.Project
}

// Worker runs strategies sequentially on a single background
// goroutine. Submissions queue up to the configured depth; Stop cancels
// the running strategy cooperatively and discards the queue. Projects
// handed to the worker must not be touched until their result arrives.
type Worker struct {
	core    *project.Core
	logger  zerolog.Logger
	jobs    chan job
	results chan Result
	cancel  context.CancelFunc
	done    chan struct{}

	mu      sync.Mutex
	stopped bool
}

// NewWorker creates a worker with the given queue depth and starts its
// goroutine.
func NewWorker(core *project.Core, queueDepth int,
	logger zerolog.Logger) *Worker {

	if queueDepth < 1 {
		queueDepth = 1
	}

	ctx, cancel := context.WithCancel(context.Background())

	w := &Worker{
		core:    core,
		logger:  logger.With().Str("component", "strategy-worker").Logger(),
		jobs:    make(chan job, queueDepth),
		results: make(chan Result, queueDepth),
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	go w.run(ctx)

	return w
}

// Submit queues a strategy run. It fails when the worker has stopped or
// the queue is full.
func (w *Worker) Submit(s Strategy, proj *project.Project) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return engine.NewUsageError("the strategy worker has stopped", nil)
	}

	select {
	case w.jobs <- job{strategy: s, project: proj}:
		return nil
	default:
		return engine.NewUsageError("the strategy queue is full", nil)
	}
}

// Results returns the channel strategy outcomes arrive on. The channel
// closes after Stop once the running strategy has wound down.
func (w *Worker) Results() <-chan Result {
	return w.results
}

// Stop cancels the running strategy, discards queued work and waits
// for the worker goroutine to exit.
func (w *Worker) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		<-w.done
		return
	}
	w.stopped = true
	close(w.jobs)
	w.mu.Unlock()

	w.cancel()
	<-w.done
}

func (w *Worker) run(ctx context.Context) {
	defer close(w.done)
	defer close(w.results)

	for j := range w.jobs {
		if ctx.Err() != nil {
			return
		}

		w.logger.Info().
			Str("strategy", j.strategy.Name()).
			Msg("strategy run starting")

		err := j.strategy.Execute(ctx, w.core, j.project)

		if err != nil {
			w.logger.Error().
				Err(err).
				Str("strategy", j.strategy.Name()).
				Msg("strategy run failed")
		} else {
			w.logger.Info().
				Str("strategy", j.strategy.Name()).
				Msg("strategy run completed")
		}

		select {
		case w.results <- Result{Strategy: j.strategy.Name(), Err: err}:
		case <-ctx.Done():
			return
		}
	}
}
