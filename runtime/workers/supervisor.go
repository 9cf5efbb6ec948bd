package workers

import (
	"chat-presence/contract"
	"chat-presence/errors"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const defaultRestartInterval = 200 * time.Millisecond

// Supervisor owns the lifecycle of the long-running parts of the server:
// the HTTP listener and the presence reporter.
// Each worker runs in its own goroutine, a panic or an error restarts it
// after restartInterval, a nil return stops it for good.
type Supervisor struct {
	Cancel          context.CancelFunc
	wg              *sync.WaitGroup
	log             *slog.Logger
	restartInterval time.Duration
	workers         []contract.Worker
}

func NewSupervisor(log *slog.Logger, restartInterval time.Duration) *Supervisor {
	if restartInterval <= 0 {
		restartInterval = defaultRestartInterval
	}
	return &Supervisor{wg: &sync.WaitGroup{}, log: log, restartInterval: restartInterval}
}

// Run blocks until every worker returned.
// Cancelling the parent context, or calling Stop, stops them all.
func (s *Supervisor) Run(ctx context.Context) {
	// 1. Local cancellation tied to the parent ctx: the parent cancelling
	// stops us, Stop only stops our workers.
	supervisedCtx, cancel := context.WithCancel(ctx)
	s.Cancel = cancel
	defer s.Cancel()

	// 2. One goroutine per worker, then wait for all of them
	for _, worker := range s.workers {
		s.Start(supervisedCtx, worker)
	}
	s.wg.Wait()
}

func (s *Supervisor) Add(worker ...contract.Worker) contract.ISupervisor {
	s.workers = append(s.workers, worker...)
	return s
}

// Start runs a worker under supervision.
// A failure in one worker never stops the supervisor itself.
func (s *Supervisor) Start(ctx context.Context, worker contract.Worker) {
	s.wg.Add(1)
	workerName := contract.GetWorkerName(worker)

	go func() {
		defer s.wg.Done()

		for {
			if ctx.Err() != nil {
				s.log.Info(fmt.Sprintf("Stopping : %s", workerName))
				return
			}

			// A panic becomes an error so only this worker restarts
			err := func() (err error) {
				defer func() {
					if r := recover(); r != nil {
						err = fmt.Errorf("%w: %v", errors.ErrWorkerPanic, r)
					}
				}()
				return worker.Run(ctx)
			}()

			if err == nil {
				// Finished cleanly, never restarted
				s.log.Info(fmt.Sprintf("Worker finished : %s", workerName))
				return
			}

			if ctx.Err() != nil {
				s.log.Info("Worker stopped (context canceled)", "name", workerName)
				return
			}

			s.log.Warn("Worker crashed, restarting", "name", workerName, "error", err)
			select {
			case <-ctx.Done():
				// Shutdown wins over the restart delay
				return
			case <-time.After(s.restartInterval):
				// Still running, restart the worker
			}
		}
	}()
}

// Stop cancels every supervised worker; Run returns once they are all done.
func (s *Supervisor) Stop() {
	if s.Cancel != nil {
		s.Cancel()
	}
}
