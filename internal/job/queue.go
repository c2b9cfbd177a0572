package job

import (
	"context"
	"sync"

	"github.com/sesimlab/counselvoice/internal/apperrors"
	"github.com/sesimlab/counselvoice/internal/config"
	"github.com/sesimlab/counselvoice/internal/logger"
)

// Queue is a bounded in-process task queue drained by a fixed worker pool.
// Enqueue never blocks; a full queue is reported to the caller so the upload
// is not silently dropped.
type Queue struct {
	tasks   chan string
	workers int
	proc    *Processor
	log     *logger.Logger

	startOnce sync.Once
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

func NewQueue(cfg config.JobsConfig, proc *Processor, log *logger.Logger) *Queue {
	return &Queue{
		tasks:   make(chan string, cfg.QueueSize),
		workers: cfg.Workers,
		proc:    proc,
		log:     log.WithComponent("jobqueue"),
	}
}

// Start launches the worker pool. Workers exit when ctx is canceled or the
// queue is closed.
func (q *Queue) Start(ctx context.Context) {
	q.startOnce.Do(func() {
		q.log.Info("starting workers", logger.Fields("workers", q.workers, "queue_size", cap(q.tasks)))
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go q.worker(ctx)
		}
	})
}

func (q *Queue) worker(ctx context.Context) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case uploadID, ok := <-q.tasks:
			if !ok {
				return
			}
			q.proc.Process(ctx, uploadID)
		}
	}
}

// Enqueue submits an upload id for background processing. It returns an
// error when the queue is full so the handler can refuse the request
// instead of letting the ledger row sit queued forever.
func (q *Queue) Enqueue(uploadID string) error {
	select {
	case q.tasks <- uploadID:
		return nil
	default:
		return apperrors.Overloaded("transcription queue").WithDetail("capacity", cap(q.tasks))
	}
}

// Stop closes the queue and waits for in-flight work to finish.
func (q *Queue) Stop() {
	q.stopOnce.Do(func() {
		close(q.tasks)
		q.wg.Wait()
		q.log.Info("workers drained")
	})
}
