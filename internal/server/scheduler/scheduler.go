// Package scheduler mediates every database operation. Writes go through a
// single writer lane (a mailbox drained by one goroutine, one transaction per
// job, in submission order); reads run on a bounded FIFO pool of reader
// connections; fire-and-forget tasks run under a bounded worker budget.
//
// Work that has not started when its caller's context is cancelled is
// dropped. Work that has started always runs to completion.
package scheduler

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/eardogger/internal/common"
	"github.com/dmitrijs2005/eardogger/internal/dbx"
	"github.com/dmitrijs2005/eardogger/internal/logging"
	"golang.org/x/sync/semaphore"
)

// ErrClosed is returned for work submitted after Close.
var ErrClosed = errors.New("scheduler closed")

// Job is a unit of database work. db is a transaction for writes and the
// reader pool for reads.
type Job func(ctx context.Context, db dbx.DBTX) error

// Observer receives queue wait times per lane ("read", "write", "task").
type Observer interface {
	ObserveQueueWait(lane string, wait time.Duration)
}

type Options struct {
	Readers      int
	QueueDepth   int
	Workers      int
	ReadAttempts int
	RetryBackoff time.Duration
	Observer     Observer
	Logger       logging.Logger
}

func (o *Options) withDefaults() {
	if o.Readers < 1 {
		o.Readers = 1
	}
	if o.QueueDepth < 1 {
		o.QueueDepth = 1
	}
	if o.Workers < 1 {
		o.Workers = 1
	}
	if o.ReadAttempts < 1 {
		o.ReadAttempts = 3
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 20 * time.Millisecond
	}
	if o.Logger == nil {
		o.Logger = logging.Nop()
	}
}

const (
	jobQueued int32 = iota
	jobRunning
	jobAbandoned
)

type writeJob struct {
	ctx      context.Context
	fn       Job
	noTx     bool
	enqueued time.Time
	state    atomic.Int32
	done     chan error
}

type Scheduler struct {
	writer  *sql.DB
	reader  *sql.DB
	opts    Options
	readers *semaphore.Weighted
	workers *semaphore.Weighted

	mailbox  chan *writeJob
	quit     chan struct{}
	laneDone chan struct{}

	mu      sync.Mutex
	closing bool
	tasks   sync.WaitGroup
	once    sync.Once
}

// New starts the writer lane. writer must allow a single connection.
func New(writer, reader *sql.DB, opts Options) *Scheduler {
	opts.withDefaults()
	s := &Scheduler{
		writer:   writer,
		reader:   reader,
		opts:     opts,
		readers:  semaphore.NewWeighted(int64(opts.Readers)),
		workers:  semaphore.NewWeighted(int64(opts.Workers)),
		mailbox:  make(chan *writeJob, opts.QueueDepth),
		quit:     make(chan struct{}),
		laneDone: make(chan struct{}),
	}
	go s.lane()
	return s
}

func (s *Scheduler) observe(lane string, since time.Time) {
	if s.opts.Observer != nil {
		s.opts.Observer.ObserveQueueWait(lane, time.Since(since))
	}
}

func (s *Scheduler) lane() {
	defer close(s.laneDone)
	for {
		select {
		case job := <-s.mailbox:
			s.runWrite(job)
		case <-s.quit:
			for {
				select {
				case job := <-s.mailbox:
					s.runWrite(job)
				default:
					return
				}
			}
		}
	}
}

func (s *Scheduler) runWrite(job *writeJob) {
	if !job.state.CompareAndSwap(jobQueued, jobRunning) {
		return
	}
	if err := job.ctx.Err(); err != nil {
		job.done <- err
		return
	}
	s.observe("write", job.enqueued)

	ctx := context.WithoutCancel(job.ctx)
	err := func() (err error) {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("write job panicked: %v", p)
			}
		}()
		if job.noTx {
			return job.fn(ctx, s.writer)
		}
		return dbx.WithTx(ctx, s.writer, nil, job.fn)
	}()
	if err != nil && dbx.IsBusy(err) {
		err = fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
	}
	job.done <- err
}

func (s *Scheduler) submit(ctx context.Context, fn Job, noTx bool) error {
	job := &writeJob{ctx: ctx, fn: fn, noTx: noTx, enqueued: time.Now(), done: make(chan error, 1)}

	select {
	case <-s.quit:
		return ErrClosed
	default:
	}

	select {
	case s.mailbox <- job:
	case <-ctx.Done():
		return ctx.Err()
	case <-s.quit:
		return ErrClosed
	}

	select {
	case err := <-job.done:
		return err
	case <-ctx.Done():
		if job.state.CompareAndSwap(jobQueued, jobAbandoned) {
			return ctx.Err()
		}
	case <-s.laneDone:
		if job.state.CompareAndSwap(jobQueued, jobAbandoned) {
			return ErrClosed
		}
	}
	// the lane already picked the job up; it finishes regardless
	return <-job.done
}

// Write runs fn in one transaction on the writer lane and waits for it.
// Reads fn performs through db observe its own writes. Write errors are
// never retried.
func (s *Scheduler) Write(ctx context.Context, fn Job) error {
	return s.submit(ctx, fn, false)
}

// Maintenance runs fn on the writer lane outside any transaction, for
// statements such as VACUUM that refuse to run inside one.
func (s *Scheduler) Maintenance(ctx context.Context, fn Job) error {
	return s.submit(ctx, fn, true)
}

// Read runs fn on a reader connection once a pool slot frees up. Slots are
// granted in FIFO order. Lock contention is retried a bounded number of
// times and then reported as common.ErrStoreUnavailable.
func (s *Scheduler) Read(ctx context.Context, fn Job) error {
	select {
	case <-s.quit:
		return ErrClosed
	default:
	}

	queued := time.Now()
	if err := s.readers.Acquire(ctx, 1); err != nil {
		return err
	}
	defer s.readers.Release(1)
	s.observe("read", queued)

	ctx = context.WithoutCancel(ctx)
	for attempt := 1; ; attempt++ {
		err := fn(ctx, s.reader)
		if err == nil || !dbx.IsBusy(err) {
			return err
		}
		if attempt >= s.opts.ReadAttempts {
			return fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
		}
		time.Sleep(s.opts.RetryBackoff * time.Duration(attempt))
	}
}

// Go runs fn in the background under the worker budget. It reports false if
// the scheduler is shutting down and the task was not accepted.
func (s *Scheduler) Go(name string, fn func(ctx context.Context) error) bool {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		return false
	}
	s.tasks.Add(1)
	s.mu.Unlock()

	queued := time.Now()
	go func() {
		defer s.tasks.Done()
		ctx := context.Background()
		_ = s.workers.Acquire(ctx, 1)
		defer s.workers.Release(1)
		s.observe("task", queued)

		defer func() {
			if p := recover(); p != nil {
				s.opts.Logger.Error(ctx, "background task panicked", "task", name, "panic", p)
			}
		}()
		if err := fn(ctx); err != nil {
			s.opts.Logger.Warn(ctx, "background task failed", "task", name, "error", err)
		}
	}()
	return true
}

// Close stops accepting background tasks, waits for the accepted ones, then
// drains the writer lane. It is safe to call more than once.
func (s *Scheduler) Close() {
	s.once.Do(func() {
		s.mu.Lock()
		s.closing = true
		s.mu.Unlock()

		s.tasks.Wait()
		close(s.quit)
		<-s.laneDone
	})
}
