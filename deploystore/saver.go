package deploystore

import (
	"context"
	"log/slog"
	"sync"

	"github.com/gammazero/deque"
	"github.com/kapetan-io/tackle/set"
)

// ------------------------------------------------
// Saver
// ------------------------------------------------

type SaverOptions struct {
	// Workers is the number of goroutines serving the queue. Defaults to 1.
	Workers int
	Log     *slog.Logger
}

// Saver runs Store.Save calls on background workers so callers are not blocked
// by file IO. Object writes for different names run in parallel; tracker
// updates stay serialized per tracker file.
type Saver struct {
	store *Store
	log   *slog.Logger

	mu     sync.Mutex
	cond   *sync.Cond
	queue  *deque.Deque[*saveJob]
	closed bool
	wg     sync.WaitGroup
}

type saveJob struct {
	ctx        context.Context
	obj        any
	name       string
	persistent bool
	pending    *Pending
}

// Pending is the result of a submitted save.
type Pending struct {
	done chan struct{}
	err  error
}

// Wait blocks until the save has finished and returns its error.
func (p *Pending) Wait() error {
	<-p.done
	return p.err
}

// Done is closed once the save has finished.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

func NewSaver(s *Store, opts SaverOptions) *Saver {
	set.Default(&opts.Workers, 1)
	set.Default(&opts.Log, s.log)

	saver := &Saver{
		store: s,
		log:   opts.Log,
		queue: deque.New[*saveJob](0),
	}
	saver.cond = sync.NewCond(&saver.mu)

	saver.wg.Add(opts.Workers)
	for i := 0; i < opts.Workers; i++ {
		go func() {
			defer saver.wg.Done()
			saver.work()
		}()
	}
	return saver
}

// Submit queues a save. The returned Pending reports ErrClosed when the Saver
// has already been closed.
func (s *Saver) Submit(ctx context.Context, obj any, name string, persistentInBuild bool) *Pending {
	p := &Pending{done: make(chan struct{})}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		p.err = ErrClosed
		close(p.done)
		return p
	}
	s.queue.PushBack(&saveJob{ctx: ctx, obj: obj, name: name, persistent: persistentInBuild, pending: p})
	s.cond.Signal()
	return p
}

// Len is the number of queued saves not yet picked up by a worker.
func (s *Saver) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.Len()
}

// Close stops accepting saves, waits for every queued save to finish and
// stops the workers.
func (s *Saver) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.cond.Broadcast()
	s.mu.Unlock()

	s.wg.Wait()
	s.log.Debug("saver closed")
	return nil
}

func (s *Saver) work() {
	for {
		s.mu.Lock()
		for s.queue.Len() == 0 && !s.closed {
			s.cond.Wait()
		}
		if s.queue.Len() == 0 {
			s.mu.Unlock()
			return
		}
		job := s.queue.PopFront()
		s.mu.Unlock()

		job.pending.err = s.store.Save(job.ctx, job.obj, job.name, job.persistent)
		close(job.pending.done)
	}
}
