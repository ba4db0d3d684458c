package testsession

import (
	"context"
	"sync"

	"github.com/existflow/quizdesk/internal/logger"
	"github.com/existflow/quizdesk/internal/model"
)

// saveJob is one full answer set bound to the session it belongs to
type saveJob struct {
	seq       uint64
	sessionID string
	answers   []model.Answer
}

// saver is a latest-wins mailbox: at most one save is in flight, and when it
// returns only the newest pending answer set is sent next
type saver struct {
	save func(ctx context.Context, sessionID string, answers []model.Answer) error

	mu       sync.Mutex
	pending  *saveJob
	inflight bool
	idle     chan struct{} // closed when the mailbox drains
	latest   uint64        // seq of the newest enqueued set
	acked    uint64        // seq of the newest set the server accepted
	lastErr  error
}

func newSaver(save func(ctx context.Context, sessionID string, answers []model.Answer) error) *saver {
	idle := make(chan struct{})
	close(idle)
	return &saver{save: save, idle: idle}
}

// enqueue replaces any pending set with answers for sessionID
func (s *saver) enqueue(sessionID string, answers []model.Answer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest++
	s.pending = &saveJob{seq: s.latest, sessionID: sessionID, answers: answers}
	if !s.inflight {
		s.inflight = true
		s.idle = make(chan struct{})
		go s.run()
	}
}

func (s *saver) run() {
	for {
		s.mu.Lock()
		job := s.pending
		if job == nil {
			s.inflight = false
			close(s.idle)
			s.mu.Unlock()
			return
		}
		s.pending = nil
		s.mu.Unlock()

		err := s.save(context.Background(), job.sessionID, job.answers)

		s.mu.Lock()
		if err != nil {
			// The next save carries the full set again
			s.lastErr = err
			logger.Warn("Answer save failed",
				logger.F("session_id", job.sessionID),
				logger.F("answers", len(job.answers)),
				logger.F("error", err),
			)
		} else if job.seq > s.acked {
			s.acked = job.seq
		}
		s.mu.Unlock()
	}
}

// flush waits until nothing is queued or in flight
func (s *saver) flush(ctx context.Context) error {
	s.mu.Lock()
	idle := s.idle
	s.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// unsaved returns the last save error if the newest set was never accepted
func (s *saver) unsaved() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.acked >= s.latest {
		return nil
	}
	if s.lastErr != nil {
		return s.lastErr
	}
	return ErrAnswersNotSaved
}
