package interview

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	domain "github.com/zhouzirui/interview-room/backend/internal/model/interview"
	"github.com/zhouzirui/interview-room/backend/internal/observability"
	"github.com/zhouzirui/interview-room/backend/internal/service/vacancy"
)

// StopRoom finalizes the room: raw metrics, the two assessment phases and
// the report hand-off, then eviction. Stopping an unknown or already
// stopped room succeeds without doing anything.
//
// Stop waits for an in-flight phase stream to end. Callers of the streaming
// operations must drain or Close the returned reader; a reader left open
// longer than the drain timeout is abandoned and its text is never committed.
func (s *Service) StopRoom(ctx context.Context, id string) error {
	return s.stop(ctx, id, "client")
}

func (s *Service) stop(ctx context.Context, id, trigger string) error {
	e, err := s.registry.get(id)
	if err != nil {
		log.Printf("[room] stop for room=%s: not found", id)
		return nil
	}
	if !e.stopped.CompareAndSwap(false, true) {
		return nil
	}
	e.disarm()

	// Finalization runs to completion once claimed, even if the caller goes away.
	ctx = context.WithoutCancel(ctx)
	waitCtx, cancel := context.WithTimeout(ctx, s.drainTimeout)
	err = e.acquire(waitCtx)
	cancel()
	if err != nil {
		// A stream reader was never drained or closed. Finalize from a
		// snapshot; its late commit lands on an evicted room.
		log.Printf("[room] stop for room=%s: open stream not released after %s, finalizing anyway", id, s.drainTimeout)
	} else {
		defer e.release()
	}
	defer func() {
		s.registry.remove(id)
		observability.RoomClosed(trigger)
	}()

	log.Printf("[room] stopping room=%s trigger=%s", id, trigger)
	current := e.snapshot()
	raw := rawMetrics(&current, s.now())
	e.update(func(room *domain.Room) {
		room.Raw = raw
		room.State = domain.StateStopped
		room.Report = append(room.Report, raw.Lines()...)
	})

	var errs []error
	assessment, err := s.phases.Assessment(ctx, current.Vacancy, current.History, raw)
	if err != nil {
		errs = append(errs, fmt.Errorf("assessment: %w", err))
	} else {
		e.update(func(room *domain.Room) {
			room.Report = append(room.Report, assessment.Lines()...)
		})
		verdict, err := s.phases.Verdict(ctx, current.Vacancy, current.History, raw, assessment)
		if err != nil {
			errs = append(errs, fmt.Errorf("verdict: %w", err))
		} else {
			e.update(func(room *domain.Room) {
				room.Report = append(room.Report, verdict.Lines()...)
			})
		}
	}
	e.update(func(room *domain.Room) {
		if room.CodeStats.Attempts > 0 {
			room.Report = append(room.Report, room.CodeStats.Lines()...)
		}
	})

	final := e.snapshot()
	for _, line := range final.Report {
		log.Printf("[room] room=%s metric: %s", id, line)
	}

	if err := s.vacancies.SubmitResults(ctx, vacancy.ResultsFromRoom(final)); err != nil {
		errs = append(errs, fmt.Errorf("submit results: %w", err))
	}

	if len(errs) > 0 {
		err := errors.Join(errs...)
		log.Printf("[room] stopped room=%s with errors: %v", id, err)
		return err
	}
	log.Printf("[room] stopped room=%s", id)
	return nil
}

// rawMetrics computes the locally measured block. Answers are candidate
// messages classified as answers or solutions; time per task divides the
// span up to the last task by that count.
func rawMetrics(room *domain.Room, now time.Time) domain.RawMetrics {
	answers := 0
	for _, msg := range room.History {
		if msg.Role == domain.RoleCandidate && (msg.Type == domain.TypeAnswer || msg.Type == domain.TypeSolution) {
			answers++
		}
	}

	raw := domain.RawMetrics{
		TimeSpent:          now.Sub(room.CreatedAt),
		AnswersCount:       answers,
		CopyPasteSuspicion: room.Raw.CopyPasteSuspicion,
	}
	if answers > 0 {
		raw.TimePerTask = room.LastTaskAt.Sub(room.CreatedAt) / time.Duration(answers)
	}
	return raw
}
