package vacancy

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/zhouzirui/interview-room/backend/internal/model/interview"
)

// MemoryStore implements Service with seeded vacancies, for local runs
// without a vacancy service.
type MemoryStore struct {
	mu      sync.RWMutex
	items   []interview.Vacancy
	results map[string][]Results
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied vacancies.
func NewMemoryStore(items []interview.Vacancy) *MemoryStore {
	copied := make([]interview.Vacancy, 0, len(items))
	for _, item := range items {
		copied = append(copied, item.Clone())
	}
	return &MemoryStore{items: copied, results: make(map[string][]Results)}
}

// List returns every vacancy.
func (s *MemoryStore) List() []interview.Vacancy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]interview.Vacancy, 0, len(s.items))
	for _, item := range s.items {
		out = append(out, item.Clone())
	}
	return out
}

// FindByID looks up a vacancy by identifier.
func (s *MemoryStore) FindByID(id string) (interview.Vacancy, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, item := range s.items {
		if item.ID == id {
			return item.Clone(), true
		}
	}
	return interview.Vacancy{}, false
}

// Get implements Service.
func (s *MemoryStore) Get(_ context.Context, id string) (interview.Vacancy, error) {
	v, ok := s.FindByID(id)
	if !ok {
		return interview.Vacancy{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return v, nil
}

// SubmitResults implements Service by keeping results in memory.
func (s *MemoryStore) SubmitResults(_ context.Context, results Results) error {
	if _, ok := s.FindByID(results.VacancyID); !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, results.VacancyID)
	}
	s.mu.Lock()
	s.results[results.VacancyID] = append(s.results[results.VacancyID], results)
	s.mu.Unlock()
	log.Printf("[vacancy] stored interview results vacancy=%s candidate=%s %s, metrics=%d",
		results.VacancyID, results.Name, results.Surname, len(results.Metrics))
	return nil
}

// Results returns the interview results submitted for a vacancy.
func (s *MemoryStore) Results(vacancyID string) []Results {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Results(nil), s.results[vacancyID]...)
}

// Seed provides the vacancies available without an external service.
func Seed() []interview.Vacancy {
	return []interview.Vacancy{
		{
			ID:           "go-backend",
			Profession:   "Software engineer",
			Position:     "Middle Go backend developer",
			Requirements: "Go, goroutines and channels, HTTP services, PostgreSQL, profiling",
			Questions:    "How do you avoid goroutine leaks? How would you design a rate limiter?",
			TaskIdeas: []string{
				"Implement a bounded worker pool",
				"Explain the Go memory model for channels",
				"Write an LRU cache",
			},
			Duration: 60 * time.Minute,
		},
		{
			ID:           "python-data",
			Profession:   "Data engineer",
			Position:     "Junior Python data engineer",
			Requirements: "Python, SQL, pandas, basic algorithms",
			TaskIdeas: []string{
				"Deduplicate records by key",
				"Explain window functions",
			},
			Duration: 45 * time.Minute,
		},
		{
			ID:           "frontend-js",
			Profession:   "Software engineer",
			Position:     "Senior JavaScript developer",
			Requirements: "JavaScript, event loop, browser rendering, accessibility",
			TaskIdeas: []string{
				"Debounce and throttle",
				"Explain microtasks versus macrotasks",
			},
			Duration: 90 * time.Minute,
		},
	}
}
