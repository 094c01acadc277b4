// Package telemetry keeps a bounded in-memory history of search executions.
package telemetry

import (
	"sync"
	"time"

	"github.com/kailas-cloud/shopsight/internal/domain"
)

// DefaultCapacity is the number of events kept.
const DefaultCapacity = 50

// Export is the downloadable telemetry snapshot.
type Export struct {
	ExportedAt time.Time               `json:"exportedAt"`
	Count      int                     `json:"count"`
	Events     []domain.TelemetryEvent `json:"events"`
}

// Service is a fixed-capacity ring buffer of telemetry events. Safe for concurrent use.
type Service struct {
	mu   sync.RWMutex
	buf  []domain.TelemetryEvent
	next int // slot of the next write
	size int
	now  func() time.Time
}

// New creates a sink holding at most capacity events. Non-positive capacity uses DefaultCapacity.
func New(capacity int) *Service {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Service{
		buf: make([]domain.TelemetryEvent, capacity),
		now: time.Now,
	}
}

// Capacity returns the maximum number of events kept.
func (s *Service) Capacity() int { return len(s.buf) }

// Record stores an event, evicting the oldest one when full. A zero timestamp is set to now.
func (s *Service) Record(e domain.TelemetryEvent) {
	if e.Timestamp.IsZero() {
		e.Timestamp = s.now().UTC()
	}
	e = e.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.buf[s.next] = e
	s.next = (s.next + 1) % len(s.buf)
	if s.size < len(s.buf) {
		s.size++
	}
}

// Events returns copies of all events, newest first.
func (s *Service) Events() []domain.TelemetryEvent {
	return s.List(0)
}

// List returns up to limit events, newest first. Non-positive limit returns all.
func (s *Service) List(limit int) []domain.TelemetryEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := s.size
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]domain.TelemetryEvent, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, s.buf[s.slot(i)].Clone())
	}
	return out
}

// Len returns the number of stored events.
func (s *Service) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.size
}

// Clear removes all events.
func (s *Service) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	clear(s.buf)
	s.next, s.size = 0, 0
}

// AddFeedback attaches a rating to the event of requestID. Returns domain.ErrNotFound when the
// event is unknown or already evicted.
func (s *Service) AddFeedback(requestID string, fb domain.Feedback) error {
	if !fb.Rating.Valid() {
		return domain.NewError(domain.ErrValidation, "rating must be thumbs_up or thumbs_down", nil)
	}
	if fb.At.IsZero() {
		fb.At = s.now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := 0; i < s.size; i++ {
		e := &s.buf[s.slot(i)]
		if e.RequestID == requestID {
			e.Feedback = append(e.Feedback, fb)
			return nil
		}
	}
	return domain.NewError(domain.ErrNotFound, "telemetry event not found", nil)
}

// Export snapshots all events for download.
func (s *Service) Export() Export {
	events := s.Events()
	return Export{
		ExportedAt: s.now().UTC(),
		Count:      len(events),
		Events:     events,
	}
}

// slot maps the i-th newest event onto its buffer index. Callers hold the lock.
func (s *Service) slot(i int) int {
	return (s.next - 1 - i + 2*len(s.buf)) % len(s.buf)
}
