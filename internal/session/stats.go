// Package session holds the running prediction counters of a dashboard
// session. Counters live in memory only and are owned by the UI layer; the
// loader and the prediction adapter never touch them.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"msgclf/internal/ml"
)

// Counts is a snapshot of session counters. Flagged, Unflagged and Failed
// always add up to Total.
type Counts struct {
	Total     int `json:"total"`
	Flagged   int `json:"flagged"`
	Unflagged int `json:"unflagged"`
	Failed    int `json:"failed"`
}

// Add returns the element-wise sum of c and o.
func (c Counts) Add(o Counts) Counts {
	return Counts{
		Total:     c.Total + o.Total,
		Flagged:   c.Flagged + o.Flagged,
		Unflagged: c.Unflagged + o.Unflagged,
		Failed:    c.Failed + o.Failed,
	}
}

// Summarize counts results by outcome under the given label map.
func Summarize(results []ml.PredictionResult, labels ml.LabelMap) Counts {
	failed := lo.CountBy(results, func(r ml.PredictionResult) bool { return !r.OK() })
	flagged := lo.CountBy(results, func(r ml.PredictionResult) bool { return r.OK() && labels.IsFlagged(r.Label) })
	return Counts{
		Total:     len(results),
		Flagged:   flagged,
		Unflagged: len(results) - flagged - failed,
		Failed:    failed,
	}
}

// Stats is the mutable counter set of one session.
type Stats struct {
	mu       sync.Mutex
	counts   Counts
	lastSeen time.Time
}

// NewStats returns zeroed counters.
func NewStats() *Stats {
	return &Stats{lastSeen: time.Now()}
}

// Record adds results to the counters and returns the new snapshot.
func (s *Stats) Record(results []ml.PredictionResult, labels ml.LabelMap) Counts {
	delta := Summarize(results, labels)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts = s.counts.Add(delta)
	s.lastSeen = time.Now()
	return s.counts
}

// Snapshot returns the current counters.
func (s *Stats) Snapshot() Counts {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts
}

// Reset zeroes the counters.
func (s *Stats) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts = Counts{}
}

func (s *Stats) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastSeen)
}

func (s *Stats) touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = time.Now()
}

// DefaultMaxSessions bounds a registry created by NewRegistry.
const DefaultMaxSessions = 10000

// Registry maps session ids to their counters. When full, creating a session
// evicts the one idle the longest.
type Registry struct {
	mu          sync.Mutex
	sessions    map[string]*Stats
	maxSessions int
}

// NewRegistry creates an empty registry holding up to DefaultMaxSessions.
func NewRegistry() *Registry {
	return NewRegistryWithLimit(DefaultMaxSessions)
}

// NewRegistryWithLimit creates an empty registry holding up to limit sessions.
func NewRegistryWithLimit(limit int) *Registry {
	if limit <= 0 {
		limit = DefaultMaxSessions
	}
	return &Registry{sessions: make(map[string]*Stats), maxSessions: limit}
}

// Get returns the counters of session id, creating a new session when id is
// empty or unknown. The returned id is the one to hand back to the client.
func (r *Registry) Get(id string) (*Stats, string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[id]; ok && id != "" {
		s.touch()
		return s, id
	}

	if len(r.sessions) >= r.maxSessions {
		r.evictIdlest()
	}

	id = uuid.NewString()
	s := NewStats()
	r.sessions[id] = s
	return s, id
}

func (r *Registry) evictIdlest() {
	now := time.Now()
	var (
		victim string
		idle   time.Duration = -1
	)
	for id, s := range r.sessions {
		if d := s.idleSince(now); d > idle {
			victim, idle = id, d
		}
	}
	delete(r.sessions, victim)
}

// Lookup returns the counters of an existing session.
func (r *Registry) Lookup(id string) (*Stats, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Expire drops sessions idle for longer than idle and returns how many were removed.
func (r *Registry) Expire(idle time.Duration) int {
	now := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	stale := lo.Filter(lo.Keys(r.sessions), func(id string, _ int) bool {
		return r.sessions[id].idleSince(now) > idle
	})
	for _, id := range stale {
		delete(r.sessions, id)
	}
	return len(stale)
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
