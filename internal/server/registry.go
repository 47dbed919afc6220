package server

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/torarnehave1/aichat-vegvisr-sub000/internal/transcribe"
)

// Event types streamed to websocket subscribers.
const (
	EventStatus   = "status"
	EventProgress = "progress"
	EventSegment  = "segment"
	EventDone     = "done"
	EventFailed   = "failed"
)

// eventBuffer is the per-subscriber channel capacity. A subscriber that falls
// further behind than this loses events rather than stalling the pipeline.
const eventBuffer = 64

// maxFinishedJobs bounds how many terminal jobs the registry retains for the
// list and detail endpoints. Nothing is persisted: once a finished job ages
// past the cap it is gone. Jobs still running are never pruned.
const maxFinishedJobs = 32

// Event is one update about a running job.
type Event struct {
	Type    string              `json:"type"`
	JobID   string              `json:"job_id"`
	Status  transcribe.Status   `json:"status,omitempty"`
	Message string              `json:"message,omitempty"`
	Current int                 `json:"current,omitempty"`
	Total   int                 `json:"total,omitempty"`
	Segment *transcribe.Segment `json:"segment,omitempty"`
	Result  *transcribe.Result  `json:"result,omitempty"`
	Error   string              `json:"error,omitempty"`
}

// Entry is the registry's view of one job.
type Entry struct {
	ID        string            `json:"id"`
	CreatedAt time.Time         `json:"created_at"`
	FileName  string            `json:"file_name"`
	Size      int64             `json:"size"`
	Language  string            `json:"language,omitempty"`
	Status    transcribe.Status `json:"status"`
	Message   string            `json:"message,omitempty"`
	Current   int               `json:"current"`
	Total     int               `json:"total"`
	Mode      transcribe.Mode   `json:"mode,omitempty"`

	// Result is set once the job reaches StatusDone, Error once it fails.
	Result *transcribe.Result `json:"result,omitempty"`
	Error  string             `json:"error,omitempty"`
}

// Registry tracks jobs in memory and fans job events out to subscribers.
// Retention of finished jobs is bounded by maxFinishedJobs. All methods are
// safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	subs    map[string]map[chan Event]struct{}
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]*Entry),
		subs:    make(map[string]map[chan Event]struct{}),
	}
}

// Create registers a new pending job and returns its entry snapshot.
func (r *Registry) Create(fileName string, size int64, language string) Entry {
	entry := &Entry{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		FileName:  fileName,
		Size:      size,
		Language:  language,
		Status:    transcribe.StatusPending,
	}

	r.mu.Lock()
	r.entries[entry.ID] = entry
	r.pruneLocked()
	r.mu.Unlock()

	return *entry
}

// pruneLocked drops the oldest terminal entries beyond maxFinishedJobs.
// Callers must hold the write lock.
func (r *Registry) pruneLocked() {
	var finished []*Entry
	for _, entry := range r.entries {
		if entry.Status.Terminal() {
			finished = append(finished, entry)
		}
	}
	if len(finished) <= maxFinishedJobs {
		return
	}

	sort.Slice(finished, func(i, j int) bool {
		return finished[i].CreatedAt.Before(finished[j].CreatedAt)
	})
	for _, entry := range finished[:len(finished)-maxFinishedJobs] {
		delete(r.entries, entry.ID)
	}
}

// Get returns a snapshot of one entry.
func (r *Registry) Get(id string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[id]
	if !ok {
		return Entry{}, false
	}
	return *entry, true
}

// List returns snapshots of all entries, newest first.
func (r *Registry) List() []Entry {
	r.mu.RLock()
	entries := make([]Entry, 0, len(r.entries))
	for _, entry := range r.entries {
		entries = append(entries, *entry)
	}
	r.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].ID > entries[j].ID
		}
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
	return entries
}

// ActiveForFile reports whether a non-terminal job exists for fileName.
// Duplicate submissions of a file already in flight are rejected upstream.
func (r *Registry) ActiveForFile(fileName string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, entry := range r.entries {
		if entry.FileName == fileName && !entry.Status.Terminal() {
			return true
		}
	}
	return false
}

// Update mutates one entry under the registry lock.
func (r *Registry) Update(id string, fn func(*Entry)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry, ok := r.entries[id]; ok {
		fn(entry)
	}
}

// Subscribe returns a channel of events for one job and a cancel function.
// The channel is closed after a terminal event or on cancel.
func (r *Registry) Subscribe(id string) (<-chan Event, func()) {
	ch := make(chan Event, eventBuffer)

	r.mu.Lock()
	if r.subs[id] == nil {
		r.subs[id] = make(map[chan Event]struct{})
	}
	r.subs[id][ch] = struct{}{}
	r.mu.Unlock()

	cancel := func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if set, ok := r.subs[id]; ok {
			if _, live := set[ch]; live {
				delete(set, ch)
				close(ch)
			}
			if len(set) == 0 {
				delete(r.subs, id)
			}
		}
	}
	return ch, cancel
}

// Publish delivers an event to every subscriber of the job. Slow subscribers
// miss events instead of blocking. Terminal events close all subscriptions.
func (r *Registry) Publish(ev Event) {
	terminal := ev.Type == EventDone || ev.Type == EventFailed

	r.mu.Lock()
	defer r.mu.Unlock()

	set := r.subs[ev.JobID]
	for ch := range set {
		select {
		case ch <- ev:
		default:
		}
		if terminal {
			delete(set, ch)
			close(ch)
		}
	}
	if terminal {
		delete(r.subs, ev.JobID)
	}
}
