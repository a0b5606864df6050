package broadcast

import (
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"optimus/internal/models"
)

// RunProgress is the live-counter portion of a snapshot.
type RunProgress struct {
	RunID      uuid.UUID `json:"run_id"`
	TaskTypes  []string  `json:"task_types"`
	Total      int       `json:"total"`
	Processed  int       `json:"processed"`
	Failed     int       `json:"failed"`
	Status     string    `json:"status"`
	Percentage float64   `json:"percentage"`
}

// Snapshot is a point-in-time, read-only view of pipeline progress pushed to
// subscribers. RecentRuns carries a short history so a freshly connected
// observer can render past runs without a second query.
type Snapshot struct {
	Type       string                `json:"type"`
	CurrentRun *RunProgress          `json:"current_run,omitempty"`
	RecentRuns []*models.PipelineRun `json:"pipeline_runs,omitempty"`
	Timestamp  time.Time             `json:"timestamp"`
}

// SnapshotTypeProgress identifies regular and final progress snapshots.
const SnapshotTypeProgress = "pipeline_progress_update"

// Broadcaster is a transport-agnostic pub/sub hub. Publish fans a snapshot
// out to every live subscriber channel; the transport behind each channel
// (websocket, test collector) is the subscriber's concern.
type Broadcaster struct {
	mu      sync.RWMutex
	subs    map[uuid.UUID]chan Snapshot
	last    *Snapshot
	bufSize int
}

// New creates a Broadcaster whose subscriber channels buffer up to bufSize
// snapshots.
func New(bufSize int) *Broadcaster {
	if bufSize <= 0 {
		bufSize = 16
	}
	return &Broadcaster{
		subs:    make(map[uuid.UUID]chan Snapshot),
		bufSize: bufSize,
	}
}

// Subscribe registers a new subscriber and returns its handle and channel.
// The most recent snapshot, if any, is delivered immediately so the
// subscriber starts from current state rather than waiting for the next
// threshold crossing.
func (b *Broadcaster) Subscribe() (uuid.UUID, <-chan Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := uuid.New()
	ch := make(chan Snapshot, b.bufSize)
	if b.last != nil {
		ch <- *b.last
	}
	b.subs[id] = ch
	log.WithFields(log.Fields{"subscriber": id, "count": len(b.subs)}).Debug("Progress subscriber registered")
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Broadcaster) Unsubscribe(id uuid.UUID) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch, ok := b.subs[id]
	if !ok {
		return
	}
	delete(b.subs, id)
	close(ch)
	log.WithFields(log.Fields{"subscriber": id, "count": len(b.subs)}).Debug("Progress subscriber removed")
}

// Publish fans the snapshot out to all subscribers. The send is
// non-blocking: a subscriber that has fallen behind loses the snapshot
// rather than stalling the worker pool. The sends happen under the lock
// so Unsubscribe cannot close a channel between the map read and the
// send.
func (b *Broadcaster) Publish(s Snapshot) {
	if s.Timestamp.IsZero() {
		s.Timestamp = time.Now()
	}
	if s.Type == "" {
		s.Type = SnapshotTypeProgress
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.last = &s
	for _, ch := range b.subs {
		select {
		case ch <- s:
		default:
			log.Debug("Dropping progress snapshot for slow subscriber")
		}
	}
}

// SubscriberCount reports how many subscribers are registered.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
