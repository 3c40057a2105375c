package httpapi

import (
	"sync"
	"time"

	"github.com/eapache/queue"

	"spilld/internal/spill"
	"spilld/pkg/types"
)

const defaultEventLogSize = 256

// EventLog keeps the most recent manager events for GET /events.
type EventLog struct {
	mu   sync.Mutex
	size int
	q    *queue.Queue
	now  func() time.Time
}

// NewEventLog keeps up to size events; size <= 0 uses a default.
func NewEventLog(size int) *EventLog {
	if size <= 0 {
		size = defaultEventLogSize
	}
	return &EventLog{size: size, q: queue.New(), now: time.Now}
}

func (l *EventLog) Publish(e spill.Event) {
	rec := types.EventRecord{
		Name:     e.Name,
		BufferID: e.BufferID,
		Size:     e.Size,
		TimeUnix: l.now().Unix(),
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.q.Add(rec)
	for l.q.Length() > l.size {
		l.q.Remove()
	}
}

// Recent returns up to n events, oldest first. n <= 0 returns all of them.
func (l *EventLog) Recent(n int) []types.EventRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	total := l.q.Length()
	if n <= 0 || n > total {
		n = total
	}
	out := make([]types.EventRecord, 0, n)
	for i := total - n; i < total; i++ {
		out = append(out, l.q.Get(i).(types.EventRecord))
	}
	return out
}
