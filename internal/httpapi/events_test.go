package httpapi

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"spilld/internal/spill"
	"spilld/pkg/types"
)

func TestEventLogKeepsMostRecent(t *testing.T) {
	log := NewEventLog(3)
	log.now = func() time.Time { return time.Unix(42, 0) }
	for i := 1; i <= 5; i++ {
		log.Publish(spill.Event{Name: spill.EventSpill, BufferID: uint64(i), Size: int64(i * 8)})
	}
	got := log.Recent(0)
	if len(got) != 3 {
		t.Fatalf("len=%d, want 3", len(got))
	}
	for i, e := range got {
		if e.BufferID != uint64(i+3) || e.TimeUnix != 42 {
			t.Fatalf("event %d = %+v", i, e)
		}
	}
	last := log.Recent(1)
	if len(last) != 1 || last[0].BufferID != 5 {
		t.Fatalf("recent(1) = %+v", last)
	}
	if n := len(log.Recent(10)); n != 3 {
		t.Fatalf("recent(10) returned %d", n)
	}
}

func TestEventLogDefaultSize(t *testing.T) {
	log := NewEventLog(0)
	for i := 0; i < defaultEventLogSize+10; i++ {
		log.Publish(spill.Event{Name: spill.EventRegister})
	}
	if n := len(log.Recent(0)); n != defaultEventLogSize {
		t.Fatalf("kept %d events", n)
	}
}

func TestEventsHandler(t *testing.T) {
	svc := &mockService{events: []types.EventRecord{{Name: "spill", BufferID: 2, Size: 8}}}
	h := NewMux(svc)
	w := do(t, h, http.MethodGet, "/events?limit=5", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	var resp types.EventsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json: %v", err)
	}
	if len(resp.Events) != 1 || resp.Events[0].Name != "spill" || svc.lastEvents != 5 {
		t.Fatalf("unexpected response %+v (limit %d)", resp, svc.lastEvents)
	}
	if w := do(t, h, http.MethodGet, "/events?limit=-1", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("negative limit: status=%d", w.Code)
	}
	w = do(t, NewMux(&mockService{}), http.MethodGet, "/events", nil)
	if body := w.Body.String(); body != "{\"events\":[]}\n" {
		t.Fatalf("empty log should encode an empty list, got %q", body)
	}
}

func TestManagerServiceEvents(t *testing.T) {
	svc, _ := newTestService(t, 0)
	if svc.Events(0) != nil {
		t.Fatalf("no log installed")
	}
	log := NewEventLog(8)
	svc.WithEvents(log)
	log.Publish(spill.Event{Name: spill.EventExpose, BufferID: 1})
	if got := svc.Events(0); len(got) != 1 || got[0].Name != spill.EventExpose {
		t.Fatalf("events = %+v", got)
	}
}
