package events

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNewChangeEvent(t *testing.T) {
	ev := NewChangeEvent(KindDayReconciled, []string{"2025-07-01"}, 1, 2, 3)

	if _, err := uuid.Parse(ev.ID); err != nil {
		t.Fatalf("event id is not a uuid: %q", ev.ID)
	}
	if ev.Kind != KindDayReconciled || ev.Inserted != 1 || ev.Updated != 2 || ev.Deleted != 3 {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if time.Since(ev.Timestamp) > time.Second {
		t.Error("timestamp should be recent")
	}
}

func TestFromJSON(t *testing.T) {
	ev := NewChangeEvent(KindBatchUpserted, []string{"2025-07-01", "2025-07-02"}, 2, 0, 0)
	body, err := ev.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}
	parsed, err := FromJSON(body)
	if err != nil {
		t.Fatalf("FromJSON() error = %v", err)
	}
	if parsed.ID != ev.ID || len(parsed.Dates) != 2 || !parsed.Timestamp.Equal(ev.Timestamp) {
		t.Fatalf("round trip mismatch: %+v vs %+v", parsed, ev)
	}

	if _, err := FromJSON([]byte(`{"inserted":"x"}`)); err == nil {
		t.Error("FromJSON() should fail on invalid body")
	}
}
