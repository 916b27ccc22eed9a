package audit

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

type fakePublisher struct {
	keys   []string
	values []any
	err    error
}

func (f *fakePublisher) PublishJSON(ctx context.Context, key string, value any) error {
	if f.err != nil {
		return f.err
	}
	f.keys = append(f.keys, key)
	f.values = append(f.values, value)
	return nil
}

func TestTrail_Publishes(t *testing.T) {
	pub := &fakePublisher{}
	var buf bytes.Buffer
	trail := NewTrail(pub, slog.New(slog.NewJSONHandler(&buf, nil)))

	trail.Record(context.Background(), Record{CycleID: "c1", Outcome: "applied", Rules: []string{"Block cat"}})

	if len(pub.keys) != 1 || pub.keys[0] != "c1" {
		t.Fatalf("published keys = %v", pub.keys)
	}
	if rec, ok := pub.values[0].(Record); !ok || rec.Outcome != "applied" {
		t.Errorf("published value = %#v", pub.values[0])
	}
	if !strings.Contains(buf.String(), `"cycle_id":"c1"`) {
		t.Errorf("record not logged: %s", buf.String())
	}
}

func TestTrail_PublishFailureIsCounted(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	trail := NewTrail(pub, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))

	trail.Record(context.Background(), Record{CycleID: "c2"})

	recorded, dropped := trail.Stats()
	if recorded != 1 || dropped != 1 {
		t.Errorf("Stats() = %d, %d; want 1, 1", recorded, dropped)
	}
}

func TestTrail_NilPublisher(t *testing.T) {
	trail := NewTrail(nil, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	trail.Record(context.Background(), Record{CycleID: "c3"})
	if recorded, _ := trail.Stats(); recorded != 1 {
		t.Errorf("recorded = %d, want 1", recorded)
	}
}
