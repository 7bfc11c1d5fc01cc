package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/net4255/visitlog/internal/store"
)

type memStore struct {
	mu       sync.Mutex
	visits   []store.Visit
	writeErr error
	readErr  error
	lastCtx  context.Context
}

func (m *memStore) InsertVisit(ctx context.Context, v store.Visit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastCtx = ctx
	if m.writeErr != nil {
		return m.writeErr
	}
	m.visits = append(m.visits, v)
	return nil
}

func (m *memStore) RecentVisits(ctx context.Context, limit int) ([]store.Visit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastCtx = ctx
	if m.readErr != nil {
		return nil, m.readErr
	}
	out := append([]store.Visit(nil), m.visits...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) Ping(context.Context) error { return m.readErr }
func (m *memStore) Close(context.Context) error { return nil }

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return ts
}

func TestRecordThenRecent(t *testing.T) {
	ms := &memStore{}
	vl := NewVisitLogger(ms, Options{Location: time.UTC})

	res := vl.Record(context.Background(), "203.0.113.7", mustTime(t, "2024-05-01T12:00:00Z"))
	if !res.OK() {
		t.Fatalf("Record: %v", res.Err)
	}
	if res.Visit.Date != "2024-05-01T12:00:00.000000+00:00" {
		t.Errorf("Date = %q", res.Visit.Date)
	}

	got, err := vl.RecentVisits(context.Background(), 10)
	if err != nil {
		t.Fatalf("RecentVisits: %v", err)
	}
	if len(got) != 1 || got[0] != res.Visit {
		t.Fatalf("RecentVisits = %+v, want [%+v]", got, res.Visit)
	}
}

func TestRecentVisitsScenario(t *testing.T) {
	ms := &memStore{}
	vl := NewVisitLogger(ms, Options{})
	ctx := context.Background()

	for _, d := range []string{
		"2024-01-01T00:00:00+00:00",
		"2024-01-02T00:00:00+00:00",
		"2024-01-03T00:00:00+00:00",
	} {
		ms.InsertVisit(ctx, store.Visit{ClientIP: "10.0.0.1", Date: d})
	}

	got, err := vl.RecentVisits(ctx, 2)
	if err != nil {
		t.Fatalf("RecentVisits: %v", err)
	}
	want := []string{"2024-01-03T00:00:00+00:00", "2024-01-02T00:00:00+00:00"}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Date != want[i] {
			t.Errorf("got[%d].Date = %q, want %q", i, got[i].Date, want[i])
		}
	}
}

func TestRecentVisitsLimits(t *testing.T) {
	ms := &memStore{}
	vl := NewVisitLogger(ms, Options{MaxLimit: 5, Location: time.UTC})
	ctx := context.Background()
	base := mustTime(t, "2024-03-01T00:00:00Z")
	for i := 0; i < 8; i++ {
		vl.Record(ctx, fmt.Sprintf("10.0.0.%d", i), base.Add(time.Duration(i)*time.Hour))
	}

	tests := []struct {
		limit int
		want  int
	}{
		{-1, 0},
		{0, 0},
		{1, 1},
		{3, 3},
		{5, 5},
		{50, 5},
	}
	for _, tt := range tests {
		got, err := vl.RecentVisits(ctx, tt.limit)
		if err != nil {
			t.Fatalf("RecentVisits(%d): %v", tt.limit, err)
		}
		if got == nil {
			t.Errorf("RecentVisits(%d) returned nil slice", tt.limit)
		}
		if len(got) != tt.want {
			t.Errorf("RecentVisits(%d) len = %d, want %d", tt.limit, len(got), tt.want)
		}
		for i := 1; i < len(got); i++ {
			if got[i-1].Date < got[i].Date {
				t.Errorf("RecentVisits(%d) not descending at %d: %q < %q", tt.limit, i, got[i-1].Date, got[i].Date)
			}
		}
	}
}

func TestRecordEmptyClientIP(t *testing.T) {
	ms := &memStore{}
	vl := NewVisitLogger(ms, Options{})

	if res := vl.RecordNow(context.Background(), ""); !res.OK() {
		t.Fatalf("RecordNow: %v", res.Err)
	}
	got, err := vl.RecentVisits(context.Background(), 1)
	if err != nil {
		t.Fatalf("RecentVisits: %v", err)
	}
	if len(got) != 1 || got[0].ClientIP != "" {
		t.Fatalf("RecentVisits = %+v, want one visit with empty client_ip", got)
	}
}

func TestRecordFailureIsResult(t *testing.T) {
	ms := &memStore{writeErr: fmt.Errorf("%w: boom", store.ErrStoreWriteFailed)}
	vl := NewVisitLogger(ms, Options{})

	res := vl.RecordNow(context.Background(), "10.1.1.1")
	if res.OK() {
		t.Fatal("expected failed result")
	}
	if !errors.Is(res.Err, store.ErrStoreWriteFailed) {
		t.Errorf("Err = %v, want ErrStoreWriteFailed", res.Err)
	}
	if res.Visit.ClientIP != "10.1.1.1" {
		t.Errorf("Visit.ClientIP = %q", res.Visit.ClientIP)
	}
}

func TestRecentVisitsUnavailable(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"wrapped", fmt.Errorf("%w: no server", store.ErrStoreUnavailable)},
		{"raw", errors.New("connection refused")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vl := NewVisitLogger(&memStore{readErr: tt.err}, Options{})
			got, err := vl.RecentVisits(context.Background(), 10)
			if !errors.Is(err, store.ErrStoreUnavailable) {
				t.Fatalf("err = %v, want ErrStoreUnavailable", err)
			}
			if got != nil {
				t.Errorf("got %+v, want nil on failure", got)
			}
		})
	}
}

func TestOperationsAreBounded(t *testing.T) {
	ms := &memStore{}
	vl := NewVisitLogger(ms, Options{Timeout: 250 * time.Millisecond})

	vl.RecordNow(context.Background(), "10.0.0.1")
	dl, ok := ms.lastCtx.Deadline()
	if !ok {
		t.Fatal("insert context has no deadline")
	}
	if d := time.Until(dl); d > 250*time.Millisecond {
		t.Errorf("deadline %v exceeds timeout", d)
	}

	vl.RecentVisits(context.Background(), 1)
	if _, ok := ms.lastCtx.Deadline(); !ok {
		t.Fatal("read context has no deadline")
	}
}

func TestNowUsesLocation(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	fixed := mustTime(t, "2024-01-01T10:00:00Z")
	vl := NewVisitLogger(&memStore{}, Options{Location: loc, Now: func() time.Time { return fixed }})

	res := vl.RecordNow(context.Background(), "10.0.0.1")
	if res.Visit.Date != "2024-01-01T11:00:00.000000+01:00" {
		t.Errorf("Date = %q", res.Visit.Date)
	}
}

func TestDefaultLimitClampedToMax(t *testing.T) {
	vl := NewVisitLogger(&memStore{}, Options{DefaultLimit: 200, MaxLimit: 100})
	if got := vl.DefaultLimit(); got != 100 {
		t.Fatalf("DefaultLimit = %d, want 100", got)
	}
}
