package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/net4255/visitlog/internal/metrics"
	"github.com/net4255/visitlog/internal/store"
)

// DateLayout is ISO-8601 with microseconds and a numeric offset. Every
// recorded date has the same width and offset style, so string order is
// chronological order.
const DateLayout = "2006-01-02T15:04:05.000000-07:00"

const (
	DefaultTimeout = 2000 * time.Millisecond
	DefaultLimit   = 10
	DefaultMax     = 100
)

type Options struct {
	Timeout      time.Duration
	DefaultLimit int
	MaxLimit     int
	Location     *time.Location
	Now          func() time.Time
}

// VisitLogger records visits and reads back the most recent ones.
type VisitLogger struct {
	store store.Store
	opts  Options
}

func NewVisitLogger(s store.Store, opts Options) *VisitLogger {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = DefaultLimit
	}
	if opts.MaxLimit <= 0 {
		opts.MaxLimit = DefaultMax
	}
	if opts.DefaultLimit > opts.MaxLimit {
		opts.DefaultLimit = opts.MaxLimit
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &VisitLogger{store: s, opts: opts}
}

func (l *VisitLogger) DefaultLimit() int { return l.opts.DefaultLimit }

// Now returns the current time in the logger's timezone.
func (l *VisitLogger) Now() time.Time {
	return l.opts.Now().In(l.opts.Location)
}

// RecordResult is the outcome of a best-effort write. Callers may ignore it.
type RecordResult struct {
	Visit store.Visit
	Err   error
}

func (r RecordResult) OK() bool { return r.Err == nil }

// Record appends one visit stamped with ts.
func (l *VisitLogger) Record(ctx context.Context, clientIP string, ts time.Time) RecordResult {
	v := store.Visit{ClientIP: clientIP, Date: FormatDate(ts)}

	ctx, cancel := context.WithTimeout(ctx, l.opts.Timeout)
	defer cancel()

	start := time.Now()
	err := l.store.InsertVisit(ctx, v)
	metrics.StoreOpDuration.WithLabelValues("insert").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.RecordFailures.WithLabelValues(failureReason(err)).Inc()
		log.Ctx(ctx).Warn().Err(err).Str("client_ip", clientIP).Msg("record visit")
		return RecordResult{Visit: v, Err: err}
	}
	metrics.VisitsRecorded.Inc()
	return RecordResult{Visit: v}
}

// RecordNow records a visit stamped with the current local time.
func (l *VisitLogger) RecordNow(ctx context.Context, clientIP string) RecordResult {
	return l.Record(ctx, clientIP, l.Now())
}

// RecentVisits returns at most limit visits, newest first. A limit of
// zero or less yields an empty slice; limits above MaxLimit are clamped.
func (l *VisitLogger) RecentVisits(ctx context.Context, limit int) ([]store.Visit, error) {
	if limit <= 0 {
		return []store.Visit{}, nil
	}
	if limit > l.opts.MaxLimit {
		limit = l.opts.MaxLimit
	}

	ctx, cancel := context.WithTimeout(ctx, l.opts.Timeout)
	defer cancel()

	start := time.Now()
	visits, err := l.store.RecentVisits(ctx, limit)
	metrics.StoreOpDuration.WithLabelValues("recent").Observe(time.Since(start).Seconds())
	metrics.VisitReads.Inc()
	if err != nil {
		metrics.ReadFailures.Inc()
		if !errors.Is(err, store.ErrStoreUnavailable) {
			err = fmt.Errorf("%w: %v", store.ErrStoreUnavailable, err)
		}
		return nil, err
	}
	if visits == nil {
		visits = []store.Visit{}
	}
	if len(visits) > limit {
		visits = visits[:limit]
	}
	return visits, nil
}

func (l *VisitLogger) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, l.opts.Timeout)
	defer cancel()
	return l.store.Ping(ctx)
}

func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, store.ErrStoreUnavailable):
		return "unavailable"
	case errors.Is(err, store.ErrStoreWriteFailed):
		return "rejected"
	default:
		return "other"
	}
}
