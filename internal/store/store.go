package store

import (
	"context"
	"errors"
)

var (
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrStoreWriteFailed = errors.New("store write failed")
)

// Visit is one recorded page access. Storage ids are never part of it.
type Visit struct {
	ClientIP string `json:"client_ip" bson:"client_ip"`
	Date     string `json:"date" bson:"date"`
}

type Store interface {
	InsertVisit(ctx context.Context, v Visit) error
	// RecentVisits returns at most limit visits ordered by date, newest first.
	RecentVisits(ctx context.Context, limit int) ([]Visit, error)
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
