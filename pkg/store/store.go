// Package store provides durable queue persistence over PostgreSQL: the
// inbound work queue, the outbound delivery ledger, dead letters, and chat
// event deduplication.
package store

import (
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/revops-ai/relay/pkg/database"
)

var (
	// ErrNoWorkAvailable indicates no claimable work item exists.
	ErrNoWorkAvailable = errors.New("no work items available")

	// ErrNoJobsAvailable indicates no delivery job is ready for claiming.
	ErrNoJobsAvailable = errors.New("no delivery jobs available")

	// ErrNotFound indicates the referenced row does not exist.
	ErrNotFound = errors.New("not found")
)

// Store is the persistence layer shared by ingress, the invoker pool, and
// the delivery engine.
type Store struct {
	db *sqlx.DB
}

// New creates a Store backed by the given database client.
func New(client *database.Client) *Store {
	return &Store{db: client.SQLX()}
}

// NewFromDB creates a Store from a raw sqlx handle (useful for testing).
func NewFromDB(db *sqlx.DB) *Store {
	return &Store{db: db}
}
