// Package store is the document store boundary: collection-based CRUD over
// MongoDB, or over an in-memory BSON map for tests and local development.
package store

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
)

// Collections.
const (
	Students         = "students"
	FeeTransactions  = "feeTransactions"
	FeeInstallments  = "feeInstallments"
	FinancialSummary = "financialSummary"
	Courses          = "courses"
	Faculty          = "faculty"
	Results          = "results"
	Achievements     = "achievements"
	Contacts         = "contacts"
	Admins           = "admins"
	Sessions         = "sessions"
	Counters         = "counters"
)

var (
	ErrNotFound  = errors.New("document not found")
	ErrDuplicate = errors.New("duplicate document id")
)

// FindOptions narrows and orders a Find. SortBy accepts dotted paths.
type FindOptions struct {
	SortBy string
	Desc   bool
	Limit  int64
}

// Store is implemented by *Mongo and *Memory.
//
// Ids are whatever the document carries in its _id field: a
// primitive.ObjectID for entities, a string for keyed documents such as
// monthly summaries or sessions.
type Store interface {
	Insert(ctx context.Context, collection string, doc any) error
	InsertMany(ctx context.Context, collection string, docs []any) error
	FindByID(ctx context.Context, collection string, id any, out any) error
	// Find decodes every match into out, which must point to a slice.
	Find(ctx context.Context, collection string, filter bson.M, opts FindOptions, out any) error
	Count(ctx context.Context, collection string, filter bson.M) (int64, error)
	// UpdateByID applies $set semantics; keys may be dotted paths.
	UpdateByID(ctx context.Context, collection string, id any, set bson.M) error
	// UpdateOneWhere sets fields on the first document matching filter and
	// reports how many matched (0 or 1). It is the compare-and-swap primitive.
	UpdateOneWhere(ctx context.Context, collection string, filter bson.M, set bson.M) (int64, error)
	// Upsert replaces the document stored under id, inserting it when absent.
	Upsert(ctx context.Context, collection string, id any, doc any) error
	DeleteByID(ctx context.Context, collection string, id any) error
	// NextSequence atomically increments and returns the named counter.
	NextSequence(ctx context.Context, name string) (int64, error)
	// WithTransaction runs fn atomically when Transactional reports true,
	// and as a plain sequence otherwise.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
	Transactional() bool
	Close(ctx context.Context) error
}

// Options select and configure a Store implementation.
type Options struct {
	Driver       string // "mongo" or "memory"
	URI          string
	Database     string
	Transactions bool
}

func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Driver {
	case "", "mongo":
		return Connect(ctx, opts.URI, opts.Database, opts.Transactions)
	case "memory":
		return NewMemory(opts.Transactions), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", opts.Driver)
	}
}
