// Package services holds the student record store and the fee accounting
// flow: installment plans, payment recording, balance reconciliation and
// monthly revenue summaries.
package services

import (
	"time"

	"github.com/phillip/newvision-backend/store"
)

// Actor identifies the signed-in admin performing an operation. It is
// passed explicitly to every operation that records who acted.
type Actor struct {
	ID   string
	Name string
}

type Finance struct {
	store store.Store
	loc   *time.Location
	now   func() time.Time
}

// NewFinance builds the fee service. Month boundaries for summaries are
// computed in loc (UTC when nil).
func NewFinance(st store.Store, loc *time.Location) *Finance {
	if loc == nil {
		loc = time.UTC
	}
	return &Finance{store: st, loc: loc, now: time.Now}
}
