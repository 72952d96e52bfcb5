package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/phillip/newvision-backend/models"
	"github.com/phillip/newvision-backend/store"
	"github.com/phillip/newvision-backend/utils"
)

var testNow = time.Date(2025, time.March, 10, 9, 30, 0, 0, time.UTC)

var admin = Actor{ID: "64f000000000000000000001", Name: "Office Admin"}

func fixedClock() time.Time { return testNow }

func newFinance(st store.Store) *Finance {
	f := NewFinance(st, time.UTC)
	f.now = fixedClock
	return f
}

func newStudents(st store.Store) *Students {
	s := NewStudents(st, utils.DisabledAssets{}, time.UTC)
	s.now = fixedClock
	return s
}

func enrol(t *testing.T, st store.Store, totalFees, discount float64) *models.Student {
	t.Helper()
	student, err := newStudents(st).CreateStudent(context.Background(), admin, StudentInput{
		PersonalInfo: models.PersonalInfo{FirstName: "Sita", LastName: "Sharma", Email: "sita@example.com"},
		AcademicInfo: models.AcademicInfo{CourseID: "see-prep", CourseName: "SEE Preparation", Batch: "morning"},
		Fees:         FeeTerms{TotalFees: totalFees, Discount: discount},
	})
	require.NoError(t, err)
	return student
}

func cash(amount float64) PaymentInput {
	return PaymentInput{
		Amount:      amount,
		PaymentDate: testNow,
		Method:      models.MethodCash,
		Details:     models.PaymentDetails{ReceivedBy: "front desk"},
		FeeType:     models.FeeTuition,
	}
}

// failingStore fails the writes selected by its hooks and delegates the rest.
type failingStore struct {
	store.Store
	failUpdateWhere bool
	failUpsert      bool
}

var errStoreDown = errors.New("store unavailable")

func (f *failingStore) UpdateOneWhere(ctx context.Context, collection string, filter bson.M, set bson.M) (int64, error) {
	if f.failUpdateWhere {
		return 0, errStoreDown
	}
	return f.Store.UpdateOneWhere(ctx, collection, filter, set)
}

func (f *failingStore) Upsert(ctx context.Context, collection string, id any, doc any) error {
	if f.failUpsert {
		return errStoreDown
	}
	return f.Store.Upsert(ctx, collection, id, doc)
}

// racingStore bumps the student's version before every guarded write, so the
// compare-and-swap never matches.
type racingStore struct {
	store.Store
	attempts int
}

func (r *racingStore) UpdateOneWhere(ctx context.Context, collection string, filter bson.M, set bson.M) (int64, error) {
	r.attempts++
	if v, ok := filter["version"].(int64); ok {
		if err := r.Store.UpdateByID(ctx, collection, filter["_id"], bson.M{"version": v + 1}); err != nil {
			return 0, err
		}
	}
	return r.Store.UpdateOneWhere(ctx, collection, filter, set)
}
