package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/phillip/newvision-backend/models"
	"github.com/phillip/newvision-backend/store"
)

func TestAggregateMonth(t *testing.T) {
	s1, s2 := primitive.NewObjectID(), primitive.NewObjectID()
	txns := []models.FeeTransaction{
		{StudentID: s1, CourseID: "see-prep", CourseName: "SEE Preparation", Amount: 2000, PaymentMethod: models.MethodCash, FeeType: models.FeeTuition, Status: models.TxnCompleted},
		{StudentID: s1, CourseID: "see-prep", CourseName: "SEE Preparation", Amount: 500, PaymentMethod: models.MethodOnline, FeeType: models.FeeExam, Status: models.TxnVerified},
		{StudentID: s2, CourseID: "see-prep", CourseName: "SEE Preparation", Amount: 1500, PaymentMethod: models.MethodBankTransfer, FeeType: models.FeeAdmission, Status: models.TxnCompleted},
		{StudentID: s2, CourseID: "bridge", CourseName: "Bridge Course", Amount: 3000, PaymentMethod: models.MethodCash, FeeType: models.FeeOther, Status: models.TxnCompleted},
		{StudentID: s2, CourseID: "bridge", CourseName: "Bridge Course", Amount: 9999, PaymentMethod: models.MethodCash, FeeType: models.FeeTuition, Status: models.TxnRefunded},
		{StudentID: s1, CourseID: "bridge", CourseName: "Bridge Course", Amount: 8888, PaymentMethod: models.MethodCash, FeeType: models.FeeTuition, Status: models.TxnPending},
	}

	got := AggregateMonth(2025, time.August, txns)

	assert.Equal(t, "2025-08", got.ID)
	assert.Equal(t, 8, got.Month)
	assert.Equal(t, 2025, got.Year)
	assert.Equal(t, "2025/26", got.FiscalYear)
	assert.Equal(t, 4, got.TransactionCount)
	assert.Equal(t, 7000.0, got.Revenue.TotalCollected)
	assert.Equal(t, models.MethodBreakdown{Cash: 5000, Online: 500, BankTransfer: 1500}, got.Revenue.ByPaymentMethod)
	assert.Equal(t, models.FeeTypeBreakdown{AdmissionFee: 1500, TuitionFee: 2000, ExamFee: 500, Other: 3000}, got.Revenue.ByFeeType)
	assert.Equal(t, []models.CourseRevenue{
		{CourseID: "bridge", CourseName: "Bridge Course", Amount: 3000, StudentCount: 1},
		{CourseID: "see-prep", CourseName: "SEE Preparation", Amount: 4000, StudentCount: 2},
	}, got.Revenue.ByCourse)
}

func TestAggregateMonthEmpty(t *testing.T) {
	got := AggregateMonth(2025, time.January, nil)
	assert.Equal(t, "2024/25", got.FiscalYear)
	assert.Zero(t, got.Revenue.TotalCollected)
	assert.Equal(t, models.MethodBreakdown{}, got.Revenue.ByPaymentMethod)
	assert.Equal(t, models.FeeTypeBreakdown{}, got.Revenue.ByFeeType)
	assert.NotNil(t, got.Revenue.ByCourse)
	assert.Empty(t, got.Revenue.ByCourse)
}

func TestRecomputeMonthlySummaryIsIdempotent(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory(false)
	f := newFinance(st)
	a := enrol(t, st, 20000, 0)
	b := enrol(t, st, 20000, 0)

	for _, p := range []struct {
		student primitive.ObjectID
		amount  float64
	}{{a.ID, 1200}, {b.ID, 800}, {a.ID, 450.5}} {
		in := cash(p.amount)
		in.StudentID = p.student
		_, err := f.RecordPayment(ctx, admin, in)
		require.NoError(t, err)
	}

	first, err := f.RecomputeMonthlySummary(ctx, testNow)
	require.NoError(t, err)
	firstStored, err := f.GetMonthlySummary(ctx, 2025, time.March)
	require.NoError(t, err)

	second, err := f.RecomputeMonthlySummary(ctx, testNow.AddDate(0, 0, 5))
	require.NoError(t, err)
	secondStored, err := f.GetMonthlySummary(ctx, 2025, time.March)
	require.NoError(t, err)

	for _, pair := range [][2]*models.FinancialSummary{{first, second}, {firstStored, secondStored}, {first, secondStored}} {
		x, err := bson.Marshal(pair[0])
		require.NoError(t, err)
		y, err := bson.Marshal(pair[1])
		require.NoError(t, err)
		assert.Equal(t, x, y)
	}

	assert.Equal(t, 2450.5, first.Revenue.TotalCollected)
	assert.Equal(t, 3, first.TransactionCount)
	require.Len(t, first.Revenue.ByCourse, 1)
	assert.Equal(t, 2, first.Revenue.ByCourse[0].StudentCount)
}

func TestRecomputeMonthlySummaryMonthWindow(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory(false)
	f := newFinance(st)
	student := enrol(t, st, 20000, 0)

	dates := []time.Time{
		time.Date(2025, time.February, 28, 23, 59, 59, 0, time.UTC),
		time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, time.March, 31, 23, 59, 59, 0, time.UTC),
		time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC),
	}
	for _, d := range dates {
		in := cash(100)
		in.StudentID = student.ID
		in.PaymentDate = d
		_, err := f.RecordPayment(ctx, admin, in)
		require.NoError(t, err)
	}

	march, err := f.GetMonthlySummary(ctx, 2025, time.March)
	require.NoError(t, err)
	assert.Equal(t, 2, march.TransactionCount)
	assert.Equal(t, 200.0, march.Revenue.TotalCollected)

	feb, err := f.GetMonthlySummary(ctx, 2025, time.February)
	require.NoError(t, err)
	assert.Equal(t, 1, feb.TransactionCount)

	_, err = f.GetMonthlySummary(ctx, 2025, time.May)
	assert.ErrorIs(t, err, ErrNotFound)
}
