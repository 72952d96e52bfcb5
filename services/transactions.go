package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/phillip/newvision-backend/models"
	"github.com/phillip/newvision-backend/store"
)

// TransactionFilter narrows ListTransactions. Zero fields are ignored;
// From and To are inclusive.
type TransactionFilter struct {
	From      time.Time
	To        time.Time
	Method    models.PaymentMethod
	FeeType   models.FeeType
	Status    models.TransactionStatus
	StudentID primitive.ObjectID
	CourseID  string
}

func (tf TransactionFilter) query() bson.M {
	q := bson.M{}
	if !tf.StudentID.IsZero() {
		q["student_id"] = tf.StudentID
	}
	if tf.CourseID != "" {
		q["course_id"] = tf.CourseID
	}
	if tf.Method != "" {
		q["payment_method"] = tf.Method
	}
	if tf.FeeType != "" {
		q["fee_type"] = tf.FeeType
	}
	if tf.Status != "" {
		q["status"] = tf.Status
	}
	if !tf.From.IsZero() || !tf.To.IsZero() {
		date := bson.M{}
		if !tf.From.IsZero() {
			date["$gte"] = tf.From
		}
		if !tf.To.IsZero() {
			date["$lte"] = tf.To
		}
		q["payment_date"] = date
	}
	return q
}

// ListTransactions returns matching transactions, newest payment first.
func (f *Finance) ListTransactions(ctx context.Context, filter TransactionFilter) ([]models.FeeTransaction, error) {
	var txns []models.FeeTransaction
	err := f.store.Find(ctx, store.FeeTransactions, filter.query(),
		store.FindOptions{SortBy: "payment_date", Desc: true}, &txns)
	if err != nil {
		return nil, err
	}
	return txns, nil
}

func (f *Finance) TransactionHistory(ctx context.Context, studentID primitive.ObjectID) ([]models.FeeTransaction, error) {
	return f.ListTransactions(ctx, TransactionFilter{StudentID: studentID})
}

func (f *Finance) GetTransaction(ctx context.Context, id primitive.ObjectID) (*models.FeeTransaction, error) {
	var txn models.FeeTransaction
	if err := f.store.FindByID(ctx, store.FeeTransactions, id, &txn); err != nil {
		return nil, notFound("transaction", err)
	}
	return &txn, nil
}

// CalculateRevenue sums completed and verified payments dated within [from, to].
func (f *Finance) CalculateRevenue(ctx context.Context, from, to time.Time) (float64, error) {
	txns, err := f.ListTransactions(ctx, TransactionFilter{From: from, To: to})
	if err != nil {
		return 0, err
	}
	sum := decimal.Zero
	for _, t := range txns {
		if t.Status.CountsAsRevenue() {
			sum = sum.Add(decimal.NewFromFloat(t.Amount))
		}
	}
	return sum.InexactFloat64(), nil
}
