package services

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/phillip/newvision-backend/models"
	"github.com/phillip/newvision-backend/store"
)

type PlanRequest struct {
	StudentID   primitive.ObjectID
	StudentName string
	CourseID    string
	TotalFees   float64
	Discount    float64
	Count       int
	StartDate   time.Time
}

func (r PlanRequest) validate() error {
	verr := &ValidationError{}
	if r.StudentID.IsZero() {
		verr.add("student_id", "is required")
	}
	if r.Count < 1 {
		verr.add("installments", "must be at least 1")
	}
	if r.Discount < 0 {
		verr.add("discount", "must not be negative")
	}
	if r.TotalFees < r.Discount {
		verr.add("total_fees", "must not be less than the discount")
	}
	if r.StartDate.IsZero() {
		verr.add("start_date", "is required")
	}
	return verr.orNil()
}

// SplitAmount divides totalFees-discount into count whole-rupee parts. The
// first count-1 parts get floor(net/count); the last absorbs the remainder
// so the parts always sum to net.
func SplitAmount(totalFees, discount float64, count int) []float64 {
	if count < 1 {
		return nil
	}
	net := decimal.NewFromFloat(totalFees).Sub(decimal.NewFromFloat(discount))
	n := decimal.NewFromInt(int64(count))
	base := net.Div(n).Floor()

	amounts := make([]float64, count)
	for i := 0; i < count-1; i++ {
		amounts[i] = base.InexactFloat64()
	}
	amounts[count-1] = net.Sub(base.Mul(decimal.NewFromInt(int64(count - 1)))).InexactFloat64()
	return amounts
}

// BuildInstallmentPlan lays out the schedule without touching the store.
// Installment i is due i calendar months after the start date.
func BuildInstallmentPlan(req PlanRequest, createdAt time.Time) []models.FeeInstallment {
	amounts := SplitAmount(req.TotalFees, req.Discount, req.Count)
	plan := make([]models.FeeInstallment, 0, len(amounts))
	for i, amount := range amounts {
		plan = append(plan, models.FeeInstallment{
			ID:                primitive.NewObjectID(),
			StudentID:         req.StudentID,
			StudentName:       req.StudentName,
			CourseID:          req.CourseID,
			InstallmentNumber: i + 1,
			Amount:            amount,
			DueDate:           req.StartDate.AddDate(0, i, 0),
			PaidAmount:        0,
			Status:            models.InstallmentPending,
			CreatedAt:         createdAt,
			UpdatedAt:         createdAt,
		})
	}
	return plan
}

// GenerateInstallmentPlan persists a new schedule for an existing student.
// Without store transactions a failed batch may leave earlier installments
// behind; the error is returned either way.
func (f *Finance) GenerateInstallmentPlan(ctx context.Context, req PlanRequest) ([]models.FeeInstallment, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	var student models.Student
	if err := f.store.FindByID(ctx, store.Students, req.StudentID, &student); err != nil {
		return nil, notFound("student", err)
	}
	if req.StudentName == "" {
		req.StudentName = student.FullName()
	}
	if req.CourseID == "" {
		req.CourseID = student.AcademicInfo.CourseID
	}

	plan := BuildInstallmentPlan(req, f.now())
	docs := make([]any, len(plan))
	for i := range plan {
		docs[i] = plan[i]
	}
	err := f.store.WithTransaction(ctx, func(ctx context.Context) error {
		return f.store.InsertMany(ctx, store.FeeInstallments, docs)
	})
	if err != nil {
		return nil, fmt.Errorf("save installment plan: %w", err)
	}
	return plan, nil
}

func (f *Finance) ListStudentInstallments(ctx context.Context, studentID primitive.ObjectID) ([]models.FeeInstallment, error) {
	var installments []models.FeeInstallment
	err := f.store.Find(ctx, store.FeeInstallments,
		bson.M{"student_id": studentID},
		store.FindOptions{SortBy: "installment_number"},
		&installments)
	if err != nil {
		return nil, err
	}
	return installments, nil
}

// MarkInstallmentPaid links an installment to the transaction that settled
// it. Paying less than the installment amount leaves it partial.
func (f *Finance) MarkInstallmentPaid(ctx context.Context, id primitive.ObjectID, transactionID string, paidAmount float64) (*models.FeeInstallment, error) {
	if !(paidAmount > 0) {
		return nil, &ValidationError{Fields: []FieldError{{Field: "paid_amount", Error: "must be greater than 0"}}}
	}

	var inst models.FeeInstallment
	if err := f.store.FindByID(ctx, store.FeeInstallments, id, &inst); err != nil {
		return nil, notFound("installment", err)
	}
	if transactionID != "" {
		n, err := f.store.Count(ctx, store.FeeTransactions, bson.M{"transaction_id": transactionID})
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, fmt.Errorf("transaction %s: %w", transactionID, ErrNotFound)
		}
	}

	now := f.now()
	status := models.InstallmentPaid
	if paidAmount < inst.Amount {
		status = models.InstallmentPartial
	}
	err := f.store.UpdateByID(ctx, store.FeeInstallments, id, bson.M{
		"paid_date":             now,
		"paid_amount":           paidAmount,
		"status":                status,
		"linked_transaction_id": transactionID,
		"updated_at":            now,
	})
	if err != nil {
		return nil, notFound("installment", err)
	}

	inst.PaidDate = &now
	inst.PaidAmount = paidAmount
	inst.Status = status
	inst.LinkedTransactionID = transactionID
	inst.UpdatedAt = now
	return &inst, nil
}

// ListOverdueInstallments returns unsettled installments due before asOf,
// earliest first.
func (f *Finance) ListOverdueInstallments(ctx context.Context, asOf time.Time) ([]models.FeeInstallment, error) {
	var installments []models.FeeInstallment
	err := f.store.Find(ctx, store.FeeInstallments,
		bson.M{
			"status":   bson.M{"$in": bson.A{models.InstallmentPending, models.InstallmentPartial, models.InstallmentOverdue}},
			"due_date": bson.M{"$lt": asOf},
		},
		store.FindOptions{SortBy: "due_date"},
		&installments)
	if err != nil {
		return nil, err
	}
	return installments, nil
}
