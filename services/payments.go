package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/phillip/newvision-backend/models"
	"github.com/phillip/newvision-backend/store"
)

type PaymentInput struct {
	StudentID   primitive.ObjectID
	Amount      float64
	PaymentDate time.Time
	Method      models.PaymentMethod
	Details     models.PaymentDetails
	FeeType     models.FeeType
	Notes       string
}

// Validate checks the amount and the fields each payment method requires.
func (in PaymentInput) Validate() error {
	verr := &ValidationError{}
	if in.StudentID.IsZero() {
		verr.add("student_id", "is required")
	}
	if !(in.Amount > 0) {
		verr.add("amount", "must be greater than 0")
	}
	if !in.FeeType.Valid() {
		verr.add("fee_type", "must be one of admission_fee, tuition_fee, exam_fee, certificate_fee, other")
	}

	blank := func(s string) bool { return strings.TrimSpace(s) == "" }
	d := in.Details
	switch in.Method {
	case models.MethodCash:
		if blank(d.ReceivedBy) {
			verr.add("payment_details.received_by", "is required for cash payments")
		}
	case models.MethodOnline:
		if blank(d.Platform) {
			verr.add("payment_details.platform", "is required for online payments")
		}
		if blank(d.TransactionRef) {
			verr.add("payment_details.transaction_ref", "is required for online payments")
		}
	case models.MethodBankTransfer:
		if blank(d.BankName) {
			verr.add("payment_details.bank_name", "is required for bank transfers")
		}
		if blank(d.DepositSlipNumber) {
			verr.add("payment_details.deposit_slip_number", "is required for bank transfers")
		}
	default:
		verr.add("payment_method", "must be one of cash, online, bank_transfer")
	}
	return verr.orNil()
}

// RecordPayment stores one completed fee transaction, then updates the
// student's balance and recomputes the summary of the payment's month.
//
// On a transactional store the three writes commit or fail together. On a
// plain store a failure after the insert is reported as a
// *PartialCascadeError; the summary step can be replayed safely with
// RecomputeMonthlySummary.
func (f *Finance) RecordPayment(ctx context.Context, actor Actor, in PaymentInput) (*models.FeeTransaction, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if actor.ID == "" {
		return nil, &ValidationError{Fields: []FieldError{{Field: "collected_by", Error: "is required"}}}
	}

	var student models.Student
	if err := f.store.FindByID(ctx, store.Students, in.StudentID, &student); err != nil {
		return nil, notFound("student", err)
	}

	now := f.now()
	paymentDate := in.PaymentDate
	if paymentDate.IsZero() {
		paymentDate = now
	}
	year := paymentDate.In(f.loc).Year()

	txn := models.FeeTransaction{
		StudentID:       student.ID,
		StudentName:     student.FullName(),
		CourseID:        student.AcademicInfo.CourseID,
		CourseName:      student.AcademicInfo.CourseName,
		Amount:          in.Amount,
		PaymentDate:     paymentDate,
		PaymentMethod:   in.Method,
		PaymentDetails:  in.Details,
		FeeType:         in.FeeType,
		FiscalYear:      FiscalYear(paymentDate.In(f.loc)),
		Notes:           in.Notes,
		Status:          models.TxnCompleted,
		CollectedBy:     actor.ID,
		CollectedByName: actor.Name,
		CreatedAt:       now,
	}

	err := f.store.WithTransaction(ctx, func(ctx context.Context) error {
		seq, err := f.store.NextSequence(ctx, fmt.Sprintf("%s:%d", store.FeeTransactions, year))
		if err != nil {
			return err
		}
		txn.ID = primitive.NewObjectID()
		txn.TransactionID = fmt.Sprintf("TXN%d%05d", year, seq)
		txn.ReceiptNumber = fmt.Sprintf("REC%d%05d", year, seq)

		if err := f.store.Insert(ctx, store.FeeTransactions, txn); err != nil {
			return fmt.Errorf("save transaction: %w", err)
		}
		if _, err := f.ApplyPayment(ctx, student.ID, in.Amount); err != nil {
			return &PartialCascadeError{TransactionID: txn.TransactionID, Step: "balance", Err: err}
		}
		if _, err := f.RecomputeMonthlySummary(ctx, paymentDate); err != nil {
			return &PartialCascadeError{TransactionID: txn.TransactionID, Step: "summary", Err: err}
		}
		return nil
	})
	if err != nil {
		var perr *PartialCascadeError
		if errors.As(err, &perr) && f.store.Transactional() {
			// everything was rolled back, so nothing is partial
			return nil, fmt.Errorf("record payment: %w", perr.Err)
		}
		return nil, err
	}
	return &txn, nil
}
