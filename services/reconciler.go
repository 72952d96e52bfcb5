package services

import (
	"context"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/phillip/newvision-backend/models"
)

// PendingAmount is max(0, totalFees - discount - paid).
func PendingAmount(totalFees, discount, paid float64) float64 {
	pending := decimal.NewFromFloat(totalFees).
		Sub(decimal.NewFromFloat(discount)).
		Sub(decimal.NewFromFloat(paid))
	if pending.IsNegative() {
		return 0
	}
	return pending.InexactFloat64()
}

// Reconcile returns fin after adding amount to the paid total.
func Reconcile(fin models.FinancialInfo, amount float64) models.FinancialInfo {
	paid := decimal.NewFromFloat(fin.PaidAmount).Add(decimal.NewFromFloat(amount))
	fin.PaidAmount = paid.InexactFloat64()
	fin.PendingAmount = PendingAmount(fin.TotalFees, fin.Discount, fin.PaidAmount)
	return fin
}

// ApplyPayment adds amount to the student's paid total and re-derives the
// pending amount. Both fields are written in one version-guarded update.
func (f *Finance) ApplyPayment(ctx context.Context, studentID primitive.ObjectID, amount float64) (models.FinancialInfo, error) {
	if !(amount > 0) {
		return models.FinancialInfo{}, &ValidationError{Fields: []FieldError{{Field: "amount", Error: "must be greater than 0"}}}
	}
	st, err := updateStudentGuarded(ctx, f.store, studentID, f.now, func(st *models.Student) bson.M {
		st.FinancialInfo = Reconcile(st.FinancialInfo, amount)
		return bson.M{
			"financial_info.paid_amount":    st.FinancialInfo.PaidAmount,
			"financial_info.pending_amount": st.FinancialInfo.PendingAmount,
		}
	})
	if err != nil {
		return models.FinancialInfo{}, err
	}
	return st.FinancialInfo, nil
}
