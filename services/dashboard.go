package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/phillip/newvision-backend/models"
	"github.com/phillip/newvision-backend/store"
)

type DashboardStats struct {
	TotalStudents       int64   `json:"total_students"`
	ActiveStudents      int64   `json:"active_students"`
	StudentsWithDues    int     `json:"students_with_dues"`
	TotalPending        float64 `json:"total_pending"`
	TotalPendingLabel   string  `json:"total_pending_label"`
	MonthRevenue        float64 `json:"month_revenue"`
	MonthRevenueLabel   string  `json:"month_revenue_label"`
	OverdueInstallments int     `json:"overdue_installments"`
	FiscalYear          string  `json:"fiscal_year"`
}

// Dashboard gathers the headline numbers of the admin landing page.
func (f *Finance) Dashboard(ctx context.Context) (*DashboardStats, error) {
	now := f.now()
	stats := &DashboardStats{FiscalYear: FiscalYear(now.In(f.loc))}

	var err error
	if stats.TotalStudents, err = f.store.Count(ctx, store.Students, nil); err != nil {
		return nil, err
	}
	if stats.ActiveStudents, err = f.store.Count(ctx, store.Students, bson.M{"academic_info.status": models.StudentActive}); err != nil {
		return nil, err
	}

	var withDues []models.Student
	if err := f.store.Find(ctx, store.Students, bson.M{"financial_info.pending_amount": bson.M{"$gt": 0}}, store.FindOptions{}, &withDues); err != nil {
		return nil, err
	}
	pending := decimal.Zero
	for _, s := range withDues {
		pending = pending.Add(decimal.NewFromFloat(s.FinancialInfo.PendingAmount))
	}
	stats.StudentsWithDues = len(withDues)
	stats.TotalPending = pending.InexactFloat64()
	stats.TotalPendingLabel = FormatRupees(stats.TotalPending)

	start, end := monthWindow(now, f.loc)
	if stats.MonthRevenue, err = f.CalculateRevenue(ctx, start, end.Add(-time.Millisecond)); err != nil {
		return nil, err
	}
	stats.MonthRevenueLabel = FormatRupees(stats.MonthRevenue)

	overdue, err := f.ListOverdueInstallments(ctx, now)
	if err != nil {
		return nil, err
	}
	stats.OverdueInstallments = len(overdue)
	return stats, nil
}
