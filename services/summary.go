package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/phillip/newvision-backend/models"
	"github.com/phillip/newvision-backend/store"
)

type courseTotals struct {
	name     string
	amount   decimal.Decimal
	students map[primitive.ObjectID]struct{}
}

// AggregateMonth folds the month's completed and verified transactions into
// a summary. The result depends only on the transaction set, so running it
// twice over the same data yields the same document.
func AggregateMonth(year int, month time.Month, txns []models.FeeTransaction) models.FinancialSummary {
	var (
		total                       decimal.Decimal
		cash, online, bank          decimal.Decimal
		admission, tuition, exam    decimal.Decimal
		certificate, other          decimal.Decimal
		counted                     int
		courses                     = map[string]*courseTotals{}
	)

	for _, t := range txns {
		if !t.Status.CountsAsRevenue() {
			continue
		}
		amt := decimal.NewFromFloat(t.Amount)
		total = total.Add(amt)
		counted++

		switch t.PaymentMethod {
		case models.MethodCash:
			cash = cash.Add(amt)
		case models.MethodOnline:
			online = online.Add(amt)
		case models.MethodBankTransfer:
			bank = bank.Add(amt)
		}

		switch t.FeeType {
		case models.FeeAdmission:
			admission = admission.Add(amt)
		case models.FeeTuition:
			tuition = tuition.Add(amt)
		case models.FeeExam:
			exam = exam.Add(amt)
		case models.FeeCertificate:
			certificate = certificate.Add(amt)
		default:
			other = other.Add(amt)
		}

		ct, ok := courses[t.CourseID]
		if !ok {
			ct = &courseTotals{students: map[primitive.ObjectID]struct{}{}}
			courses[t.CourseID] = ct
		}
		if ct.name == "" {
			ct.name = t.CourseName
		}
		ct.amount = ct.amount.Add(amt)
		ct.students[t.StudentID] = struct{}{}
	}

	ids := make([]string, 0, len(courses))
	for id := range courses {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	byCourse := make([]models.CourseRevenue, 0, len(ids))
	for _, id := range ids {
		ct := courses[id]
		byCourse = append(byCourse, models.CourseRevenue{
			CourseID:     id,
			CourseName:   ct.name,
			Amount:       ct.amount.InexactFloat64(),
			StudentCount: len(ct.students),
		})
	}

	return models.FinancialSummary{
		ID:               SummaryKey(year, month),
		Month:            int(month),
		Year:             year,
		FiscalYear:       FiscalYear(time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)),
		TransactionCount: counted,
		Revenue: models.Revenue{
			TotalCollected: total.InexactFloat64(),
			ByPaymentMethod: models.MethodBreakdown{
				Cash:         cash.InexactFloat64(),
				Online:       online.InexactFloat64(),
				BankTransfer: bank.InexactFloat64(),
			},
			ByFeeType: models.FeeTypeBreakdown{
				AdmissionFee:   admission.InexactFloat64(),
				TuitionFee:     tuition.InexactFloat64(),
				ExamFee:        exam.InexactFloat64(),
				CertificateFee: certificate.InexactFloat64(),
				Other:          other.InexactFloat64(),
			},
			ByCourse: byCourse,
		},
	}
}

// RecomputeMonthlySummary rebuilds and overwrites the summary of the month
// containing date.
func (f *Finance) RecomputeMonthlySummary(ctx context.Context, date time.Time) (*models.FinancialSummary, error) {
	start, end := monthWindow(date, f.loc)

	var txns []models.FeeTransaction
	err := f.store.Find(ctx, store.FeeTransactions,
		bson.M{"payment_date": bson.M{"$gte": start, "$lt": end}},
		store.FindOptions{SortBy: "transaction_id"},
		&txns)
	if err != nil {
		return nil, fmt.Errorf("load transactions for %s: %w", SummaryKey(start.Year(), start.Month()), err)
	}

	summary := AggregateMonth(start.Year(), start.Month(), txns)
	if err := f.store.Upsert(ctx, store.FinancialSummary, summary.ID, summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

func (f *Finance) GetMonthlySummary(ctx context.Context, year int, month time.Month) (*models.FinancialSummary, error) {
	var summary models.FinancialSummary
	if err := f.store.FindByID(ctx, store.FinancialSummary, SummaryKey(year, month), &summary); err != nil {
		return nil, notFound("summary "+SummaryKey(year, month), err)
	}
	return &summary, nil
}
