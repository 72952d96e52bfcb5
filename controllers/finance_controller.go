package controllers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	config "github.com/phillip/newvision-backend/config"
	middleware "github.com/phillip/newvision-backend/middleware"
	models "github.com/phillip/newvision-backend/models"
	services "github.com/phillip/newvision-backend/services"
	utils "github.com/phillip/newvision-backend/utils"
)

// parseDateParam reads an optional date. A plain YYYY-MM-DD used as an upper
// bound covers the whole day.
func parseDateParam(c *gin.Context, cfg *config.Config, name string, endOfDay bool) (time.Time, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return time.Time{}, true
	}
	t, err := utils.ParseDate(raw, cfg.Location)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + ": " + err.Error()})
		return time.Time{}, false
	}
	if endOfDay && len(raw) == len("2006-01-02") {
		t = t.AddDate(0, 0, 1).Add(-time.Millisecond)
	}
	return t, true
}

// ---------------- RECORD PAYMENT ----------------
func RecordPayment(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			StudentID      string                `json:"student_id" binding:"required"`
			Amount         float64               `json:"amount"`
			PaymentDate    string                `json:"payment_date"`
			PaymentMethod  models.PaymentMethod  `json:"payment_method"`
			PaymentDetails models.PaymentDetails `json:"payment_details"`
			FeeType        models.FeeType        `json:"fee_type"`
			Notes          string                `json:"notes"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		studentID, err := primitive.ObjectIDFromHex(input.StudentID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid student id"})
			return
		}
		var paymentDate time.Time
		if input.PaymentDate != "" {
			if paymentDate, err = utils.ParseDate(input.PaymentDate, cfg.Location); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "payment_date: " + err.Error()})
				return
			}
		}

		ctx, cancel := cfg.Timeout(c.Request.Context())
		defer cancel()

		txn, err := services.NewFinance(cfg.Store, cfg.Location).RecordPayment(ctx, middleware.CurrentActor(c), services.PaymentInput{
			StudentID:   studentID,
			Amount:      input.Amount,
			PaymentDate: paymentDate,
			Method:      input.PaymentMethod,
			Details:     input.PaymentDetails,
			FeeType:     input.FeeType,
			Notes:       input.Notes,
		})
		if err != nil {
			respondError(c, err, "could not record payment")
			return
		}
		c.JSON(http.StatusCreated, txn)
	}
}

// ---------------- TRANSACTIONS ----------------
func ListTransactions(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		from, ok := parseDateParam(c, cfg, "from", false)
		if !ok {
			return
		}
		to, ok := parseDateParam(c, cfg, "to", true)
		if !ok {
			return
		}
		filter := services.TransactionFilter{
			From:     from,
			To:       to,
			Method:   models.PaymentMethod(c.Query("method")),
			FeeType:  models.FeeType(c.Query("fee_type")),
			Status:   models.TransactionStatus(c.Query("status")),
			CourseID: c.Query("course_id"),
		}
		if sid := c.Query("student_id"); sid != "" {
			id, err := primitive.ObjectIDFromHex(sid)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid student id"})
				return
			}
			filter.StudentID = id
		}

		ctx, cancel := cfg.Timeout(c.Request.Context())
		defer cancel()

		txns, err := services.NewFinance(cfg.Store, cfg.Location).ListTransactions(ctx, filter)
		if err != nil {
			respondError(c, err, "could not fetch transactions")
			return
		}
		if txns == nil {
			txns = []models.FeeTransaction{}
		}
		c.JSON(http.StatusOK, txns)
	}
}

func GetTransaction(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "transaction")
		if !ok {
			return
		}
		ctx, cancel := cfg.Timeout(c.Request.Context())
		defer cancel()

		txn, err := services.NewFinance(cfg.Store, cfg.Location).GetTransaction(ctx, id)
		if err != nil {
			respondError(c, err, "could not fetch transaction")
			return
		}
		c.JSON(http.StatusOK, txn)
	}
}

func Revenue(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		from, ok := parseDateParam(c, cfg, "from", false)
		if !ok {
			return
		}
		to, ok := parseDateParam(c, cfg, "to", true)
		if !ok {
			return
		}
		ctx, cancel := cfg.Timeout(c.Request.Context())
		defer cancel()

		total, err := services.NewFinance(cfg.Store, cfg.Location).CalculateRevenue(ctx, from, to)
		if err != nil {
			respondError(c, err, "could not calculate revenue")
			return
		}
		c.JSON(http.StatusOK, gin.H{"total": total, "formatted": services.FormatRupees(total)})
	}
}

// ---------------- INSTALLMENTS ----------------
func CreateInstallmentPlan(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			StudentID    string  `json:"student_id" binding:"required"`
			TotalFees    float64 `json:"total_fees"`
			Discount     float64 `json:"discount"`
			Installments int     `json:"installments" binding:"required"`
			StartDate    string  `json:"start_date" binding:"required"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		studentID, err := primitive.ObjectIDFromHex(input.StudentID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid student id"})
			return
		}
		start, err := utils.ParseDate(input.StartDate, cfg.Location)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "start_date: " + err.Error()})
			return
		}

		ctx, cancel := cfg.Timeout(c.Request.Context())
		defer cancel()

		plan, err := services.NewFinance(cfg.Store, cfg.Location).GenerateInstallmentPlan(ctx, services.PlanRequest{
			StudentID: studentID,
			TotalFees: input.TotalFees,
			Discount:  input.Discount,
			Count:     input.Installments,
			StartDate: start,
		})
		if err != nil {
			respondError(c, err, "could not create installment plan")
			return
		}
		c.JSON(http.StatusCreated, plan)
	}
}

func ListOverdueInstallments(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := cfg.Timeout(c.Request.Context())
		defer cancel()

		overdue, err := services.NewFinance(cfg.Store, cfg.Location).ListOverdueInstallments(ctx, time.Now())
		if err != nil {
			respondError(c, err, "could not fetch overdue installments")
			return
		}
		if overdue == nil {
			overdue = []models.FeeInstallment{}
		}
		c.JSON(http.StatusOK, overdue)
	}
}

func MarkInstallmentPaid(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "installment")
		if !ok {
			return
		}
		var input struct {
			TransactionID string  `json:"transaction_id"`
			PaidAmount    float64 `json:"paid_amount" binding:"required"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		ctx, cancel := cfg.Timeout(c.Request.Context())
		defer cancel()

		inst, err := services.NewFinance(cfg.Store, cfg.Location).MarkInstallmentPaid(ctx, id, input.TransactionID, input.PaidAmount)
		if err != nil {
			respondError(c, err, "could not update installment")
			return
		}
		c.JSON(http.StatusOK, inst)
	}
}

// ---------------- SUMMARIES ----------------
func parseYearMonth(c *gin.Context) (int, time.Month, bool) {
	year, err := strconv.Atoi(c.Param("year"))
	if err != nil || year < 2000 || year > 2100 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid year"})
		return 0, 0, false
	}
	month, err := strconv.Atoi(c.Param("month"))
	if err != nil || month < 1 || month > 12 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid month"})
		return 0, 0, false
	}
	return year, time.Month(month), true
}

func GetMonthlySummary(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		year, month, ok := parseYearMonth(c)
		if !ok {
			return
		}
		ctx, cancel := cfg.Timeout(c.Request.Context())
		defer cancel()

		summary, err := services.NewFinance(cfg.Store, cfg.Location).GetMonthlySummary(ctx, year, month)
		if err != nil {
			respondError(c, err, "could not fetch summary")
			return
		}
		c.JSON(http.StatusOK, summary)
	}
}

// RecomputeMonthlySummary rebuilds a month, e.g. after a partial payment failure.
func RecomputeMonthlySummary(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		year, month, ok := parseYearMonth(c)
		if !ok {
			return
		}
		ctx, cancel := cfg.Timeout(c.Request.Context())
		defer cancel()

		date := time.Date(year, month, 1, 12, 0, 0, 0, cfg.Location)
		summary, err := services.NewFinance(cfg.Store, cfg.Location).RecomputeMonthlySummary(ctx, date)
		if err != nil {
			respondError(c, err, "could not recompute summary")
			return
		}
		c.JSON(http.StatusOK, summary)
	}
}

// ---------------- DASHBOARD ----------------
func Dashboard(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := cfg.Timeout(c.Request.Context())
		defer cancel()

		stats, err := services.NewFinance(cfg.Store, cfg.Location).Dashboard(ctx)
		if err != nil {
			respondError(c, err, "could not load dashboard")
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}
