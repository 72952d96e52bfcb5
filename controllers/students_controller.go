package controllers

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	config "github.com/phillip/newvision-backend/config"
	middleware "github.com/phillip/newvision-backend/middleware"
	models "github.com/phillip/newvision-backend/models"
	services "github.com/phillip/newvision-backend/services"
)

type enrollmentInput struct {
	PersonalInfo  models.PersonalInfo `json:"personal_info" binding:"required"`
	AcademicInfo  models.AcademicInfo `json:"academic_info" binding:"required"`
	FinancialInfo services.FeeTerms   `json:"financial_info"`
	// More than one installment creates a monthly plan starting today.
	Installments int `json:"installments" binding:"omitempty,min=1,max=24"`
}

// ---------------- CREATE ----------------
func CreateStudent(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input enrollmentInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		ctx, cancel := cfg.Timeout(c.Request.Context())
		defer cancel()

		students := services.NewStudents(cfg.Store, cfg.Assets, cfg.Location)
		student, err := students.CreateStudent(ctx, middleware.CurrentActor(c), services.StudentInput{
			PersonalInfo: input.PersonalInfo,
			AcademicInfo: input.AcademicInfo,
			Fees:         input.FinancialInfo,
		})
		if err != nil {
			respondError(c, err, "could not create student")
			return
		}

		resp := gin.H{"student": student}
		if input.Installments > 1 {
			finance := services.NewFinance(cfg.Store, cfg.Location)
			plan, err := finance.GenerateInstallmentPlan(ctx, services.PlanRequest{
				StudentID:   student.ID,
				StudentName: student.FullName(),
				CourseID:    student.AcademicInfo.CourseID,
				TotalFees:   student.FinancialInfo.TotalFees,
				Discount:    student.FinancialInfo.Discount,
				Count:       input.Installments,
				StartDate:   time.Now().In(cfg.Location),
			})
			if err != nil {
				// the student stays enrolled; the plan can be created again
				log.Printf("[students] installment plan for %s failed: %v", student.StudentID, err)
				resp["installment_error"] = err.Error()
			} else {
				resp["installments"] = plan
			}
		}
		c.JSON(http.StatusCreated, resp)
	}
}

// ---------------- LIST ----------------
func ListStudents(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		filter := services.StudentFilter{
			CourseID: c.Query("course_id"),
			Status:   models.StudentStatus(c.Query("status")),
			Batch:    c.Query("batch"),
			Search:   c.Query("q"),
		}
		if filter.Status != "" && !filter.Status.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status filter"})
			return
		}

		ctx, cancel := cfg.Timeout(c.Request.Context())
		defer cancel()

		students, err := services.NewStudents(cfg.Store, cfg.Assets, cfg.Location).ListStudents(ctx, filter)
		if err != nil {
			respondError(c, err, "could not fetch students")
			return
		}
		if students == nil {
			students = []models.Student{}
		}
		c.JSON(http.StatusOK, students)
	}
}

func ListStudentsWithDues(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := cfg.Timeout(c.Request.Context())
		defer cancel()

		students, err := services.NewStudents(cfg.Store, cfg.Assets, cfg.Location).ListStudentsWithPendingPayments(ctx)
		if err != nil {
			respondError(c, err, "could not fetch students")
			return
		}
		if students == nil {
			students = []models.Student{}
		}
		c.JSON(http.StatusOK, students)
	}
}

// ---------------- GET ----------------
func GetStudent(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "student")
		if !ok {
			return
		}
		ctx, cancel := cfg.Timeout(c.Request.Context())
		defer cancel()

		student, err := services.NewStudents(cfg.Store, cfg.Assets, cfg.Location).GetStudent(ctx, id)
		if err != nil {
			respondError(c, err, "could not fetch student")
			return
		}
		if notModifiedOne(c, student.ID, student.UpdatedAt) {
			return
		}
		c.JSON(http.StatusOK, student)
	}
}

// ---------------- UPDATE ----------------
func UpdateStudent(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "student")
		if !ok {
			return
		}
		var input struct {
			PersonalInfo  *models.PersonalInfo  `json:"personal_info"`
			AcademicInfo  *models.AcademicInfo  `json:"academic_info"`
			Status        *models.StudentStatus `json:"status"`
			FinancialInfo *services.FeeTerms    `json:"financial_info"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		ctx, cancel := cfg.Timeout(c.Request.Context())
		defer cancel()

		student, err := services.NewStudents(cfg.Store, cfg.Assets, cfg.Location).UpdateStudent(ctx, id, services.StudentUpdate{
			PersonalInfo: input.PersonalInfo,
			AcademicInfo: input.AcademicInfo,
			Status:       input.Status,
			Fees:         input.FinancialInfo,
		})
		if err != nil {
			respondError(c, err, "could not update student")
			return
		}
		c.JSON(http.StatusOK, student)
	}
}

// ---------------- DELETE ----------------
func DeleteStudent(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "student")
		if !ok {
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
		defer cancel()

		if err := services.NewStudents(cfg.Store, cfg.Assets, cfg.Location).DeleteStudent(ctx, id); err != nil {
			respondError(c, err, "could not delete student")
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "student deleted"})
	}
}

// ---------------- DOCUMENTS ----------------
func UploadStudentDocument(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "student")
		if !ok {
			return
		}
		fileHeader, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "a file is required"})
			return
		}
		file, err := fileHeader.Open()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to open file"})
			return
		}
		defer file.Close()

		ctx, cancel := context.WithTimeout(c.Request.Context(), 60*time.Second)
		defer cancel()

		student, err := services.NewStudents(cfg.Store, cfg.Assets, cfg.Location).AttachStudentDocument(ctx, id, c.Param("kind"), file)
		if err != nil {
			respondError(c, err, "document upload failed")
			return
		}
		c.JSON(http.StatusOK, student)
	}
}

// ---------------- FEES OF ONE STUDENT ----------------
func StudentInstallments(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "student")
		if !ok {
			return
		}
		ctx, cancel := cfg.Timeout(c.Request.Context())
		defer cancel()

		installments, err := services.NewFinance(cfg.Store, cfg.Location).ListStudentInstallments(ctx, id)
		if err != nil {
			respondError(c, err, "could not fetch installments")
			return
		}
		if installments == nil {
			installments = []models.FeeInstallment{}
		}
		c.JSON(http.StatusOK, installments)
	}
}

func StudentTransactions(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "student")
		if !ok {
			return
		}
		ctx, cancel := cfg.Timeout(c.Request.Context())
		defer cancel()

		txns, err := services.NewFinance(cfg.Store, cfg.Location).TransactionHistory(ctx, id)
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
