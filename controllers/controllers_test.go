package controllers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	config "github.com/phillip/newvision-backend/config"
	routes "github.com/phillip/newvision-backend/routes"
	services "github.com/phillip/newvision-backend/services"
	store "github.com/phillip/newvision-backend/store"
	utils "github.com/phillip/newvision-backend/utils"
)

const (
	adminEmail    = "office@newvision.edu.np"
	adminPassword = "correct-horse"
)

func newServer(t *testing.T) (*gin.Engine, *config.Config) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{
		Store:          store.NewMemory(false),
		Assets:         utils.DisabledAssets{},
		JWTSecret:      []byte("controllers-test-secret"),
		JWTTTL:         time.Hour,
		RequestTimeout: 5 * time.Second,
		Location:       time.UTC,
	}
	_, err := services.NewAuth(cfg.Store, cfg.JWTSecret, cfg.JWTTTL).
		CreateAdmin(context.Background(), "Front Office", adminEmail, adminPassword)
	require.NoError(t, err)

	r := gin.New()
	routes.SetupRoutes(r, cfg)
	return r, cfg
}

func do(r *gin.Engine, method, path, token string, body any, headers ...string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func login(t *testing.T, r *gin.Engine) string {
	t.Helper()
	w := do(r, http.MethodPost, "/auth/login", "", gin.H{"email": adminEmail, "password": adminPassword})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[struct {
		Token string `json:"token"`
	}](t, w)
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func TestAdminRoutesRequireSession(t *testing.T) {
	r, _ := newServer(t)

	tests := []struct {
		name  string
		token string
	}{
		{name: "no token", token: ""},
		{name: "garbage token", token: "not-a-jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(r, http.MethodGet, "/admin/dashboard", tt.token, nil)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestLoginAndLogout(t *testing.T) {
	r, _ := newServer(t)

	w := do(r, http.MethodPost, "/auth/login", "", gin.H{"email": adminEmail, "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(r, http.MethodPost, "/auth/login", "", gin.H{"email": "not-an-email", "password": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	token := login(t, r)
	w = do(r, http.MethodGet, "/auth/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	me := decode[map[string]string](t, w)
	assert.Equal(t, "Front Office", me["name"])
	assert.Equal(t, "admin", me["role"])

	w = do(r, http.MethodPost, "/auth/logout", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodGet, "/auth/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code, "token must stop working after logout")
}

type studentResp struct {
	Student struct {
		ID            string `json:"id"`
		StudentID     string `json:"student_id"`
		FinancialInfo struct {
			TotalFees     float64 `json:"total_fees"`
			PaidAmount    float64 `json:"paid_amount"`
			PendingAmount float64 `json:"pending_amount"`
		} `json:"financial_info"`
	} `json:"student"`
	Installments []struct {
		InstallmentNumber int     `json:"installment_number"`
		Amount            float64 `json:"amount"`
	} `json:"installments"`
}

func enrolStudent(t *testing.T, r *gin.Engine, token string) studentResp {
	t.Helper()
	w := do(r, http.MethodPost, "/admin/students", token, gin.H{
		"personal_info":  gin.H{"first_name": "Sita", "last_name": "Sharma", "phone": "9800000000"},
		"academic_info":  gin.H{"course_id": "see-prep", "course_name": "SEE Preparation"},
		"financial_info": gin.H{"total_fees": 50000, "discount": 5000},
		"installments":   3,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[studentResp](t, w)
}

func TestEnrolAndRecordPayment(t *testing.T) {
	r, _ := newServer(t)
	token := login(t, r)

	enrolled := enrolStudent(t, r, token)
	assert.Regexp(t, `^NV\d{4}0001$`, enrolled.Student.StudentID)
	assert.Equal(t, 45000.0, enrolled.Student.FinancialInfo.PendingAmount)
	require.Len(t, enrolled.Installments, 3)
	assert.Equal(t, 15000.0, enrolled.Installments[0].Amount)

	studentID := enrolled.Student.ID

	t.Run("rejects cash without collector name", func(t *testing.T) {
		w := do(r, http.MethodPost, "/admin/finance/transactions", token, gin.H{
			"student_id":     studentID,
			"amount":         5000,
			"payment_method": "cash",
			"fee_type":       "tuition_fee",
		})
		require.Equal(t, http.StatusBadRequest, w.Code)
		resp := decode[struct {
			Details []services.FieldError `json:"details"`
		}](t, w)
		require.Len(t, resp.Details, 1)
		assert.Equal(t, "payment_details.received_by", resp.Details[0].Field)
	})

	t.Run("unknown student", func(t *testing.T) {
		w := do(r, http.MethodPost, "/admin/finance/transactions", token, gin.H{
			"student_id":      "5f1d7f0b2c3a4b5c6d7e8f90",
			"amount":          5000,
			"payment_method":  "cash",
			"payment_details": gin.H{"received_by": "Ram"},
			"fee_type":        "tuition_fee",
		})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("malformed student id", func(t *testing.T) {
		w := do(r, http.MethodPost, "/admin/finance/transactions", token, gin.H{
			"student_id": "42", "amount": 5000, "payment_method": "cash", "fee_type": "tuition_fee",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	w := do(r, http.MethodPost, "/admin/finance/transactions", token, gin.H{
		"student_id":      studentID,
		"amount":          5000,
		"payment_date":    "2025-03-10",
		"payment_method":  "online",
		"payment_details": gin.H{"platform": "eSewa", "transaction_ref": "ES-991"},
		"fee_type":        "tuition_fee",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	txn := decode[struct {
		TransactionID   string `json:"transaction_id"`
		ReceiptNumber   string `json:"receipt_number"`
		Status          string `json:"status"`
		FiscalYear      string `json:"fiscal_year"`
		CollectedByName string `json:"collected_by_name"`
	}](t, w)
	assert.Equal(t, "TXN202500001", txn.TransactionID)
	assert.Equal(t, "REC202500001", txn.ReceiptNumber)
	assert.Equal(t, "completed", txn.Status)
	assert.Equal(t, "2024/25", txn.FiscalYear)
	assert.Equal(t, "Front Office", txn.CollectedByName)

	w = do(r, http.MethodGet, "/admin/students/"+studentID, token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	student := decode[struct {
		FinancialInfo struct {
			PaidAmount    float64 `json:"paid_amount"`
			PendingAmount float64 `json:"pending_amount"`
		} `json:"financial_info"`
	}](t, w)
	assert.Equal(t, 5000.0, student.FinancialInfo.PaidAmount)
	assert.Equal(t, 40000.0, student.FinancialInfo.PendingAmount)

	w = do(r, http.MethodGet, "/admin/finance/summaries/2025/3", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	summary := decode[struct {
		TransactionCount int `json:"transaction_count"`
		Revenue          struct {
			TotalCollected  float64 `json:"total_collected"`
			ByPaymentMethod struct {
				Online float64 `json:"online"`
			} `json:"by_payment_method"`
		} `json:"revenue"`
	}](t, w)
	assert.Equal(t, 1, summary.TransactionCount)
	assert.Equal(t, 5000.0, summary.Revenue.TotalCollected)
	assert.Equal(t, 5000.0, summary.Revenue.ByPaymentMethod.Online)

	w = do(r, http.MethodGet, "/admin/finance/revenue?from=2025-03-01&to=2025-03-10", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	revenue := decode[map[string]any](t, w)
	assert.Equal(t, 5000.0, revenue["total"])
	assert.Equal(t, "Rs. 5,000", revenue["formatted"])

	w = do(r, http.MethodGet, "/admin/finance/transactions?student_id="+studentID, token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]map[string]any](t, w), 1)

	w = do(r, http.MethodGet, "/admin/finance/summaries/2025/13", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = do(r, http.MethodGet, "/admin/finance/summaries/2025/4", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPublicContactForm(t *testing.T) {
	r, _ := newServer(t)

	w := do(r, http.MethodPost, "/contacts", "", gin.H{"name": "Hari", "message": "Do you run bridge courses?"})
	assert.Equal(t, http.StatusBadRequest, w.Code, "phone is required")

	w = do(r, http.MethodPost, "/contacts", "", gin.H{
		"name":    "Hari",
		"phone":   "9811111111",
		"message": "Do you run bridge courses?",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	token := login(t, r)
	w = do(r, http.MethodGet, "/admin/contacts", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	contacts := decode[[]map[string]any](t, w)
	require.Len(t, contacts, 1)
	assert.Equal(t, "new", contacts[0]["status"])
}

func TestCourseListETag(t *testing.T) {
	r, _ := newServer(t)
	token := login(t, r)

	w := do(r, http.MethodPost, "/admin/courses", token, gin.H{"title": "Bridge Course", "category": "science"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = do(r, http.MethodGet, "/courses", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	etag := w.Header().Get("ETag")
	require.NotEmpty(t, etag)

	w = do(r, http.MethodGet, "/courses", "", nil, "If-None-Match", etag)
	assert.Equal(t, http.StatusNotModified, w.Code)

	w = do(r, http.MethodPost, "/admin/courses", token, gin.H{"title": "Loksewa Preparation", "category": "civil"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = do(r, http.MethodGet, "/courses", "", nil, "If-None-Match", etag)
	assert.Equal(t, http.StatusOK, w.Code, "a new course must invalidate the list tag")
	assert.Len(t, decode[[]map[string]any](t, w), 2)

	w = do(r, http.MethodGet, "/courses/not-an-id", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUploadWithoutAssetStore(t *testing.T) {
	r, cfg := newServer(t)
	token := login(t, r)
	enrolled := enrolStudent(t, r, token)

	var body bytes.Buffer
	req := httptest.NewRequest(http.MethodPost, "/admin/students/"+enrolled.Student.ID+"/documents/photo", &body)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code, "missing file")

	assert.IsType(t, utils.DisabledAssets{}, cfg.Assets)
}
