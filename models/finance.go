package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type PaymentMethod string

const (
	MethodCash         PaymentMethod = "cash"
	MethodOnline       PaymentMethod = "online"
	MethodBankTransfer PaymentMethod = "bank_transfer"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCash, MethodOnline, MethodBankTransfer:
		return true
	}
	return false
}

type FeeType string

const (
	FeeAdmission   FeeType = "admission_fee"
	FeeTuition     FeeType = "tuition_fee"
	FeeExam        FeeType = "exam_fee"
	FeeCertificate FeeType = "certificate_fee"
	FeeOther       FeeType = "other"
)

func (f FeeType) Valid() bool {
	switch f {
	case FeeAdmission, FeeTuition, FeeExam, FeeCertificate, FeeOther:
		return true
	}
	return false
}

type TransactionStatus string

const (
	TxnCompleted TransactionStatus = "completed"
	TxnPending   TransactionStatus = "pending"
	TxnVerified  TransactionStatus = "verified"
	TxnRefunded  TransactionStatus = "refunded"
)

// CountsAsRevenue reports whether a transaction contributes to collected revenue.
func (s TransactionStatus) CountsAsRevenue() bool {
	return s == TxnCompleted || s == TxnVerified
}

type InstallmentStatus string

const (
	InstallmentPending InstallmentStatus = "pending"
	InstallmentPaid    InstallmentStatus = "paid"
	InstallmentPartial InstallmentStatus = "partial"
	InstallmentOverdue InstallmentStatus = "overdue"
)

// PaymentDetails carries the method-specific fields; which ones are
// required depends on the payment method.
type PaymentDetails struct {
	// cash
	ReceivedBy string `bson:"received_by,omitempty" json:"received_by,omitempty"`

	// online
	Platform       string `bson:"platform,omitempty" json:"platform,omitempty"`
	TransactionRef string `bson:"transaction_ref,omitempty" json:"transaction_ref,omitempty"`

	// bank transfer
	BankName          string     `bson:"bank_name,omitempty" json:"bank_name,omitempty"`
	AccountNumber     string     `bson:"account_number,omitempty" json:"account_number,omitempty"`
	DepositSlipNumber string     `bson:"deposit_slip_number,omitempty" json:"deposit_slip_number,omitempty"`
	TransferDate      *time.Time `bson:"transfer_date,omitempty" json:"transfer_date,omitempty"`
}

type FeeTransaction struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TransactionID   string             `bson:"transaction_id" json:"transaction_id"` // TXN<year><seq>
	ReceiptNumber   string             `bson:"receipt_number" json:"receipt_number"` // REC<year><seq>
	StudentID       primitive.ObjectID `bson:"student_id" json:"student_id"`
	StudentName     string             `bson:"student_name" json:"student_name"`
	CourseID        string             `bson:"course_id" json:"course_id"`
	CourseName      string             `bson:"course_name" json:"course_name"`
	Amount          float64            `bson:"amount" json:"amount"`
	PaymentDate     time.Time          `bson:"payment_date" json:"payment_date"`
	PaymentMethod   PaymentMethod      `bson:"payment_method" json:"payment_method"`
	PaymentDetails  PaymentDetails     `bson:"payment_details" json:"payment_details"`
	FeeType         FeeType            `bson:"fee_type" json:"fee_type"`
	FiscalYear      string             `bson:"fiscal_year" json:"fiscal_year"`
	Notes           string             `bson:"notes,omitempty" json:"notes,omitempty"`
	Status          TransactionStatus  `bson:"status" json:"status"`
	CollectedBy     string             `bson:"collected_by" json:"collected_by"`
	CollectedByName string             `bson:"collected_by_name" json:"collected_by_name"`
	CreatedAt       time.Time          `bson:"created_at" json:"created_at"`
}

type FeeInstallment struct {
	ID                  primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	StudentID           primitive.ObjectID `bson:"student_id" json:"student_id"`
	StudentName         string             `bson:"student_name" json:"student_name"`
	CourseID            string             `bson:"course_id" json:"course_id"`
	InstallmentNumber   int                `bson:"installment_number" json:"installment_number"`
	Amount              float64            `bson:"amount" json:"amount"`
	DueDate             time.Time          `bson:"due_date" json:"due_date"`
	PaidDate            *time.Time         `bson:"paid_date" json:"paid_date"`
	PaidAmount          float64            `bson:"paid_amount" json:"paid_amount"`
	Status              InstallmentStatus  `bson:"status" json:"status"`
	LinkedTransactionID string             `bson:"linked_transaction_id" json:"linked_transaction_id"`
	ReminderSent        bool               `bson:"reminder_sent" json:"reminder_sent"`
	LastReminderDate    *time.Time         `bson:"last_reminder_date" json:"last_reminder_date"`
	Notes               string             `bson:"notes" json:"notes"`
	CreatedAt           time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt           time.Time          `bson:"updated_at" json:"updated_at"`
}

type MethodBreakdown struct {
	Cash         float64 `bson:"cash" json:"cash"`
	Online       float64 `bson:"online" json:"online"`
	BankTransfer float64 `bson:"bank_transfer" json:"bank_transfer"`
}

type FeeTypeBreakdown struct {
	AdmissionFee   float64 `bson:"admission_fee" json:"admission_fee"`
	TuitionFee     float64 `bson:"tuition_fee" json:"tuition_fee"`
	ExamFee        float64 `bson:"exam_fee" json:"exam_fee"`
	CertificateFee float64 `bson:"certificate_fee" json:"certificate_fee"`
	Other          float64 `bson:"other" json:"other"`
}

type CourseRevenue struct {
	CourseID     string  `bson:"course_id" json:"course_id"`
	CourseName   string  `bson:"course_name" json:"course_name"`
	Amount       float64 `bson:"amount" json:"amount"`
	StudentCount int     `bson:"student_count" json:"student_count"`
}

type Revenue struct {
	TotalCollected  float64          `bson:"total_collected" json:"total_collected"`
	ByPaymentMethod MethodBreakdown  `bson:"by_payment_method" json:"by_payment_method"`
	ByFeeType       FeeTypeBreakdown `bson:"by_fee_type" json:"by_fee_type"`
	ByCourse        []CourseRevenue  `bson:"by_course" json:"by_course"` // ordered by course id
}

// FinancialSummary is keyed by "YYYY-MM" and is always rebuilt from the
// month's transactions, never patched.
type FinancialSummary struct {
	ID               string  `bson:"_id" json:"id"`
	Month            int     `bson:"month" json:"month"`
	Year             int     `bson:"year" json:"year"`
	FiscalYear       string  `bson:"fiscal_year" json:"fiscal_year"`
	TransactionCount int     `bson:"transaction_count" json:"transaction_count"`
	Revenue          Revenue `bson:"revenue" json:"revenue"`
}
