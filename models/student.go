package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type StudentStatus string

const (
	StudentActive    StudentStatus = "active"
	StudentInactive  StudentStatus = "inactive"
	StudentCompleted StudentStatus = "completed"
	StudentDropout   StudentStatus = "dropout"
)

func (s StudentStatus) Valid() bool {
	switch s {
	case StudentActive, StudentInactive, StudentCompleted, StudentDropout:
		return true
	}
	return false
}

type Address struct {
	Province     string `bson:"province" json:"province"`
	District     string `bson:"district" json:"district"`
	Municipality string `bson:"municipality" json:"municipality"`
	WardNo       int    `bson:"ward_no" json:"ward_no"`
	Tole         string `bson:"tole" json:"tole"`
}

type GuardianInfo struct {
	Name       string `bson:"name" json:"name"`
	Relation   string `bson:"relation" json:"relation"`
	Phone      string `bson:"phone" json:"phone"`
	Occupation string `bson:"occupation" json:"occupation"`
}

type PersonalInfo struct {
	FirstName   string       `bson:"first_name" json:"first_name" binding:"required"`
	MiddleName  string       `bson:"middle_name,omitempty" json:"middle_name,omitempty"`
	LastName    string       `bson:"last_name" json:"last_name" binding:"required"`
	Email       string       `bson:"email" json:"email"`
	Phone       string       `bson:"phone" json:"phone"`
	DateOfBirth *time.Time   `bson:"date_of_birth,omitempty" json:"date_of_birth,omitempty"`
	Gender      string       `bson:"gender" json:"gender"` // male, female, other
	Citizenship string       `bson:"citizenship" json:"citizenship"`
	Address     Address      `bson:"address" json:"address"`
	Guardian    GuardianInfo `bson:"guardian_info" json:"guardian_info"`
}

type PreviousEducation struct {
	Level       string `bson:"level" json:"level"`
	Institution string `bson:"institution" json:"institution"`
	Board       string `bson:"board" json:"board"`
	PassedYear  string `bson:"passed_year" json:"passed_year"`
}

type AcademicInfo struct {
	EnrollmentDate    time.Time         `bson:"enrollment_date" json:"enrollment_date"`
	CourseID          string            `bson:"course_id" json:"course_id" binding:"required"`
	CourseName        string            `bson:"course_name" json:"course_name"`
	Batch             string            `bson:"batch" json:"batch"`
	AcademicYear      string            `bson:"academic_year" json:"academic_year"`
	Status            StudentStatus     `bson:"status" json:"status"`
	PreviousEducation PreviousEducation `bson:"previous_education" json:"previous_education"`
}

// FinancialInfo holds the running totals. PaidAmount and PendingAmount are
// only ever written by the balance reconciler once the student exists.
type FinancialInfo struct {
	TotalFees      float64 `bson:"total_fees" json:"total_fees"`
	PaidAmount     float64 `bson:"paid_amount" json:"paid_amount"`
	PendingAmount  float64 `bson:"pending_amount" json:"pending_amount"`
	Discount       float64 `bson:"discount" json:"discount"`
	DiscountReason string  `bson:"discount_reason,omitempty" json:"discount_reason,omitempty"`
	AdmissionFee   float64 `bson:"admission_fee" json:"admission_fee"`
}

type StudentDocuments struct {
	Photo        string   `bson:"photo" json:"photo"`
	Citizenship  string   `bson:"citizenship" json:"citizenship"`
	Marksheet    string   `bson:"marksheet" json:"marksheet"`
	Certificates []string `bson:"certificates" json:"certificates"`
}

// URLs lists every uploaded document.
func (d StudentDocuments) URLs() []string {
	var urls []string
	for _, u := range []string{d.Photo, d.Citizenship, d.Marksheet} {
		if u != "" {
			urls = append(urls, u)
		}
	}
	return append(urls, d.Certificates...)
}

type Student struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	StudentID     string             `bson:"student_id" json:"student_id"` // NV<year><seq>
	PersonalInfo  PersonalInfo       `bson:"personal_info" json:"personal_info"`
	AcademicInfo  AcademicInfo       `bson:"academic_info" json:"academic_info"`
	FinancialInfo FinancialInfo      `bson:"financial_info" json:"financial_info"`
	Documents     StudentDocuments   `bson:"documents" json:"documents"`
	Version       int64              `bson:"version" json:"version"`
	CreatedBy     string             `bson:"created_by" json:"created_by"`
	CreatedAt     time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt     time.Time          `bson:"updated_at" json:"updated_at"`
}

func (s Student) FullName() string {
	return strings.TrimSpace(s.PersonalInfo.FirstName + " " + s.PersonalInfo.LastName)
}
