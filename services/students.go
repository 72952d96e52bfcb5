package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/phillip/newvision-backend/models"
	"github.com/phillip/newvision-backend/store"
	"github.com/phillip/newvision-backend/utils"
)

// maxBalanceAttempts bounds the read-modify-write retries of a guarded update.
const maxBalanceAttempts = 5

// updateStudentGuarded re-reads the student, lets mutate derive the fields
// to set, and writes them only if nobody bumped the version in between.
func updateStudentGuarded(ctx context.Context, st store.Store, id primitive.ObjectID, now func() time.Time, mutate func(*models.Student) bson.M) (*models.Student, error) {
	for attempt := 0; attempt < maxBalanceAttempts; attempt++ {
		var student models.Student
		if err := st.FindByID(ctx, store.Students, id, &student); err != nil {
			return nil, notFound("student", err)
		}

		set := mutate(&student)
		version := student.Version
		student.Version = version + 1
		student.UpdatedAt = now()
		set["version"] = student.Version
		set["updated_at"] = student.UpdatedAt

		matched, err := st.UpdateOneWhere(ctx, store.Students, bson.M{"_id": id, "version": version}, set)
		if err != nil {
			return nil, err
		}
		if matched == 1 {
			return &student, nil
		}
	}
	return nil, fmt.Errorf("student %s: %w", id.Hex(), ErrConflict)
}

// FeeTerms are the fee fields an admin sets; paid and pending are derived.
type FeeTerms struct {
	TotalFees      float64 `json:"total_fees"`
	Discount       float64 `json:"discount"`
	DiscountReason string  `json:"discount_reason"`
	AdmissionFee   float64 `json:"admission_fee"`
}

func (t FeeTerms) validate(verr *ValidationError) {
	if t.TotalFees < 0 {
		verr.add("financial_info.total_fees", "must not be negative")
	}
	if t.Discount < 0 {
		verr.add("financial_info.discount", "must not be negative")
	}
	if t.Discount > t.TotalFees {
		verr.add("financial_info.discount", "must not exceed total fees")
	}
}

type StudentInput struct {
	PersonalInfo models.PersonalInfo
	AcademicInfo models.AcademicInfo
	Fees         FeeTerms
}

// StudentUpdate carries the sections to replace; nil sections are left alone.
type StudentUpdate struct {
	PersonalInfo *models.PersonalInfo
	AcademicInfo *models.AcademicInfo
	Status       *models.StudentStatus
	Fees         *FeeTerms
}

type StudentFilter struct {
	CourseID string
	Status   models.StudentStatus
	Batch    string
	Search   string
}

type Students struct {
	store  store.Store
	assets utils.AssetStore
	loc    *time.Location
	now    func() time.Time
}

// NewStudents builds the student service. Enrolment years are read in loc
// (UTC when nil), the same location payments use.
func NewStudents(st store.Store, assets utils.AssetStore, loc *time.Location) *Students {
	if loc == nil {
		loc = time.UTC
	}
	return &Students{store: st, assets: assets, loc: loc, now: time.Now}
}

// CreateStudent enrols a student with a store-assigned NV<year><seq> id.
func (s *Students) CreateStudent(ctx context.Context, actor Actor, in StudentInput) (*models.Student, error) {
	verr := &ValidationError{}
	if strings.TrimSpace(in.PersonalInfo.FirstName) == "" {
		verr.add("personal_info.first_name", "is required")
	}
	if strings.TrimSpace(in.PersonalInfo.LastName) == "" {
		verr.add("personal_info.last_name", "is required")
	}
	verr.email("personal_info.email", strings.TrimSpace(in.PersonalInfo.Email))
	if strings.TrimSpace(in.AcademicInfo.CourseID) == "" {
		verr.add("academic_info.course_id", "is required")
	}
	if in.AcademicInfo.Status != "" && !in.AcademicInfo.Status.Valid() {
		verr.add("academic_info.status", "must be one of active, inactive, completed, dropout")
	}
	in.Fees.validate(verr)
	if err := verr.orNil(); err != nil {
		return nil, err
	}

	now := s.now()
	academic := in.AcademicInfo
	if academic.Status == "" {
		academic.Status = models.StudentActive
	}
	if academic.EnrollmentDate.IsZero() {
		academic.EnrollmentDate = now
	}

	year := now.In(s.loc).Year()
	seq, err := s.store.NextSequence(ctx, fmt.Sprintf("%s:%d", store.Students, year))
	if err != nil {
		return nil, err
	}

	student := models.Student{
		ID:           primitive.NewObjectID(),
		StudentID:    fmt.Sprintf("NV%d%04d", year, seq),
		PersonalInfo: in.PersonalInfo,
		AcademicInfo: academic,
		FinancialInfo: models.FinancialInfo{
			TotalFees:      in.Fees.TotalFees,
			Discount:       in.Fees.Discount,
			DiscountReason: in.Fees.DiscountReason,
			AdmissionFee:   in.Fees.AdmissionFee,
			PaidAmount:     0,
			PendingAmount:  PendingAmount(in.Fees.TotalFees, in.Fees.Discount, 0),
		},
		Documents: models.StudentDocuments{Certificates: []string{}},
		Version:   0,
		CreatedBy: actor.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Insert(ctx, store.Students, student); err != nil {
		return nil, fmt.Errorf("save student: %w", err)
	}
	return &student, nil
}

func (s *Students) GetStudent(ctx context.Context, id primitive.ObjectID) (*models.Student, error) {
	var student models.Student
	if err := s.store.FindByID(ctx, store.Students, id, &student); err != nil {
		return nil, notFound("student", err)
	}
	return &student, nil
}

// ListStudents returns matching students, newest enrolment first. Search
// matches first name, last name, student id or email, case-insensitively.
func (s *Students) ListStudents(ctx context.Context, filter StudentFilter) ([]models.Student, error) {
	q := bson.M{}
	if filter.CourseID != "" {
		q["academic_info.course_id"] = filter.CourseID
	}
	if filter.Status != "" {
		q["academic_info.status"] = filter.Status
	}
	if filter.Batch != "" {
		q["academic_info.batch"] = filter.Batch
	}
	if term := strings.TrimSpace(filter.Search); term != "" {
		rx := bson.M{"$regex": regexp.QuoteMeta(term), "$options": "i"}
		q["$or"] = bson.A{
			bson.M{"personal_info.first_name": rx},
			bson.M{"personal_info.last_name": rx},
			bson.M{"student_id": rx},
			bson.M{"personal_info.email": rx},
		}
	}

	var students []models.Student
	if err := s.store.Find(ctx, store.Students, q, store.FindOptions{SortBy: "created_at", Desc: true}, &students); err != nil {
		return nil, err
	}
	return students, nil
}

// ListStudentsWithPendingPayments returns students who still owe fees,
// largest balance first.
func (s *Students) ListStudentsWithPendingPayments(ctx context.Context) ([]models.Student, error) {
	var students []models.Student
	err := s.store.Find(ctx, store.Students,
		bson.M{"financial_info.pending_amount": bson.M{"$gt": 0}},
		store.FindOptions{SortBy: "financial_info.pending_amount", Desc: true},
		&students)
	if err != nil {
		return nil, err
	}
	return students, nil
}

func (s *Students) CountActiveStudents(ctx context.Context) (int64, error) {
	return s.store.Count(ctx, store.Students, bson.M{"academic_info.status": models.StudentActive})
}

// UpdateStudent replaces the given sections. Changing fee terms re-derives
// the pending amount from the stored paid total.
func (s *Students) UpdateStudent(ctx context.Context, id primitive.ObjectID, upd StudentUpdate) (*models.Student, error) {
	verr := &ValidationError{}
	if upd.PersonalInfo != nil {
		if strings.TrimSpace(upd.PersonalInfo.FirstName) == "" {
			verr.add("personal_info.first_name", "is required")
		}
		if strings.TrimSpace(upd.PersonalInfo.LastName) == "" {
			verr.add("personal_info.last_name", "is required")
		}
		verr.email("personal_info.email", strings.TrimSpace(upd.PersonalInfo.Email))
	}
	if upd.AcademicInfo != nil {
		if strings.TrimSpace(upd.AcademicInfo.CourseID) == "" {
			verr.add("academic_info.course_id", "is required")
		}
		if upd.AcademicInfo.Status != "" && !upd.AcademicInfo.Status.Valid() {
			verr.add("academic_info.status", "must be one of active, inactive, completed, dropout")
		}
	}
	if upd.Status != nil && !upd.Status.Valid() {
		verr.add("academic_info.status", "must be one of active, inactive, completed, dropout")
	}
	if upd.Fees != nil {
		upd.Fees.validate(verr)
	}
	if err := verr.orNil(); err != nil {
		return nil, err
	}

	return updateStudentGuarded(ctx, s.store, id, s.now, func(st *models.Student) bson.M {
		set := bson.M{}
		if upd.PersonalInfo != nil {
			st.PersonalInfo = *upd.PersonalInfo
			set["personal_info"] = st.PersonalInfo
		}
		if upd.AcademicInfo != nil {
			academic := *upd.AcademicInfo
			switch {
			case upd.Status != nil:
				academic.Status = *upd.Status
			case academic.Status == "":
				academic.Status = st.AcademicInfo.Status
			}
			if academic.EnrollmentDate.IsZero() {
				academic.EnrollmentDate = st.AcademicInfo.EnrollmentDate
			}
			st.AcademicInfo = academic
			set["academic_info"] = st.AcademicInfo
		}
		// academic_info already carries the status; setting both paths conflicts
		if upd.Status != nil && upd.AcademicInfo == nil {
			st.AcademicInfo.Status = *upd.Status
			set["academic_info.status"] = st.AcademicInfo.Status
		}
		if upd.Fees != nil {
			fin := &st.FinancialInfo
			fin.TotalFees = upd.Fees.TotalFees
			fin.Discount = upd.Fees.Discount
			fin.DiscountReason = upd.Fees.DiscountReason
			fin.AdmissionFee = upd.Fees.AdmissionFee
			fin.PendingAmount = PendingAmount(fin.TotalFees, fin.Discount, fin.PaidAmount)
			set["financial_info.total_fees"] = fin.TotalFees
			set["financial_info.discount"] = fin.Discount
			set["financial_info.discount_reason"] = fin.DiscountReason
			set["financial_info.admission_fee"] = fin.AdmissionFee
			set["financial_info.pending_amount"] = fin.PendingAmount
		}
		return set
	})
}

// DeleteStudent removes the record and, best effort, its uploaded documents.
func (s *Students) DeleteStudent(ctx context.Context, id primitive.ObjectID) error {
	student, err := s.GetStudent(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteByID(ctx, store.Students, id); err != nil {
		return notFound("student", err)
	}
	for _, url := range student.Documents.URLs() {
		if err := s.assets.Delete(ctx, url); err != nil {
			log.Printf("[students] could not delete document %s of %s: %v", url, student.StudentID, err)
		}
	}
	return nil
}

// Document kinds accepted by AttachStudentDocument.
const (
	DocPhoto       = "photo"
	DocCitizenship = "citizenship"
	DocMarksheet   = "marksheet"
	DocCertificate = "certificate"
)

var ErrUnknownDocument = errors.New("unknown document kind")

// AttachStudentDocument uploads r and records its URL on the student.
// Photo, citizenship and marksheet replace the previous file; certificates
// accumulate.
func (s *Students) AttachStudentDocument(ctx context.Context, id primitive.ObjectID, kind string, r io.Reader) (*models.Student, error) {
	switch kind {
	case DocPhoto, DocCitizenship, DocMarksheet, DocCertificate:
	default:
		return nil, &ValidationError{Fields: []FieldError{{Field: "kind", Error: ErrUnknownDocument.Error()}}}
	}
	if _, err := s.GetStudent(ctx, id); err != nil {
		return nil, err
	}

	url, err := s.assets.Upload(ctx, "students/"+id.Hex(), kind+"-"+uuid.NewString(), r)
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", kind, err)
	}

	var replaced string
	student, err := updateStudentGuarded(ctx, s.store, id, s.now, func(st *models.Student) bson.M {
		docs := &st.Documents
		switch kind {
		case DocPhoto:
			replaced, docs.Photo = docs.Photo, url
		case DocCitizenship:
			replaced, docs.Citizenship = docs.Citizenship, url
		case DocMarksheet:
			replaced, docs.Marksheet = docs.Marksheet, url
		case DocCertificate:
			replaced = ""
			docs.Certificates = append(docs.Certificates, url)
		}
		return bson.M{"documents": st.Documents}
	})
	if err != nil {
		return nil, err
	}
	if replaced != "" {
		if err := s.assets.Delete(ctx, replaced); err != nil {
			log.Printf("[students] could not delete replaced %s of %s: %v", kind, student.StudentID, err)
		}
	}
	return student, nil
}
