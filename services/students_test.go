package services

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/phillip/newvision-backend/models"
	"github.com/phillip/newvision-backend/store"
	"github.com/phillip/newvision-backend/utils"
)

type fakeAssets struct {
	mu      sync.Mutex
	uploads map[string]string
	deleted []string
}

func (f *fakeAssets) Upload(_ context.Context, folder, publicID string, r io.Reader) (string, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploads == nil {
		f.uploads = map[string]string{}
	}
	url := "https://assets.test/" + folder + "/" + publicID
	f.uploads[url] = string(body)
	return url, nil
}

func (f *fakeAssets) Delete(_ context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, url)
	return nil
}

func TestCreateStudent(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory(false)
	svc := newStudents(st)

	first := enrol(t, st, 12000, 2000)
	second := enrol(t, st, 8000, 0)

	assert.Equal(t, "NV20250001", first.StudentID)
	assert.Equal(t, "NV20250002", second.StudentID)
	assert.Equal(t, models.StudentActive, first.AcademicInfo.Status)
	assert.Equal(t, testNow, first.AcademicInfo.EnrollmentDate)
	assert.Equal(t, admin.ID, first.CreatedBy)
	assert.Zero(t, first.Version)
	assert.Zero(t, first.FinancialInfo.PaidAmount)
	assert.Equal(t, 10000.0, first.FinancialInfo.PendingAmount)

	got, err := svc.GetStudent(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.StudentID, got.StudentID)
	assert.Equal(t, "Sita Sharma", got.FullName())
}

func TestCreateStudentValidation(t *testing.T) {
	svc := newStudents(store.NewMemory(false))
	_, err := svc.CreateStudent(context.Background(), admin, StudentInput{
		PersonalInfo: models.PersonalInfo{FirstName: "Hari", Email: "hari@"},
		AcademicInfo: models.AcademicInfo{Status: "graduated"},
		Fees:         FeeTerms{TotalFees: 100, Discount: 200},
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	fields := make([]string, 0, len(verr.Fields))
	for _, f := range verr.Fields {
		fields = append(fields, f.Field)
	}
	assert.ElementsMatch(t, []string{
		"personal_info.last_name",
		"personal_info.email",
		"academic_info.course_id",
		"academic_info.status",
		"financial_info.discount",
	}, fields)
}

func TestListStudents(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory(false)
	svc := newStudents(st)

	inputs := []StudentInput{
		{PersonalInfo: models.PersonalInfo{FirstName: "Aarav", LastName: "Thapa", Email: "aarav@example.com"}, AcademicInfo: models.AcademicInfo{CourseID: "see-prep", Batch: "morning"}, Fees: FeeTerms{TotalFees: 5000}},
		{PersonalInfo: models.PersonalInfo{FirstName: "Bina", LastName: "Rai", Email: "bina@example.com"}, AcademicInfo: models.AcademicInfo{CourseID: "bridge", Batch: "day"}, Fees: FeeTerms{TotalFees: 9000}},
		{PersonalInfo: models.PersonalInfo{FirstName: "Chirag", LastName: "K.C.", Email: "chirag@example.com"}, AcademicInfo: models.AcademicInfo{CourseID: "see-prep", Batch: "day", Status: models.StudentCompleted}},
	}
	for i, in := range inputs {
		svc.now = func() time.Time { return testNow.Add(time.Duration(i) * time.Minute) }
		_, err := svc.CreateStudent(ctx, admin, in)
		require.NoError(t, err)
	}

	tests := []struct {
		name   string
		filter StudentFilter
		want   []string
	}{
		{name: "all newest first", filter: StudentFilter{}, want: []string{"Chirag", "Bina", "Aarav"}},
		{name: "by course", filter: StudentFilter{CourseID: "see-prep"}, want: []string{"Chirag", "Aarav"}},
		{name: "by status", filter: StudentFilter{Status: models.StudentActive}, want: []string{"Bina", "Aarav"}},
		{name: "by batch", filter: StudentFilter{Batch: "day"}, want: []string{"Chirag", "Bina"}},
		{name: "search is case-insensitive", filter: StudentFilter{Search: "rai"}, want: []string{"Bina"}},
		{name: "search by email", filter: StudentFilter{Search: "AARAV@"}, want: []string{"Aarav"}},
		{name: "search by student id", filter: StudentFilter{Search: "NV20250002"}, want: []string{"Bina"}},
		{name: "search metacharacters are literal", filter: StudentFilter{Search: "K.C."}, want: []string{"Chirag"}},
		{name: "no match", filter: StudentFilter{Search: "zzz"}, want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			students, err := svc.ListStudents(ctx, tt.filter)
			require.NoError(t, err)
			var names []string
			for _, s := range students {
				names = append(names, s.PersonalInfo.FirstName)
			}
			assert.Equal(t, tt.want, names)
		})
	}

	pending, err := svc.ListStudentsWithPendingPayments(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "Bina", pending[0].PersonalInfo.FirstName)

	active, err := svc.CountActiveStudents(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, active)
}

func TestUpdateStudentRecomputesPending(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory(false)
	f := newFinance(st)
	svc := newStudents(st)
	student := enrol(t, st, 10000, 0)

	in := cash(4000)
	in.StudentID = student.ID
	_, err := f.RecordPayment(ctx, admin, in)
	require.NoError(t, err)

	status := models.StudentInactive
	updated, err := svc.UpdateStudent(ctx, student.ID, StudentUpdate{
		Status: &status,
		Fees:   &FeeTerms{TotalFees: 10000, Discount: 1500, DiscountReason: "sibling"},
	})
	require.NoError(t, err)
	assert.Equal(t, 4000.0, updated.FinancialInfo.PaidAmount)
	assert.Equal(t, 4500.0, updated.FinancialInfo.PendingAmount)
	assert.Equal(t, models.StudentInactive, updated.AcademicInfo.Status)
	assert.EqualValues(t, 2, updated.Version)

	stored, err := svc.GetStudent(ctx, student.ID)
	require.NoError(t, err)
	assert.Equal(t, "sibling", stored.FinancialInfo.DiscountReason)
	assert.Equal(t, 4500.0, stored.FinancialInfo.PendingAmount)

	_, err = svc.UpdateStudent(ctx, primitive.NewObjectID(), StudentUpdate{Status: &status})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateStudentValidation(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory(false)
	svc := newStudents(st)
	student := enrol(t, st, 5000, 0)

	bogus := models.StudentStatus("graduated-ish")
	tests := []struct {
		name  string
		upd   StudentUpdate
		field string
	}{
		{
			name:  "status inside academic info",
			upd:   StudentUpdate{AcademicInfo: &models.AcademicInfo{CourseID: "see-prep", Status: bogus}},
			field: "academic_info.status",
		},
		{name: "status on its own", upd: StudentUpdate{Status: &bogus}, field: "academic_info.status"},
		{
			name:  "blank course",
			upd:   StudentUpdate{AcademicInfo: &models.AcademicInfo{CourseID: " "}},
			field: "academic_info.course_id",
		},
		{
			name:  "blank first name",
			upd:   StudentUpdate{PersonalInfo: &models.PersonalInfo{LastName: "Sharma"}},
			field: "personal_info.first_name",
		},
		{
			name:  "bad email",
			upd:   StudentUpdate{PersonalInfo: &models.PersonalInfo{FirstName: "Sita", LastName: "Sharma", Email: "sita@"}},
			field: "personal_info.email",
		},
		{name: "discount above fees", upd: StudentUpdate{Fees: &FeeTerms{TotalFees: 100, Discount: 200}}, field: "financial_info.discount"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.UpdateStudent(ctx, student.ID, tt.upd)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			require.Len(t, verr.Fields, 1)
			assert.Equal(t, tt.field, verr.Fields[0].Field)
		})
	}

	stored, err := svc.GetStudent(ctx, student.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StudentActive, stored.AcademicInfo.Status)
	assert.Zero(t, stored.Version, "rejected updates must not write")
}

func TestUpdateStudentAcademicInfoWithStatus(t *testing.T) {
	ctx := context.Background()
	dropout := models.StudentDropout
	completed := models.StudentCompleted

	tests := []struct {
		name   string
		upd    StudentUpdate
		course string
		want   models.StudentStatus
	}{
		{
			name:   "separate status wins over academic info",
			upd:    StudentUpdate{AcademicInfo: &models.AcademicInfo{CourseID: "plus-two", Status: completed}, Status: &dropout},
			course: "plus-two",
			want:   dropout,
		},
		{
			name:   "separate status with academic info lacking one",
			upd:    StudentUpdate{AcademicInfo: &models.AcademicInfo{CourseID: "plus-two"}, Status: &dropout},
			course: "plus-two",
			want:   dropout,
		},
		{
			name:   "academic info keeps the stored status",
			upd:    StudentUpdate{AcademicInfo: &models.AcademicInfo{CourseID: "bridge"}},
			course: "bridge",
			want:   models.StudentActive,
		},
		{
			name:   "status alone",
			upd:    StudentUpdate{Status: &completed},
			course: "see-prep",
			want:   completed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// the write order inside one update must not matter, so repeat it
			for i := 0; i < 50; i++ {
				st := store.NewMemory(false)
				svc := newStudents(st)
				student := enrol(t, st, 5000, 0)

				updated, err := svc.UpdateStudent(ctx, student.ID, tt.upd)
				require.NoError(t, err)
				assert.Equal(t, tt.want, updated.AcademicInfo.Status)

				stored, err := svc.GetStudent(ctx, student.ID)
				require.NoError(t, err)
				require.Equal(t, tt.want, stored.AcademicInfo.Status)
				require.Equal(t, tt.course, stored.AcademicInfo.CourseID)
				require.Equal(t, student.AcademicInfo.EnrollmentDate.UTC(), stored.AcademicInfo.EnrollmentDate.UTC())
			}
		})
	}
}

func TestCreateStudentYearFollowsLocation(t *testing.T) {
	ktm := time.FixedZone("NPT", 5*3600+45*60)
	st := store.NewMemory(false)
	svc := NewStudents(st, utils.DisabledAssets{}, ktm)
	// 20:00 UTC on New Year's Eve is already 1 January in Kathmandu
	svc.now = func() time.Time { return time.Date(2024, time.December, 31, 20, 0, 0, 0, time.UTC) }

	student, err := svc.CreateStudent(context.Background(), admin, StudentInput{
		PersonalInfo: models.PersonalInfo{FirstName: "Nabin", LastName: "Gurung"},
		AcademicInfo: models.AcademicInfo{CourseID: "see-prep"},
	})
	require.NoError(t, err)
	assert.Equal(t, "NV20250001", student.StudentID)
}

func TestGuardedUpdateGivesUpOnConflict(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory(false)
	student := enrol(t, mem, 5000, 0)
	racing := &racingStore{Store: mem}

	_, err := newFinance(racing).ApplyPayment(ctx, student.ID, 1000)
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, maxBalanceAttempts, racing.attempts)

	got, err := newStudents(mem).GetStudent(ctx, student.ID)
	require.NoError(t, err)
	assert.Zero(t, got.FinancialInfo.PaidAmount)
}

func TestConcurrentPaymentsAllLand(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory(false)
	f := newFinance(st)
	student := enrol(t, st, 100000, 0)

	const workers = 4
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.ApplyPayment(ctx, student.ID, 1000)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	landed := 0
	for err := range errs {
		if err == nil {
			landed++
		} else {
			assert.ErrorIs(t, err, ErrConflict)
		}
	}
	got, err := newStudents(st).GetStudent(ctx, student.ID)
	require.NoError(t, err)
	assert.Equal(t, float64(landed)*1000, got.FinancialInfo.PaidAmount)
	assert.Equal(t, 100000-got.FinancialInfo.PaidAmount, got.FinancialInfo.PendingAmount)
	assert.EqualValues(t, landed, got.Version)
}

func TestStudentDocuments(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory(false)
	assets := &fakeAssets{}
	svc := NewStudents(st, assets, time.UTC)
	svc.now = fixedClock
	student := enrol(t, st, 1000, 0)

	first, err := svc.AttachStudentDocument(ctx, student.ID, DocPhoto, strings.NewReader("jpeg-1"))
	require.NoError(t, err)
	second, err := svc.AttachStudentDocument(ctx, student.ID, DocPhoto, strings.NewReader("jpeg-2"))
	require.NoError(t, err)
	assert.NotEqual(t, first.Documents.Photo, second.Documents.Photo)
	assert.Equal(t, []string{first.Documents.Photo}, assets.deleted, "replaced photo is removed")

	withCert, err := svc.AttachStudentDocument(ctx, student.ID, DocCertificate, strings.NewReader("pdf"))
	require.NoError(t, err)
	require.Len(t, withCert.Documents.Certificates, 1)
	assert.True(t, strings.HasPrefix(withCert.Documents.Certificates[0], "https://assets.test/students/"+student.ID.Hex()+"/certificate-"))

	_, err = svc.AttachStudentDocument(ctx, student.ID, "passport", strings.NewReader("x"))
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)

	require.NoError(t, svc.DeleteStudent(ctx, student.ID))
	assert.Contains(t, assets.deleted, second.Documents.Photo)
	assert.Contains(t, assets.deleted, withCert.Documents.Certificates[0])

	_, err = svc.GetStudent(ctx, student.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, svc.DeleteStudent(ctx, student.ID), ErrNotFound)
}
