package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Course struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title       string             `bson:"title" json:"title"`
	Description string             `bson:"description" json:"description"`
	Grades      []string           `bson:"grades" json:"grades"`
	Duration    string             `bson:"duration" json:"duration"`
	Instructor  string             `bson:"instructor,omitempty" json:"instructor,omitempty"`
	Category    string             `bson:"category" json:"category"`
	IconName    string             `bson:"icon_name,omitempty" json:"icon_name,omitempty"`
	Features    []string           `bson:"features" json:"features"`
	BatchSize   string             `bson:"batch_size,omitempty" json:"batch_size,omitempty"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time          `bson:"updated_at" json:"updated_at"`
}

type FacultyMember struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name          string             `bson:"name" json:"name"`
	Subjects      []string           `bson:"subjects" json:"subjects"`
	Subject       string             `bson:"subject,omitempty" json:"subject,omitempty"`
	Experience    string             `bson:"experience,omitempty" json:"experience,omitempty"`
	Qualification string             `bson:"qualification,omitempty" json:"qualification,omitempty"`
	Email         string             `bson:"email,omitempty" json:"email,omitempty"`
	Phone         string             `bson:"phone,omitempty" json:"phone,omitempty"`
	Initials      string             `bson:"initials,omitempty" json:"initials,omitempty"`
	Color         string             `bson:"color,omitempty" json:"color,omitempty"`
	Quote         string             `bson:"quote,omitempty" json:"quote,omitempty"`
	ImageURL      string             `bson:"image_url,omitempty" json:"image_url,omitempty"`
	CreatedAt     time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt     time.Time          `bson:"updated_at" json:"updated_at"`
}

// Result is a single topper shown on the results page.
type Result struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name      string             `bson:"name" json:"name" binding:"required"`
	Exam      string             `bson:"exam" json:"exam" binding:"required"`
	Rank      string             `bson:"rank" json:"rank"`
	Score     string             `bson:"score" json:"score"`
	Initials  string             `bson:"initials" json:"initials"`
	Color     string             `bson:"color" json:"color"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`
}

// Achievement is a per-year row of entrance and board exam outcomes.
type Achievement struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Year         string             `bson:"year" json:"year" binding:"required"`
	IOE          string             `bson:"ioe" json:"ioe"`
	IOM          string             `bson:"iom" json:"iom"`
	Board90      string             `bson:"board90" json:"board90"`
	BoardToppers string             `bson:"board_toppers" json:"board_toppers"`
	CreatedAt    time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time          `bson:"updated_at" json:"updated_at"`
}

type ContactStatus string

const (
	ContactNew       ContactStatus = "new"
	ContactContacted ContactStatus = "contacted"
	ContactClosed    ContactStatus = "closed"
)

func (s ContactStatus) Valid() bool {
	return s == ContactNew || s == ContactContacted || s == ContactClosed
}

// Contact is a lead submitted through the public contact form.
type Contact struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name         string             `bson:"name" json:"name"`
	Email        string             `bson:"email" json:"email"`
	Phone        string             `bson:"phone" json:"phone"`
	StudentGrade string             `bson:"student_grade,omitempty" json:"student_grade,omitempty"`
	Subject      string             `bson:"subject,omitempty" json:"subject,omitempty"`
	Message      string             `bson:"message" json:"message"`
	Status       ContactStatus      `bson:"status" json:"status"`
	CreatedAt    time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time          `bson:"updated_at" json:"updated_at"`
}
