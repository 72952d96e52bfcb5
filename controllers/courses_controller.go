package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	config "github.com/phillip/newvision-backend/config"
	models "github.com/phillip/newvision-backend/models"
	store "github.com/phillip/newvision-backend/store"
)

type courseInput struct {
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
	Grades      []string `json:"grades"`
	Duration    *string  `json:"duration"`
	Instructor  *string  `json:"instructor"`
	Category    *string  `json:"category"`
	IconName    *string  `json:"icon_name"`
	Features    []string `json:"features"`
	BatchSize   *string  `json:"batch_size"`
}

func courseStamp(co models.Course) (primitive.ObjectID, time.Time) { return co.ID, co.UpdatedAt }

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// ---------------- CREATE ----------------
func CreateCourse(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input courseInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if deref(input.Title) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "title is required"})
			return
		}

		now := time.Now()
		course := models.Course{
			ID:          primitive.NewObjectID(),
			Title:       deref(input.Title),
			Description: deref(input.Description),
			Grades:      input.Grades,
			Duration:    deref(input.Duration),
			Instructor:  deref(input.Instructor),
			Category:    deref(input.Category),
			IconName:    deref(input.IconName),
			Features:    input.Features,
			BatchSize:   deref(input.BatchSize),
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		ctx, cancel := cfg.Timeout(c.Request.Context())
		defer cancel()
		if err := cfg.Store.Insert(ctx, store.Courses, course); err != nil {
			respondError(c, err, "could not create course")
			return
		}
		c.JSON(http.StatusCreated, course)
	}
}

// ---------------- LIST ----------------
func ListCourses(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		filter := bson.M{}
		if category := c.Query("category"); category != "" {
			filter["category"] = category
		}
		if q := c.Query("q"); q != "" {
			filter["title"] = bson.M{"$regex": q, "$options": "i"}
		}

		ctx, cancel := cfg.Timeout(c.Request.Context())
		defer cancel()

		var courses []models.Course
		if err := cfg.Store.Find(ctx, store.Courses, filter, store.FindOptions{SortBy: "created_at"}, &courses); err != nil {
			respondError(c, err, "could not fetch courses")
			return
		}
		if len(courses) == 0 {
			c.JSON(http.StatusOK, []models.Course{})
			return
		}
		if notModified(c, courses, courseStamp) {
			return
		}
		c.JSON(http.StatusOK, courses)
	}
}

// ---------------- GET ----------------
func GetCourse(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "course")
		if !ok {
			return
		}
		ctx, cancel := cfg.Timeout(c.Request.Context())
		defer cancel()

		var course models.Course
		if err := cfg.Store.FindByID(ctx, store.Courses, id, &course); err != nil {
			respondError(c, notFoundAs("course", err), "could not fetch course")
			return
		}
		if notModifiedOne(c, course.ID, course.UpdatedAt) {
			return
		}
		c.JSON(http.StatusOK, course)
	}
}

// ---------------- UPDATE ----------------
func UpdateCourse(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "course")
		if !ok {
			return
		}
		var input courseInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		update := bson.M{"updated_at": time.Now()}
		setString := func(key string, v *string) {
			if v != nil {
				update[key] = *v
			}
		}
		setString("title", input.Title)
		setString("description", input.Description)
		setString("duration", input.Duration)
		setString("instructor", input.Instructor)
		setString("category", input.Category)
		setString("icon_name", input.IconName)
		setString("batch_size", input.BatchSize)
		if input.Grades != nil {
			update["grades"] = input.Grades
		}
		if input.Features != nil {
			update["features"] = input.Features
		}
		if t, ok := update["title"].(string); ok && t == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "title cannot be empty"})
			return
		}

		ctx, cancel := cfg.Timeout(c.Request.Context())
		defer cancel()
		if err := cfg.Store.UpdateByID(ctx, store.Courses, id, update); err != nil {
			respondError(c, notFoundAs("course", err), "could not update course")
			return
		}
		var course models.Course
		if err := cfg.Store.FindByID(ctx, store.Courses, id, &course); err != nil {
			respondError(c, notFoundAs("course", err), "could not fetch course")
			return
		}
		c.JSON(http.StatusOK, course)
	}
}

// ---------------- DELETE ----------------
func DeleteCourse(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "course")
		if !ok {
			return
		}
		ctx, cancel := cfg.Timeout(c.Request.Context())
		defer cancel()
		if err := cfg.Store.DeleteByID(ctx, store.Courses, id); err != nil {
			respondError(c, notFoundAs("course", err), "could not delete course")
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "course deleted"})
	}
}
