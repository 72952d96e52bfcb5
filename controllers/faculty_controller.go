package controllers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	config "github.com/phillip/newvision-backend/config"
	models "github.com/phillip/newvision-backend/models"
	store "github.com/phillip/newvision-backend/store"
)

// Faculty create and update take multipart form data so a photo can ride
// along with the text fields.
type facultyInput struct {
	Name          *string  `form:"name"`
	Subjects      []string `form:"subjects"`
	Subject       *string  `form:"subject"`
	Experience    *string  `form:"experience"`
	Qualification *string  `form:"qualification"`
	Email         *string  `form:"email"`
	Phone         *string  `form:"phone"`
	Initials      *string  `form:"initials"`
	Color         *string  `form:"color"`
	Quote         *string  `form:"quote"`
}

func facultyStamp(f models.FacultyMember) (primitive.ObjectID, time.Time) { return f.ID, f.UpdatedAt }

// initialsOf turns "Ram Prasad Sharma" into "RS".
func initialsOf(name string) string {
	parts := strings.Fields(name)
	if len(parts) == 0 {
		return ""
	}
	first := []rune(parts[0])[:1]
	if len(parts) == 1 {
		return strings.ToUpper(string(first))
	}
	last := []rune(parts[len(parts)-1])[:1]
	return strings.ToUpper(string(first) + string(last))
}

// uploadPhoto stores the optional "photo" file; it returns "" when none was sent.
func uploadPhoto(ctx context.Context, c *gin.Context, cfg *config.Config) (string, bool) {
	fileHeader, err := c.FormFile("photo")
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return "", true
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid form data"})
		return "", false
	}
	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to open file"})
		return "", false
	}
	defer file.Close()

	url, err := cfg.Assets.Upload(ctx, "faculty", "photo-"+uuid.NewString(), file)
	if err != nil {
		respondError(c, err, "image upload failed")
		return "", false
	}
	return url, true
}

// discardPhoto removes a freshly uploaded photo whose record was never saved.
func discardPhoto(ctx context.Context, cfg *config.Config, imageURL string) {
	if imageURL == "" {
		return
	}
	if err := cfg.Assets.Delete(ctx, imageURL); err != nil {
		log.Printf("[faculty] could not delete orphaned photo %s: %v", imageURL, err)
	}
}

// ---------------- CREATE ----------------
func CreateFaculty(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input facultyInput
		if err := c.ShouldBind(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		name := strings.TrimSpace(deref(input.Name))
		if name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
			return
		}

		// uploads get a longer budget than plain store calls
		ctx, cancel := context.WithTimeout(c.Request.Context(), 60*time.Second)
		defer cancel()

		imageURL, ok := uploadPhoto(ctx, c, cfg)
		if !ok {
			return
		}

		now := time.Now()
		member := models.FacultyMember{
			ID:            primitive.NewObjectID(),
			Name:          name,
			Subjects:      input.Subjects,
			Subject:       deref(input.Subject),
			Experience:    deref(input.Experience),
			Qualification: deref(input.Qualification),
			Email:         deref(input.Email),
			Phone:         deref(input.Phone),
			Initials:      deref(input.Initials),
			Color:         deref(input.Color),
			Quote:         deref(input.Quote),
			ImageURL:      imageURL,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if member.Initials == "" {
			member.Initials = initialsOf(name)
		}
		if member.Subject == "" && len(member.Subjects) > 0 {
			member.Subject = member.Subjects[0]
		}

		if err := cfg.Store.Insert(ctx, store.Faculty, member); err != nil {
			discardPhoto(ctx, cfg, imageURL)
			respondError(c, err, "could not create faculty member")
			return
		}
		c.JSON(http.StatusCreated, member)
	}
}

// ---------------- LIST ----------------
func ListFaculty(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		filter := bson.M{}
		if subject := c.Query("subject"); subject != "" {
			filter["subjects"] = subject
		}

		ctx, cancel := cfg.Timeout(c.Request.Context())
		defer cancel()

		var members []models.FacultyMember
		if err := cfg.Store.Find(ctx, store.Faculty, filter, store.FindOptions{SortBy: "name"}, &members); err != nil {
			respondError(c, err, "could not fetch faculty")
			return
		}
		if len(members) == 0 {
			c.JSON(http.StatusOK, []models.FacultyMember{})
			return
		}
		if notModified(c, members, facultyStamp) {
			return
		}
		c.JSON(http.StatusOK, members)
	}
}

// ---------------- GET ----------------
func GetFaculty(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "faculty")
		if !ok {
			return
		}
		ctx, cancel := cfg.Timeout(c.Request.Context())
		defer cancel()

		var member models.FacultyMember
		if err := cfg.Store.FindByID(ctx, store.Faculty, id, &member); err != nil {
			respondError(c, notFoundAs("faculty member", err), "could not fetch faculty member")
			return
		}
		if notModifiedOne(c, member.ID, member.UpdatedAt) {
			return
		}
		c.JSON(http.StatusOK, member)
	}
}

// ---------------- UPDATE ----------------
func UpdateFaculty(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "faculty")
		if !ok {
			return
		}
		var input facultyInput
		if err := c.ShouldBind(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if input.Name != nil && strings.TrimSpace(*input.Name) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name cannot be empty"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 60*time.Second)
		defer cancel()

		var existing models.FacultyMember
		if err := cfg.Store.FindByID(ctx, store.Faculty, id, &existing); err != nil {
			respondError(c, notFoundAs("faculty member", err), "could not fetch faculty member")
			return
		}

		update := bson.M{"updated_at": time.Now()}
		setString := func(key string, v *string) {
			if v != nil {
				update[key] = strings.TrimSpace(*v)
			}
		}
		setString("name", input.Name)
		setString("subject", input.Subject)
		setString("experience", input.Experience)
		setString("qualification", input.Qualification)
		setString("email", input.Email)
		setString("phone", input.Phone)
		setString("initials", input.Initials)
		setString("color", input.Color)
		setString("quote", input.Quote)
		if input.Subjects != nil {
			update["subjects"] = input.Subjects
		}

		imageURL, ok := uploadPhoto(ctx, c, cfg)
		if !ok {
			return
		}
		if imageURL != "" {
			update["image_url"] = imageURL
		}

		if err := cfg.Store.UpdateByID(ctx, store.Faculty, id, update); err != nil {
			discardPhoto(ctx, cfg, imageURL)
			respondError(c, notFoundAs("faculty member", err), "could not update faculty member")
			return
		}
		if imageURL != "" && existing.ImageURL != "" {
			if err := cfg.Assets.Delete(ctx, existing.ImageURL); err != nil {
				log.Printf("[faculty] could not delete old photo %s: %v", existing.ImageURL, err)
			}
		}

		var member models.FacultyMember
		if err := cfg.Store.FindByID(ctx, store.Faculty, id, &member); err != nil {
			respondError(c, notFoundAs("faculty member", err), "could not fetch faculty member")
			return
		}
		c.JSON(http.StatusOK, member)
	}
}

// ---------------- DELETE ----------------
func DeleteFaculty(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "faculty")
		if !ok {
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
		defer cancel()

		var member models.FacultyMember
		if err := cfg.Store.FindByID(ctx, store.Faculty, id, &member); err != nil {
			respondError(c, notFoundAs("faculty member", err), "could not fetch faculty member")
			return
		}
		if err := cfg.Store.DeleteByID(ctx, store.Faculty, id); err != nil {
			respondError(c, notFoundAs("faculty member", err), "could not delete faculty member")
			return
		}
		if member.ImageURL != "" {
			if err := cfg.Assets.Delete(ctx, member.ImageURL); err != nil {
				log.Printf("[faculty] could not delete photo %s: %v", member.ImageURL, err)
			}
		}
		c.JSON(http.StatusOK, gin.H{"message": "faculty member deleted"})
	}
}
