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

// Results (toppers) and yearly achievements are small editorial lists; an
// update replaces the whole entry.

func resultStamp(r models.Result) (primitive.ObjectID, time.Time) { return r.ID, r.UpdatedAt }

func achievementStamp(a models.Achievement) (primitive.ObjectID, time.Time) { return a.ID, a.UpdatedAt }

// ---------------- RESULTS ----------------
func CreateResult(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var result models.Result
		if err := c.ShouldBindJSON(&result); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		now := time.Now()
		result.ID = primitive.NewObjectID()
		result.CreatedAt, result.UpdatedAt = now, now
		if result.Initials == "" {
			result.Initials = initialsOf(result.Name)
		}

		ctx, cancel := cfg.Timeout(c.Request.Context())
		defer cancel()
		if err := cfg.Store.Insert(ctx, store.Results, result); err != nil {
			respondError(c, err, "could not create result")
			return
		}
		c.JSON(http.StatusCreated, result)
	}
}

func ListResults(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		filter := bson.M{}
		if exam := c.Query("exam"); exam != "" {
			filter["exam"] = exam
		}
		ctx, cancel := cfg.Timeout(c.Request.Context())
		defer cancel()

		var results []models.Result
		if err := cfg.Store.Find(ctx, store.Results, filter, store.FindOptions{SortBy: "created_at", Desc: true}, &results); err != nil {
			respondError(c, err, "could not fetch results")
			return
		}
		if len(results) == 0 {
			c.JSON(http.StatusOK, []models.Result{})
			return
		}
		if notModified(c, results, resultStamp) {
			return
		}
		c.JSON(http.StatusOK, results)
	}
}

func UpdateResult(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "result")
		if !ok {
			return
		}
		var input models.Result
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if input.Initials == "" {
			input.Initials = initialsOf(input.Name)
		}
		update := bson.M{
			"name":       input.Name,
			"exam":       input.Exam,
			"rank":       input.Rank,
			"score":      input.Score,
			"initials":   input.Initials,
			"color":      input.Color,
			"updated_at": time.Now(),
		}

		ctx, cancel := cfg.Timeout(c.Request.Context())
		defer cancel()
		if err := cfg.Store.UpdateByID(ctx, store.Results, id, update); err != nil {
			respondError(c, notFoundAs("result", err), "could not update result")
			return
		}
		var result models.Result
		if err := cfg.Store.FindByID(ctx, store.Results, id, &result); err != nil {
			respondError(c, notFoundAs("result", err), "could not fetch result")
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func DeleteResult(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "result")
		if !ok {
			return
		}
		ctx, cancel := cfg.Timeout(c.Request.Context())
		defer cancel()
		if err := cfg.Store.DeleteByID(ctx, store.Results, id); err != nil {
			respondError(c, notFoundAs("result", err), "could not delete result")
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "result deleted"})
	}
}

// ---------------- ACHIEVEMENTS ----------------
func CreateAchievement(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var a models.Achievement
		if err := c.ShouldBindJSON(&a); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		now := time.Now()
		a.ID = primitive.NewObjectID()
		a.CreatedAt, a.UpdatedAt = now, now

		ctx, cancel := cfg.Timeout(c.Request.Context())
		defer cancel()
		if err := cfg.Store.Insert(ctx, store.Achievements, a); err != nil {
			respondError(c, err, "could not create achievement")
			return
		}
		c.JSON(http.StatusCreated, a)
	}
}

func ListAchievements(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := cfg.Timeout(c.Request.Context())
		defer cancel()

		var items []models.Achievement
		if err := cfg.Store.Find(ctx, store.Achievements, nil, store.FindOptions{SortBy: "year", Desc: true}, &items); err != nil {
			respondError(c, err, "could not fetch achievements")
			return
		}
		if len(items) == 0 {
			c.JSON(http.StatusOK, []models.Achievement{})
			return
		}
		if notModified(c, items, achievementStamp) {
			return
		}
		c.JSON(http.StatusOK, items)
	}
}

func UpdateAchievement(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "achievement")
		if !ok {
			return
		}
		var input models.Achievement
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		update := bson.M{
			"year":          input.Year,
			"ioe":           input.IOE,
			"iom":           input.IOM,
			"board90":       input.Board90,
			"board_toppers": input.BoardToppers,
			"updated_at":    time.Now(),
		}

		ctx, cancel := cfg.Timeout(c.Request.Context())
		defer cancel()
		if err := cfg.Store.UpdateByID(ctx, store.Achievements, id, update); err != nil {
			respondError(c, notFoundAs("achievement", err), "could not update achievement")
			return
		}
		var a models.Achievement
		if err := cfg.Store.FindByID(ctx, store.Achievements, id, &a); err != nil {
			respondError(c, notFoundAs("achievement", err), "could not fetch achievement")
			return
		}
		c.JSON(http.StatusOK, a)
	}
}

func DeleteAchievement(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "achievement")
		if !ok {
			return
		}
		ctx, cancel := cfg.Timeout(c.Request.Context())
		defer cancel()
		if err := cfg.Store.DeleteByID(ctx, store.Achievements, id); err != nil {
			respondError(c, notFoundAs("achievement", err), "could not delete achievement")
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "achievement deleted"})
	}
}
