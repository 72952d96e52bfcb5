package controllers

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	services "github.com/phillip/newvision-backend/services"
	store "github.com/phillip/newvision-backend/store"
	utils "github.com/phillip/newvision-backend/utils"
)

// respondError maps service errors onto status codes. Anything unexpected
// is logged and reported as msg.
func respondError(c *gin.Context, err error, msg string) {
	var verr *services.ValidationError
	var perr *services.PartialCascadeError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "details": verr.Fields})
	case errors.As(err, &perr):
		log.Printf("[finance] %v", perr)
		c.JSON(http.StatusBadGateway, gin.H{
			"error":          perr.Error(),
			"transaction_id": perr.TransactionID,
			"step":           perr.Step,
		})
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrConflict), errors.Is(err, store.ErrDuplicate):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, utils.ErrAssetsDisabled):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		log.Printf("[api] %s %s: %s: %v", c.Request.Method, c.FullPath(), msg, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
	}
}

func paramID(c *gin.Context, what string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + what + " id"})
		return primitive.NilObjectID, false
	}
	return id, true
}

// notModified sets ETag and Last-Modified from the most recently updated
// item and reports whether the client's copy is still current.
func notModified[T any](c *gin.Context, items []T, stamp func(T) (primitive.ObjectID, time.Time)) bool {
	if len(items) == 0 {
		return false
	}
	latestID, latest := stamp(items[0])
	for _, it := range items[1:] {
		if id, at := stamp(it); at.After(latest) {
			latestID, latest = id, at
		}
	}

	return checkETag(c, utils.GenerateListETag(latestID, latest, len(items)), latest)
}

// notModifiedOne is notModified for a single document.
func notModifiedOne(c *gin.Context, id primitive.ObjectID, updatedAt time.Time) bool {
	return checkETag(c, utils.GenerateETag(id, updatedAt), updatedAt)
}

func checkETag(c *gin.Context, etag string, latest time.Time) bool {
	if match := c.GetHeader("If-None-Match"); match != "" && match == etag {
		c.Status(http.StatusNotModified)
		return true
	}
	c.Header("ETag", etag)
	c.Header("Last-Modified", latest.UTC().Format(http.TimeFormat))
	return false
}

// notFoundAs names the missing document in store not-found errors.
func notFoundAs(what string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%s: %w", what, services.ErrNotFound)
	}
	return err
}
