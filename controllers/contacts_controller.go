package controllers

import (
	"context"
	"fmt"
	"html"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	config "github.com/phillip/newvision-backend/config"
	models "github.com/phillip/newvision-backend/models"
	store "github.com/phillip/newvision-backend/store"
)

// ---------------- CREATE (public) ----------------
func CreateContact(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			Name         string `json:"name" binding:"required"`
			Email        string `json:"email" binding:"omitempty,email"`
			Phone        string `json:"phone" binding:"required"`
			StudentGrade string `json:"student_grade"`
			Subject      string `json:"subject"`
			Message      string `json:"message" binding:"required,max=5000"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		now := time.Now()
		contact := models.Contact{
			ID:           primitive.NewObjectID(),
			Name:         strings.TrimSpace(input.Name),
			Email:        strings.TrimSpace(input.Email),
			Phone:        strings.TrimSpace(input.Phone),
			StudentGrade: input.StudentGrade,
			Subject:      input.Subject,
			Message:      input.Message,
			Status:       models.ContactNew,
			CreatedAt:    now,
			UpdatedAt:    now,
		}

		ctx, cancel := cfg.Timeout(c.Request.Context())
		defer cancel()
		if err := cfg.Store.Insert(ctx, store.Contacts, contact); err != nil {
			respondError(c, err, "could not save your message")
			return
		}

		if cfg.AdminEmail != "" && cfg.Mailer != nil {
			go notifyNewContact(cfg, contact)
		}
		c.JSON(http.StatusCreated, gin.H{"message": "thank you, we will get back to you soon", "id": contact.ID})
	}
}

// notifyNewContact is best effort; the lead is already saved.
func notifyNewContact(cfg *config.Config, contact models.Contact) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	subject := "New enquiry from " + contact.Name
	body := fmt.Sprintf(
		"<p><b>Name:</b> %s<br><b>Phone:</b> %s<br><b>Email:</b> %s<br><b>Grade:</b> %s<br><b>Subject:</b> %s</p><p>%s</p>",
		html.EscapeString(contact.Name),
		html.EscapeString(contact.Phone),
		html.EscapeString(contact.Email),
		html.EscapeString(contact.StudentGrade),
		html.EscapeString(contact.Subject),
		html.EscapeString(contact.Message),
	)
	if err := cfg.Mailer.SendEmail(ctx, cfg.AdminEmail, "New Vision Admin", subject, body); err != nil {
		log.Printf("[contacts] notification for %s not sent: %v", contact.ID.Hex(), err)
	}
}

// ---------------- LIST ----------------
func ListContacts(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		filter := bson.M{}
		if status := models.ContactStatus(c.Query("status")); status != "" {
			if !status.Valid() {
				c.JSON(http.StatusBadRequest, gin.H{"error": "status must be new, contacted or closed"})
				return
			}
			filter["status"] = status
		}

		ctx, cancel := cfg.Timeout(c.Request.Context())
		defer cancel()

		var contacts []models.Contact
		if err := cfg.Store.Find(ctx, store.Contacts, filter, store.FindOptions{SortBy: "created_at", Desc: true}, &contacts); err != nil {
			respondError(c, err, "could not fetch contacts")
			return
		}
		if contacts == nil {
			contacts = []models.Contact{}
		}
		c.JSON(http.StatusOK, contacts)
	}
}

// ---------------- UPDATE STATUS ----------------
func UpdateContactStatus(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "contact")
		if !ok {
			return
		}
		var input struct {
			Status models.ContactStatus `json:"status" binding:"required"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if !input.Status.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "status must be new, contacted or closed"})
			return
		}

		ctx, cancel := cfg.Timeout(c.Request.Context())
		defer cancel()
		err := cfg.Store.UpdateByID(ctx, store.Contacts, id, bson.M{"status": input.Status, "updated_at": time.Now()})
		if err != nil {
			respondError(c, notFoundAs("contact", err), "could not update contact")
			return
		}
		var contact models.Contact
		if err := cfg.Store.FindByID(ctx, store.Contacts, id, &contact); err != nil {
			respondError(c, notFoundAs("contact", err), "could not fetch contact")
			return
		}
		c.JSON(http.StatusOK, contact)
	}
}

// ---------------- DELETE ----------------
func DeleteContact(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "contact")
		if !ok {
			return
		}
		ctx, cancel := cfg.Timeout(c.Request.Context())
		defer cancel()
		if err := cfg.Store.DeleteByID(ctx, store.Contacts, id); err != nil {
			respondError(c, notFoundAs("contact", err), "could not delete contact")
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "contact deleted"})
	}
}
