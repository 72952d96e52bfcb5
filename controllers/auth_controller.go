package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	config "github.com/phillip/newvision-backend/config"
	middleware "github.com/phillip/newvision-backend/middleware"
	services "github.com/phillip/newvision-backend/services"
)

func Login(cfg *config.Config) gin.HandlerFunc {
	auth := services.NewAuth(cfg.Store, cfg.JWTSecret, cfg.JWTTTL)
	return func(c *gin.Context) {
		var input struct {
			Email    string `json:"email" binding:"required,email"`
			Password string `json:"password" binding:"required"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		ctx, cancel := cfg.Timeout(c.Request.Context())
		defer cancel()

		token, admin, err := auth.Login(ctx, input.Email, input.Password)
		if errors.Is(err, services.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		if err != nil {
			respondError(c, err, "could not sign in")
			return
		}
		c.JSON(http.StatusOK, gin.H{"token": token, "admin": admin})
	}
}

func Logout(cfg *config.Config) gin.HandlerFunc {
	auth := services.NewAuth(cfg.Store, cfg.JWTSecret, cfg.JWTTTL)
	return func(c *gin.Context) {
		ctx, cancel := cfg.Timeout(c.Request.Context())
		defer cancel()
		if err := auth.Logout(ctx, c.GetString(middleware.KeySessionID)); err != nil {
			respondError(c, err, "could not sign out")
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "signed out"})
	}
}

// Me reports the signed-in admin.
func Me(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"id":         c.GetString(middleware.KeyUserID),
			"name":       c.GetString(middleware.KeyUserName),
			"role":       c.GetString(middleware.KeyRole),
			"session_id": c.GetString(middleware.KeySessionID),
		})
	}
}
