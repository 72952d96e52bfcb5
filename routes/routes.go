package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	config "github.com/phillip/newvision-backend/config"
	controllers "github.com/phillip/newvision-backend/controllers"
	middleware "github.com/phillip/newvision-backend/middleware"
)

func SetupRoutes(r *gin.Engine, cfg *config.Config) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// public site
	r.GET("/courses", controllers.ListCourses(cfg))
	r.GET("/courses/:id", controllers.GetCourse(cfg))
	r.GET("/faculty", controllers.ListFaculty(cfg))
	r.GET("/faculty/:id", controllers.GetFaculty(cfg))
	r.GET("/results", controllers.ListResults(cfg))
	r.GET("/achievements", controllers.ListAchievements(cfg))
	r.POST("/contacts", controllers.CreateContact(cfg))

	// auth
	r.POST("/auth/login", controllers.Login(cfg))

	auth := middleware.AuthMiddleware(cfg)

	session := r.Group("/auth")
	session.Use(auth)
	{
		session.POST("/logout", controllers.Logout(cfg))
		session.GET("/me", controllers.Me(cfg))
	}

	// protected
	admin := r.Group("/admin")
	admin.Use(auth)
	{
		admin.GET("/dashboard", controllers.Dashboard(cfg))

		admin.POST("/courses", controllers.CreateCourse(cfg))
		admin.PATCH("/courses/:id", controllers.UpdateCourse(cfg))
		admin.DELETE("/courses/:id", controllers.DeleteCourse(cfg))

		admin.POST("/faculty", controllers.CreateFaculty(cfg))
		admin.PATCH("/faculty/:id", controllers.UpdateFaculty(cfg))
		admin.DELETE("/faculty/:id", controllers.DeleteFaculty(cfg))

		admin.POST("/results", controllers.CreateResult(cfg))
		admin.PUT("/results/:id", controllers.UpdateResult(cfg))
		admin.DELETE("/results/:id", controllers.DeleteResult(cfg))

		admin.POST("/achievements", controllers.CreateAchievement(cfg))
		admin.PUT("/achievements/:id", controllers.UpdateAchievement(cfg))
		admin.DELETE("/achievements/:id", controllers.DeleteAchievement(cfg))

		admin.GET("/contacts", controllers.ListContacts(cfg))
		admin.PATCH("/contacts/:id", controllers.UpdateContactStatus(cfg))
		admin.DELETE("/contacts/:id", controllers.DeleteContact(cfg))
	}

	students := admin.Group("/students")
	{
		students.POST("", controllers.CreateStudent(cfg))
		students.GET("", controllers.ListStudents(cfg))
		students.GET("/pending", controllers.ListStudentsWithDues(cfg))
		students.GET("/:id", controllers.GetStudent(cfg))
		students.PATCH("/:id", controllers.UpdateStudent(cfg))
		students.DELETE("/:id", controllers.DeleteStudent(cfg))
		students.POST("/:id/documents/:kind", controllers.UploadStudentDocument(cfg))
		students.GET("/:id/installments", controllers.StudentInstallments(cfg))
		students.GET("/:id/transactions", controllers.StudentTransactions(cfg))
	}

	finance := admin.Group("/finance")
	{
		finance.POST("/transactions", controllers.RecordPayment(cfg))
		finance.GET("/transactions", controllers.ListTransactions(cfg))
		finance.GET("/transactions/:id", controllers.GetTransaction(cfg))
		finance.GET("/revenue", controllers.Revenue(cfg))

		finance.POST("/installments", controllers.CreateInstallmentPlan(cfg))
		finance.GET("/installments/overdue", controllers.ListOverdueInstallments(cfg))
		finance.PATCH("/installments/:id/pay", controllers.MarkInstallmentPaid(cfg))

		finance.GET("/summaries/:year/:month", controllers.GetMonthlySummary(cfg))
		finance.POST("/summaries/:year/:month/recompute", controllers.RecomputeMonthlySummary(cfg))
	}
}
