package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/naijaprep/cbt-backend/internal/config"
	"github.com/naijaprep/cbt-backend/internal/handler"
	"github.com/naijaprep/cbt-backend/internal/middleware"
	"github.com/naijaprep/cbt-backend/internal/response"
	"github.com/naijaprep/cbt-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth          *handler.AuthHandler
	StudentPortal *handler.StudentPortalHandler
	StudentMgmt   *handler.StudentManagementHandler
	Exam          *handler.ExamHandler
	Question      *handler.QuestionHandler
	Subject       *handler.SubjectHandler
	Payment       *handler.PaymentHandler
	Tutor         *handler.TutorHandler
	WS            *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Rate limiter for auth routes (30 requests per minute per IP).
	authLimiter := middleware.NewRateLimiter(30, time.Minute)

	// ─── 1. Auth Group (Public, Rate Limited) ──────────────────────────
	auth := router.Group("/api/v1/auth")
	auth.Use(authLimiter.Middleware())
	{
		auth.POST("/student/register", handlers.Auth.StudentRegister)
		auth.POST("/student/login", handlers.Auth.StudentLogin)
		auth.POST("/admin/login", handlers.Auth.AdminLogin)

		// Authenticated profile routes
		auth.POST("/student/logout", middleware.RequireStudentJWT(authService), handlers.Auth.StudentLogout)
		auth.GET("/student/me", middleware.RequireStudentJWT(authService), handlers.Auth.GetStudentProfile)
		auth.GET("/admin/me", middleware.RequireAdminJWT(authService), handlers.Auth.GetAdminProfile)
	}

	// ─── 2. Public Group (No Auth) ─────────────────────────────────────
	publicAPI := router.Group("/api/v1/public")
	{
		publicAPI.GET("/subjects", handlers.Subject.List)
	}

	// ─── 3. Student Group (JWT + Single Device) ────────────────────────
	studentAPI := router.Group("/api/v1/student")
	studentAPI.Use(
		middleware.RequireStudentJWT(authService),
		middleware.CheckSingleDeviceLogin(authService),
	)
	{
		studentAPI.GET("/exams", handlers.StudentPortal.Catalogue)
		studentAPI.POST("/exams/:exam_id/sessions", handlers.StudentPortal.StartSession)
		studentAPI.GET("/sessions/active", handlers.StudentPortal.ResumeSession)
		studentAPI.GET("/sessions/:session_id", handlers.StudentPortal.GetSession)
		studentAPI.PATCH("/sessions/:session_id", handlers.StudentPortal.PatchSession)
		studentAPI.POST("/sessions/:session_id/explain", handlers.Tutor.Explain)
		studentAPI.GET("/results", handlers.StudentPortal.Results)

		studentAPI.POST("/payments", handlers.Payment.Initialize)
		studentAPI.GET("/payments", handlers.Payment.History)
		studentAPI.POST("/payments/:reference/verify", handlers.Payment.Verify)
	}

	// ─── 4. WebSocket Group (Student WS Auth) ──────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireStudentWSAuth(authService))
	{
		ws.GET("/student/session/stream", handlers.WS.SessionStream)
	}

	// ─── 5. Admin Group (JWT) ──────────────────────────────────────────
	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(middleware.RequireAdminJWT(authService))
	{
		// Exam management
		adminAPI.GET("/exams", handlers.Exam.List)
		adminAPI.POST("/exams", handlers.Exam.Create)
		adminAPI.GET("/exams/:exam_id", handlers.Exam.Get)
		adminAPI.PUT("/exams/:exam_id", handlers.Exam.Update)
		adminAPI.DELETE("/exams/:exam_id", handlers.Exam.Delete)
		adminAPI.POST("/exams/:exam_id/publish", handlers.Exam.Publish)
		adminAPI.POST("/exams/:exam_id/archive", handlers.Exam.Archive)

		// Question management
		adminAPI.GET("/exams/:exam_id/questions", handlers.Question.List)
		adminAPI.POST("/exams/:exam_id/questions", handlers.Question.Add)
		adminAPI.PUT("/exams/:exam_id/questions", handlers.Question.ReplaceAll)
		adminAPI.DELETE("/exams/:exam_id/questions/:question_id", handlers.Question.Delete)

		// Student management
		adminAPI.GET("/students", handlers.StudentMgmt.List)
		adminAPI.GET("/students/:student_id", handlers.StudentMgmt.Get)
		adminAPI.PUT("/students/:student_id", handlers.StudentMgmt.Update)
		adminAPI.DELETE("/students/:student_id", handlers.StudentMgmt.Delete)
		adminAPI.POST("/students/:student_id/reset-login", handlers.StudentMgmt.ResetLogin)

		// Subjects Routes
		subjectsGroup := adminAPI.Group("/subjects")
		{
			subjectsGroup.POST("", handlers.Subject.Create)
			subjectsGroup.PUT("/:subject_id", handlers.Subject.Update)
			subjectsGroup.DELETE("/:subject_id", handlers.Subject.Delete)
		}
	}

	return router
}
