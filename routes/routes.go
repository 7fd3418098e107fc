// Package routes wires the HTTP surface.
package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/Zacison/natours-backend/config"
	"github.com/Zacison/natours-backend/controllers"
	"github.com/Zacison/natours-backend/middleware"
	"github.com/Zacison/natours-backend/models"
)

// Deps is everything the router needs from main.
type Deps struct {
	Config  *config.Config
	Auth    *controllers.AuthController
	Tours   *controllers.ToursController
	Users   *controllers.UsersController
	Health  *controllers.HealthController
	Tokens  middleware.TokenVerifier
	Finder  middleware.UserFinder
	Metrics *middleware.Metrics
	Redis   *redis.Client
}

// Setup installs the global middleware and every route. The logger and
// metrics sit outside ErrorHandler so they see the final status.
func Setup(router *gin.Engine, d Deps) {
	cfg := d.Config

	router.Use(
		middleware.RequestID(),
		middleware.RequestLogger(),
		d.Metrics.Middleware(),
		middleware.ErrorHandler(cfg.Server.Env),
		middleware.Recovery(),
		middleware.Timeout(cfg.Server.RequestTimeout),
	)

	router.GET("/healthz", d.Health.Check)
	router.GET("/metrics", gin.WrapH(d.Metrics.Handler()))

	protect := middleware.Protect(d.Tokens, d.Finder)
	limit := middleware.RateLimit(cfg.RateLimit, d.Redis)

	v1 := router.Group("/api/v1")

	users := v1.Group("/users")
	{
		users.POST("/signup", d.Auth.Signup)
		users.POST("/login", limit, d.Auth.Login)
		users.POST("/forgotPassword", limit, d.Auth.ForgotPassword)
		users.PATCH("/resetPassword/:token", d.Auth.ResetPassword)
		users.PATCH("/updateMyPassword", protect, d.Auth.UpdatePassword)
		users.GET("", protect, middleware.RestrictTo(models.RoleAdmin), d.Users.GetAllUsers)
	}

	tours := v1.Group("/tours")
	{
		list := []gin.HandlerFunc{d.Tours.GetAllTours}
		if cfg.Tours.ListProtected {
			list = []gin.HandlerFunc{protect, middleware.RestrictTo(cfg.Tours.ListRoles...), d.Tours.GetAllTours}
		}
		tours.GET("", list...)
		tours.POST("", d.Tours.CreateTour)

		tours.GET("/top-5-cheap", controllers.AliasTopTours, d.Tours.GetAllTours)
		tours.GET("/tour-stats", d.Tours.GetTourStats)
		tours.GET("/monthly-plan/:year", d.Tours.GetMonthlyPlan)

		tours.GET("/:id", d.Tours.GetTour)
		tours.PATCH("/:id", d.Tours.UpdateTour)
		tours.DELETE("/:id", protect, middleware.RestrictTo(models.RoleAdmin, models.RoleLeadGuide), d.Tours.DeleteTour)
	}

	router.NoRoute(controllers.NotFound)
}
