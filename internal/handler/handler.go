package handler

import (
	"database/sql"
	"fmt"

	"user_manager/internal/activity"
	"user_manager/internal/cache"
	"user_manager/internal/config"
	"user_manager/internal/middleware"
	"user_manager/internal/observability"
	"user_manager/internal/remote"
	"user_manager/internal/toast"
	"user_manager/internal/user"
	"user_manager/internal/web"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Dependencies are the infrastructure handles built by cmd/web.
// DB is nil when the activity journal is not configured.
type Dependencies struct {
	Config    *config.Config
	Store     cache.Store
	Limiter   middleware.Limiter
	Publisher user.Publisher
	Directory user.Directory
	DB        *sql.DB
	Metrics   *observability.Metrics
}

// SetupHandler initializes all dependencies and routes
func SetupHandler(deps Dependencies) (*gin.Engine, error) {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	tmpl, err := web.Templates()
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	r.SetHTMLTemplate(tmpl)

	if deps.Metrics != nil {
		r.Use(middleware.PrometheusMiddleware(deps.Metrics))
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	directory := deps.Directory
	if directory == nil {
		directory = remote.NewClient(
			remote.WithBaseURL(deps.Config.Remote.BaseURL),
			remote.WithTimeout(deps.Config.Remote.Timeout),
			remote.WithMetrics(deps.Metrics),
		)
	}

	// Initialize services
	toasts := toast.NewService(deps.Store, deps.Metrics)
	userService := user.NewUserService(directory, deps.Store, deps.Publisher, toasts, deps.Metrics)

	// Initialize controllers
	userController := user.NewUserController(userService)
	pageController := user.NewPageController(userService, toasts, deps.DB != nil)

	var activityController *activity.ActivityController
	if deps.DB != nil {
		activityService := activity.NewActivityService(activity.NewActivityRepository(), deps.DB, deps.Metrics)
		activityController = activity.NewActivityController(activityService, pageController)
	}

	limits := RateLimiterConfig(&deps.Config.RateLimit)
	rateLimit := middleware.RateLimiterMiddleware(deps.Limiter, limits)
	pageRateLimit := middleware.PageRateLimiterMiddleware(deps.Limiter, limits, toasts, "/")

	setupRoutes(r, deps.Config, userController, pageController, activityController, rateLimit, pageRateLimit)

	return r, nil
}

// RateLimiterConfig maps the configured limits onto the limiter, keeping
// the defaults for values that are not positive.
func RateLimiterConfig(cfg *config.RateLimitConfig) *middleware.RateLimiterConfig {
	limits := middleware.DefaultRateLimiterConfig()
	if cfg.Capacity > 0 {
		limits.Capacity = cfg.Capacity
	}
	if cfg.RefillRate > 0 {
		limits.RefillRate = cfg.RefillRate
	}
	return limits
}

// setupRoutes configures all application routes
func setupRoutes(
	r *gin.Engine,
	cfg *config.Config,
	userCtrl *user.UserController,
	pageCtrl *user.PageController,
	activityCtrl *activity.ActivityController,
	rateLimit gin.HandlerFunc,
	pageRateLimit gin.HandlerFunc,
) {
	session := middleware.SessionMiddleware(cfg.Session.Secret, cfg.Session.TTL)

	// Server-rendered pages
	pages := r.Group("/")
	pages.Use(session)
	{
		pages.GET("/", pageCtrl.ListPage)
		pages.GET("/create-user", pageCtrl.CreateForm)
		pages.POST("/create-user", pageRateLimit, pageCtrl.CreateSubmit)
		pages.GET("/users/:id/edit", pageCtrl.EditForm)
		pages.POST("/users/:id/edit", pageRateLimit, pageCtrl.EditSubmit)
		pages.GET("/users/:id/delete", pageCtrl.DeleteConfirm)
		pages.POST("/users/:id/delete", pageRateLimit, pageCtrl.DeleteSubmit)
		if activityCtrl != nil {
			pages.GET("/activity", activityCtrl.ActivityPage)
		}
	}

	// JSON API v1
	api := r.Group("/api/v1")
	api.Use(session)
	{
		api.GET("/users", userCtrl.ListUsers)
		api.GET("/users/:id", userCtrl.GetUser)
		api.POST("/users", rateLimit, userCtrl.CreateUser)
		api.PUT("/users/:id", rateLimit, userCtrl.UpdateUser)
		api.DELETE("/users/:id", rateLimit, userCtrl.DeleteUser)
		if activityCtrl != nil {
			api.GET("/activity", activityCtrl.ListActivity)
		}
	}
}
