package httpapi

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/crewplan/backend/internal/command"
	"github.com/crewplan/backend/internal/config"
	"github.com/crewplan/backend/internal/db"
	"github.com/crewplan/backend/internal/http/handlers"
	"github.com/crewplan/backend/internal/http/middleware"

	_ "github.com/crewplan/backend/docs"
)

func Router(cfg config.Config, store *db.Store, engine *command.Engine, logger zerolog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.MaxMultipartMemory = cfg.MaxUploadSizeMB << 20

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Admin-Key", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if cfg.CORSAllowed == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = []string{cfg.CORSAllowed}
	}
	r.Use(cors.New(corsCfg))

	h := &handlers.Handler{
		Store:          store,
		Engine:         engine,
		Validator:      validator.New(),
		Logger:         logger,
		OrgID:          cfg.OrgID,
		LookaheadWeeks: cfg.LookaheadWeeks,
	}

	r.GET("/healthz", h.Healthz)

	api := r.Group("/api")
	{
		api.GET("/insights", h.Insights)
		api.GET("/users", h.UsersList)
		api.GET("/projects", h.ProjectsList)
		api.GET("/allocations", h.AllocationsList)
	}

	admin := api.Group("")
	admin.Use(middleware.AdminKey(cfg.AdminKey))
	{
		admin.POST("/command", h.Command)
		admin.POST("/command/:id/confirm", h.Confirm)
		admin.POST("/command/:id/cancel", h.Cancel)
		admin.POST("/import", h.Import)
	}

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}
