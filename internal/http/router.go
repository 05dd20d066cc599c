package httpapi

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/freedom_case_2/fire/internal/ai"
	"github.com/freedom_case_2/fire/internal/analytics"
	"github.com/freedom_case_2/fire/internal/config"
	"github.com/freedom_case_2/fire/internal/db"
	"github.com/freedom_case_2/fire/internal/http/handlers"
	"github.com/freedom_case_2/fire/internal/http/middleware"
	"github.com/freedom_case_2/fire/internal/service"

	_ "github.com/freedom_case_2/fire/docs"
)

type Deps struct {
	Store      db.Repository
	Pipeline   *service.PipelineService
	Query      *service.QueryService
	Translator ai.Translator
	Presets    []analytics.Preset
}

func Router(cfg config.Config, deps Deps, logger zerolog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.MaxMultipartMemory = cfg.MaxUploadSizeMB << 20

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Admin-Key", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if cfg.CORSAllowed == "*" || cfg.CORSAllowed == "" {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = []string{cfg.CORSAllowed}
	}
	r.Use(cors.New(corsCfg))

	h := &handlers.Handler{
		Store:      deps.Store,
		Pipeline:   deps.Pipeline,
		Query:      deps.Query,
		Translator: deps.Translator,
		Presets:    deps.Presets,
		Validator:  validator.New(),
		Logger:     logger,
		AdminKey:   cfg.AdminKey,
	}

	r.GET("/healthz", h.Healthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.Use(middleware.Timeout(cfg.RequestTimeout))
	{
		api.GET("/tickets", h.TicketsList)
		api.GET("/tickets/:id", h.TicketDetails)
		api.GET("/managers", h.ManagersList)
		api.GET("/business-units", h.BusinessUnitsList)
		api.GET("/runs/latest", h.RunsLatest)
		api.GET("/dashboard", h.Dashboard)
		api.POST("/analytics/query", h.AnalyticsQuery)
	}

	admin := api.Group("")
	admin.Use(middleware.AdminKey(cfg.AdminKey))
	{
		admin.POST("/import", h.Import)
		admin.POST("/results/ingest", h.IngestResults)
		admin.POST("/results/pull", h.PullResults)
		admin.POST("/loads/reconcile", h.ReconcileLoads)
		admin.POST("/assistant/chat", h.AssistantChat)
	}

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}
