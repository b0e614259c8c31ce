package router

import (
	"context"
	"time"

	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/access"
	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/config"
	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/handler"
	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/infra"
	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/middleware"
	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/repository"
	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/service"
	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/shipment"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Deps are the long-lived collaborators the composition root shares between
// the HTTP API and the background workers.
type Deps struct {
	DB       *gorm.DB
	RDB      *redis.Client
	Metrics  *infra.Metrics
	NFe      *infra.NFeClient
	Lookups  service.LookupService
	Syncer   service.DocumentSyncer
	Queue    service.SyncQueue
	Defaults shipment.Defaults
	Breakers []handler.BreakerState
}

// New wires repositories, services and handlers and returns a configured Gin
// engine. Goroutines it starts (session purge, limiter purge) stop with ctx.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis
func New(ctx context.Context, cfg *config.Config, d Deps) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	apiLimiter := middleware.NewAPILimiter(1000, time.Minute)
	loginLimiter := middleware.NewLoginLimiter()
	apiLimiter.StartPurge(ctx, 5*time.Minute)
	loginLimiter.StartPurge(ctx, 5*time.Minute)

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.Metrics(d.Metrics))
	r.Use(middleware.CORS(cfg.IsProduction()))
	r.Use(middleware.ErrorHandler())
	r.Use(apiLimiter.Middleware())

	// ── Repositories ─────────────────────────────────────────────────────────
	userRepo := repository.NewUserRepository(d.DB)
	farmRepo := repository.NewFarmRepository(d.DB)
	warehouseRepo := repository.NewWarehouseRepository(d.DB)
	shipmentRepo := repository.NewShipmentRepository(d.DB)

	// ── Services ─────────────────────────────────────────────────────────────
	authSvc := service.NewAuthService(userRepo, cfg)
	registrySvc := service.NewRegistryService(farmRepo, warehouseRepo)
	shipmentSvc := service.NewShipmentService(shipmentRepo, registrySvc, d.Defaults, d.Metrics)
	sessionSvc := service.NewSessionService(
		shipmentSvc,
		registrySvc,
		shipment.Lookups{TaxID: d.Lookups, PostalCode: d.Lookups, Debounce: cfg.LookupDebounce()},
		d.Defaults,
		cfg.SessionIdle(),
		d.Metrics,
	)
	sessionSvc.StartPurger(ctx, time.Minute)
	documentSvc := service.NewDocumentService(shipmentSvc, d.Syncer, d.Queue, d.NFe, cfg.PDFStoragePath, d.Metrics)

	// ── Handlers ─────────────────────────────────────────────────────────────
	authH := handler.NewAuthHandler(authSvc)
	shipmentsH := handler.NewShipmentsHandler(shipmentSvc)
	sessionsH := handler.NewSessionsHandler(sessionSvc)
	documentsH := handler.NewDocumentsHandler(documentSvc)
	lookupsH := handler.NewLookupsHandler(d.Lookups)
	registryH := handler.NewRegistryHandler(registrySvc)

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	r.GET("/health", handler.Health(d.DB, d.RDB, d.Breakers...))
	r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))

	auth := r.Group("/v1/auth")
	{
		auth.POST("/login", loginLimiter.Middleware(), authH.Login)
		auth.POST("/refresh", authH.Refresh)
	}

	// Every role may reach the record endpoints; which sections a caller may
	// change is decided per field by the access policy.
	anyRole := middleware.RequireRole(
		access.RoleOwner, access.RoleManager, access.RoleAdmin,
		access.RoleOperator, access.RoleWeigher,
	)

	v1 := r.Group("/v1", middleware.JWTAuth(cfg.JWTSecret), anyRole)
	{
		v1.GET("/fazendas", registryH.Farms)
		v1.GET("/armazens", registryH.Warehouses)

		v1.GET("/consultas/cnpj/:cnpj", lookupsH.CNPJ)
		v1.GET("/consultas/cep/:cep", lookupsH.CEP)

		ship := v1.Group("/carregamentos")
		{
			ship.POST("", shipmentsH.Create)
			ship.GET("/sugestoes/:campo", shipmentsH.Suggestions)

			sess := ship.Group("/sessoes")
			{
				sess.POST("", sessionsH.Create)
				sess.GET("/:sid", sessionsH.Get)
				sess.PATCH("/:sid", sessionsH.Apply)
				sess.DELETE("/:sid", sessionsH.Discard)
				sess.POST("/:sid/cep/blur", sessionsH.BlurPostalCode)
				sess.POST("/:sid/enviar", sessionsH.Submit)
			}

			ship.GET("/:id", shipmentsH.Get)
			ship.PUT("/:id", shipmentsH.Update)
			ship.POST("/:id/sessoes", sessionsH.Open)
			ship.GET("/:id/romaneio", documentsH.Romaneio)
			ship.GET("/:id/documento/:tipo", documentsH.Artifact)
			ship.POST("/:id/documento/sincronizar", documentsH.Sync)
		}
	}

	// Swagger UI, only enabled outside production
	if !cfg.IsProduction() {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r
}
