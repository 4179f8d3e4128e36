// internal/router/router.go
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/tailorly/marketplace-backend/internal/config"
	"github.com/tailorly/marketplace-backend/internal/geo"
	"github.com/tailorly/marketplace-backend/internal/handlers"
	"github.com/tailorly/marketplace-backend/internal/middleware"
	"github.com/tailorly/marketplace-backend/internal/services"
	"github.com/tailorly/marketplace-backend/internal/utils"
)

// Dependencies are the pieces chosen at startup. Cache and RateLimiter may
// be nil.
type Dependencies struct {
	DB          *gorm.DB
	Config      *config.Config
	Cache       *redis.Client
	Gateway     services.PaymentGateway
	Storage     services.MediaStore
	Geo         geo.Strategy
	RateLimiter *middleware.RateLimiter
}

func Initialize(deps Dependencies) *gin.Engine {
	db, cfg := deps.DB, deps.Config

	// Initialize services
	accountService := services.NewAccountService(db)
	providerService := services.NewProviderService(db, deps.Storage, cfg)
	searchService := services.NewSearchService(db, deps.Geo, deps.Cache, cfg)
	bookingService := services.NewBookingService(db, deps.Gateway, cfg)
	reviewService := services.NewReviewService(db, services.NewRatingAggregator(), deps.Storage, cfg)

	// Initialize handlers
	h := routeHandlers{
		health:  handlers.NewHealthHandler(db, deps.Cache),
		account: handlers.NewAccountHandler(accountService),
		tailor:  handlers.NewTailorHandler(providerService, searchService, reviewService),
		service: handlers.NewServiceHandler(providerService),
		booking: handlers.NewBookingHandler(bookingService),
		payment: handlers.NewPaymentHandler(bookingService),
		review:  handlers.NewReviewHandler(reviewService),
		auth:    middleware.AuthRequired(accountService),
	}

	// Set JWT secret
	utils.SetJWTSecret(cfg.JWT.SecretKey)
	utils.SetJWTIssuer(cfg.JWT.Issuer)

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS(cfg.Frontend.AllowedOrigins))
	r.Use(middleware.I18nMiddleware())
	if deps.RateLimiter != nil {
		r.Use(deps.RateLimiter.Middleware())
	}

	// Without S3, uploads are served from the local directory.
	if cfg.AWS.AccessKeyID == "" && cfg.Upload.LocalDir != "" {
		r.Static("/uploads", cfg.Upload.LocalDir)
	}

	r.GET("/health", h.health.Health)

	// The same routes are served at the root and under /api/v1.
	h.register(r.Group(""))
	h.register(r.Group("/api/v1"))

	return r
}

type routeHandlers struct {
	health  *handlers.HealthHandler
	account *handlers.AccountHandler
	tailor  *handlers.TailorHandler
	service *handlers.ServiceHandler
	booking *handlers.BookingHandler
	payment *handlers.PaymentHandler
	review  *handlers.ReviewHandler
	auth    gin.HandlerFunc
}

func (h routeHandlers) register(g *gin.RouterGroup) {
	g.GET("/specializations", h.tailor.GetSpecializations)
	g.POST("/payments/webhook", h.payment.Webhook)

	me := g.Group("/me", h.auth)
	{
		me.GET("", h.account.GetMe)
		me.PATCH("", h.account.UpdateMe)
	}

	tailors := g.Group("/tailors")
	{
		tailors.GET("", h.tailor.Search)
		tailors.GET("/:username", h.tailor.GetTailor)
		tailors.GET("/:username/services", h.tailor.GetTailorServices)
		tailors.GET("/:username/reviews", h.tailor.GetTailorReviews)
	}

	mine := g.Group("/tailors/me", h.auth)
	{
		mine.GET("", h.tailor.GetMyProfile)
		mine.PATCH("", h.tailor.UpdateMyProfile)
		mine.POST("/image", h.tailor.UploadProfileImage)

		mine.GET("/services", h.service.ListMine)
		mine.POST("/services", h.service.Create)
		mine.GET("/services/:id", h.service.Get)
		mine.PATCH("/services/:id", h.service.Update)
		mine.DELETE("/services/:id", h.service.Delete)
		mine.POST("/services/:id/images", h.service.AddImages)
		mine.DELETE("/services/:id/images/:imageID", h.service.DeleteImage)
	}

	bookings := g.Group("/bookings", h.auth)
	{
		bookings.GET("", h.booking.List)
		bookings.POST("", h.booking.Create)
		bookings.GET("/:id", h.booking.Get)
		bookings.GET("/:id/history", h.booking.History)
		bookings.POST("/:id/status", h.booking.UpdateStatus)
		bookings.POST("/:id/payment", h.payment.Initiate)
		bookings.POST("/:id/mark-paid", h.payment.MarkPaid)
	}

	reviews := g.Group("/reviews", h.auth)
	{
		reviews.GET("", h.review.ListMine)
		reviews.POST("", h.review.Create)
		reviews.POST("/:id/images", h.review.AddImages)
		reviews.DELETE("/:id/images/:imageID", h.review.DeleteImage)
	}
}
