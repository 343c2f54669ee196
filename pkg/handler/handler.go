package handler

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"bean_wallet_back/pkg/config"
	"bean_wallet_back/pkg/middleware"
	"bean_wallet_back/pkg/service"
)

// maxBodyBytes bounds signed request bodies; an airdrop of a few thousand recipients fits.
const maxBodyBytes = 1 << 20

type Options struct {
	Prefix      string
	CORSOrigins []string
	Routes      config.Routes
	AdminToken  string
}

type Handler struct {
	service *service.Service
	opts    Options
}

func NewHandler(service *service.Service, opts Options) *Handler {
	return &Handler{
		service: service,
		opts:    opts,
	}
}

func (h *Handler) corsConfig() cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Length", "Content-Type", middleware.EncryptedKeyHeader, middleware.AdminTokenHeader, middleware.RequestIDHeader},
		ExposeHeaders: []string{"Content-Length", middleware.RequestIDHeader},
	}
	for _, o := range h.opts.CORSOrigins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	if len(h.opts.CORSOrigins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = h.opts.CORSOrigins
	cfg.AllowCredentials = true
	return cfg
}

func (h *Handler) InitRoute() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger())
	router.Use(cors.New(h.corsConfig()))

	router.GET("/health", h.Health)

	routes := h.opts.Routes
	api := router.Group(h.opts.Prefix)
	{
		for _, p := range routes.CreateWallet {
			api.POST(p, h.CreateWallet)
		}
		for _, p := range routes.Connect {
			api.POST(p, middleware.BodyLimit(maxBodyBytes), h.ConnectWallet)
		}
		for _, p := range routes.Balance {
			api.GET(p, h.GetBalance)
		}
		for _, p := range routes.Transactions {
			api.GET(p, h.GetTransactions)
		}
		for _, p := range routes.Journal {
			api.GET(p, h.GetJournal)
		}

		signed := api.Group("", middleware.BodyLimit(maxBodyBytes), middleware.CredentialMiddleware())
		for _, p := range routes.Transfer {
			signed.POST(p, h.Transfer)
		}
		for _, p := range routes.Airdrop {
			signed.POST(p, h.Airdrop)
		}

		for _, p := range routes.SetFee {
			api.GET(p, h.GetMinFee)
			api.POST(p, middleware.AdminMiddleware(h.opts.AdminToken), h.SetMinFee)
		}
	}
	return router
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
