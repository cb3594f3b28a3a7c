package main

import (
	"log"
	"net/http"
	"strings"

	"osrs-market/internal/api"
	"osrs-market/internal/config"
	"osrs-market/internal/database"
	"osrs-market/internal/logging"
	"osrs-market/internal/services/alerts"
	"osrs-market/internal/services/items"
	"osrs-market/internal/services/mailer"
	"osrs-market/internal/services/wiki"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	cfg := config.Load()
	logging.Init(cfg.Environment)
	defer logging.Log.Sync()

	db, err := database.Initialize(cfg.DatabaseURL)
	if err != nil {
		logging.Log.Fatal("Failed to connect to database", zap.Error(err))
	}

	client := wiki.NewClient(cfg.WikiBaseURL, cfg.MappingURL, cfg.UserAgent())
	catalog := items.NewCatalog(client)

	var mail mailer.Mailer = mailer.LogOnly{}
	if cfg.SMTPHost != "" {
		mail = mailer.NewSMTP(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.MailFrom)
	}
	alertSvc := alerts.NewService(db, client, mail)

	if cfg.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()

	// CORS middleware
	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	// Static frontend
	r.Static("/static", "./web/static")
	r.GET("/", func(c *gin.Context) {
		c.File("./web/index.html")
	})
	r.GET("/trades", func(c *gin.Context) {
		c.File("./web/trades.html")
	})
	r.GET("/alerts", func(c *gin.Context) {
		c.File("./web/alerts.html")
	})

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// SPA fallback for client-side routing
	r.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api/") || c.Request.URL.Path == "/ws" || strings.HasPrefix(c.Request.URL.Path, "/static/") {
			c.Status(http.StatusNotFound)
			return
		}
		c.File("./web/index.html")
	})

	apiGroup := r.Group("/api")
	handler := api.SetupRoutes(apiGroup, db, client, catalog, alertSvc)

	// Live price stream
	r.GET("/ws", handler.StreamPrices)

	logging.Log.Info("Server starting", zap.String("port", cfg.Port))
	if err := r.Run(":" + cfg.Port); err != nil {
		logging.Log.Fatal("Server exited", zap.Error(err))
	}
}
