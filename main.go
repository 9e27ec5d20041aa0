package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"content-service/internal/analytics"
	"content-service/internal/config"
	"content-service/internal/db"
	"content-service/internal/event"
	"content-service/internal/handlers"
	"content-service/internal/repository"
	"content-service/internal/service"
	"content-service/internal/ws"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system env")
	}
	cfg := config.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	// MongoDB
	mongoClient, err := db.Connect(cfg.MongoDB.URI, cfg.MongoDB.Timeout)
	if err != nil {
		logger.Fatal("Failed to connect to MongoDB", zap.Error(err))
	}
	defer mongoClient.Disconnect(context.Background())
	database := mongoClient.Database(cfg.MongoDB.Database)

	// Redis stats
	var stats *repository.StatsRepository
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		logger.Warn("Redis not reachable, stats disabled", zap.Error(err))
	} else {
		stats = repository.NewStatsRepository(redisClient)
	}
	cancel()

	// RabbitMQ event publisher
	var publisher analytics.Publisher
	if cfg.RabbitMQ.URI != "" && cfg.RabbitMQ.Exchange != "" {
		p, err := event.NewEventPublisher(cfg.RabbitMQ.URI, cfg.RabbitMQ.Exchange, logger)
		if err != nil {
			logger.Warn("RabbitMQ not reachable, events will not be published", zap.Error(err))
		} else {
			defer p.Close()
			publisher = p
		}
	}

	// WebSocket fan-out
	hub := ws.NewHub(logger)
	go hub.Run()

	contentRepo := repository.NewContentRepository(database)
	recordRepo := repository.NewRecordRepository(database)
	contentService := service.NewContentService(cfg, contentRepo, recordRepo, stats, publisher, hub, logger)
	contentHandler := handlers.NewContentHandler(contentService)
	wsHandler := handlers.NewWSHandler(hub, logger)

	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Content-Length", "Accept-Encoding", "X-CSRF-Token", "Authorization", "accept", "origin", "Cache-Control", "X-Requested-With", "X-User-ID"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Public routes: viewing state and the content library
	publicContent := r.Group("/public/content")
	{
		publicContent.GET("/status", contentHandler.Status)
		publicContent.GET("/language", contentHandler.GetLanguage)
		publicContent.GET("/library", contentHandler.ListContents)
		publicContent.GET("/library/:objectId", contentHandler.GetContent)
		publicContent.GET("/records", contentHandler.GetRecentRecords)
		publicContent.GET("/records/:objectId", contentHandler.GetObjectRecords)
		publicContent.GET("/stats/:objectId", contentHandler.GetObjectStats)
	}

	// Protected routes: everything that drives or edits flows
	protectedContent := r.Group("/protected/content")
	protectedContent.Use(func(c *gin.Context) {
		userID := c.GetHeader("X-User-ID")
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Authentication required",
				"code":  "MISSING_USER_ID",
			})
			c.Abort()
			return
		}
		c.Next()
	})
	{
		// Flow control
		protectedContent.POST("/display", contentHandler.DisplayPayload)
		protectedContent.POST("/display/:objectId", contentHandler.DisplayObject)
		protectedContent.POST("/close", contentHandler.CloseCurrent)
		protectedContent.PUT("/language", contentHandler.SetLanguage)

		// Quiz interaction
		protectedContent.POST("/quiz/select", contentHandler.SelectOption)
		protectedContent.POST("/quiz/validate", contentHandler.ValidateAnswer)

		// Dialogue interaction
		protectedContent.POST("/dialogue/continue", contentHandler.ContinueDialogue)
		protectedContent.POST("/dialogue/choose", contentHandler.ChooseDialogue)

		// Procedure interaction
		protectedContent.POST("/procedure/click", contentHandler.ClickObject)
		protectedContent.POST("/procedure/zone", contentHandler.EnterZone)
		protectedContent.POST("/procedure/validate", contentHandler.ValidateStep)

		// Text interaction
		protectedContent.POST("/text/acknowledge", contentHandler.AcknowledgeText)

		// Scene registry + content library management
		protectedContent.POST("/scene/objects", contentHandler.RegisterSceneObject)
		protectedContent.PUT("/library/:objectId", contentHandler.SaveContent)
		protectedContent.DELETE("/library/:objectId", contentHandler.DeleteContent)
	}

	r.GET("/ws", wsHandler.Serve)

	logger.Info("content service listening", zap.String("port", cfg.Server.Port))
	r.Run(cfg.Server.Host + ":" + cfg.Server.Port)
}
