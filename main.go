package main

import (
	"context"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/mander92/syuso-chat/internal/config"
	"github.com/mander92/syuso-chat/internal/db"
	"github.com/mander92/syuso-chat/internal/directory"
	"github.com/mander92/syuso-chat/internal/handlers"
	"github.com/mander92/syuso-chat/internal/ledger"
	"github.com/mander92/syuso-chat/internal/middleware"
	"github.com/mander92/syuso-chat/internal/observability"
	"github.com/mander92/syuso-chat/internal/policy"
	"github.com/mander92/syuso-chat/internal/rabbitmq"
	"github.com/mander92/syuso-chat/internal/repositories"
	"github.com/mander92/syuso-chat/internal/telemetry"
	"github.com/mander92/syuso-chat/internal/ws"
)

const serviceName = "syuso-chat"

func main() {
	cfg := config.Load()

	ctx := context.Background()
	shutdownTracing, err := telemetry.InitTracing(ctx, serviceName, cfg.Environment, cfg.OTLPEndpoint)
	if err != nil {
		log.Fatalf("failed to init tracing: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.Printf("tracing shutdown error: %v", err)
		}
	}()

	database, err := db.Connect(cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}
	defer database.Close()

	var unread ledger.Ledger
	if cfg.RedisAddr != "" {
		unread = ledger.NewRedisLedger(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}))
	} else {
		log.Printf("REDIS_ADDR empty, using in-memory unread ledger")
		unread = ledger.NewMemoryLedger()
	}

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	defer publisher.Close()
	log.Printf("audit publisher mode: %s", rabbitmq.PublisherMode(publisher))
	audit := telemetry.NewAuditEmitter(publisher, "chat.audit", serviceName, cfg.Environment)

	dir := directory.NewSQLDirectory(database)
	messageRepo := repositories.NewMessageRepo(database)
	chatRepo := repositories.NewGeneralChatRepo(database)
	moderationRepo := repositories.NewModerationRepo(database)

	pol := policy.New(dir, chatRepo)
	hub := ws.NewHub()
	server := ws.NewServer(hub, pol, messageRepo, moderationRepo, unread, dir, audit)

	verifier := middleware.NewVerifier(cfg.JWTSecret)
	wsHandler := ws.NewHandler(server, verifier)

	roomHandler := handlers.NewRoomHandler(messageRepo, pol, dir)
	chatHandler := handlers.NewGeneralChatHandler(chatRepo, dir, audit)
	unreadHandler := handlers.NewUnreadHandler(unread)
	uploadHandler := handlers.NewUploadHandler(cfg.UploadDir)

	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(observability.HTTPMetricsMiddleware())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.Static("/uploads", cfg.UploadDir)

	authMiddleware := middleware.AuthMiddleware(verifier)

	router.GET("/rooms/:room/messages", authMiddleware, roomHandler.GetRoomMessages)
	router.GET("/rooms/:room/members", authMiddleware, roomHandler.GetRoomMembers)

	router.POST("/general-chats", authMiddleware, chatHandler.CreateChat)
	router.GET("/general-chats", authMiddleware, chatHandler.ListChats)
	router.GET("/general-chats/:chat_id/members", authMiddleware, chatHandler.GetMembers)
	router.POST("/general-chats/:chat_id/members", authMiddleware, chatHandler.AddMembers)
	router.DELETE("/general-chats/:chat_id/members/:user_id", authMiddleware, chatHandler.RemoveMember)

	router.GET("/unread", authMiddleware, unreadHandler.GetUnread)
	router.POST("/unread/:room/reset", authMiddleware, unreadHandler.ResetUnread)

	router.POST("/uploads", authMiddleware, uploadHandler.UploadImage)

	router.GET("/ws", wsHandler.Handle)

	handlers.RegisterDebugRoutes(router, audit, cfg.DebugRoutes)

	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
