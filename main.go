package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/sync/errgroup"

	"tutor-chat/internal/cache"
	"tutor-chat/internal/config"
	"tutor-chat/internal/db"
	grpchealth "tutor-chat/internal/grpc"
	"tutor-chat/internal/handlers"
	"tutor-chat/internal/middleware"
	"tutor-chat/internal/observability"
	"tutor-chat/internal/rabbitmq"
	"tutor-chat/internal/repositories"
	"tutor-chat/internal/telemetry"
	"tutor-chat/internal/uploads"
)

const serviceName = "tutor-chat"

func main() {
	cfg := config.LoadServer()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, serviceName, cfg.OTLPEndpoint, cfg.Environment)
	if err != nil {
		log.Fatalf("failed to init tracing: %v", err)
	}

	database, err := db.Connect(cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}
	defer database.Close()

	store, err := uploads.NewStore(cfg.UploadDir, "/uploads", cfg.MaxUploadBytes)
	if err != nil {
		log.Fatalf("failed to prepare uploads: %v", err)
	}

	pinned := cache.NewPinnedCache(cfg.RedisAddr, cfg.PinnedCacheTTL)
	defer pinned.Close()

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	defer publisher.Close()
	log.Printf("startup: publisher=%s noop_reason=%q cache=%s", rabbitmq.PublisherMode(publisher), rabbitmq.PublisherNoopReason(publisher), cache.Mode(pinned))
	audit := telemetry.NewAuditEmitter(publisher, cfg.AuditRoutingKey, serviceName, cfg.Environment)

	groupRepo := repositories.NewGroupRepo(database)
	groupMessageRepo := repositories.NewGroupMessageRepo(database)
	reactionRepo := repositories.NewReactionRepo(database)
	tutorChatRepo := repositories.NewTutorChatRepo(database)
	tutorMessageRepo := repositories.NewTutorMessageRepo(database)
	userRepo := repositories.NewUserRepo(database)

	groupHandler := handlers.NewGroupHandler(groupRepo, groupMessageRepo, reactionRepo, userRepo, store, pinned, audit)
	tutorHandler := handlers.NewTutorChatHandler(tutorChatRepo, tutorMessageRepo, userRepo, store, audit)
	tokens := middleware.NewTokenManager(cfg.JWTSecret, serviceName)

	router := gin.New()

	// middlewares
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(observability.HTTPMetricsMiddleware())
	router.Use(observability.AccessLog())
	router.MaxMultipartMemory = cfg.MaxUploadBytes

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.Static("/uploads", store.Dir())

	authMiddleware := middleware.AuthMiddleware(tokens)
	writeLimit := middleware.RateLimit(cfg.WriteRateRPS, cfg.WriteRateBurst)

	router.GET("/groups", authMiddleware, groupHandler.ListGroups)
	router.POST("/groups", authMiddleware, groupHandler.CreateGroup)
	router.GET("/groups/:group_id/messages", authMiddleware, groupHandler.GetGroupMessages)
	router.POST("/groups/:group_id/messages", authMiddleware, writeLimit, groupHandler.PostGroupMessage)
	router.PUT("/groups/:group_id/messages/:message_id", authMiddleware, writeLimit, groupHandler.UpdateMessage)
	router.DELETE("/groups/:group_id/messages/:message_id", authMiddleware, groupHandler.DeleteMessage)
	router.POST("/groups/:group_id/messages/:message_id/reactions", authMiddleware, writeLimit, groupHandler.ToggleReaction)
	router.POST("/groups/:group_id/messages/:message_id/pin", authMiddleware, groupHandler.Pin)
	router.DELETE("/groups/:group_id/messages/:message_id/pin", authMiddleware, groupHandler.Unpin)
	router.GET("/groups/:group_id/pinned-messages", authMiddleware, groupHandler.GetPinned)

	router.GET("/tutor-chats", authMiddleware, tutorHandler.ListChats)
	router.POST("/tutor-chats/start", authMiddleware, tutorHandler.StartChat)
	router.GET("/tutor-chats/:chat_id/messages", authMiddleware, tutorHandler.GetMessages)
	router.POST("/tutor-chats/:chat_id/messages", authMiddleware, writeLimit, tutorHandler.PostMessage)

	handlers.RegisterDebugRoutes(router, audit, tokens, cfg.DebugRoutes)

	healthServer := grpchealth.NewHealthServer(map[string]grpchealth.Check{
		"postgres": database.PingContext,
		"redis":    pinned.Ping,
	}, 10*time.Second)
	healthLis, err := net.Listen("tcp", ":"+cfg.GRPCHealthPort)
	if err != nil {
		log.Fatalf("failed to listen for grpc health: %v", err)
	}

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: router}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("http listening addr=%s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return healthServer.Serve(healthLis)
	})
	g.Go(func() error {
		healthServer.Run(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Printf("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		healthServer.Stop()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Printf("server error: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Printf("tracing shutdown: %v", err)
	}
}
