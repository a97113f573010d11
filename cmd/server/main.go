// Command server is chatify's single configurable pod entry point: it
// wires the send pipeline, scope registry, presence registry, rate
// limiter, event bus, and history reader/writer behind an HTTP+gRPC
// listener pair, then serves until a termination signal arrives.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/chatify/chatify/internal/chat"
	"github.com/chatify/chatify/internal/config"
	"github.com/chatify/chatify/internal/domain"
	"github.com/chatify/chatify/internal/eventbus"
	"github.com/chatify/chatify/internal/history"
	"github.com/chatify/chatify/internal/metrics"
	"github.com/chatify/chatify/internal/presence"
	"github.com/chatify/chatify/internal/ratelimit"
	"github.com/chatify/chatify/internal/registry"
	transportgrpc "github.com/chatify/chatify/internal/transport/grpc"
	transportws "github.com/chatify/chatify/internal/transport/websocket"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(logrus.InfoLevel)
	log := logrus.NewEntry(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("failed to load config")
	}
	podID := config.PodIdentity()
	log = log.WithField("pod_id", podID)

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.KeyValueStore.ConnectionString})
	defer redisClient.Close()

	db, err := gorm.Open(postgres.Open(cfg.ColumnarStore.DSN), &gorm.Config{})
	if err != nil {
		log.WithError(err).Fatal("failed to connect to columnar store")
	}

	store := history.NewPostgresStore(db)
	reader := history.NewReader(store)

	limiter := ratelimit.New(redisClient, log,
		ratelimit.WithThreshold(cfg.RateLimit.Threshold),
		ratelimit.WithWindow(time.Duration(cfg.RateLimit.WindowSeconds)*time.Second))

	presenceRegistry := presence.New(redisClient, log,
		presence.WithTTL(time.Duration(cfg.Presence.TTLSeconds)*time.Second))

	var producer eventbus.Producer
	var broadcastConsumer eventbus.BroadcastConsumer
	if cfg.MessageBroker.UseInMemory {
		bus := eventbus.NewInMemoryBus()
		producer = bus
		broadcastConsumer = bus.Subscribe()
		log.Info("message broker running in in-memory stub mode")
	} else {
		topicCtx, topicCancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := eventbus.EnsureTopic(topicCtx, cfg.MessageBroker.BootstrapServers, cfg.MessageBroker.Topic, cfg.MessageBroker.Partitions); err != nil {
			log.WithError(err).Warn("failed to ensure chat-events topic exists")
		}
		topicCancel()

		producer = eventbus.Singleton(cfg.MessageBroker.BootstrapServers, cfg.MessageBroker.Topic, log)
		broadcastConsumer = eventbus.NewKafkaBroadcastConsumer(
			cfg.MessageBroker.BootstrapServers, cfg.MessageBroker.Topic,
			cfg.MessageBroker.BroadcastConsumerGroupPrefix, podID, log)
	}

	scopeRegistry := registry.New(log)
	sendService := chat.NewService(limiter, producer, podID, log)

	hub := transportws.NewHub(scopeRegistry, presenceRegistry, sendService, podID, log)
	wsHandler := transportws.NewHandler(hub, cfg.WebSocket.AllowedOrigins, log)

	retryPolicy := history.NewExponentialBackoffPolicy(
		cfg.DatabaseRetry.MaxAttempts,
		cfg.DatabaseRetry.RetryBaseDelay(),
		cfg.DatabaseRetry.RetryMaxDelay(),
		cfg.DatabaseRetry.RetryJitter(),
		time.Now().UnixNano(),
	)
	historyWriter := history.NewWriter(
		cfg.MessageBroker.BootstrapServers, cfg.MessageBroker.Topic,
		cfg.ChatHistoryWriter.ConsumerGroupID, cfg.ChatHistoryWriter.MaxPayloadLogBytes,
		store, retryPolicy, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := broadcastConsumer.Run(ctx, func(_ context.Context, event domain.EnrichedChatEvent) {
			scopeRegistry.Broadcast(event.Scope, event.ChatEvent)
		}); err != nil {
			log.WithError(err).Error("broadcast consumer stopped")
		}
	}()

	go func() {
		if err := historyWriter.Run(ctx); err != nil {
			log.WithError(err).Error("history writer stopped")
		}
	}()

	adminServer := transportgrpc.NewAdminServiceServer(reader, presenceRegistry)
	grpcServer := transportgrpc.NewServer(log)
	transportgrpc.RegisterAdminServiceServer(grpcServer, adminServer)

	grpcListener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.GRPCPort))
	if err != nil {
		log.WithError(err).Fatal("failed to listen on gRPC port")
	}
	go func() {
		log.Infof("starting gRPC server on port %d", cfg.Server.GRPCPort)
		if err := grpcServer.Serve(grpcListener); err != nil {
			log.WithError(err).Error("gRPC server stopped")
		}
	}()

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(gin.Logger())
	router.Use(prometheusMiddleware())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "chatify", "pod_id": podID})
	})

	router.GET("/ready", func(c *gin.Context) {
		if err := redisClient.Ping(c.Request.Context()).Err(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "error": "key-value store unavailable"})
			return
		}
		sqlDB, err := db.DB()
		if err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "error": "columnar store unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/ws", wsHandler.ServeWS)

	registerHistoryRoutes(router, reader)
	registerPresenceRoutes(router, presenceRegistry)

	httpServer := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:        router,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		log.Infof("starting HTTP server on port %d", cfg.Server.HTTPPort)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("failed to start HTTP server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("HTTP server shutdown error")
	}
	grpcServer.GracefulStop()

	cancel() // stop broadcast consumer and history writer loops
	if err := producer.Close(); err != nil {
		log.WithError(err).Error("producer flush/close error")
	}
	if err := broadcastConsumer.Close(); err != nil {
		log.WithError(err).Error("broadcast consumer close error")
	}
	if err := historyWriter.Close(); err != nil {
		log.WithError(err).Error("history writer close error")
	}

	log.Info("shutdown complete")
}

// registerHistoryRoutes exposes the history reader's QueryByScope over
// REST for clients that want scope timelines without dialing the admin
// gRPC surface.
func registerHistoryRoutes(router *gin.Engine, reader *history.Reader) {
	router.GET("/scopes/:scopeType/:scopeId/messages", func(c *gin.Context) {
		scopeType := domain.ScopeType(c.Param("scopeType"))
		scopeID := c.Param("scopeId")

		limit := 0
		if raw := c.Query("limit"); raw != "" {
			if parsed, err := strconv.Atoi(raw); err == nil {
				limit = parsed
			}
		}

		var from, to *time.Time
		if raw := c.Query("from"); raw != "" {
			if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
				from = &t
			}
		}
		if raw := c.Query("to"); raw != "" {
			if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
				to = &t
			}
		}

		result := reader.QueryByScope(c.Request.Context(), scopeType, scopeID, from, to, limit)
		if !result.Ok() {
			c.JSON(http.StatusBadRequest, gin.H{"error": result.Err().Message})
			return
		}
		c.JSON(http.StatusOK, gin.H{"events": result.Value()})
	})
}

// registerPresenceRoutes exposes the presence registry's GetConnections
// for observability/directed-delivery callers.
func registerPresenceRoutes(router *gin.Engine, reg *presence.Registry) {
	router.GET("/users/:userId/connections", func(c *gin.Context) {
		conns, err := reg.GetConnections(c.Request.Context(), c.Param("userId"))
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"connectionIds": conns})
	})
}

// prometheusMiddleware records request latency and count for every HTTP
// request, the same pattern the teacher's original entry point used.
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start)
		status := c.Writer.Status()

		metrics.HTTPRequestDuration.WithLabelValues(
			c.Request.Method, c.FullPath(), strconv.Itoa(status),
		).Observe(duration.Seconds())
		metrics.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method, c.FullPath(), strconv.Itoa(status),
		).Inc()
	}
}
