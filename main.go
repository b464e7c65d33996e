package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/minglehq/mingle/handlers"
	"github.com/minglehq/mingle/internal/config"
	"github.com/minglehq/mingle/internal/database"
	"github.com/minglehq/mingle/internal/posts"
	"github.com/minglehq/mingle/internal/realtime"
	"github.com/minglehq/mingle/internal/sessions"
	"github.com/minglehq/mingle/internal/storage"
	"github.com/minglehq/mingle/internal/tokens"
	"github.com/minglehq/mingle/internal/users"
	"github.com/minglehq/mingle/pkg/logger"
	"github.com/minglehq/mingle/pkg/metrics"
	"github.com/minglehq/mingle/pkg/middleware"
)

var startTime = time.Now()

func main() {
	// log level controlled with LOG_LEVEL env: debug|info|warn|error|fatal
	logger.Init(os.Getenv("LOG_LEVEL"))

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Infof("config loaded: mongo=%v redis=%v env=%s", cfg.MongoDB.URI != "", cfg.Redis.Host != "", cfg.Server.Environment)

	ctx := context.Background()

	// MongoDB holds users, posts and comments; the service cannot run without it.
	if cfg.MongoDB.URI == "" {
		logger.Fatalf("MONGODB_URI is required")
	}
	mongoClient, err := database.ConnectMongo(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout)
	if err != nil {
		logger.Fatalf("mongodb: %v", err)
	}
	defer func() { _ = mongoClient.Disconnect(context.Background()) }()
	db := mongoClient.Database(cfg.MongoDB.Database)
	if err := database.EnsureIndexes(ctx, db); err != nil {
		logger.Warnf("ensure indexes: %v", err)
	}
	logger.Infof("connected to MongoDB (%s)", cfg.MongoDB.Database)

	// Redis backs the refresh-token slots and the distributed rate limiter.
	// Without it the refresh slots fall back to the user documents in Mongo.
	var redisClient *redis.Client
	if cfg.Redis.Host != "" {
		rc := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Host + ":" + cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rc.Ping(ctx).Err(); err != nil {
			logger.Warnf("redis ping failed (%s:%s): %v", cfg.Redis.Host, cfg.Redis.Port, err)
		} else {
			redisClient = rc
			logger.Infof("connected to Redis (%s:%s)", cfg.Redis.Host, cfg.Redis.Port)
		}
	}

	// services
	tks := tokens.NewService(cfg.JWT)
	usersSvc := users.NewService(users.NewMongoUserRepository(db.Collection("users")))
	postsSvc := posts.NewService(posts.NewMongoRepository(db.Collection("posts"), db.Collection("comments")))

	var sessionRepo sessions.Repository
	if redisClient != nil {
		sessionRepo = sessions.NewRedisRepository(redisClient, "")
	} else {
		sessionRepo = sessions.NewMongoRepository(db.Collection("users"))
	}
	sessionsSvc := sessions.NewService(tks, sessionRepo, usersSvc)

	// object storage for avatars and post images (optional)
	var media *storage.MediaStore
	if mc := storage.LoadMinIOConfig(); mc.Endpoint != "" {
		media, err = storage.NewMediaStore(mc)
		if err != nil {
			logger.Warnf("minio unavailable, uploads disabled: %v", err)
			media = nil
		} else {
			logger.Infof("connected to MinIO (%s, bucket %s)", mc.Endpoint, mc.Bucket)
		}
	}

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	// Lightweight CORS middleware; WS_ALLOWED_ORIGIN also gates the
	// WebSocket handshake origin check.
	allowedOrigin := cfg.Server.AllowedOrigin
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Length")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	})

	// optional global rate limiter (per-user when authenticated, otherwise per-IP)
	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.UseRedis && redisClient != nil {
			win := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
			r.Use(middleware.RedisRateLimitMiddleware(redisClient, cfg.RateLimit.RPS, cfg.RateLimit.Burst, win))
		} else {
			r.Use(middleware.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
		}
	}

	// metrics on a dedicated registry
	reg := prometheus.NewRegistry()
	metrics.RegisterCollectors(reg)
	reg.MustRegister(collectors.NewGoCollector())
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})
	r.GET("/ready", func(c *gin.Context) {
		deps := gin.H{"mongodb": true, "redis": redisClient != nil, "minio": media != nil}
		ready := mongoClient.Ping(c.Request.Context(), nil) == nil
		deps["mongodb"] = ready
		if !ready {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "deps": deps, "uptime": time.Since(startTime).String()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready", "deps": deps, "uptime": time.Since(startTime).String()})
	})

	// REST API
	authMW := middleware.RequireAuth(tks)
	api := r.Group("/api")
	authH := handlers.NewAuthHandler(usersSvc, sessionsSvc)
	authH.Register(api, authMW)
	// the original web client calls this path without the /api prefix
	r.POST("/refresh-token", authH.Refresh)
	handlers.NewUserHandler(usersSvc, postsSvc, media).Register(api, authMW)
	handlers.NewPostHandler(postsSvc, media).Register(api, authMW)

	// realtime relay
	rt := realtime.NewServer(tks, realtime.Options{
		AllowedOrigin:    cfg.Server.AllowedOrigin,
		HandshakeTimeout: cfg.Realtime.HandshakeTimeout,
		SendBuffer:       cfg.Realtime.SendBuffer,
		MaxSendFailures:  cfg.Realtime.MaxSendFailures,
	})
	r.GET("/ws", rt.HandleConnection)

	addr := cfg.Server.Host + ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infof("listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Infof("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("shutdown: %v", err)
	}
}
