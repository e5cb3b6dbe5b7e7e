package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Maxapelquist/preparty-social-hub/config"
	_ "github.com/Maxapelquist/preparty-social-hub/config/swagger"
	"github.com/Maxapelquist/preparty-social-hub/middleware"
	"github.com/Maxapelquist/preparty-social-hub/routes"
	"github.com/Maxapelquist/preparty-social-hub/services/chat"
	"github.com/Maxapelquist/preparty-social-hub/services/friends"
	"github.com/Maxapelquist/preparty-social-hub/services/game"
	"github.com/Maxapelquist/preparty-social-hub/services/groups"
	"github.com/Maxapelquist/preparty-social-hub/services/notifications"
	"github.com/Maxapelquist/preparty-social-hub/services/parties"
	"github.com/Maxapelquist/preparty-social-hub/services/profiles"
	"github.com/Maxapelquist/preparty-social-hub/services/redis"
	socket_io "github.com/Maxapelquist/preparty-social-hub/services/socket_io"
	socketio_types "github.com/Maxapelquist/preparty-social-hub/services/socket_io/types"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"gorm.io/gorm"
)

// @title PreParty API
// @version 1.0
// @description Gin-Gonic server for the PreParty social app
// @BasePath /
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name Authorization
func main() {
	_ = godotenv.Load()

	cfg := config.MustLoad()
	log := config.SetupLogger(cfg.Env)
	log.Info("setting up server", slog.String("env", cfg.Env))

	if cfg.Env == config.EnvProd {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := connectDatabase(cfg.Postgres)
	if err != nil {
		log.Error("error connecting to database", slog.Any("error", err))
		os.Exit(1)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	// Only migrate in development or during deployment
	if cfg.Postgres.Migrate {
		if err := config.MigrateDatabase(db); err != nil {
			log.Warn("database migration failed", slog.Any("error", err))
		} else {
			log.Info("database migrated")
		}
	}
	if n, err := game.SeedQuestions(ctx, db); err != nil {
		log.Warn("seeding questions failed", slog.Any("error", err))
	} else if n > 0 {
		log.Info("seeded questions", slog.Int("count", n))
	}

	redisClient, err := config.ConnectRedis(ctx, cfg.Redis, log)
	if err != nil {
		log.Error("error connecting to redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer redis.CloseRedis(redisClient)

	svc := routes.Services{
		Profiles:      profiles.NewService(db, redisClient, log),
		Friends:       friends.NewService(db, redisClient, log),
		Groups:        groups.NewService(db, redisClient, log),
		Parties:       parties.NewService(db, redisClient, log),
		Chat:          chat.NewService(db, redisClient, log),
		Notifications: notifications.NewService(db, log),
		Game:          game.NewService(db, redisClient, redisClient, log),
	}

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	middleware.SetUpMiddleware(r, cfg)

	sio := (*socket_io.MySocketServer)(socketio_types.NewSocketServer())
	hub := sio.Start(r, socket_io.Options{
		Secret:  []byte(cfg.Auth.JWTSecret),
		Access:  socket_io.NewAccess(db, svc.Game, svc.Parties),
		Counts:  svc.Notifications,
		Origins: cfg.CORS.Origins,
		Debug:   cfg.Env == config.EnvLocal,
	}, log)
	defer sio.Close()

	go func() {
		if err := hub.Run(ctx, redisClient); err != nil {
			log.Error("change relay stopped", slog.Any("error", err))
		}
	}()

	routes.SetupRoutes(r, svc, cfg, log)

	srv := &http.Server{
		Addr:              cfg.HTTP.Address,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("server listening", slog.String("address", cfg.HTTP.Address), slog.Bool("https", cfg.HTTP.UseHTTPS))
		var err error
		if cfg.HTTP.UseHTTPS {
			err = srv.ListenAndServeTLS(cfg.HTTP.CertFile, cfg.HTTP.KeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("error starting server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("error during shutdown", slog.Any("error", err))
	}
}

// connectDatabase opens Postgres, or an embedded SQLite file when the host
// is "sqlite".
func connectDatabase(cfg config.PostgresConfig) (*gorm.DB, error) {
	if cfg.Host == "sqlite" {
		return config.ConnectSQLite("file:"+cfg.Database+".db", cfg.Verbose)
	}
	return config.ConnectGORM(cfg)
}
