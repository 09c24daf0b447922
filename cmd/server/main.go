package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/open-sun/software/internal/ai"
	"github.com/open-sun/software/internal/auth"
	"github.com/open-sun/software/internal/config"
	"github.com/open-sun/software/internal/fish"
	"github.com/open-sun/software/internal/httpx"
	"github.com/open-sun/software/internal/janitor"
	"github.com/open-sun/software/internal/logging"
	"github.com/open-sun/software/internal/market"
	"github.com/open-sun/software/internal/middleware"
	"github.com/open-sun/software/internal/models"
	"github.com/open-sun/software/internal/store"
	"github.com/open-sun/software/internal/video"
	"github.com/open-sun/software/internal/water"
	"github.com/open-sun/software/internal/weather"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		panic(err)
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx := context.Background()

	// ── PostgreSQL ────────────────────────────────────────────
	pgPool, err := pgxpool.New(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal("postgres connect", zap.Error(err))
	}
	defer pgPool.Close()
	pgStore := store.NewPostgresStore(pgPool)
	if err := pgStore.Migrate(ctx, cfg.DBResetOnStart); err != nil {
		logger.Fatal("postgres migrate", zap.Error(err))
	}

	waterFiles := water.NewFileStore(cfg.DataDir)
	fishFile := filepath.Join(cfg.DataDir, "Fish.csv")
	if cfg.BulkLoadOnStart {
		// Tables that already hold rows are left alone so a restart
		// without DB_RESET_ON_START does not duplicate them.
		if count, err := pgStore.CountWater(ctx); err != nil {
			logger.Fatal("count water quality", zap.Error(err))
		} else if count == 0 {
			n, err := water.LoadDir(ctx, waterFiles.NameRoot(), pgStore, logger)
			if err != nil {
				logger.Fatal("load water quality", zap.Error(err))
			}
			logger.Info("water quality loaded", zap.Int64("rows", n))
		}

		if count, err := pgStore.CountFish(ctx); err != nil {
			logger.Fatal("count fish data", zap.Error(err))
		} else if count == 0 {
			n, err := fish.LoadFile(ctx, fishFile, pgStore, logger)
			if err != nil {
				logger.Fatal("load fish data", zap.Error(err))
			}
			logger.Info("fish data loaded", zap.Int64("rows", n))
		}
	}

	// ── MongoDB ──────────────────────────────────────────────
	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		logger.Fatal("mongo connect", zap.Error(err))
	}
	defer mongoClient.Disconnect(ctx)
	mongoStore := store.NewMongoStore(mongoClient.Database(cfg.MongoDB))

	// ── Redis ────────────────────────────────────────────────
	rdb, err := store.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		logger.Fatal("redis connect", zap.Error(err))
	}
	defer rdb.Close()
	sessions := auth.NewSessionStore(rdb)

	// ── MinIO ────────────────────────────────────────────────
	minioStore, err := store.NewMinioStore(
		ctx, cfg.MinioEndpoint, cfg.MinioAccessKey,
		cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL,
	)
	if err != nil {
		logger.Fatal("minio connect", zap.Error(err))
	}

	// ── Upstream clients ─────────────────────────────────────
	marketClient := market.NewClient(cfg.MarketBaseURL)
	trends := market.NewTrends(marketClient, cfg.MarketThrottle, cfg.MarketTrendTimeout, logger)
	weatherClient := weather.NewClient(cfg.WeatherBaseURL)
	model := ai.NewOpenAIModel(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMChatModel, cfg.LLMVisionModel)
	tracker := video.NewTrackerClient(cfg.TrackerServiceURL)

	// ── Background work ──────────────────────────────────────
	runner := video.NewRunner(tracker, minioStore, mongoStore, cfg.VideoJobTimeout, logger)
	defer runner.Close()
	sweeper := janitor.New(minioStore, auth.ExportPrefix, cfg.ExportTTL, runner, logger)
	if err := sweeper.Start(); err != nil {
		logger.Fatal("janitor start", zap.Error(err))
	}
	defer sweeper.Stop()

	// ── Handlers ─────────────────────────────────────────────
	var names water.NameSource = waterFiles
	if cfg.WaterNameSource == "db" {
		names = water.NewDBSource(pgStore)
	}
	authHandler := auth.NewHandler(pgStore, sessions, minioStore, logger)
	waterHandler := water.NewHandler(waterFiles, names, pgStore, logger)
	fishHandler := fish.NewHandler(fishFile, fish.NewCache(), pgStore, logger)
	videoHandler := video.NewHandler(video.NewLibrary(filepath.Join(cfg.DataDir, "videos"), cfg.PublicBaseURL), tracker, runner, minioStore, logger)
	weatherHandler := weather.NewHandler(weatherClient, logger)
	marketHandler := market.NewHandler(marketClient, trends, logger)
	aiHandler := ai.NewHandler(model, ai.NewRedisMemory(rdb, cfg.ChatHistoryLimit), mongoStore, logger)

	// ── Router ───────────────────────────────────────────────
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(logging.Middleware(logger))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		ExposedHeaders:   []string{"Content-Disposition", "X-Export-URL"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Static data and videos
	r.Get("/data/videos/{date}/{filename}", videoHandler.Serve)
	r.Handle("/data/*", http.StripPrefix("/data/", httpx.StaticFiles(cfg.DataDir)))
	r.Get("/export/{name}", authHandler.ServeExport)

	// Public routes
	r.Route("/api", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
		r.Post("/logout", authHandler.Logout)
		r.Post("/changepassword", authHandler.ChangePassword)
		r.With(middleware.RequireAuth(sessions, logger)).Get("/me", authHandler.Me)

		r.Get("/TimeWaterData", waterHandler.ByDate)
		r.Get("/waterdata_by_name", waterHandler.ByName)
		r.Get("/getwaterqualitydata", waterHandler.List)
		r.Get("/getfishdata", fishHandler.List)
		r.Get("/fishdata", fishHandler.Get)
		r.Get("/fishdata/download", fishHandler.Download)

		r.Get("/videos", videoHandler.List)
		r.Post("/video/analyze", videoHandler.Analyze)
		r.Route("/video/jobs", func(r chi.Router) {
			r.Post("/", videoHandler.SubmitJob)
			r.Get("/", videoHandler.ListJobs)
			r.Get("/{id}", videoHandler.GetJob)
			r.Get("/{id}/result", videoHandler.JobResult)
			r.Delete("/{id}", videoHandler.CancelJob)
		})

		r.Get("/weather/current", weatherHandler.Current)
		r.Post("/market/prices", marketHandler.Prices)
		r.Post("/market/trends", marketHandler.Trends)
		r.Get("/ai/history", aiHandler.History)

		// Admin and write routes, gated when REQUIRE_ADMIN_SESSION is set
		r.Group(func(r chi.Router) {
			if cfg.RequireAdminSession {
				r.Use(middleware.RequireAuth(sessions, logger))
				r.Use(middleware.RequireRole(pgStore, models.RoleAdmin, logger))
			}
			r.Get("/getusers", authHandler.ListUsers)
			r.Put("/updateuserrole/{id}", authHandler.UpdateRole)
			r.Delete("/deleteuser/{id}", authHandler.DeleteUser)
			r.Get("/exportusers", authHandler.ExportUsers)

			r.Post("/addwaterqualitydata", waterHandler.Create)
			r.Put("/updatewaterqualitydata/{id}", waterHandler.Update)
			r.Delete("/deletewaterqualitydata/{id}", waterHandler.Delete)

			r.Post("/addfishdata", fishHandler.Create)
			r.Put("/updatefishdata/{id}", fishHandler.Update)
			r.Delete("/deletefishdata/{id}", fishHandler.Delete)
			r.Post("/fishdata/upload", fishHandler.Upload)
			r.Post("/fishdata/clear", fishHandler.Clear)
		})
	})

	// Assistant
	r.Post("/chat", aiHandler.Chat)
	r.Post("/chat/reset", aiHandler.ResetChat)
	r.Post("/recognizeIMG", aiHandler.RecognizeImage)
	r.Post("/recognizeFile", aiHandler.RecognizeFile)

	// ── Server ───────────────────────────────────────────────
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  5 * time.Minute,
		WriteTimeout: 10 * time.Minute,
	}

	go func() {
		logger.Info("backend listening", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	shutCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}
}
