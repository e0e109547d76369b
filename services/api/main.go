package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	embeddedpostgres "github.com/fergusstrange/embedded-postgres"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ecclesia/internal/config"
	"github.com/ecclesia/internal/fileserver"
	"github.com/ecclesia/internal/handler"
	"github.com/ecclesia/internal/logger"
	"github.com/ecclesia/internal/middleware"
	"github.com/ecclesia/internal/push"
	"github.com/ecclesia/internal/repository"
	"github.com/ecclesia/internal/startup"
	"github.com/ecclesia/internal/storage"
	"github.com/ecclesia/internal/storage/memory"
	"github.com/ecclesia/internal/ws"
	"github.com/ecclesia/migrations"
)

func main() {
	logger.SetPrefix("api")
	migrate := flag.Bool("migrate", false, "run database migrations and exit")
	dev := flag.Bool("dev", false, "start with embedded PostgreSQL and in-memory sessions (no external services required)")
	flag.Parse()

	logger.Info("starting API service")
	cfg := config.Load()

	var embeddedDB *embeddedpostgres.EmbeddedPostgres
	if *dev {
		var err error
		embeddedDB, err = startEmbeddedPostgres(cfg)
		if err != nil {
			logger.Errorf("embedded postgres: %v", err)
			os.Exit(1)
		}
		defer func() {
			logger.Info("stopping embedded postgres...")
			if err := embeddedDB.Stop(); err != nil {
				logger.Errorf("embedded postgres stop: %v", err)
			}
		}()
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL())
	if err != nil {
		logger.Errorf("parse db config: %v", err)
		os.Exit(1)
	}
	poolCfg.MaxConns = int32(cfg.DBMaxConnections())
	poolCfg.MinConns = 4

	pool := startup.ConnectDBWithRetry(poolCfg, 60*time.Second)
	defer pool.Close()

	runMigrations(pool)
	if *migrate && !*dev {
		return
	}
	logger.Info("database connected, migrations applied")

	var sessions storage.SessionStore
	if *dev {
		sessions = memory.New()
		logger.Info("sessions: in-memory store (dev)")
	} else {
		sessions = startup.ConnectRedisWithRetry(cfg.Redis.URL, 60*time.Second)
		logger.Info("sessions: redis")
	}
	defer sessions.Close()

	userRepo := repository.NewUserRepository(pool)
	roomRepo := repository.NewRoomRepository(pool)
	msgRepo := repository.NewMessageRepository(pool)
	noticeRepo := repository.NewNoticeRepository(pool)
	scheduleRepo := repository.NewScheduleRepository(pool)
	songRepo := repository.NewSongRepository(pool)
	studyRepo := repository.NewStudyRepository(pool)
	downloadRepo := repository.NewDownloadRepository(pool)
	liturgyRepo := repository.NewLiturgyRepository(pool)
	pushRepo := repository.NewPushRepository(pool)

	vapidKeys, err := push.EnsureVAPIDKeys("")
	if err != nil {
		logger.Errorf("vapid keys: %v (push disabled)", err)
	} else {
		cfg.PushVAPIDPublicKey = vapidKeys.PublicKey
	}
	notifier := push.NewNotifier(pushRepo, vapidKeys, os.Getenv("VAPID_SUBSCRIBER"))

	hubCtx, hubCancel := context.WithCancel(context.Background())
	hub := ws.NewHub(roomRepo, msgRepo, cfg.MaxWSConnections, cfg.WSSendBufferSize, notifier)

	var hubWg sync.WaitGroup
	hubWg.Add(1)
	go func() {
		defer hubWg.Done()
		hub.Run(hubCtx)
	}()

	files := fileserver.New(cfg.UploadDir, cfg.MaxUploadSize)

	authH := handler.NewAuthHandler(userRepo, roomRepo, sessions, cfg.SessionTTL)
	userH := handler.NewUserHandler(userRepo)
	chatH := handler.NewChatHandler(roomRepo, hub)
	msgH := handler.NewMessageHandler(msgRepo, roomRepo, hub)
	wsH := handler.NewWSHandler(hub, cfg.CORSAllowedOrigins)
	noticeH := handler.NewNoticeHandler(noticeRepo, notifier)
	scheduleH := handler.NewScheduleHandler(scheduleRepo)
	songH := handler.NewSongHandler(songRepo)
	studyH := handler.NewStudyHandler(studyRepo)
	downloadH := handler.NewDownloadHandler(downloadRepo, files)
	liturgyH := handler.NewLiturgyHandler(liturgyRepo, hub)
	pushH := handler.NewPushHandler(pushRepo)
	configH := handler.NewConfigHandler(cfg)

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(middleware.RecoverJSON)
	// Never compress WebSocket traffic: a wrapped ResponseWriter loses
	// http.Hijacker and the upgrade fails with a 500.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if strings.EqualFold(req.Header.Get("Upgrade"), "websocket") {
				next.ServeHTTP(w, req)
				return
			}
			chimw.Compress(5)(next).ServeHTTP(w, req)
		})
	})
	r.Use(middleware.RequestLog)
	r.Use(middleware.SecureHeaders)
	r.Use(middleware.RateLimitAPI)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.CORSAllowedOrigins},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK); w.Write([]byte("ok")) })
	r.Get("/api/config/push", configH.GetPushConfig)
	r.Get("/api/files/{filename}", downloadH.ServeFile)
	r.Get("/api/liturgies/public/{liturgyId}", liturgyH.GetPublic)

	r.Post("/api/auth/register", authH.Register)
	r.Post("/api/auth/login", authH.Login)

	r.Group(func(r chi.Router) {
		r.Use(middleware.SessionAuth(sessions))

		r.Post("/api/auth/logout", authH.Logout)
		r.Get("/api/users/me", authH.Me)
		r.Put("/api/users/me", userH.UpdateProfile)
		r.Get("/api/users", userH.ListMembers)
		r.Get("/api/users/{userId}", userH.GetMember)

		r.Get("/api/chats", chatH.ListConversations)
		r.Post("/api/chats/private", chatH.OpenPrivateRoom)
		r.Get("/api/chats/{roomId}", chatH.GetRoom)
		r.Get("/api/chats/{roomId}/messages", msgH.GetMessages)
		r.Post("/api/chats/{roomId}/messages", msgH.SendMessage)
		r.Put("/api/messages/{messageId}", msgH.EditMessage)

		r.Get("/api/notices", noticeH.List)
		r.Get("/api/notices/{noticeId}", noticeH.Get)
		r.Post("/api/notices/{noticeId}/like", noticeH.Like)
		r.Delete("/api/notices/{noticeId}/like", noticeH.Unlike)
		r.Get("/api/notices/{noticeId}/comments", noticeH.GetComments)
		r.Post("/api/notices/{noticeId}/comments", noticeH.AddComment)

		r.Get("/api/liturgies", liturgyH.List)
		r.Get("/api/liturgies/active", liturgyH.GetActive)
		r.Get("/api/liturgies/{liturgyId}", liturgyH.Get)

		r.Get("/api/schedules", scheduleH.List)
		r.Get("/api/schedules/{scheduleId}", scheduleH.Get)

		r.Get("/api/songs", songH.List)
		r.Get("/api/songs/{songId}", songH.Get)

		r.Get("/api/studies", studyH.List)
		r.Get("/api/studies/{studyId}", studyH.Get)
		r.Post("/api/studies/{studyId}/like", studyH.Like)
		r.Delete("/api/studies/{studyId}/like", studyH.Unlike)
		r.Get("/api/studies/{studyId}/comments", studyH.GetComments)
		r.Post("/api/studies/{studyId}/comments", studyH.AddComment)

		r.Get("/api/downloads", downloadH.List)
		r.Get("/api/downloads/{downloadId}/file", downloadH.Serve)
		r.Post("/api/files/upload", downloadH.UploadFile)

		r.Post("/api/push/subscribe", pushH.Subscribe)
		r.Delete("/api/push/subscribe", pushH.Unsubscribe)
		r.Get("/ws", wsH.ServeWS)

		// Content management requires the leader role or above.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireLeader(userRepo))
			r.Post("/api/notices", noticeH.Create)
			r.Put("/api/notices/{noticeId}", noticeH.Update)
			r.Put("/api/notices/{noticeId}/pin", noticeH.SetPinned)
			r.Delete("/api/notices/{noticeId}", noticeH.Delete)
			r.Post("/api/liturgies", liturgyH.Create)
			r.Put("/api/liturgies/{liturgyId}", liturgyH.Update)
			r.Put("/api/liturgies/{liturgyId}/activate", liturgyH.Activate)
			r.Put("/api/liturgies/{liturgyId}/deactivate", liturgyH.Deactivate)
			r.Put("/api/liturgies/{liturgyId}/step", liturgyH.SetStep)
			r.Delete("/api/liturgies/{liturgyId}", liturgyH.Delete)
			r.Post("/api/schedules", scheduleH.Create)
			r.Put("/api/schedules/{scheduleId}", scheduleH.Update)
			r.Put("/api/schedules/{scheduleId}/status", scheduleH.SetStatus)
			r.Delete("/api/schedules/{scheduleId}", scheduleH.Delete)
			r.Post("/api/songs", songH.Create)
			r.Put("/api/songs/{songId}", songH.Update)
			r.Delete("/api/songs/{songId}", songH.Delete)
			r.Post("/api/studies", studyH.Create)
			r.Delete("/api/studies/{studyId}", studyH.Delete)
			r.Post("/api/downloads", downloadH.Upload)
			r.Delete("/api/downloads/{downloadId}", downloadH.Delete)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin(userRepo))
			r.Put("/api/users/{userId}/role", userH.SetRole)
		})
	})

	webDist := "./web/dist"
	if info, err := os.Stat(webDist); err == nil && info.IsDir() {
		r.Get("/*", spaHandler(webDist))
	}

	srv := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	var srvWg sync.WaitGroup
	errCh := make(chan error, 1)
	srvWg.Add(1)
	go func() {
		defer srvWg.Done()
		logger.Infof("server listening on %s", cfg.ServerAddr)
		errCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Errorf("server error: %v", err)
			os.Exit(1)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("server shutdown: %v", err)
	}
	logger.Info("server stopped accepting connections")
	hubCancel()
	hubWg.Wait()
	logger.Info("hub stopped")
	srvWg.Wait()
	logger.Info("server goroutine exited")
}

func spaHandler(dir string) http.HandlerFunc {
	fs := http.Dir(dir)
	fileServer := http.FileServer(fs)
	return func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(filepath.Clean(r.URL.Path), "/")
		if path == "" {
			path = "index.html"
		}
		if f, err := fs.Open(path); err != nil {
			http.ServeFile(w, r, filepath.Join(dir, "index.html"))
		} else {
			f.Close()
			fileServer.ServeHTTP(w, r)
		}
	}
}

func runMigrations(pool *pgxpool.Pool) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	entries, err := migrations.Files.ReadDir(".")
	if err != nil {
		logger.Errorf("read migrations: %v", err)
		os.Exit(1)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	for _, name := range names {
		data, err := migrations.Files.ReadFile(name)
		if err != nil {
			logger.Errorf("read migration %s: %v", name, err)
			os.Exit(1)
		}
		if _, err := pool.Exec(ctx, string(data)); err != nil {
			logger.Errorf("run migration %s: %v", name, err)
			os.Exit(1)
		}
	}
	logger.Info("migrations applied")
}

func startEmbeddedPostgres(cfg *config.Config) (*embeddedpostgres.EmbeddedPostgres, error) {
	const (
		port     = 5432
		user     = "ecclesia"
		password = "ecclesia_secret"
		database = "ecclesia"
	)

	dataDir := filepath.Join(".", ".pgdata")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create pgdata dir: %w", err)
	}

	db := embeddedpostgres.NewDatabase(
		embeddedpostgres.DefaultConfig().
			Port(port).
			Username(user).
			Password(password).
			Database(database).
			DataPath(dataDir).
			RuntimePath(filepath.Join(os.TempDir(), "embedded-pg-runtime")),
	)

	logger.Info("starting embedded PostgreSQL...")
	if err := db.Start(); err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}

	cfg.Database.URL = fmt.Sprintf(
		"postgres://%s:%s@localhost:%d/%s?sslmode=disable",
		user, password, port, database,
	)
	logger.Infof("embedded PostgreSQL running on port %d", port)
	return db, nil
}
