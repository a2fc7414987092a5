package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/smarthub-edu/smarthub/internal/agent"
	api "github.com/smarthub-edu/smarthub/internal/api/http"
	"github.com/smarthub-edu/smarthub/internal/audit"
	"github.com/smarthub-edu/smarthub/internal/auth"
	"github.com/smarthub-edu/smarthub/internal/cache"
	"github.com/smarthub-edu/smarthub/internal/config"
	"github.com/smarthub-edu/smarthub/internal/db"
	"github.com/smarthub-edu/smarthub/internal/eligibility"
	"github.com/smarthub-edu/smarthub/internal/grading"
	"github.com/smarthub-edu/smarthub/internal/quiz"
	"github.com/smarthub-edu/smarthub/internal/quiz/session"
	"github.com/smarthub-edu/smarthub/internal/rbac"
	"github.com/smarthub-edu/smarthub/internal/storage"
)

func main() {
	_ = godotenv.Load()
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if os.Getenv("LOG_PRETTY") == "true" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	cfg := config.FromEnv()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("db open failed")
	}

	grader := grading.NewDefaultGrader(
		grading.WithMaxEditDistance(1),
		grading.WithPartialMulti(true),
		grading.WithPartialMatch(true),
	)
	store := quiz.NewSQLStore(dbh, grader)
	sessions := session.NewManager(store, time.Now)
	checker := eligibility.NewChecker(store, cfg.MaxAttemptsPerDay, time.Now)
	events := audit.NewEventRepo(dbh)

	var c cache.Cache
	if cfg.RedisAddr != "" {
		rc := cache.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := rc.Ping(); err != nil {
			log.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unreachable")
		}
		c = rc
		log.Info().Str("addr", cfg.RedisAddr).Msg("using redis cache")
	} else {
		c = cache.NewMemory()
	}

	agentClient, err := agent.New(agent.Config{
		BaseURL:         cfg.AgentBaseURL,
		Token:           cfg.AgentToken,
		RequestTimeout:  cfg.AgentRequestTimeout,
		GenerateTimeout: cfg.AgentGenerateTimeout,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("agent client")
	}

	blobs, err := storage.NewFSStore(cfg.ResourceBasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("blob store")
	}

	authSvc := auth.NewAuthService(cfg.AuthSecret, cfg.AuthTTL)

	quizAPI := &api.QuizAPI{
		Store:    store,
		Sessions: sessions,
		Checker:  checker,
		Cache:    c,
		Events:   events,
		Agent:    agentClient,
		Log:      log.With().Str("component", "quiz").Logger(),
	}

	// A stats request is the caller's own when it names no user or
	// names the authenticated subject.
	ownStats := func(r *http.Request) bool {
		u := r.URL.Query().Get("userId")
		return u == "" || u == auth.SubjectFromContext(r.Context())
	}

	// Standard requests get a short deadline. Adaptive generation is
	// the exception: the remote agent may legitimately run up to the
	// configured budget, so that route carries its own timeout.
	reqTimeout := middleware.Timeout(30 * time.Second)
	genTimeout := middleware.Timeout(cfg.AgentGenerateTimeout + 30*time.Second)

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.With(reqTimeout).Post("/api/auth/login", auth.LoginHandler(authSvc, dbh))

	// Protected API (JWT → role in context → RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(authSvc))

		pr.With(genTimeout, rbac.Require("quiz:take")).
			Post("/agent/adaptive-quiz/initiate", quizAPI.InitiateAdaptive)

		pr.Group(func(pr chi.Router) {
			pr.Use(reqTimeout)

			// quiz-taking flow
			pr.Route("/agent/course-quiz", func(qr chi.Router) {
				qr.With(rbac.Require("quiz:take")).
					Get("/eligibility", quizAPI.Eligibility)
				qr.With(rbac.Require("quiz:take")).
					Post("/initiate", quizAPI.Initiate)
				qr.With(rbac.Require("quiz:take")).
					Post("/save/{attemptID}", quizAPI.SaveResponses)
				qr.With(rbac.Require("quiz:take")).
					Post("/submit/{attemptID}", quizAPI.Submit)
				qr.With(rbac.RequireAny("attempt:view-own", "attempt:view-all")).
					Get("/attempt/{attemptID}", quizAPI.GetAttempt)
				qr.With(rbac.RequireOwnerOr("quiz:stats-any", ownStats)).
					Get("/stats", quizAPI.Stats)
			})

			// quiz authoring (teacher/admin)
			pr.With(rbac.Require("quiz:create")).
				Post("/api/quizzes", quizAPI.CreateQuiz)
			pr.With(rbac.Require("quiz:create")).
				Get("/api/quizzes/{quizID}", quizAPI.GetQuizAdmin)
			pr.With(rbac.RequireAny("attempt:view-own", "attempt:view-all")).
				Get("/api/attempts", quizAPI.ListAttempts)

			// courses
			pr.With(rbac.Require("course:create")).
				Post("/api/courses", api.CreateCourseHandler(dbh))
			pr.With(rbac.Require("course:view")).
				Get("/api/courses", api.ListCoursesHandler(dbh))
			pr.With(rbac.Require("course:enroll")).
				Post("/api/courses/{courseID}/enroll", api.EnrollHandler(dbh))

			// announcements
			pr.With(rbac.Require("announcement:create")).
				Post("/api/announcements", api.CreateAnnouncementHandler(dbh))
			pr.With(rbac.Require("announcement:view")).
				Get("/api/announcements", api.ListAnnouncementsHandler(dbh))

			// resources
			pr.With(rbac.Require("resource:publish")).
				Post("/api/resources", api.UploadResourceHandler(dbh, blobs))
			pr.With(rbac.Require("resource:view")).
				Get("/api/resources", api.ListResourcesHandler(dbh))
			pr.With(rbac.Require("resource:view")).
				Get("/api/resources/{resourceID}/download", api.DownloadResourceHandler(dbh, blobs))

			// users
			pr.With(rbac.Require("users:bulk_upsert")).
				Post("/api/users/bulk", api.BulkUpsertUsersHandler(dbh))
			pr.With(rbac.Require("users:list")).
				Get("/api/users", api.ListUsersHandler(dbh))
			pr.With(rbac.Require("user:change_password")).
				Post("/api/users/change-password", api.ChangePasswordHandler(dbh))
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := dbh.PingContext(r.Context()); err != nil {
			w.WriteHeader(503)
			return
		}
		w.WriteHeader(200)
	})

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Str("db", cfg.DBDriver).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info().Msg("shutting down")
	shutCtx, shutCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutCancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	sessions.Shutdown()
}
