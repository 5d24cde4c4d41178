package router

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"strings"
	"time"

	"meditation/docs"
	"meditation/internal/api/v1/handler"
	"meditation/internal/auth"
	"meditation/internal/config"
	"meditation/internal/editor"
	"meditation/internal/feed"
	"meditation/internal/middleware"
	"meditation/internal/pgmq"
	"meditation/internal/pubsub"
	"meditation/internal/repository"
	"meditation/internal/service"
	"meditation/internal/storage"
	"meditation/internal/upload"
	"meditation/internal/viewer"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/sessions"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/swaggo/swag"
	"google.golang.org/api/option"
)

// Dependencies are the services the HTTP routes are built from.
type Dependencies struct {
	Programs        service.ProgramService
	Editor          service.EditorService
	Feed            handler.Subscriber
	Viewers         *viewer.Registry
	Cookies         sessions.Store
	Credentials     handler.CredentialChecker
	Tokens          *auth.TokenIssuer
	MaxVideoSize    int64
	MaxResourceSize int64
}

// Runtime holds what the process must run and close beside the HTTP server.
type Runtime struct {
	DB       *sql.DB
	Broker   *feed.Broker
	Listener *feed.Listener
	Viewers  *viewer.Registry
	closers  []func() error
}

func (rt *Runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
}

func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (http.Handler, *Runtime, error) {
	logger.Info().Str("environment", cfg.Environment).Msg("App environment loaded")
	if err := cfg.ValidateServer(); err != nil {
		return nil, nil, err
	}
	rt := &Runtime{}

	// 1. Open DB connection (connection pooling)
	db, err := sql.Open("pgx", pooledDSN(cfg))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open DB connection: %w", err)
	}
	rt.DB = db
	rt.closers = append(rt.closers, db.Close)
	if err := db.PingContext(ctx); err != nil {
		rt.Close()
		return nil, nil, fmt.Errorf("failed to ping DB: %w", err)
	}
	logger.Info().Msg("Database connection successful")

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := repository.EnsureSchema(ctx, db); err != nil {
		rt.Close()
		return nil, nil, fmt.Errorf("failed to ensure schema: %w", err)
	}

	// 2. Initialize S3 client
	s3Client, err := storage.NewS3Client(ctx, cfg)
	if err != nil {
		rt.Close()
		return nil, nil, fmt.Errorf("failed to load S3 config: %w", err)
	}
	blobs := storage.NewS3Store(s3Client, cfg.S3Bucket, cfg.PublicObjectBaseURL(), logger)

	// 3. Initialize Pub/Sub publisher
	var events pubsub.EventPublisher = pubsub.NopEventPublisher{}
	if cfg.PubSubProgramsTopic != "" {
		pub, err := pubsub.NewPublisher(ctx, cfg)
		if err != nil {
			rt.Close()
			return nil, nil, fmt.Errorf("failed to create Pub/Sub publisher: %w", err)
		}
		rt.closers = append(rt.closers, pub.Close)
		events = pubsub.NewEventPublisher(pub, cfg.PubSubProgramsTopic)
	}

	// 4. Admin credentials
	hash := cfg.AdminPasswordHash
	if hash == "" && cfg.AdminPasswordSecret != "" {
		var opts []option.ClientOption
		if cfg.GCPCredentialsFile != "" {
			opts = append(opts, option.WithCredentialsFile(cfg.GCPCredentialsFile))
		}
		hash, err = auth.LoadPasswordHash(ctx, cfg.GCPProjectID, cfg.AdminPasswordSecret, opts...)
		if err != nil {
			rt.Close()
			return nil, nil, err
		}
	}
	credentials, err := auth.NewCredentials(cfg.AdminEmail, hash)
	if err != nil {
		rt.Close()
		return nil, nil, err
	}

	// 5. Initialize repositories & services
	queue := pgmq.New(db)
	if err := queue.EnsureQueues(ctx, cfg.CleanupQueueName, cfg.CleanupDeadLetterQueueName); err != nil {
		rt.Close()
		return nil, nil, err
	}

	programRepo := repository.NewProgramRepo(db, cfg.DBNotifyChannel, logger)
	notifier := &brokerNotifier{}
	programSvc := service.NewProgramService(programRepo, logger,
		service.WithNotifier(notifier),
		service.WithEvents(events),
		service.WithCleanupQueue(queue, cfg.CleanupQueueName),
	)
	broker := feed.NewBroker(programSvc, logger)
	notifier.broker = broker
	rt.Broker = broker
	rt.Listener = feed.NewListener(listenerDSN(cfg), cfg.DBNotifyChannel, broker.Notify, logger)

	uploader := upload.NewUploader(blobs, cfg.MaxVideoMB<<20, cfg.MaxResourceMB<<20, logger)
	editorSvc := service.NewEditorService(editor.NewWorkspace(), programSvc, uploader, logger)

	rt.Viewers = viewer.NewRegistry(cfg.ViewerIdleTTL)
	cookies := sessions.NewCookieStore([]byte(cfg.CookieSecret))
	cookies.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(cfg.ViewerIdleTTL / time.Second),
		HttpOnly: true,
		Secure:   !cfg.IsDevelopment(),
		SameSite: http.SameSiteLaxMode,
	}

	h := Routes(Dependencies{
		Programs:        programSvc,
		Editor:          editorSvc,
		Feed:            broker,
		Viewers:         rt.Viewers,
		Cookies:         cookies,
		Credentials:     credentials,
		Tokens:          auth.NewTokenIssuer(cfg.JWTSecret, cfg.SessionTTL),
		MaxVideoSize:    cfg.MaxVideoMB << 20,
		MaxResourceSize: cfg.MaxResourceMB << 20,
	}, logger)
	logger.Info().Msg("Router initialized")
	return h, rt, nil
}

// Routes builds the HTTP handler tree.
func Routes(d Dependencies, logger zerolog.Logger) http.Handler {
	validate := validator.New(validator.WithRequiredStructEnabled())

	programHandler := handler.NewProgramHandler(d.Programs, d.Feed, logger)
	viewerHandler := handler.NewViewerHandler(d.Programs, d.Viewers, d.Cookies, validate, logger)
	authHandler := handler.NewAuthHandler(d.Credentials, d.Tokens, validate, logger)
	editorHandler := handler.NewEditorHandler(d.Editor, validate, d.MaxVideoSize, d.MaxResourceSize, logger)

	adminMiddleware := middleware.Admin(d.Tokens, logger)

	mux := http.NewServeMux()

	// Create a subrouter for API v1 with the /v1 prefix
	apiV1Mux := http.NewServeMux()
	programHandler.RegisterRoutes(apiV1Mux, adminMiddleware)
	viewerHandler.RegisterRoutes(apiV1Mux)
	authHandler.RegisterRoutes(apiV1Mux, adminMiddleware)
	editorHandler.RegisterRoutes(apiV1Mux, adminMiddleware)

	mux.Handle("/v1/", http.StripPrefix("/v1", apiV1Mux))

	mux.HandleFunc("GET /swagger/doc.json", func(w http.ResponseWriter, r *http.Request) {
		doc, err := swag.ReadDoc(docs.SwaggerInfo.InstanceName())
		if err != nil {
			http.Error(w, "Swagger document unavailable", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(doc))
	})

	// Redirect all other root-level requests to /v1/{path}
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" || strings.HasPrefix(r.URL.Path, "/v1/") || strings.HasPrefix(r.URL.Path, "/swagger/") {
			http.NotFound(w, r)
			return
		}
		http.Redirect(w, r, "/v1"+r.URL.Path, http.StatusMovedPermanently)
	})

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
		Debug:            false,
	})

	return middleware.LoggerMiddleware(logger)(c.Handler(mux))
}

// brokerNotifier breaks the construction cycle between the program service
// and the broker that lists through it.
type brokerNotifier struct {
	broker *feed.Broker
}

func (n *brokerNotifier) Notify() {
	if n.broker != nil {
		n.broker.Notify()
	}
}

// listenerDSN disables SSL for local development unless the DSN says otherwise.
func listenerDSN(cfg *config.Config) string {
	dsn := cfg.DBConnectionString
	if cfg.IsDevelopment() && !strings.Contains(dsn, "sslmode") {
		dsn = appendParam(dsn, "sslmode=disable")
	}
	return dsn
}

// pooledDSN additionally switches to the simple query protocol outside
// development, where a transaction pooler may sit in front of Postgres.
func pooledDSN(cfg *config.Config) string {
	dsn := listenerDSN(cfg)
	if !cfg.IsDevelopment() && !strings.Contains(dsn, "default_query_exec_mode") {
		dsn = appendParam(dsn, "default_query_exec_mode=simple_protocol")
	}
	return dsn
}

func appendParam(dsn, param string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		if strings.Contains(dsn, "?") {
			return dsn + "&" + param
		}
		return dsn + "?" + param
	}
	return dsn + " " + param
}
