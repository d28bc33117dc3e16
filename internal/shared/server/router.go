package server

import (
	"context"
	"database/sql"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"debate-backend/internal/analyses"
	"debate-backend/internal/llm"
	"debate-backend/internal/llm/openai"
	"debate-backend/internal/search"
	"debate-backend/internal/search/bocha"
	"debate-backend/internal/shared/config"
	"debate-backend/internal/shared/metrics"
	"debate-backend/internal/shared/server/middleware"
	"debate-backend/internal/shared/server/respond"
	"debate-backend/internal/shared/storage/db"
	"debate-backend/internal/shared/storage/object"
	localstore "debate-backend/internal/shared/storage/object/local"
	s3store "debate-backend/internal/shared/storage/object/s3"
	"debate-backend/internal/speech"
	"debate-backend/internal/speech/volcengine"
)

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(cfg config.Config) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(cfg.CORSAllowOrigin),
	)

	// Dependencies
	var sqlDB *sql.DB
	if cfg.DatabaseURL != "" {
		dbConn, err := db.Connect(context.Background(), cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultServerOptions()))
		if err != nil {
			log.Printf("failed to connect database, falling back to memory: %v", err)
		} else {
			if err := db.RunMigrations(context.Background(), dbConn); err != nil {
				log.Printf("failed to run migrations, falling back to memory: %v", err)
				dbConn = nil
			}
		}
		sqlDB = dbConn
	}

	var llmClient llm.Client
	if client, err := openai.NewClient(cfg.LLMAPIKey, cfg.LLMBaseURL, cfg.LLMModel); err != nil {
		log.Printf("llm client unavailable, analyses will fail until configured: %v", err)
	} else {
		llmClient = client
	}
	var searcher search.Searcher = bocha.NewClient(cfg.BochaAPIKey, cfg.BochaBaseURL)

	var analysisRepo analyses.Repo
	if sqlDB != nil {
		analysisRepo = &analyses.PGRepo{DB: sqlDB}
	} else {
		analysisRepo = analyses.NewMemoryRepo()
	}
	orchestrator := &analyses.Orchestrator{
		Repo:         analysisRepo,
		LLM:          llmClient,
		Search:       searcher,
		SaveInterval: cfg.StreamSaveInterval,
	}
	analysisSvc := &analyses.Service{Repo: analysisRepo, Orchestrator: orchestrator}
	analysisHandler := analyses.NewHandler(analysisSvc)

	speechSvc := &speech.Service{
		Synth: volcengine.NewClient(cfg.TTSAppID, cfg.TTSAccessToken, cfg.TTSCluster, cfg.TTSBaseURL),
		Cache: audioCache(cfg),
	}
	speechHandler := speech.NewHandler(speechSvc)

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		respond.JSON(c, http.StatusOK, gin.H{"ok": true})
	})
	analysisHandler.RegisterRoutes(api)
	speechHandler.RegisterRoutes(api)
	r.GET("/metrics", metrics.Handler())

	return r
}

func audioCache(cfg config.Config) object.Store {
	switch cfg.ObjectStoreType {
	case "s3":
		store, err := s3store.New(context.Background(), cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix)
		if err != nil {
			log.Printf("s3 audio cache unavailable, falling back to local: %v", err)
			return localstore.New(cfg.LocalStoreDir)
		}
		return store
	case "none":
		return nil
	default:
		return localstore.New(cfg.LocalStoreDir)
	}
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
