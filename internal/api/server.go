package api

import (
	"context"
	"errors"
	"html"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/david/tender-matcher/internal/advisory"
	"github.com/david/tender-matcher/internal/auth"
	"github.com/david/tender-matcher/internal/db"
	"github.com/david/tender-matcher/internal/extract"
	"github.com/david/tender-matcher/internal/ingest"
	"github.com/david/tender-matcher/internal/matching"
	"github.com/david/tender-matcher/internal/models"
)

// Store is the persistence the HTTP surface needs. *db.Store implements it.
type Store interface {
	ListTenders(ctx context.Context, params db.TenderListParams) (*db.TenderListResult, error)
	GetTender(ctx context.Context, id uuid.UUID) (*models.Tender, error)
	UpdateEnrichment(ctx context.Context, id uuid.UUID, e models.TenderEnrichment) (*models.Tender, error)
	GetStats(ctx context.Context) (*db.Stats, error)
	GetAggregations(ctx context.Context) (*db.AggregationResult, error)

	CreateContractor(ctx context.Context, p models.ContractorProfile) (*models.ContractorProfile, error)
	UpdateContractor(ctx context.Context, id uuid.UUID, p models.ContractorProfile) (*models.ContractorProfile, error)
	GetContractor(ctx context.Context, id uuid.UUID) (*models.ContractorProfile, error)
	ListContractors(ctx context.Context) ([]models.ContractorProfile, error)
	DeleteContractor(ctx context.Context, id uuid.UUID) error

	ListRuns(ctx context.Context, limit int) ([]models.IngestRun, error)

	SaveTender(ctx context.Context, userID, tenderID uuid.UUID) error
	UnsaveTender(ctx context.Context, userID, tenderID uuid.UUID) error
	ListSavedTenders(ctx context.Context, userID uuid.UUID) ([]models.Tender, error)
}

type Deps struct {
	Store     Store
	Auth      *auth.Service
	Ingester  *ingest.Ingester
	Extractor *extract.Extractor
	Engine    *matching.Engine
	Advisor   *advisory.Advisor
	Log       *zap.Logger
}

type Server struct {
	Store     Store
	Auth      *auth.Service
	Ingester  *ingest.Ingester
	Extractor *extract.Extractor
	Engine    *matching.Engine
	Advisor   *advisory.Advisor
	Echo      *echo.Echo
	Log       *zap.Logger

	// Background URL ingestion jobs
	jobMu sync.Mutex
	jobs  map[string]*backgroundJob
}

type backgroundJob struct {
	ID        string             `json:"id"`
	Status    string             `json:"status"` // running, completed, failed
	URL       string             `json:"url"`
	StartedAt time.Time          `json:"started_at"`
	EndedAt   time.Time          `json:"ended_at,omitempty"`
	Result    any                `json:"result,omitempty"`
	Error     string             `json:"error,omitempty"`
	Cancel    context.CancelFunc `json:"-"`
}

const (
	maxUploadBytes = 25 << 20
	jobRetention   = time.Hour
)

// strictPolicy strips all markup from free-text inputs.
var strictPolicy = bluemonday.StrictPolicy()

func NewServer(deps Deps) *Server {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				log.Warn("request", append(fields, zap.Error(v.Error))...)
				return nil
			}
			log.Info("request", fields...)
			return nil
		},
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("30M"))

	// CORS: allow frontend origins from env or default to localhost
	allowedOrigins := []string{"http://localhost:4200"}
	allowedOrigins = append(allowedOrigins, splitCSV(os.Getenv("CORS_ORIGINS"))...)
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: allowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	s := &Server{
		Store:     deps.Store,
		Auth:      deps.Auth,
		Ingester:  deps.Ingester,
		Extractor: deps.Extractor,
		Engine:    deps.Engine,
		Advisor:   deps.Advisor,
		Echo:      e,
		Log:       log,
		jobs:      map[string]*backgroundJob{},
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	s.Echo.GET("/health", s.handleHealth)
	api := s.Echo.Group("/api/v1")

	// Public
	api.GET("/tenders", s.handleListTenders)
	api.GET("/tenders/:id", s.handleGetTender)
	api.GET("/stats", s.handleGetStats)
	api.GET("/aggregations", s.handleGetAggregations)
	api.POST("/extract", s.handleExtract)
	api.POST("/certificates/parse", s.handleParseCertificate)
	api.POST("/score", s.handleScore)
	api.POST("/rank", s.handleRank)
	api.POST("/advice", s.handleAdvice)

	// Auth Routes
	api.POST("/auth/signup", s.handleSignup)
	api.POST("/auth/login", s.handleLogin)

	// Operator routes
	op := api.Group("")
	op.Use(auth.Middleware)
	op.POST("/ingest", s.handleIngestUpload)
	op.POST("/ingest/url", s.handleIngestURL)
	op.GET("/jobs/:id", s.handleJobStatus)
	op.GET("/runs", s.handleListRuns)
	op.PATCH("/tenders/:id", s.handlePatchTender)
	op.GET("/tenders/:id/matches", s.handleTenderMatches)
	op.GET("/tenders/:id/score/:contractor_id", s.handleTenderScore)
	op.GET("/tenders/:id/advice/:contractor_id", s.handleTenderAdvice)
	op.GET("/contractors", s.handleListContractors)
	op.POST("/contractors", s.handleCreateContractor)
	op.GET("/contractors/:id", s.handleGetContractor)
	op.PUT("/contractors/:id", s.handleUpdateContractor)
	op.DELETE("/contractors/:id", s.handleDeleteContractor)

	// Watchlist
	saved := op.Group("/saved")
	saved.POST("/:id", s.handleSaveTender)
	saved.DELETE("/:id", s.handleUnsaveTender)
	saved.GET("", s.handleGetSavedTenders)
}

func (s *Server) Start(port string) error {
	return s.Echo.Start(":" + port)
}

// Shutdown stops the HTTP server and cancels running ingestion jobs.
func (s *Server) Shutdown(ctx context.Context) error {
	s.jobMu.Lock()
	for _, job := range s.jobs {
		if job.Status == "running" && job.Cancel != nil {
			job.Cancel()
		}
	}
	s.jobMu.Unlock()
	return s.Echo.Shutdown(ctx)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

// fail maps domain errors to HTTP responses.
func (s *Server) fail(c echo.Context, err error) error {
	var verr *matching.ValidationError
	switch {
	case errors.As(err, &verr):
		return c.JSON(http.StatusUnprocessableEntity, map[string]string{
			"error":  verr.Err.Error(),
			"field":  verr.Field,
			"reason": verr.Reason,
		})
	case errors.Is(err, db.ErrNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Not found"})
	case errors.Is(err, db.ErrConflict), errors.Is(err, auth.ErrUserExists):
		return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, auth.ErrInvalidInput):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, auth.ErrInvalidCreds):
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid credentials"})
	case errors.Is(err, ingest.ErrBlockedURL):
		return c.JSON(http.StatusForbidden, map[string]string{"error": "Internal network access forbidden"})
	case errors.Is(err, ingest.ErrUnsupportedDocument), errors.Is(err, extract.ErrNoText):
		return c.JSON(http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
	}
	s.Log.Error("request failed", zap.String("path", c.Path()), zap.Error(err))
	return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal Server Error"})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, map[string]string{"error": msg})
}

func parseID(c echo.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	return id, err == nil
}

// splitCSV splits a comma-separated query parameter into trimmed non-empty strings.
func splitCSV(s string) []string {
	var result []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			result = append(result, part)
		}
	}
	return result
}

// cleanText strips markup from free text supplied by API callers.
func cleanText(s string) string {
	return strings.TrimSpace(html.UnescapeString(strictPolicy.Sanitize(s)))
}

func cleanPtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := cleanText(*p)
	if v == "" {
		return nil
	}
	return &v
}

func cleanList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = cleanText(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func queryInt(c echo.Context, name string, def, lo, hi int) int {
	v, err := strconv.Atoi(c.QueryParam(name))
	if err != nil || v < lo || v > hi {
		return def
	}
	return v
}
