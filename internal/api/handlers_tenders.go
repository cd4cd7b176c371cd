package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/david/tender-matcher/internal/db"
	"github.com/david/tender-matcher/internal/ingest"
	"github.com/david/tender-matcher/internal/models"
)

var (
	errMissingDocument = errors.New("a file or a text field is required")
	errTooLarge        = errors.New("document too large")
)

func (s *Server) handleListTenders(c echo.Context) error {
	params := db.TenderListParams{
		Query:        c.QueryParam("q"),
		Region:       splitCSV(c.QueryParam("region")),
		Categories:   splitCSV(c.QueryParam("category")),
		DeadlineDays: queryInt(c, "deadline_days", 0, 1, 3650),
		SortBy:       c.QueryParam("sort"),
		Limit:        queryInt(c, "limit", 20, 1, 100),
		Offset:       queryInt(c, "offset", 0, 0, 1<<30),
	}
	if v, err := strconv.ParseFloat(c.QueryParam("min_amount"), 64); err == nil && v > 0 {
		params.MinAmount = v
	}
	if v, err := strconv.ParseFloat(c.QueryParam("max_amount"), 64); err == nil && v > 0 {
		params.MaxAmount = v
	}
	if v := c.QueryParam("eu_funded"); v != "" {
		b := v == "true"
		params.EUFunded = &b
	}

	result, err := s.Store.ListTenders(c.Request().Context(), params)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

func (s *Server) handleGetTender(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid tender id")
	}
	t, err := s.Store.GetTender(c.Request().Context(), id)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, t)
}

func (s *Server) handleGetStats(c echo.Context) error {
	stats, err := s.Store.GetStats(c.Request().Context())
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, stats)
}

func (s *Server) handleGetAggregations(c echo.Context) error {
	aggs, err := s.Store.GetAggregations(c.Request().Context())
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, aggs)
}

type enrichmentInput struct {
	Region   *string `json:"region" form:"region"`
	Province *string `json:"province" form:"province"`
	Deadline *string `json:"deadline" form:"deadline"`
}

// enrichment validates caller enrichment. Deadlines are RFC 3339
// timestamps or any date the deadline parser understands.
func (in enrichmentInput) enrichment() (models.TenderEnrichment, error) {
	e := models.TenderEnrichment{Region: cleanPtr(in.Region), Province: cleanPtr(in.Province)}
	if in.Deadline == nil || strings.TrimSpace(*in.Deadline) == "" {
		return e, nil
	}
	raw := strings.TrimSpace(*in.Deadline)
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		t = t.UTC()
		e.Deadline = &t
		return e, nil
	}
	if t, ok := ingest.ParseDate(raw); ok {
		e.Deadline = &t
		return e, nil
	}
	return e, fmt.Errorf("invalid deadline %q", raw)
}

type textInput struct {
	Text string `json:"text"`
	enrichmentInput
}

// readUpload reads either a multipart "file" field or a JSON body with a
// "text" field, plus optional enrichment fields.
func readUpload(c echo.Context) (ingest.Upload, enrichmentInput, error) {
	ctype := c.Request().Header.Get(echo.HeaderContentType)
	if strings.HasPrefix(ctype, echo.MIMEMultipartForm) {
		fh, err := c.FormFile("file")
		if err != nil {
			return ingest.Upload{}, enrichmentInput{}, errMissingDocument
		}
		f, err := fh.Open()
		if err != nil {
			return ingest.Upload{}, enrichmentInput{}, err
		}
		defer f.Close()

		data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes+1))
		if err != nil {
			return ingest.Upload{}, enrichmentInput{}, err
		}
		if len(data) > maxUploadBytes {
			return ingest.Upload{}, enrichmentInput{}, errTooLarge
		}

		var in enrichmentInput
		if v := c.FormValue("region"); v != "" {
			in.Region = &v
		}
		if v := c.FormValue("province"); v != "" {
			in.Province = &v
		}
		if v := c.FormValue("deadline"); v != "" {
			in.Deadline = &v
		}
		return ingest.Upload{Name: fh.Filename, ContentType: fh.Header.Get(echo.HeaderContentType), Data: data}, in, nil
	}

	var body textInput
	if err := c.Bind(&body); err != nil {
		return ingest.Upload{}, enrichmentInput{}, errMissingDocument
	}
	if strings.TrimSpace(body.Text) == "" {
		return ingest.Upload{}, enrichmentInput{}, errMissingDocument
	}
	return ingest.Upload{
		Name:        "document.txt",
		ContentType: "text/plain; charset=utf-8",
		Data:        []byte(body.Text),
	}, body.enrichmentInput, nil
}

func (s *Server) readDocument(c echo.Context) (ingest.Upload, models.TenderEnrichment, error) {
	u, in, err := readUpload(c)
	if err != nil {
		return u, models.TenderEnrichment{}, err
	}
	enrich, err := in.enrichment()
	return u, enrich, err
}

func (s *Server) handleExtract(c echo.Context) error {
	u, enrich, err := s.readDocument(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	rec, err := s.Ingester.Extract(c.Request().Context(), u, enrich)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, rec)
}

func (s *Server) handleIngestUpload(c echo.Context) error {
	u, enrich, err := s.readDocument(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	t, err := s.Ingester.IngestDocument(c.Request().Context(), u, enrich)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusCreated, t)
}

type ingestURLRequest struct {
	URL string `json:"url"`
	enrichmentInput
}

// handleIngestURL downloads and ingests a document in the background and
// returns a job to poll.
func (s *Server) handleIngestURL(c echo.Context) error {
	var req ingestURLRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request")
	}
	u, err := url.Parse(strings.TrimSpace(req.URL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Hostname() == "" {
		return badRequest(c, "url must be an absolute http(s) URL")
	}
	enrich, err := req.enrichment()
	if err != nil {
		return badRequest(c, err.Error())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	job := &backgroundJob{
		ID:        uuid.NewString(),
		Status:    "running",
		URL:       u.String(),
		StartedAt: time.Now(),
		Cancel:    cancel,
	}

	s.jobMu.Lock()
	s.pruneJobsLocked(time.Now())
	s.jobs[job.ID] = job
	s.jobMu.Unlock()

	go func() {
		defer cancel()
		t, err := s.Ingester.IngestURL(ctx, job.URL, enrich)

		s.jobMu.Lock()
		defer s.jobMu.Unlock()
		job.EndedAt = time.Now()
		if err != nil {
			job.Status = "failed"
			job.Error = err.Error()
			s.Log.Warn("url ingestion failed", zap.String("job", job.ID), zap.Error(err))
			return
		}
		job.Status = "completed"
		job.Result = t
	}()

	return c.JSON(http.StatusAccepted, map[string]string{
		"job_id":     job.ID,
		"status":     job.Status,
		"status_url": "/api/v1/jobs/" + job.ID,
	})
}

// pruneJobsLocked forgets finished jobs older than jobRetention.
func (s *Server) pruneJobsLocked(now time.Time) {
	for id, job := range s.jobs {
		if job.Status != "running" && now.Sub(job.EndedAt) > jobRetention {
			delete(s.jobs, id)
		}
	}
}

func (s *Server) handleJobStatus(c echo.Context) error {
	s.jobMu.Lock()
	defer s.jobMu.Unlock()

	job, ok := s.jobs[c.Param("id")]
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Job not found"})
	}
	return c.JSON(http.StatusOK, *job)
}

func (s *Server) handleListRuns(c echo.Context) error {
	runs, err := s.Store.ListRuns(c.Request().Context(), queryInt(c, "limit", 20, 1, 200))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, runs)
}

func (s *Server) handlePatchTender(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid tender id")
	}
	var in enrichmentInput
	if err := c.Bind(&in); err != nil {
		return badRequest(c, "Invalid request")
	}
	enrich, err := in.enrichment()
	if err != nil {
		return badRequest(c, err.Error())
	}
	t, err := s.Store.UpdateEnrichment(c.Request().Context(), id, enrich)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, t)
}
