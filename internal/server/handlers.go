package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"marketwire/internal/batch"
	"marketwire/internal/classify"
	"marketwire/internal/core"
	"marketwire/internal/fetch"
	"marketwire/internal/store"
)

// timestampLayouts are the accepted request timestamp formats.
var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
}

// urlArticleRequest is the body of a single URL submission.
type urlArticleRequest struct {
	Source    string `json:"source"`
	Timestamp string `json:"timestamp"`
}

func parseTimestamp(value string) (time.Time, error) {
	if value == "" {
		return time.Now().UTC(), nil
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", value)
}

// handleHealth handles the /health endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleProcessURL handles POST /url-article. It runs the full pipeline
// synchronously and stores the resulting article.
func (s *Server) handleProcessURL(w http.ResponseWriter, r *http.Request) {
	var req urlArticleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Source == "" {
		s.respondError(w, http.StatusBadRequest, "source is required")
		return
	}
	ts, err := parseTimestamp(req.Timestamp)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	article, err := s.processor.Process(r.Context(), req.Source, ts)
	if err != nil {
		s.respondPipelineError(w, err)
		return
	}

	if s.store != nil {
		if err := s.store.Insert(article); err != nil {
			var dup *store.DuplicateError
			if errors.As(err, &dup) {
				s.respondJSON(w, http.StatusBadRequest, map[string]any{
					"status":       "restricted",
					"id_duplicate": dup.ExistingID,
				})
				return
			}
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	s.respondJSON(w, http.StatusOK, article)
}

func (s *Server) respondPipelineError(w http.ResponseWriter, err error) {
	var acq *fetch.AcquisitionError
	if errors.As(err, &acq) {
		s.respondJSON(w, http.StatusUnprocessableEntity, map[string]string{
			"error":  acq.Error(),
			"reason": string(acq.Reason),
		})
		return
	}
	var cls *classify.ClassificationError
	if errors.As(err, &cls) {
		s.respondError(w, http.StatusBadGateway, cls.Error())
		return
	}
	s.respondError(w, http.StatusInternalServerError, err.Error())
}

// handleSubmitBatch handles POST /url-articles/batch. The batch is accepted
// immediately; results are collected through the status endpoint.
func (s *Server) handleSubmitBatch(w http.ResponseWriter, r *http.Request) {
	var reqs []urlArticleRequest
	if err := json.NewDecoder(r.Body).Decode(&reqs); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid JSON body, expected an array of articles")
		return
	}

	items := make([]core.BatchItem, 0, len(reqs))
	for i, req := range reqs {
		ts, err := parseTimestamp(req.Timestamp)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, fmt.Sprintf("item %d: %v", i, err))
			return
		}
		items = append(items, core.BatchItem{Source: req.Source, Timestamp: ts})
	}

	taskID, err := s.batches.Submit(items)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.respondJSON(w, http.StatusAccepted, map[string]any{
		"task_id": taskID,
		"status":  core.TaskPending,
	})
}

// handleBatchStatus handles GET /url-articles/batch/{taskID}
func (s *Server) handleBatchStatus(w http.ResponseWriter, r *http.Request) {
	task, err := s.batches.Status(chi.URLParam(r, "taskID"))
	if err != nil {
		if errors.Is(err, batch.ErrTaskNotFound) {
			s.respondError(w, http.StatusNotFound, "task not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, task)
}

// handleCancelBatch handles DELETE /url-articles/batch/{taskID}
func (s *Server) handleCancelBatch(w http.ResponseWriter, r *http.Request) {
	if err := s.batches.Cancel(chi.URLParam(r, "taskID")); err != nil {
		if errors.Is(err, batch.ErrTaskNotFound) {
			s.respondError(w, http.StatusNotFound, "task not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "canceling"})
}

// handlePerformance handles GET /performance?operation=
func (s *Server) handlePerformance(w http.ResponseWriter, r *http.Request) {
	if op := r.URL.Query().Get("operation"); op != "" {
		s.respondJSON(w, http.StatusOK, s.metrics.ReportFor(op))
		return
	}
	s.respondJSON(w, http.StatusOK, s.metrics.ReportAll())
}

// handlePerformanceReset handles POST /performance/reset?operation=
func (s *Server) handlePerformanceReset(w http.ResponseWriter, r *http.Request) {
	if op := r.URL.Query().Get("operation"); op != "" {
		s.metrics.Reset(op)
	} else {
		s.metrics.ResetAll()
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// articlePayload carries article fields for the CRUD endpoints. Sub-sectors
// are accepted under both historical field spellings.
type articlePayload struct {
	ID            int64           `json:"id"`
	Title         string          `json:"title"`
	Body          string          `json:"body"`
	Source        string          `json:"source"`
	Timestamp     string          `json:"timestamp"`
	Sector        string          `json:"sector"`
	SubSectors    []string        `json:"sub_sector"`
	SubSectorsAlt []string        `json:"subsector"`
	Tags          []string        `json:"tags"`
	Tickers       []string        `json:"tickers"`
	Dimensions    map[string]*int `json:"dimension"`
	Score         *int            `json:"score"`
}

func (p *articlePayload) subSectors() []string {
	if len(p.SubSectors) > 0 {
		return p.SubSectors
	}
	return p.SubSectorsAlt
}

// errInvalidArticle marks payload validation failures on the CRUD endpoints.
var errInvalidArticle = errors.New("invalid article")

// insertFromPayload validates an article payload and stores it.
func (s *Server) insertFromPayload(p articlePayload) (*core.Article, error) {
	if p.Source == "" {
		return nil, fmt.Errorf("%w: source is required", errInvalidArticle)
	}
	ts, err := parseTimestamp(p.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidArticle, err)
	}

	article := &core.Article{
		Title:      p.Title,
		Body:       p.Body,
		Source:     p.Source,
		Timestamp:  ts,
		Sector:     p.Sector,
		SubSectors: p.subSectors(),
		Tags:       p.Tags,
		Tickers:    p.Tickers,
		Dimensions: p.Dimensions,
	}
	if p.Score != nil {
		article.Score = *p.Score
	}

	if err := s.store.Insert(article); err != nil {
		return nil, err
	}
	return article, nil
}

// handleCreateArticle handles POST /articles: direct insertion of an
// already-classified article, bypassing the pipeline.
func (s *Server) handleCreateArticle(w http.ResponseWriter, r *http.Request) {
	var p articlePayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	article, err := s.insertFromPayload(p)
	if err != nil {
		var dup *store.DuplicateError
		switch {
		case errors.As(err, &dup):
			s.respondJSON(w, http.StatusBadRequest, map[string]any{
				"status":       "restricted",
				"id_duplicate": dup.ExistingID,
			})
		case errors.Is(err, errInvalidArticle):
			s.respondError(w, http.StatusBadRequest, err.Error())
		default:
			s.respondError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	s.respondJSON(w, http.StatusCreated, article)
}

// handleCreateArticles handles POST /articles/list: bulk insertion with one
// result entry per submitted article. A duplicate or invalid item does not
// fail the rest of the batch.
func (s *Server) handleCreateArticles(w http.ResponseWriter, r *http.Request) {
	var payloads []articlePayload
	if err := json.NewDecoder(r.Body).Decode(&payloads); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid JSON body, expected an array of articles")
		return
	}

	results := make([]any, 0, len(payloads))
	for _, p := range payloads {
		article, err := s.insertFromPayload(p)
		if err != nil {
			var dup *store.DuplicateError
			if errors.As(err, &dup) {
				results = append(results, map[string]any{
					"status":       "restricted",
					"id_duplicate": dup.ExistingID,
				})
			} else {
				results = append(results, map[string]any{
					"status": "error",
					"error":  err.Error(),
				})
			}
			continue
		}
		results = append(results, article)
	}
	s.respondJSON(w, http.StatusOK, results)
}

// handleListArticles handles GET /articles?id=&sub_sector=
func (s *Server) handleListArticles(w http.ResponseWriter, r *http.Request) {
	var filter store.ListFilter

	if raw := r.URL.Query().Get("id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid id")
			return
		}
		filter.ID = id
	}
	filter.SubSector = r.URL.Query().Get("sub_sector")
	if filter.SubSector == "" {
		filter.SubSector = r.URL.Query().Get("subsector")
	}

	articles, err := s.store.List(filter)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if articles == nil {
		articles = []core.Article{}
	}
	s.respondJSON(w, http.StatusOK, articles)
}

// handleUpdateArticle handles PATCH /articles: partial update by ID.
func (s *Server) handleUpdateArticle(w http.ResponseWriter, r *http.Request) {
	var p articlePayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if p.ID == 0 {
		s.respondError(w, http.StatusBadRequest, "id is required")
		return
	}

	article, err := s.store.Get(p.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "article not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if p.Title != "" {
		article.Title = p.Title
	}
	if p.Body != "" {
		article.Body = p.Body
	}
	if p.Source != "" {
		article.Source = p.Source
	}
	if p.Timestamp != "" {
		ts, err := parseTimestamp(p.Timestamp)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		article.Timestamp = ts
	}
	if p.Sector != "" {
		article.Sector = p.Sector
	}
	if ss := p.subSectors(); len(ss) > 0 {
		article.SubSectors = ss
	}
	if len(p.Tags) > 0 {
		article.Tags = p.Tags
	}
	if len(p.Tickers) > 0 {
		article.Tickers = p.Tickers
	}
	if len(p.Dimensions) > 0 {
		article.Dimensions = p.Dimensions
	}
	if p.Score != nil {
		article.Score = *p.Score
	}

	if err := s.store.Update(article); err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, article)
}

// handleDeleteArticles handles DELETE /articles with {"id_list": [...]}.
func (s *Server) handleDeleteArticles(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDList []int64 `json:"id_list"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.IDList) == 0 {
		s.respondError(w, http.StatusBadRequest, "id_list is required")
		return
	}

	n, err := s.store.Delete(req.IDList...)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"status": "ok", "deleted": n})
}

// handleListLogs handles GET /logs?limit=
func (s *Server) handleListLogs(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	logs, err := s.store.ListLogs(limit)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if logs == nil {
		logs = []store.RequestLog{}
	}
	s.respondJSON(w, http.StatusOK, logs)
}

// respondJSON writes a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error("Failed to encode JSON response", "error", err)
	}
}

// respondError writes a JSON error response
func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
