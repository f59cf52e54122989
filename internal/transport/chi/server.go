package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/relevo-cloud/relevo/internal/domain"
	logpkg "github.com/relevo-cloud/relevo/internal/logger"
	healthuc "github.com/relevo-cloud/relevo/internal/usecase/health"
)

// Recommender is the conversational recommendation contract the server needs.
type Recommender interface {
	Recommend(ctx context.Context, query string, topK int, category string) ([]domain.Recommendation, error)
	Respond(ctx context.Context, userMessage string, history []domain.Turn) (string, []domain.Recommendation, error)
	Reindex(ctx context.Context) (int, error)
}

// Catalog is the item management contract the server needs.
type Catalog interface {
	Upsert(ctx context.Context, item *domain.CatalogItem) (bool, error)
	Get(ctx context.Context, id string) (domain.CatalogItem, error)
	List(ctx context.Context, category string) ([]domain.CatalogItem, error)
	Delete(ctx context.Context, id string) error
}

// Server exposes the recommendation core over HTTP.
type Server struct {
	recommender Recommender
	catalog     Catalog
	health      *healthuc.Service
	logger      *zap.Logger
}

// NewServer creates an HTTP API server.
func NewServer(recommender Recommender, catalog Catalog, health *healthuc.Service, logger *zap.Logger) *Server {
	return &Server{
		recommender: recommender,
		catalog:     catalog,
		health:      health,
		logger:      logger,
	}
}

// Routes mounts all endpoints on the given router.
func (s *Server) Routes(r chi.Router) {
	r.Get("/health", s.Health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/recommend", s.PostRecommend)
		r.Post("/chat", s.PostChat)

		r.Route("/catalog", func(r chi.Router) {
			r.Post("/items", s.PostItem)
			r.Get("/items", s.ListItems)
			r.Get("/items/{id}", s.GetItem)
			r.Delete("/items/{id}", s.DeleteItem)
			r.Post("/reindex", s.PostReindex)
		})
	})
}

// --- Wire DTOs ---

type recommendRequest struct {
	Query    string `json:"query"`
	TopK     int    `json:"top_k,omitempty"`
	Category string `json:"category,omitempty"`
}

type recommendationDTO struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Category    string  `json:"category,omitempty"`
	Score       float64 `json:"score"`
}

type recommendResponse struct {
	Results []recommendationDTO `json:"results"`
}

type chatTurnDTO struct {
	IsBot bool   `json:"is_bot"`
	Text  string `json:"text"`
}

type chatRequest struct {
	Message string        `json:"message"`
	History []chatTurnDTO `json:"history,omitempty"`
}

type chatResponse struct {
	Reply           string              `json:"reply"`
	Recommendations []recommendationDTO `json:"recommendations"`
}

type itemRequest struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Category    string   `json:"category,omitempty"`
}

type itemResponse struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Category    string   `json:"category,omitempty"`
	HasVector   bool     `json:"has_vector"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// --- Handlers ---

// PostRecommend handles POST /v1/recommend.
func (s *Server) PostRecommend(w http.ResponseWriter, r *http.Request) {
	var req recommendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
		return
	}

	recs, err := s.recommender.Recommend(r.Context(), req.Query, req.TopK, req.Category)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, recommendResponse{Results: toRecommendationDTOs(recs)})
}

// PostChat handles POST /v1/chat.
func (s *Server) PostChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
		return
	}

	history := make([]domain.Turn, len(req.History))
	for i, t := range req.History {
		history[i] = domain.Turn{IsBot: t.IsBot, Text: t.Text}
	}

	reply, recs, err := s.recommender.Respond(r.Context(), req.Message, history)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{
		Reply:           reply,
		Recommendations: toRecommendationDTOs(recs),
	})
}

// PostItem handles POST /v1/catalog/items (create or update).
func (s *Server) PostItem(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
		return
	}

	item := domain.CatalogItem{
		ID:          req.ID,
		Name:        req.Name,
		Description: req.Description,
		Tags:        req.Tags,
		Category:    req.Category,
	}

	created, err := s.catalog.Upsert(r.Context(), &item)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, toItemDTO(item))
}

// ListItems handles GET /v1/catalog/items.
func (s *Server) ListItems(w http.ResponseWriter, r *http.Request) {
	items, err := s.catalog.List(r.Context(), r.URL.Query().Get("category"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	out := make([]itemResponse, len(items))
	for i, item := range items {
		out[i] = toItemDTO(item)
	}
	writeJSON(w, http.StatusOK, map[string][]itemResponse{"items": out})
}

// GetItem handles GET /v1/catalog/items/{id}.
func (s *Server) GetItem(w http.ResponseWriter, r *http.Request) {
	item, err := s.catalog.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toItemDTO(item))
}

// DeleteItem handles DELETE /v1/catalog/items/{id}.
func (s *Server) DeleteItem(w http.ResponseWriter, r *http.Request) {
	if err := s.catalog.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PostReindex handles POST /v1/catalog/reindex.
func (s *Server) PostReindex(w http.ResponseWriter, r *http.Request) {
	updated, err := s.recommender.Reindex(r.Context())
	if err != nil {
		s.logger.Error("Reindex failed", zap.Int("updated", updated), zap.Error(err))
		writeError(w, http.StatusBadGateway, "reindex_failed", "Reindex did not complete")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"updated": updated})
}

// Health handles GET /health.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	status := http.StatusOK
	if report.Status != healthuc.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{
		"status": report.Status,
		"checks": report.Checks,
	})
}

// --- Helpers ---

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrProviderRejected):
		writeError(w, http.StatusBadRequest, "provider_rejected", err.Error())
	case errors.Is(err, domain.ErrProviderUnavailable), errors.Is(err, domain.ErrCompletionFailed):
		writeError(w, http.StatusBadGateway, "provider_unavailable", "Upstream provider failed")
	default:
		logpkg.FromContext(r.Context()).Error("Unhandled error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "Internal error")
	}
}

func toRecommendationDTOs(recs []domain.Recommendation) []recommendationDTO {
	out := make([]recommendationDTO, len(recs))
	for i, rec := range recs {
		out[i] = recommendationDTO{
			ID:          rec.Item.ID,
			Name:        rec.Item.Name,
			Description: rec.Item.Description,
			Category:    rec.Item.Category,
			Score:       rec.Score,
		}
	}
	return out
}

func toItemDTO(item domain.CatalogItem) itemResponse {
	return itemResponse{
		ID:          item.ID,
		Name:        item.Name,
		Description: item.Description,
		Tags:        item.Tags,
		Category:    item.Category,
		HasVector:   len(item.Vector) > 0,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}
