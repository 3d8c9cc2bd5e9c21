// Package httpapi exposes the pipeline's operator-facing REST endpoints
// over gin (spec.md §6), wiring the Merger, Reverser, Impact Analyzer
// and Pipeline into plain JSON handlers.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Rede-Latitude-Tech/remove-duplicidade-localizacao/internal/domain"
	"github.com/Rede-Latitude-Tech/remove-duplicidade-localizacao/internal/impact"
	"github.com/Rede-Latitude-Tech/remove-duplicidade-localizacao/internal/merge"
	"github.com/Rede-Latitude-Tech/remove-duplicidade-localizacao/internal/pipeline"
	"github.com/Rede-Latitude-Tech/remove-duplicidade-localizacao/internal/revert"
	"github.com/Rede-Latitude-Tech/remove-duplicidade-localizacao/internal/storage"
)

// Server holds every dependency the HTTP handlers need.
type Server struct {
	store    storage.Store
	pipeline *pipeline.Pipeline
	merger   *merge.Merger
	reverser *revert.Reverser
	impact   *impact.Analyzer
	log      *zap.Logger
}

// New builds a Server.
func New(store storage.Store, p *pipeline.Pipeline, m *merge.Merger, r *revert.Reverser, an *impact.Analyzer, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{store: store, pipeline: p, merger: m, reverser: r, impact: an, log: log}
}

// Router builds the gin engine with every route mounted.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", s.health)

	grupos := r.Group("/grupos")
	grupos.GET("", s.listGroups)
	grupos.GET("/auto-aprovaveis", s.listAutoApprovable)
	grupos.GET("/:id", s.getGroup)
	grupos.GET("/:id/impacto", s.getImpact)
	grupos.PUT("/:id/unificar", s.unifyGroup)
	grupos.PUT("/:id/reverter", s.revertGroup)
	grupos.PUT("/:id/descartar", s.discardGroup)

	scan := r.Group("/scan")
	scan.POST("", s.runScan)
	scan.GET("/historico", s.scanHistory)

	return r
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) listGroups(c *gin.Context) {
	var filter storage.GroupFilter
	if k := c.Query("kind"); k != "" {
		kind := domain.EntityKind(k)
		filter.Kind = &kind
	}
	if st := c.Query("status"); st != "" {
		status := domain.GroupStatus(st)
		filter.Status = &status
	}
	if p := c.Query("parent_id"); p != "" {
		filter.ParentID = &p
	}
	filter.Search = c.Query("busca")
	filter.Page = queryInt(c, "page", 1)
	filter.PageSize = queryInt(c, "page_size", 20)

	groups, total, err := s.store.ListGroups(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"groups": groups, "total": total})
}

func (s *Server) listAutoApprovable(c *gin.Context) {
	threshold := queryFloat(c, "threshold", 0.9)
	pending := domain.StatusPending
	groups, _, err := s.store.ListGroups(c.Request.Context(), storage.GroupFilter{Status: &pending, PageSize: 0})
	if err != nil {
		respondError(c, err)
		return
	}
	var out []*domain.DuplicateGroup
	for _, g := range groups {
		if g.CanonicalName != nil && g.SuggestedCanonical != nil && llmConfidence(g) >= threshold {
			out = append(out, g)
		}
	}
	c.JSON(http.StatusOK, gin.H{"groups": out})
}

// llmConfidence extracts llm_details.confidence, falling back to the
// detector's mean_score for groups that never went through LLM
// validation (spec.md §6 /grupos/auto-aprovaveis).
func llmConfidence(g *domain.DuplicateGroup) float64 {
	if len(g.LLMDetails) == 0 {
		return g.MeanScore
	}
	var details struct {
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal(g.LLMDetails, &details); err != nil {
		return g.MeanScore
	}
	return details.Confidence
}

func (s *Server) getGroup(c *gin.Context) {
	g, err := s.store.GetGroup(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, g)
}

func (s *Server) getImpact(c *gin.Context) {
	g, err := s.store.GetGroup(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	result, err := s.impact.Analyze(c.Request.Context(), g.EntityKind, g.MemberIDs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"impact": result})
}

type unifyRequest struct {
	ChosenCanonicalID string  `json:"chosen_canonical_id" binding:"required"`
	ChosenName        *string `json:"chosen_name"`
	ExecutedBy        *string `json:"executed_by"`
}

func (s *Server) unifyGroup(c *gin.Context) {
	var req unifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	g, err := s.merger.Execute(c.Request.Context(), merge.Request{
		GroupID:           c.Param("id"),
		ChosenCanonicalID: req.ChosenCanonicalID,
		ChosenName:        req.ChosenName,
		ExecutedBy:        req.ExecutedBy,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, g)
}

func (s *Server) revertGroup(c *gin.Context) {
	g, err := s.reverser.Execute(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, g)
}

func (s *Server) discardGroup(c *gin.Context) {
	g, err := s.store.GetGroup(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if !g.Status.CanTransitionTo(domain.StatusDiscarded) {
		c.JSON(http.StatusConflict, gin.H{"error": "group cannot be discarded from its current status"})
		return
	}
	g.Status = domain.StatusDiscarded
	if err := s.store.UpdateGroup(c.Request.Context(), g); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, g)
}

func (s *Server) runScan(c *gin.Context) {
	cfg := pipeline.Config{
		Threshold:     queryFloat(c, "threshold", 0.4),
		Limit:         queryInt(c, "limit", 200),
		EnrichEnabled: c.Query("enrich") != "false",
	}
	summaries, err := s.pipeline.Run(c.Request.Context(), cfg)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"summaries": summaries})
}

func (s *Server) scanHistory(c *gin.Context) {
	limit := queryInt(c, "limit", 20)
	logs, err := s.store.RecentRunLogs(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": logs})
}

func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, storage.ErrPrecondition), errors.Is(err, storage.ErrCanonicalNotMember):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func queryInt(c *gin.Context, key string, def int) int {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func queryFloat(c *gin.Context, key string, def float64) float64 {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return def
	}
	return f
}
