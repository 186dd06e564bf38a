// Package httpapi exposes the distiller over HTTP. POST /process_text
// runs the full pipeline over a text payload and returns the structured
// result; /summarize, /healthz, and /stats round it out for callers
// that poll the service.
//
// The HTTP layer is the only place in the repository that logs; library
// packages return errors and stay quiet.
package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/hurttlocker/distill/internal/cache"
	"github.com/hurttlocker/distill/internal/distill"
	"github.com/hurttlocker/distill/internal/store"
)

// Handler carries the pipeline plus optional service dependencies. Store
// and Cache may be nil; endpoints that need them report their absence
// instead of failing at startup.
type Handler struct {
	distiller *distill.Distiller
	store     store.Store
	cache     *cache.Cache
	maxTokens int
	log       *logrus.Logger
}

// Config assembles a Handler.
type Config struct {
	Distiller *distill.Distiller
	Store     store.Store // optional
	Cache     *cache.Cache
	MaxTokens int // default summary budget; distill.DefaultMaxTokens when zero
	Logger    *logrus.Logger
}

// NewHandler builds the handler, filling in a default distiller and
// logger when the config leaves them nil.
func NewHandler(cfg Config) *Handler {
	if cfg.Distiller == nil {
		cfg.Distiller = distill.New()
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = distill.DefaultMaxTokens
	}
	return &Handler{
		distiller: cfg.Distiller,
		store:     cfg.Store,
		cache:     cfg.Cache,
		maxTokens: cfg.MaxTokens,
		log:       cfg.Logger,
	}
}

// Routes returns the configured gin engine.
func (h *Handler) Routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.POST("/process_text", h.processText)
	r.POST("/summarize", h.summarize)
	r.GET("/healthz", h.healthz)
	r.GET("/stats", h.stats)

	return r
}

// Serve blocks, running the API on addr until the listener fails.
func (h *Handler) Serve(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	h.log.WithField("addr", addr).Info("distill http agent listening")
	return srv.ListenAndServe()
}

// processRequest is the intake payload shape. Timestamp is accepted
// for provenance but the response carries the processing time.
type processRequest struct {
	Text      string `json:"text"`
	Source    string `json:"source"`
	Timestamp string `json:"timestamp"`
}

func (h *Handler) processText(c *gin.Context) {
	var req processRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON payload: " + err.Error()})
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "text cannot be empty"})
		return
	}

	res := h.distiller.Distill(req.Text)

	h.log.WithFields(logrus.Fields{
		"source":        req.Source,
		"entities":      res.TotalEntities,
		"relationships": res.TotalRelationships,
	}).Info("processed text")

	c.JSON(http.StatusOK, res)
}

type summarizeRequest struct {
	Text      string `json:"text"`
	MaxTokens int    `json:"max_tokens"`
}

func (h *Handler) summarize(c *gin.Context) {
	var req summarizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON payload: " + err.Error()})
		return
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = h.maxTokens
	}

	summary, err := h.distiller.Summarize(req.Text, maxTokens)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"summary": summary,
		"tokens":  len(strings.Fields(summary)),
	})
}

func (h *Handler) healthz(c *gin.Context) {
	ctx := c.Request.Context()

	body := gin.H{"status": "ok"}

	switch {
	case h.store == nil:
		body["store"] = "unconfigured"
	default:
		if _, err := h.store.Stats(ctx); err != nil {
			body["store"] = "error: " + err.Error()
			body["status"] = "degraded"
		} else {
			body["store"] = "ok"
		}
	}

	switch {
	case h.cache == nil:
		body["cache"] = "unconfigured"
	default:
		if err := h.cache.Ping(ctx); err != nil {
			body["cache"] = "error: " + err.Error()
			body["status"] = "degraded"
		} else {
			body["cache"] = "ok"
		}
	}

	c.JSON(http.StatusOK, body)
}

func (h *Handler) stats(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no store configured"})
		return
	}

	stats, err := h.store.Stats(c.Request.Context())
	if err != nil {
		h.log.WithError(err).Error("reading store stats")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"documents":     stats.DocumentCount,
		"entities":      stats.EntityCount,
		"triples":       stats.TripleCount,
		"db_size_bytes": stats.DBSizeBytes,
	})
}
