// Package api exposes stored businesses and on-demand verification over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Meltveit/qrydex/infrastructure/logger"
	"github.com/Meltveit/qrydex/internal/domain"
	"github.com/Meltveit/qrydex/internal/orchestrator"
	"github.com/Meltveit/qrydex/internal/store"
)

const defaultAuditLimit = 20

// Reader is the read side of the record store.
type Reader interface {
	Find(ctx context.Context, f store.Filter) ([]*domain.BusinessRecord, error)
	Get(ctx context.Context, key domain.Key) (*domain.BusinessRecord, error)
	AuditLog(ctx context.Context, key domain.Key, limit int) ([]domain.AuditEntry, error)
}

// Verifier runs the verification sequence for one business.
type Verifier interface {
	VerifyAndStore(ctx context.Context, orgNumber, countryCode string, hints *orchestrator.Hints) (*orchestrator.Outcome, error)
}

// VerifyRequest is the POST /api/v1/verify body.
type VerifyRequest struct {
	OrgNumber   string `binding:"required" json:"org_number"`
	CountryCode string `binding:"required" json:"country_code"`
	Name        string `json:"name"`
	Domain      string `json:"domain"`
}

// VerifyResponse reports the verification outcome.
type VerifyResponse struct {
	Verified bool                   `json:"verified"`
	Audit    domain.AuditEntry      `json:"audit"`
	Record   *domain.BusinessRecord `json:"record,omitempty"`
}

// BusinessHandler serves the business endpoints.
type BusinessHandler struct {
	reader   Reader
	verifier Verifier
	logger   logger.Logger
}

// NewBusinessHandler creates a handler. verifier may be nil, which disables
// POST /verify.
func NewBusinessHandler(reader Reader, verifier Verifier, log logger.Logger) *BusinessHandler {
	return &BusinessHandler{reader: reader, verifier: verifier, logger: log}
}

// Get returns one record.
func (h *BusinessHandler) Get(c *gin.Context) {
	key := domain.NewKey(c.Param("org"), c.Param("country"))

	rec, err := h.reader.Get(c.Request.Context(), key)
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Business not found"})
		return
	case err != nil:
		h.logger.Error("Failed to load business", logger.String("key", key.String()), logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load business"})
		return
	}

	c.JSON(http.StatusOK, rec)
}

// Audit returns a record's most recent audit entries.
func (h *BusinessHandler) Audit(c *gin.Context) {
	key := domain.NewKey(c.Param("org"), c.Param("country"))
	limit := queryInt(c, "limit", defaultAuditLimit)

	entries, err := h.reader.AuditLog(c.Request.Context(), key, limit)
	if err != nil {
		h.logger.Error("Failed to load audit log", logger.String("key", key.String()), logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load audit log"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"entries": entries,
		"count":   len(entries),
	})
}

// List returns records filtered by country and website status.
func (h *BusinessHandler) List(c *gin.Context) {
	f := store.Filter{
		CountryCode: domain.NewKey("", c.Query("country")).CountryCode,
		Limit:       queryInt(c, "limit", 0),
		Offset:      queryInt(c, "offset", 0),
	}
	for _, s := range c.QueryArray("status") {
		f.Statuses = append(f.Statuses, domain.WebsiteStatus(s))
	}

	recs, err := h.reader.Find(c.Request.Context(), f)
	if err != nil {
		h.logger.Error("Failed to list businesses", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list businesses"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"businesses": recs,
		"count":      len(recs),
	})
}

// Verify verifies and stores one business on demand.
func (h *BusinessHandler) Verify(c *gin.Context) {
	if h.verifier == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Verification is disabled"})
		return
	}

	var req VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	out, err := h.verifier.VerifyAndStore(c.Request.Context(), req.OrgNumber, req.CountryCode, &orchestrator.Hints{
		Name:   req.Name,
		Domain: req.Domain,
	})
	switch {
	case errors.Is(err, orchestrator.ErrInvalidKey):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case err != nil:
		h.logger.Error("Verification failed",
			logger.String("org_number", req.OrgNumber),
			logger.String("country_code", req.CountryCode),
			logger.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Verification failed"})
		return
	}

	c.JSON(http.StatusOK, VerifyResponse{
		Verified: out.Verified(),
		Audit:    out.Audit,
		Record:   out.Record,
	})
}

func queryInt(c *gin.Context, name string, def int) int {
	raw := c.Query(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}
