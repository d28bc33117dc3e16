package analyses

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"debate-backend/internal/shared/server/middleware"
	"debate-backend/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the analyses service.
type Handler struct {
	Svc     *Service
	limiter *createLimiter
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc, limiter: newCreateLimiter(createLimitWindow, nil)}
}

// RegisterRoutes attaches analysis routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/analysis", h.startAnalysis)
	rg.GET("/analysis/:id", h.getAnalysis)
}

type createRequest struct {
	StockCode       string `json:"stockCode"`
	RiskProfile     string `json:"riskProfile"`
	MarketSentiment string `json:"marketSentiment"`
}

func (h *Handler) startAnalysis(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	if req.StockCode == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "stockCode is required", []map[string]string{
			{"field": "stockCode", "issue": "required"},
		})
		return
	}
	if !h.limiter.Allow(c.ClientIP(), req.StockCode) {
		c.Header("Retry-After", strconv.Itoa(h.limiter.RetryAfterSeconds()))
		respond.Error(c, http.StatusTooManyRequests, "rate_limited", "analysis already starting for this stock, retry shortly", nil)
		return
	}

	ctx := WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))
	record, err := h.Svc.Create(ctx, req.StockCode, req.RiskProfile, req.MarketSentiment)
	if err != nil {
		switch {
		case errors.Is(err, ErrValidation):
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to start analysis", nil)
		}
		return
	}

	respond.JSON(c, http.StatusAccepted, gin.H{
		"analysisId": record.ID,
		"status":     record.Status,
	})
}

func (h *Handler) getAnalysis(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "analysis id is required", nil)
		return
	}

	record, err := h.Svc.Get(c.Request.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "analysis not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch analysis", nil)
		}
		return
	}

	respond.JSON(c, http.StatusOK, record)
}
