package speech

import (
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"debate-backend/internal/shared/server/respond"
	"debate-backend/internal/shared/telemetry"
)

// Handler wires HTTP handlers to the speech service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches speech routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/tts", h.synthesize)
}

type synthesizeRequest struct {
	Text string `json:"text"`
	Role string `json:"role"`
}

func (h *Handler) synthesize(c *gin.Context) {
	var req synthesizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "text is required", nil)
		return
	}

	audio, err := h.Svc.SynthesizeForRole(c.Request.Context(), req.Text, req.Role)
	if err != nil {
		telemetry.Error("tts.failed", map[string]any{
			"role":  req.Role,
			"error": err.Error(),
		})
		respond.Error(c, http.StatusInternalServerError, "tts_failed", "speech synthesis failed", err.Error())
		return
	}

	respond.JSON(c, http.StatusOK, gin.H{
		"audio": base64.StdEncoding.EncodeToString(audio),
	})
}
