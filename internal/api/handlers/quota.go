package handlers

import (
	"net/http"

	"github.com/pratik-mahalle/muscleai/internal/api/dto"
	"github.com/pratik-mahalle/muscleai/internal/pkg/logger"
	"github.com/pratik-mahalle/muscleai/internal/pkg/utils"
)

// QuotaHandler reports usage for display
type QuotaHandler struct {
	quota  QuotaReader
	logger *logger.Logger
}

// NewQuotaHandler creates a new QuotaHandler
func NewQuotaHandler(quota QuotaReader, log *logger.Logger) *QuotaHandler {
	return &QuotaHandler{
		quota:  quota,
		logger: log,
	}
}

// Get returns the caller's quota without consuming any
// @Summary Get quota
// @Description Current period usage. Reading the quota never consumes it.
// @Tags Quota
// @Produce json
// @Success 200 {object} dto.QuotaDTO "Quota"
// @Failure 401 {object} utils.ErrorResponse "Unauthorized"
// @Failure 403 {object} dto.AnalysisErrorResponse "No active subscription"
// @Failure 503 {object} dto.AnalysisErrorResponse "Quota service unavailable"
// @Security BearerAuth
// @Router /quota [get]
func (h *QuotaHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	status, err := h.quota.PeekQuota(r.Context(), userID)
	if err != nil {
		writeClientError(w, err, h.logger, "Failed to read quota")
		return
	}

	utils.WriteJSON(w, http.StatusOK, dto.QuotaFromStatus(status))
}
