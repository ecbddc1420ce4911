package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	portssvc "github.com/SscSPs/expense_tracker/internal/core/ports/services"
	"github.com/SscSPs/expense_tracker/internal/dto"
	"github.com/SscSPs/expense_tracker/internal/middleware"
	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
)

type adminHandler struct {
	rateSyncService portssvc.RateSyncSvc
}

func registerAdminRoutes(rg *gin.RouterGroup, rateSyncService portssvc.RateSyncSvc) {
	h := &adminHandler{rateSyncService: rateSyncService}

	admin := rg.Group("/admin")
	admin.POST("/exchange-rates/sync", h.syncExchangeRates)
}

// syncExchangeRates godoc
// @Summary Refresh cached rates from the provider
// @Description Fetches live rates for the date (today when omitted) and upserts them
// @Tags admin
// @Accept  json
// @Produce  json
// @Param   request body dto.SyncRequest false "Optional date"
// @Success 200 {object} dto.SyncResponse
// @Failure 502 {object} dto.SyncResponse "Provider returned no rates"
// @Security BearerAuth
// @Router /admin/exchange-rates/sync [post]
func (h *adminHandler) syncExchangeRates(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())

	var req dto.SyncRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}
	date, err := dateOrToday(req.Date)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if userID, ok := middleware.GetUserIDFromContext(c); ok {
		logger = logger.With(slog.String("requested_by", userID))
	}
	logger.Info("Manual exchange rate sync requested", slog.String("date", req.Date))

	result, err := h.rateSyncService.Sync(c.Request.Context(), lo.ToPtr(date))
	if err != nil {
		respondError(c, logger, err, "Failed to sync exchange rates")
		return
	}

	status := http.StatusOK
	if !result.Success {
		status = http.StatusBadGateway
	}
	c.JSON(status, dto.ToSyncResponse(result))
}
