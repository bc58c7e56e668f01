package handlers

import (
	"log/slog"
	"net/http"

	portssvc "github.com/SscSPs/pfm_backend/internal/core/ports/services"
	"github.com/SscSPs/pfm_backend/internal/dto"
	"github.com/SscSPs/pfm_backend/internal/middleware"
	"github.com/gin-gonic/gin"
)

type recurringHandler struct {
	transactionService portssvc.TransactionSvcFacade
}

// RegisterRecurringRoutes registers routes for recurring transaction templates.
func RegisterRecurringRoutes(rg *gin.RouterGroup, transactionService portssvc.TransactionSvcFacade) {
	h := &recurringHandler{transactionService: transactionService}

	recurring := rg.Group("/recurring")
	{
		recurring.GET("", h.listTemplates)
		recurring.POST("/:transactionID/stop", h.stopRecurrence)
	}
}

// listTemplates godoc
// @Summary List recurring templates
// @Description Lists the user's active recurring transaction templates with their next due date.
// @Tags recurring
// @Produce  json
// @Success 200 {array} dto.TransactionResponse
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Failed to list recurring transactions"
// @Security BearerAuth
// @Router /recurring [get]
func (h *recurringHandler) listTemplates(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())

	userID, ok := requireUserID(c, logger)
	if !ok {
		return
	}

	templates, err := h.transactionService.ListRecurringTemplates(c.Request.Context(), userID)
	if err != nil {
		respondWithError(c, logger, err, "Failed to list recurring transactions")
		return
	}

	c.JSON(http.StatusOK, dto.ToListTransactionResponse(templates))
}

// stopRecurrence godoc
// @Summary Stop a recurring transaction
// @Description Stops future occurrences of a recurring template. Already emitted occurrences are kept.
// @Tags recurring
// @Produce  json
// @Param   transactionID path string true "Template transaction ID"
// @Success 200 {object} dto.TransactionResponse
// @Failure 400 {object} map[string]string "Transaction is not recurring"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Transaction not found"
// @Failure 500 {object} map[string]string "Failed to stop recurrence"
// @Security BearerAuth
// @Router /recurring/{transactionID}/stop [post]
func (h *recurringHandler) stopRecurrence(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	transactionID := c.Param("transactionID")

	userID, ok := requireUserID(c, logger)
	if !ok {
		return
	}

	logger = logger.With(slog.String("template_id", transactionID))

	txn, err := h.transactionService.StopRecurrence(c.Request.Context(), transactionID, userID)
	if err != nil {
		respondWithError(c, logger, err, "Failed to stop recurrence")
		return
	}

	logger.Info("Recurrence stopped")
	c.JSON(http.StatusOK, dto.ToTransactionResponse(txn))
}
