package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/SscSPs/pfm_backend/internal/apperrors"
	"github.com/SscSPs/pfm_backend/internal/middleware"
	"github.com/gin-gonic/gin"
)

// toAppError maps a service error onto the status code and message returned to the client.
// Internal failures never leak their cause.
func toAppError(err error, fallbackMsg string) *apperrors.AppError {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	switch {
	case errors.Is(err, apperrors.ErrValidation):
		return apperrors.NewAppError(http.StatusBadRequest, err.Error(), err)
	case errors.Is(err, apperrors.ErrAccountNotFound):
		// The request names an account that is missing or not the caller's.
		return apperrors.NewAppError(http.StatusBadRequest, "Referenced account not found", err)
	case errors.Is(err, apperrors.ErrNotFound):
		return apperrors.NewAppError(http.StatusNotFound, "Resource not found", err)
	case errors.Is(err, apperrors.ErrDuplicate):
		return apperrors.NewAppError(http.StatusConflict, err.Error(), err)
	case errors.Is(err, apperrors.ErrConflict):
		return apperrors.NewAppError(http.StatusConflict, "Request conflicts with a concurrent change, please retry", err)
	case errors.Is(err, apperrors.ErrForbidden):
		return apperrors.NewAppError(http.StatusForbidden, "Forbidden", err)
	default:
		return apperrors.NewAppError(http.StatusInternalServerError, fallbackMsg, err)
	}
}

// respondWithError logs err at a level matching its status and writes the JSON error body.
func respondWithError(c *gin.Context, logger *slog.Logger, err error, fallbackMsg string) {
	appErr := toAppError(err, fallbackMsg)
	if appErr.Code >= http.StatusInternalServerError {
		logger.Error(fallbackMsg, slog.String("error", err.Error()))
	} else {
		logger.Warn("Request rejected", slog.Int("status", appErr.Code), slog.String("error", err.Error()))
	}
	c.JSON(appErr.Code, gin.H{"error": appErr.Message})
}

// requireUserID reads the authenticated user or aborts with 401.
func requireUserID(c *gin.Context, logger *slog.Logger) (string, bool) {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		logger.Error("User ID not found in context")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return "", false
	}
	return userID, true
}
