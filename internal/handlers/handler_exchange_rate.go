package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/SscSPs/money_oxr/internal/apperrors"
	"github.com/SscSPs/money_oxr/internal/core/domain"
	portssvc "github.com/SscSPs/money_oxr/internal/core/ports/services"
	"github.com/SscSPs/money_oxr/internal/dto"
	"github.com/SscSPs/money_oxr/internal/middleware"
	"github.com/gin-gonic/gin"
)

// exchangeRateHandler handles HTTP requests related to exchange rates.
type exchangeRateHandler struct {
	exchangeRateService portssvc.ExchangeRateSvcFacade
}

// newExchangeRateHandler creates a new exchangeRateHandler.
func newExchangeRateHandler(ers portssvc.ExchangeRateSvcFacade) *exchangeRateHandler {
	return &exchangeRateHandler{
		exchangeRateService: ers,
	}
}

// RegisterExchangeRateRoutes registers routes related to exchange rates.
func RegisterExchangeRateRoutes(rg *gin.RouterGroup, exchangeRateService portssvc.ExchangeRateSvcFacade) {
	h := newExchangeRateHandler(exchangeRateService)

	exchangeRates := rg.Group("/exchange-rates")
	{
		exchangeRates.GET("", h.listExchangeRates)
		exchangeRates.GET("/status", h.getStatus)
		exchangeRates.POST("/refresh", h.refresh)
		exchangeRates.GET("/:from/:to", h.getExchangeRate)
	}
}

// errorStatus maps service errors to HTTP status codes and client messages.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, apperrors.ErrValidation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, apperrors.ErrUnsupportedCurrency):
		var unsupported *apperrors.UnsupportedCurrencyError
		if errors.As(err, &unsupported) {
			return http.StatusNotFound, "Unsupported currency: " + unsupported.Code
		}
		return http.StatusNotFound, "Unsupported currency"
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound, "Exchange rate not found"
	case errors.Is(err, apperrors.ErrTransport):
		return http.StatusBadGateway, "Exchange rate provider unavailable"
	default:
		return http.StatusInternalServerError, "Failed to retrieve exchange rates"
	}
}

func respondError(c *gin.Context, logger *slog.Logger, msg string, err error) {
	status, clientMsg := errorStatus(err)
	if status >= http.StatusInternalServerError {
		logger.Error(msg, slog.String("error", err.Error()))
	} else {
		logger.Warn(msg, slog.String("error", err.Error()))
	}
	c.JSON(status, gin.H{"error": clientMsg})
}

// getExchangeRate returns the rate for converting :from into :to.
// Codes are case-insensitive; derived rates are computed on demand.
func (h *exchangeRateHandler) getExchangeRate(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	fromCode := strings.ToUpper(c.Param("from"))
	toCode := strings.ToUpper(c.Param("to"))

	logger = logger.With(slog.String("from_code", fromCode), slog.String("to_code", toCode))
	logger.Debug("Received request to get exchange rate")

	rate, err := h.exchangeRateService.GetRate(c.Request.Context(), fromCode, toCode)
	if err != nil {
		respondError(c, logger, "Failed to get exchange rate", err)
		return
	}

	c.JSON(http.StatusOK, dto.ToExchangeRateResponse(domain.ExchangeRate{
		FromCurrencyCode: fromCode,
		ToCurrencyCode:   toCode,
		Rate:             rate,
	}, h.exchangeRateService.Status()))
}

// listExchangeRates returns the store status and every rate currently held.
func (h *exchangeRateHandler) listExchangeRates(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())

	rates, err := h.exchangeRateService.ListRates(c.Request.Context())
	if err != nil {
		respondError(c, logger, "Failed to list exchange rates", err)
		return
	}

	c.JSON(http.StatusOK, dto.ToListExchangeRatesResponse(rates, h.exchangeRateService.Status()))
}

// getStatus reports whether rates are loaded and fresh. It never triggers a load.
func (h *exchangeRateHandler) getStatus(c *gin.Context) {
	c.JSON(http.StatusOK, dto.ToStoreStatusResponse(h.exchangeRateService.Status()))
}

// refresh forces a reload from the rates API and returns the new status.
func (h *exchangeRateHandler) refresh(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	if subject, ok := middleware.GetSubjectFromContext(c); ok {
		logger = logger.With(slog.String("subject", subject))
	}

	if err := h.exchangeRateService.LoadFromAPI(c.Request.Context()); err != nil {
		respondError(c, logger, "Failed to refresh exchange rates", err)
		return
	}

	status := h.exchangeRateService.Status()
	logger.Info("Exchange rates refreshed", slog.Bool("loaded", status.Loaded), slog.Time("last_updated_at", status.LastUpdatedAt))
	c.JSON(http.StatusOK, dto.ToStoreStatusResponse(status))
}
