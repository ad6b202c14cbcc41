package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/offerdesk/tracker/internal/handler/dto"
	"github.com/offerdesk/tracker/internal/model"
	"github.com/offerdesk/tracker/internal/service"
)

// AffiliateLinkGenerator builds and stores tracking links.
type AffiliateLinkGenerator interface {
	Generate(ctx context.Context, offerID, affiliateID string) (*model.AffiliateLink, error)
}

// AffiliateLinkHandler serves tracking link generation.
type AffiliateLinkHandler struct {
	generator AffiliateLinkGenerator
	logger    *slog.Logger
}

// NewAffiliateLinkHandler creates a new AffiliateLinkHandler.
func NewAffiliateLinkHandler(generator AffiliateLinkGenerator, logger *slog.Logger) *AffiliateLinkHandler {
	return &AffiliateLinkHandler{
		generator: generator,
		logger:    logger.With("component", "handler.affiliate_links"),
	}
}

// Create handles POST /api/v1/affiliate-links.
func (h *AffiliateLinkHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.AffiliateLinkRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	link, err := h.generator.Generate(r.Context(), req.OfferID, req.AffiliateID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, "INVALID_INPUT", err.Error())
		case errors.Is(err, service.ErrOfferNotFound):
			writeError(w, http.StatusNotFound, "OFFER_NOT_FOUND", "Offer not found")
		default:
			h.logger.Error("generate affiliate link",
				"offer_id", req.OfferID,
				"affiliate_id", req.AffiliateID,
				"error", err,
			)
			writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
		}
		return
	}

	h.logger.Info("affiliate_link_generated",
		"link_id", link.ID,
		"offer_id", link.OfferID,
		"affiliate_id", link.AffiliateID,
		"domain", link.Domain,
	)

	writeJSON(w, http.StatusOK, dto.ToAffiliateLinkResponse(link))
}
