package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/offerdesk/tracker/internal/handler/dto"
	"github.com/offerdesk/tracker/internal/middleware"
	"github.com/offerdesk/tracker/internal/service"
)

// ClickHandler serves the server-side click form.
type ClickHandler struct {
	tracker Tracker
	logger  *slog.Logger
}

// NewClickHandler creates a new ClickHandler.
func NewClickHandler(tracker Tracker, logger *slog.Logger) *ClickHandler {
	return &ClickHandler{
		tracker: tracker,
		logger:  logger.With("component", "handler.clicks"),
	}
}

// Create handles POST /api/v1/clicks.
// The click is tracked through the offer lookup strategy. With redirect set
// (in the body or as ?redirect=1) the response is a 302 to the destination and
// the write follows the record policy. Otherwise the click is stored before
// the 201 is written.
func (h *ClickHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateClickRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	userAgent := req.UserAgent
	if userAgent == "" {
		userAgent = r.UserAgent()
	}
	referrer := req.Referrer
	if referrer == "" {
		referrer = r.Referer()
	}

	redirect := req.Redirect || wantsRedirect(r)

	result := h.tracker.Track(r.Context(), service.TrackRequest{
		Strategy:    service.StrategyOfferLookup,
		AwaitRecord: !redirect,
		AffiliateID: req.AffiliateID,
		OfferID:     req.OfferID,
		Metadata: service.ClickMetadata{
			IPAddress: middleware.ClientIP(r),
			UserAgent: userAgent,
			Referrer:  referrer,
			SubID:     req.SubID,
		},
	})

	if !result.Redirected() {
		h.writeTrackError(w, result)
		return
	}

	if redirect {
		http.Redirect(w, r, result.Destination, http.StatusFound)
		return
	}

	if result.RecordErr != nil {
		writeError(w, http.StatusServiceUnavailable, "RECORD_FAILED", "Click could not be recorded")
		return
	}

	writeJSON(w, http.StatusCreated, dto.ClickResponse{
		ClickID:     result.ClickID,
		Destination: result.Destination,
	})
}

func (h *ClickHandler) writeTrackError(w http.ResponseWriter, result *service.TrackResult) {
	switch {
	case result.Reason == service.FailureValidation:
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", "affiliate_id and offer_id are required")
	case errors.Is(result.Err, service.ErrOfferNotFound):
		writeError(w, http.StatusNotFound, "OFFER_NOT_FOUND", "Offer not found")
	case errors.Is(result.Err, service.ErrMalformedURL),
		errors.Is(result.Err, service.ErrInvalidSubdomain),
		errors.Is(result.Err, service.ErrUnsupportedHost):
		writeError(w, http.StatusUnprocessableEntity, "INVALID_DESTINATION", "Offer destination cannot be used")
	default:
		h.logger.Error("click destination unavailable", "error", result.Err)
		writeError(w, http.StatusServiceUnavailable, "RESOLUTION_UNAVAILABLE", "Destination temporarily unavailable")
	}
}

func wantsRedirect(r *http.Request) bool {
	switch strings.ToLower(r.URL.Query().Get("redirect")) {
	case "1", "true", "yes":
		return true
	}
	return false
}
