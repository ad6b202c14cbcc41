package handler

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/offerdesk/tracker/internal/middleware"
	"github.com/offerdesk/tracker/internal/service"
)

// DefaultCountdown is the delay used by /go links without a valid delay parameter.
const DefaultCountdown = 5

// Notice codes appended to the fallback URL.
const (
	NoticeInvalidLink      = "invalid_link"
	NoticeOfferUnavailable = "offer_unavailable"
)

// Tracker runs the tracking state machine.
type Tracker interface {
	Track(ctx context.Context, req service.TrackRequest) *service.TrackResult
}

// TrackHandler serves the public tracking links.
type TrackHandler struct {
	tracker Tracker
	logger  *slog.Logger
}

// NewTrackHandler creates a new TrackHandler.
func NewTrackHandler(tracker Tracker, logger *slog.Logger) *TrackHandler {
	return &TrackHandler{
		tracker: tracker,
		logger:  logger.With("component", "handler.track"),
	}
}

// OfferLink handles GET /{affiliateID}/{offerID}.
func (h *TrackHandler) OfferLink(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, service.TrackRequest{
		Strategy:    service.StrategyOfferLookup,
		AffiliateID: chi.URLParam(r, "affiliateID"),
		OfferID:     chi.URLParam(r, "offerID"),
		Delay:       queryDelay(r, 0),
	})
}

// Track handles GET /track/{first}/{second}.
// With a target parameter the path is /track/{offerID}/{affiliateID} and the
// target is the destination. Without one it is /track/{affiliateID}/{offerID}.
// A present but empty target keeps the explicit shape and fails validation.
func (h *TrackHandler) Track(w http.ResponseWriter, r *http.Request) {
	first, second := chi.URLParam(r, "first"), chi.URLParam(r, "second")

	req := service.TrackRequest{Delay: queryDelay(r, 0)}
	if q := r.URL.Query(); q.Has("target") {
		req.Strategy = service.StrategyExplicitTarget
		req.OfferID, req.AffiliateID, req.Target = first, second, q.Get("target")
	} else {
		req.Strategy = service.StrategyOfferLookup
		req.AffiliateID, req.OfferID = first, second
	}

	h.serve(w, r, req)
}

// Delayed handles GET /go/{affiliateID}/{offerID}: an offer link that shows a
// countdown page before navigating.
func (h *TrackHandler) Delayed(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, service.TrackRequest{
		Strategy:    service.StrategyOfferLookup,
		AffiliateID: chi.URLParam(r, "affiliateID"),
		OfferID:     chi.URLParam(r, "offerID"),
		Delay:       queryDelay(r, DefaultCountdown),
	})
}

func (h *TrackHandler) serve(w http.ResponseWriter, r *http.Request, req service.TrackRequest) {
	req.Metadata = requestMetadata(r)

	result := h.tracker.Track(r.Context(), req)
	if !result.Redirected() {
		http.Redirect(w, r, withNotice(result.FallbackURL, noticeFor(result.Reason)), http.StatusFound)
		return
	}

	h.logger.Info("track_redirect",
		"click_id", result.ClickID,
		"strategy", req.Strategy.String(),
		"delay", result.Delay,
	)

	if result.Delay > 0 {
		h.renderCountdown(w, result.Destination, result.Delay)
		return
	}
	http.Redirect(w, r, result.Destination, http.StatusFound)
}

func (h *TrackHandler) renderCountdown(w http.ResponseWriter, destination string, delay int) {
	nonce, err := scriptNonce()
	if err != nil {
		// Without a nonce the page still works through meta refresh.
		h.logger.Warn("countdown nonce unavailable", "error", err)
	}

	csp := "default-src 'none'; style-src 'unsafe-inline'; frame-ancestors 'none'"
	if nonce != "" {
		csp += "; script-src 'nonce-" + nonce + "'"
	}
	w.Header().Set("Content-Security-Policy", csp)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	err = countdownTemplate.Execute(w, countdownData{
		Destination: destination,
		Delay:       delay,
		Nonce:       nonce,
	})
	if err != nil {
		h.logger.Error("render countdown page", "error", err)
	}
}

// requestMetadata collects click metadata from the request.
func requestMetadata(r *http.Request) service.ClickMetadata {
	q := r.URL.Query()
	subID := q.Get("sub_id")
	if subID == "" {
		subID = q.Get("sub")
	}
	return service.ClickMetadata{
		IPAddress: middleware.ClientIP(r),
		UserAgent: r.UserAgent(),
		Referrer:  r.Referer(),
		SubID:     subID,
	}
}

// queryDelay reads ?delay=N. Missing, malformed or non-positive values yield def.
func queryDelay(r *http.Request, def int) int {
	raw := r.URL.Query().Get("delay")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func noticeFor(reason service.FailureReason) string {
	if reason == service.FailureValidation {
		return NoticeInvalidLink
	}
	return NoticeOfferUnavailable
}

// withNotice adds ?notice=code to the fallback location, keeping existing query values.
func withNotice(fallback, code string) string {
	u, err := url.Parse(fallback)
	if err != nil {
		return "/?notice=" + url.QueryEscape(code)
	}
	q := u.Query()
	q.Set("notice", code)
	u.RawQuery = q.Encode()
	return u.String()
}

func scriptNonce() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return strings.TrimRight(base64.StdEncoding.EncodeToString(b), "="), nil
}

type countdownData struct {
	Destination string
	Delay       int
	Nonce       string
}

var countdownTemplate = template.Must(template.New("countdown").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="robots" content="noindex, nofollow">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="{{.Delay}};url={{.Destination}}">
<title>Redirecting</title>
<style>
body{font-family:system-ui,-apple-system,sans-serif;background:#f6f7f9;color:#1f2328;display:flex;align-items:center;justify-content:center;min-height:100vh;margin:0}
main{background:#fff;border-radius:12px;box-shadow:0 2px 12px rgba(0,0,0,.08);padding:2rem 2.5rem;text-align:center;max-width:28rem}
#countdown{font-size:2.5rem;font-weight:600;display:block;margin:.5rem 0}
a{color:#0969da}
</style>
</head>
<body>
<main>
<p>You will be redirected in</p>
<span id="countdown">{{.Delay}}</span>
<p><a href="{{.Destination}}" rel="nofollow noopener">Continue now</a></p>
</main>
{{if .Nonce}}<script nonce="{{.Nonce}}">
(function () {
  var remaining = {{.Delay}};
  var target = {{.Destination}};
  var el = document.getElementById("countdown");
  var timer = setInterval(function () {
    remaining -= 1;
    if (remaining <= 0) {
      clearInterval(timer);
      window.location.replace(target);
      return;
    }
    el.textContent = remaining;
  }, 1000);
})();
</script>{{end}}
</body>
</html>
`))
