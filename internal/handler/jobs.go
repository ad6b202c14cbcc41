package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/offerdesk/tracker/internal/service"
)

// DomainHealthJobTimeout bounds one domain health pass started over HTTP.
const DomainHealthJobTimeout = 2 * time.Minute

// DomainHealthJob runs one domain health pass.
type DomainHealthJob interface {
	CheckAll(ctx context.Context) (service.CheckSummary, error)
}

// JobsHandler exposes internal jobs for external schedulers.
type JobsHandler struct {
	domainHealth DomainHealthJob
	logger       *slog.Logger
}

// NewJobsHandler creates a new JobsHandler.
func NewJobsHandler(domainHealth DomainHealthJob, logger *slog.Logger) *JobsHandler {
	return &JobsHandler{
		domainHealth: domainHealth,
		logger:       logger.With("component", "handler.jobs"),
	}
}

// DomainHealth handles POST /internal/jobs/domain-health.
// The pass outlives the request: a scheduler that disconnects or a server
// write timeout does not abort it halfway through the domain list.
func (h *JobsHandler) DomainHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), DomainHealthJobTimeout)
	defer cancel()

	summary, err := h.domainHealth.CheckAll(ctx)
	if err != nil {
		h.logger.Error("domain health job failed", "error", err)
		writeError(w, http.StatusBadGateway, "DOMAIN_HEALTH_FAILED", "Domain health check failed")
		return
	}

	h.logger.Info("domain health job completed",
		"checked", summary.Checked,
		"updated", summary.Updated,
		"deactivated", summary.Deactivated,
	)
	writeJSON(w, http.StatusOK, summary)
}
