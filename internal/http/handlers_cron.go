package http

import (
	"errors"
	"net/http"

	"fintrack/internal/core"
	flog "fintrack/internal/log"
	"fintrack/internal/services"
)

// handleRecurring runs one poster pass for the server's current date; callers
// cannot choose the day. Per-rule failures are reported in the counts; only a
// failed due-rule query fails the request.
func (s *Server) handleRecurring(w http.ResponseWriter, r *http.Request) {
	today := core.DateOf(s.now())

	sum, err := s.poster.Run(r.Context(), today)
	switch {
	case errors.Is(err, services.ErrRunInProgress):
		writeCronError(w, r, http.StatusConflict, err)
		return
	case err != nil:
		writeCronError(w, r, http.StatusInternalServerError, err)
		return
	}

	flog.FromContext(r.Context()).InfoContext(r.Context(), "Recurring run finished",
		flog.FieldOperation, flog.OpPost,
		"today", today.String(),
		"checked", sum.Checked,
		"processed", sum.Processed,
		"created", sum.Created,
		"failed", sum.Failed)
	writeJSON(w, http.StatusOK, cronResult{
		OK:        true,
		Processed: sum.Processed,
		Created:   sum.Created,
		Failed:    sum.Failed,
	})
}
