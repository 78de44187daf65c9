package http

import (
	"net/http"

	flog "fintrack/internal/log"
)

// handleDeletePosting soft-deletes a posting. Deleting twice is not an error.
func (s *Server) handleDeletePosting(w http.ResponseWriter, r *http.Request) {
	owner, _ := OwnerFromContext(r.Context())
	id, err := PathID(r, "postingID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.postings.DeletePosting(r.Context(), owner, id); err != nil {
		writeError(w, r, err)
		return
	}

	flog.FromContext(r.Context()).InfoContext(r.Context(), "Posting deleted",
		flog.FieldOperation, flog.OpDelete,
		flog.FieldOwner, owner,
		flog.FieldPostingID, id)
	w.WriteHeader(http.StatusNoContent)
}
