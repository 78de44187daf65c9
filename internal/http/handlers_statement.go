package http

import (
	"fmt"
	"net/http"

	"fintrack/internal/core"
	flog "fintrack/internal/log"
)

func statementsKey(owner string, cardID int64) string {
	return fmt.Sprintf("%s/%d", owner, cardID)
}

// handleGenerate computes or refreshes the statement of the cycle containing
// as_of (default today).
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	owner, _ := OwnerFromContext(r.Context())
	cardID, err := PathID(r, "cardID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	asOf, err := DateParam(r.URL.Query(), "as_of", core.DateOf(s.now()))
	if err != nil {
		writeError(w, r, err)
		return
	}

	st, err := s.statements.GenerateStatement(r.Context(), owner, cardID, asOf)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.statementCache.Delete(statementsKey(owner, cardID))

	flog.FromContext(r.Context()).InfoContext(r.Context(), "Statement generated",
		flog.NewFields().
			WithOperation(flog.OpGenerate).
			WithOwner(owner).
			WithStatement(st.ID, st.CardID, core.Cycle{Start: st.CycleStart, End: st.CycleEnd}.String(), st.AmountTotal.Cents).
			ToSlice()...)
	writeJSON(w, http.StatusOK, newStatementView(st))
}

func (s *Server) handleListStatements(w http.ResponseWriter, r *http.Request) {
	owner, _ := OwnerFromContext(r.Context())
	cardID, err := PathID(r, "cardID")
	if err != nil {
		writeError(w, r, err)
		return
	}

	items, err := s.statementCache.Load(statementsKey(owner, cardID), func() ([]core.Statement, error) {
		return s.statements.ListStatements(r.Context(), owner, cardID)
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	views := make([]statementView, 0, len(items))
	for _, st := range items {
		views = append(views, newStatementView(st))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handlePay(w http.ResponseWriter, r *http.Request) {
	owner, _ := OwnerFromContext(r.Context())
	statementID, err := PathID(r, "statementID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req PayRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := req.Validate(statementID); err != nil {
		writeError(w, r, err)
		return
	}

	pay, err := s.statements.PayStatement(r.Context(), owner, statementID, req.PayFromAccountID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.statementCache.Delete(statementsKey(owner, pay.Statement.CardID))

	flog.FromContext(r.Context()).InfoContext(r.Context(), "Statement paid",
		flog.FieldOperation, flog.OpPay,
		flog.FieldOwner, owner,
		flog.FieldStatementID, pay.Statement.ID,
		flog.FieldTransferGroup, pay.TransferGroup,
		flog.FieldAmountCents, pay.Statement.AmountTotal.Cents)
	writeJSON(w, http.StatusOK, newPaymentView(pay))
}
