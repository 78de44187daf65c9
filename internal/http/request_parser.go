package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"fintrack/internal/core"
)

const maxBodyBytes = 64 << 10

// requestError is a malformed request; it maps to 400 with its message.
type requestError struct {
	msg string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &requestError{msg: fmt.Sprintf(format, args...)}
}

// PathID parses a positive integer route variable.
func PathID(r *http.Request, name string) (int64, error) {
	raw := mux.Vars(r)[name]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, badRequest("invalid %s %q", name, raw)
	}
	return id, nil
}

// DateParam parses an optional YYYY-MM-DD query parameter, returning def
// when absent.
func DateParam(query url.Values, key string, def core.Date) (core.Date, error) {
	v := strings.TrimSpace(query.Get(key))
	if v == "" {
		return def, nil
	}
	d, err := core.ParseDate(v)
	if err != nil {
		return core.Date{}, badRequest("invalid %s %q: want YYYY-MM-DD", key, v)
	}
	return d, nil
}

// DecodeJSON reads a bounded JSON body into dst. An empty body leaves dst
// untouched.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	err := dec.Decode(dst)
	switch {
	case err == nil:
	case errors.Is(err, io.EOF):
		return nil
	default:
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return badRequest("request body too large")
		}
		return badRequest("invalid JSON body: %v", err)
	}
	if dec.More() {
		return badRequest("invalid JSON body: trailing data")
	}
	return nil
}

// PayRequest is the body of a statement payment.
type PayRequest struct {
	StatementID      int64 `json:"statement_id,omitempty"`
	PayFromAccountID int64 `json:"pay_from_account_id"`
}

// Validate checks the body against the statement id taken from the path.
func (p PayRequest) Validate(pathID int64) error {
	if p.PayFromAccountID <= 0 {
		return badRequest("pay_from_account_id is required")
	}
	if p.StatementID != 0 && p.StatementID != pathID {
		return badRequest("statement_id %d does not match path %d", p.StatementID, pathID)
	}
	return nil
}
