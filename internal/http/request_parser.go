// This file implements utilities for parsing and validating request data.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"carteira/internal/core"
	"carteira/internal/period"
)

// maxJSONBody bounds request bodies that are not file uploads.
const maxJSONBody = 1 << 20

var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

// decodeJSON reads exactly one JSON value into v, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return badRequest("empty body")
		}
		return badRequest("invalid JSON: %v", err)
	}
	if dec.More() {
		return badRequest("body must contain a single JSON value")
	}
	return nil
}

// parseDateParam returns the zero date for an absent parameter.
func parseDateParam(query url.Values, name string) (core.Date, error) {
	v := strings.TrimSpace(query.Get(name))
	if v == "" {
		return core.Date{}, nil
	}
	d, err := core.ParseDate(v)
	if err != nil {
		return core.Date{}, badRequest("%s must be YYYY-MM-DD", name)
	}
	return d, nil
}

// ParseRangeParams reads start and end. When both are absent ok is false
// and the caller falls back to the period window; a single bound is an error.
func ParseRangeParams(query url.Values) (rng period.DateRange, ok bool, err error) {
	start, err := parseDateParam(query, "start")
	if err != nil {
		return rng, false, err
	}
	end, err := parseDateParam(query, "end")
	if err != nil {
		return rng, false, err
	}
	switch {
	case start.IsZero() && end.IsZero():
		return rng, false, nil
	case start.IsZero() || end.IsZero():
		return rng, false, badRequest("start and end must be given together")
	}
	return period.DateRange{Start: start, End: end}, true, nil
}

// ParseFilter reads the optional narrowing parameters of a range query.
func ParseFilter(query url.Values) (core.Filter, error) {
	f := core.Filter{
		CategoryID: strings.TrimSpace(query.Get("category_id")),
		AccountID:  strings.TrimSpace(query.Get("account_id")),
		CardID:     strings.TrimSpace(query.Get("card_id")),
	}
	switch t := core.TransactionType(strings.ToLower(strings.TrimSpace(query.Get("type")))); t {
	case "":
	case core.Income, core.Expense:
		f.Type = t
	default:
		return core.Filter{}, badRequest("type must be income or expense")
	}
	return f, nil
}
