package http

import (
	"net/http"

	"carteira/internal/core"
	"carteira/internal/log"
	"carteira/internal/period"
)

type periodResponse struct {
	State period.State     `json:"state"`
	Range period.DateRange `json:"range"`
	Query string           `json:"query"`
}

// periodFor resolves the window of a request: query parameters first, then
// the stored preference, then today. A failing preference read is logged
// and the defaults are used.
func (s *Server) periodFor(r *http.Request) *period.Container {
	c, err := period.NewContainer(r.Context(), period.Options{
		Query: period.NewMemoryQuery(r.URL.RawQuery),
		Store: s.deps.Prefs,
		Now:   s.opts.Now,
	})
	if err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Stored period unavailable, using defaults",
			log.FieldError, err)
	}
	return c
}

func describe(c *period.Container) periodResponse {
	return periodResponse{State: c.Get(), Range: c.Range(), Query: c.QueryString()}
}

func (s *Server) handleGetPeriod(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(describe(s.periodFor(r))).Write(w)
}

// handleSetPeriod applies a partial transition and stores the result as the
// new default window.
func (s *Server) handleSetPeriod(w http.ResponseWriter, r *http.Request) {
	var p period.Partial
	if err := decodeJSON(w, r, &p); err != nil {
		ErrorFor(r, log.OpUpdate, err).Write(w)
		return
	}
	if err := p.Validate(); err != nil {
		ErrorFor(r, log.OpUpdate, err).Write(w)
		return
	}

	c := s.periodFor(r)
	state, err := c.Set(r.Context(), p)
	if err != nil {
		ErrorFor(r, log.OpUpdate, err).Write(w)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Period changed",
		log.FieldPeriodMode, string(state.Mode), log.FieldPeriodKey, state.Key())
	NewJSONResponse().Body(describe(c)).Write(w)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	c := s.periodFor(r)
	rep, err := s.deps.Reports.Build(r.Context(), c.Get())
	if err != nil {
		ErrorFor(r, "report", err).Write(w)
		return
	}
	NewJSONResponse().Body(rep).Write(w)
}

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	c := s.periodFor(r)
	res, err := s.deps.Reports.Forecast(r.Context(), c.Get())
	if err != nil {
		ErrorFor(r, "forecast", err).Write(w)
		return
	}
	NewJSONResponse().Body(res).Write(w)
}

func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	out, err := s.deps.Reports.Insights(r.Context())
	if err != nil {
		ErrorFor(r, "insights", err).Write(w)
		return
	}
	if out == nil {
		out = []core.Insight{}
	}
	NewJSONResponse().Body(map[string]any{"insights": out}).Write(w)
}
