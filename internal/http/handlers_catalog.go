package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"carteira/internal/billing"
	"carteira/internal/core"
)

type cycleResponse struct {
	CardID string `json:"card_id"`
	billing.Cycle
	Next billing.Cycle `json:"next"`
}

// handleCardCycle returns the statement window of a card around ref
// (default today) and the window after it.
func (s *Server) handleCardCycle(w http.ResponseWriter, r *http.Request) {
	ref, err := parseDateParam(r.URL.Query(), "ref")
	if err != nil {
		ErrorFor(r, "cycle", err).Write(w)
		return
	}
	if ref.IsZero() {
		ref = core.DateOf(s.opts.Now())
	}

	card, err := s.deps.Catalog.GetCard(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		ErrorFor(r, "cycle", err).Write(w)
		return
	}
	c := billing.CycleFor(card, ref)
	if c == nil {
		UnprocessableEntityError("card has no cut day configured").Write(w)
		return
	}
	NewJSONResponse().Body(cycleResponse{CardID: card.ID, Cycle: *c, Next: *billing.Next(card, *c)}).Write(w)
}

// catalogRoutes registers GET /<name> and PUT /<name>/{id} for each
// reference collection. PUT takes the id from the path.
func (s *Server) catalogRoutes(r chi.Router) {
	c := s.deps.Catalog
	if c == nil {
		return
	}
	r.Get("/categories", listHandler(c.ListCategories))
	r.Put("/categories/{id}", putHandler(c.PutCategory, func(v *core.Category, id string) error {
		v.ID = id
		if strings.TrimSpace(v.Name) == "" {
			return badRequest("name is required")
		}
		switch v.Kind {
		case "":
			v.Kind = core.KindExpense
		case core.KindIncome, core.KindExpense, core.KindTransfer:
		default:
			return badRequest("kind must be income, expense or transfer")
		}
		if v.ParentID == id {
			return badRequest("category cannot be its own parent")
		}
		return nil
	}))
	r.Get("/cards", listHandler(c.ListCards))
	r.Put("/cards/{id}", putHandler(c.PutCard, func(v *core.CreditCard, id string) error {
		v.ID = id
		if invalidDay(v.CutDay) || invalidDay(v.DueDay) {
			return badRequest("cut_day and due_day must be between 1 and 31")
		}
		return nil
	}))
	r.Get("/accounts", listHandler(c.ListAccounts))
	r.Put("/accounts/{id}", putHandler(c.PutAccount, func(v *core.Account, id string) error {
		v.ID = id
		return nil
	}))
	r.Get("/bills", listHandler(c.ListBills))
	r.Put("/bills/{id}", putHandler(c.PutBill, func(v *core.Bill, id string) error {
		v.ID = id
		if v.DueDate.IsZero() {
			return badRequest("due_date is required")
		}
		return nil
	}))
	r.Get("/goals", listHandler(c.ListGoals))
	r.Put("/goals/{id}", putHandler(c.PutGoal, func(v *core.Goal, id string) error {
		v.ID = id
		return nil
	}))
	r.Get("/rewards", listHandler(c.ListRewards))
	r.Put("/rewards/{id}", putHandler(c.PutReward, func(v *core.Reward, id string) error {
		v.ID = id
		return nil
	}))
}

func invalidDay(d *int) bool {
	return d != nil && (*d < 1 || *d > 31)
}

func listHandler[T any](list func(context.Context) ([]T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := list(r.Context())
		if err != nil {
			ErrorFor(r, "catalog_list", err).Write(w)
			return
		}
		if items == nil {
			items = []T{}
		}
		NewJSONResponse().Body(items).Write(w)
	}
}

func putHandler[T any](put func(context.Context, T) error, prepare func(*T, string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(chi.URLParam(r, "id"))
		if id == "" {
			BadRequestError("id is required").Write(w)
			return
		}
		var v T
		if err := decodeJSON(w, r, &v); err != nil {
			ErrorFor(r, "catalog_put", err).Write(w)
			return
		}
		if err := prepare(&v, id); err != nil {
			ErrorFor(r, "catalog_put", err).Write(w)
			return
		}
		if err := put(r.Context(), v); err != nil {
			ErrorFor(r, "catalog_put", err).Write(w)
			return
		}
		NewJSONResponse().Body(v).Write(w)
	}
}
