package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"carteira/internal/core"
	"carteira/internal/ledger"
	"carteira/internal/log"
)

// createTransactionRequest is a purchase as entered: the transaction fields
// plus the number of monthly installments (default 1).
type createTransactionRequest struct {
	core.Transaction
	Installments int `json:"installments,omitempty"`
}

// createTransactionResponse reports both write phases. Linked is false when
// the rows were inserted but could not be tied to their first installment.
type createTransactionResponse struct {
	Rows   []core.Transaction `json:"rows"`
	Linked bool               `json:"linked"`
}

type listTransactionsResponse struct {
	Start core.Date          `json:"start"`
	End   core.Date          `json:"end"`
	Rows  []core.Transaction `json:"rows"`
}

func (s *Server) handleCreateTransactions(w http.ResponseWriter, r *http.Request) {
	var req createTransactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		ErrorFor(r, log.OpCreate, err).Write(w)
		return
	}

	rows, err := s.deps.Ledger.Add(r.Context(), ledger.AddInput{Transaction: req.Transaction, Installments: req.Installments})
	var unlinked *ledger.UnlinkedError
	switch {
	case errors.As(err, &unlinked):
		// rows exist; the reconciler or the event worker links them later
		log.FromContext(r.Context()).WarnContext(r.Context(), "Installments created unlinked",
			log.FieldRows, len(rows), log.FieldError, unlinked.Err)
	case err != nil:
		ErrorFor(r, log.OpCreate, err).Write(w)
		return
	}

	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/transactions/"+rows[0].ID).
		Body(createTransactionResponse{Rows: rows, Linked: unlinked == nil}).
		Write(w)
}

// handleListTransactions lists rows in [start, end]. Without explicit bounds
// the active period window is used.
func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	rng, explicit, err := ParseRangeParams(query)
	if err != nil {
		ErrorFor(r, log.OpList, err).Write(w)
		return
	}
	filter, err := ParseFilter(query)
	if err != nil {
		ErrorFor(r, log.OpList, err).Write(w)
		return
	}
	if !explicit {
		rng = s.periodFor(r).Range()
	}

	rows, err := s.deps.Ledger.ListByRange(r.Context(), rng.Start, rng.End, filter)
	if err != nil {
		ErrorFor(r, log.OpList, err).Write(w)
		return
	}
	if rows == nil {
		rows = []core.Transaction{}
	}
	NewJSONResponse().Body(listTransactionsResponse{Start: rng.Start, End: rng.End, Rows: rows}).Write(w)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	t, err := s.deps.Ledger.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		ErrorFor(r, log.OpList, err).Write(w)
		return
	}
	NewJSONResponse().Body(t).Write(w)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	var patch core.TransactionPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		ErrorFor(r, log.OpUpdate, err).Write(w)
		return
	}
	t, err := s.deps.Ledger.Update(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		ErrorFor(r, log.OpUpdate, err).Write(w)
		return
	}
	NewJSONResponse().Body(t).Write(w)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Ledger.Remove(r.Context(), chi.URLParam(r, "id")); err != nil {
		ErrorFor(r, log.OpDelete, err).Write(w)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

// handleUploadAttachment stores the multipart "file" part and records its
// URL on the transaction.
func (s *Server) handleUploadAttachment(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.opts.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			ErrorResponse(http.StatusRequestEntityTooLarge, "attachment too large").Write(w)
			return
		}
		BadRequestError("expected multipart/form-data with a file part").Write(w)
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		BadRequestError("missing file part").Write(w)
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if strings.TrimSpace(contentType) == "" {
		contentType = "application/octet-stream"
	}
	t, err := s.deps.Ledger.UploadAttachment(r.Context(), chi.URLParam(r, "id"), header.Filename, contentType, file)
	if err != nil {
		ErrorFor(r, log.OpUpload, err).Write(w)
		return
	}
	NewJSONResponse().Body(t).Write(w)
}
