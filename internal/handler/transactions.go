package handler

import (
	"log/slog"
	"net/http"

	"github.com/aryan0dhankhar/paymentsportal/internal/apierror"
	"github.com/aryan0dhankhar/paymentsportal/internal/domain"
	"github.com/aryan0dhankhar/paymentsportal/internal/security/middleware"
	"github.com/aryan0dhankhar/paymentsportal/internal/service"
	"github.com/aryan0dhankhar/paymentsportal/internal/validation"
)

// TransactionHandler serves both the customer and the staff side of payments.
type TransactionHandler struct {
	transactions *service.TransactionService
	responder    *apierror.Responder
	logger       *slog.Logger
}

func NewTransactionHandler(transactions *service.TransactionService, responder *apierror.Responder, logger *slog.Logger) *TransactionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TransactionHandler{transactions: transactions, responder: responder, logger: logger}
}

// transitionResponse flattens the updated transaction next to the ok flag.
type transitionResponse struct {
	OK bool `json:"ok"`
	*domain.Transaction
}

type bulkResponse struct {
	OK bool `json:"ok"`
	domain.BulkResult
}

// Create handles POST /api/tx
func (h *TransactionHandler) Create(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r, h.responder)
	if !ok {
		return
	}
	in, _ := middleware.Valid[validation.CreateTransactionInput](r)
	tx, err := h.transactions.Create(r.Context(), id, in)
	if err != nil {
		h.responder.Error(w, r, err)
		return
	}
	apierror.JSON(w, http.StatusCreated, tx)
}

// List handles GET /api/tx
func (h *TransactionHandler) List(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r, h.responder)
	if !ok {
		return
	}
	q, _ := middleware.Valid[validation.TransactionListQuery](r)
	page, err := h.transactions.ListOwn(r.Context(), id, q)
	if err != nil {
		h.responder.Error(w, r, err)
		return
	}
	apierror.JSON(w, http.StatusOK, page)
}

// Get handles GET /api/tx/{id}
func (h *TransactionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r, h.responder)
	if !ok {
		return
	}
	txID, _ := middleware.Valid[string](r)
	tx, err := h.transactions.GetOwn(r.Context(), id, txID)
	if err != nil {
		h.responder.Error(w, r, err)
		return
	}
	apierror.JSON(w, http.StatusOK, tx)
}

// Queue handles GET /api/intl/queue
func (h *TransactionHandler) Queue(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r, h.responder)
	if !ok {
		return
	}
	q, _ := middleware.Valid[validation.QueueQuery](r)
	page, err := h.transactions.Queue(r.Context(), id, q)
	if err != nil {
		h.responder.Error(w, r, err)
		return
	}
	apierror.JSON(w, http.StatusOK, page)
}

// AdminList handles GET /api/admin/transactions
func (h *TransactionHandler) AdminList(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r, h.responder)
	if !ok {
		return
	}
	q, _ := middleware.Valid[validation.QueueQuery](r)
	page, err := h.transactions.ListAll(r.Context(), id, q)
	if err != nil {
		h.responder.Error(w, r, err)
		return
	}
	apierror.JSON(w, http.StatusOK, page)
}

// StaffGet handles GET /api/intl/{id}
func (h *TransactionHandler) StaffGet(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r, h.responder)
	if !ok {
		return
	}
	txID, _ := middleware.Valid[string](r)
	tx, err := h.transactions.Get(r.Context(), id, txID)
	if err != nil {
		h.responder.Error(w, r, err)
		return
	}
	apierror.JSON(w, http.StatusOK, tx)
}

// Verify handles POST /api/intl/{id}/verify
func (h *TransactionHandler) Verify(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r, h.responder)
	if !ok {
		return
	}
	in, _ := middleware.Valid[validation.VerifyInput](r)
	tx, err := h.transactions.Verify(r.Context(), id, in)
	if err != nil {
		h.responder.Error(w, r, err)
		return
	}
	apierror.JSON(w, http.StatusOK, transitionResponse{OK: true, Transaction: tx})
}

// Submit handles POST /api/intl/{id}/submit
func (h *TransactionHandler) Submit(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r, h.responder)
	if !ok {
		return
	}
	txID, _ := middleware.Valid[string](r)
	tx, err := h.transactions.Submit(r.Context(), id, txID)
	if err != nil {
		h.responder.Error(w, r, err)
		return
	}
	apierror.JSON(w, http.StatusOK, transitionResponse{OK: true, Transaction: tx})
}

// SubmitBulk handles POST /api/intl/submit-bulk
func (h *TransactionHandler) SubmitBulk(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r, h.responder)
	if !ok {
		return
	}
	ids, _ := middleware.Valid[[]string](r)
	res, err := h.transactions.SubmitBulk(r.Context(), id, ids)
	if err != nil {
		h.responder.Error(w, r, err)
		return
	}
	h.logger.Info("bulk submit",
		slog.String("actor_id", id.UserID),
		slog.Int("requested", len(ids)),
		slog.Int("modified", res.Modified),
	)
	apierror.JSON(w, http.StatusOK, bulkResponse{OK: true, BulkResult: res})
}
