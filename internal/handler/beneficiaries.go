package handler

import (
	"net/http"

	"github.com/aryan0dhankhar/paymentsportal/internal/apierror"
	"github.com/aryan0dhankhar/paymentsportal/internal/security/middleware"
	"github.com/aryan0dhankhar/paymentsportal/internal/service"
	"github.com/aryan0dhankhar/paymentsportal/internal/validation"
)

// BeneficiaryHandler serves a customer's saved payees.
type BeneficiaryHandler struct {
	beneficiaries *service.BeneficiaryService
	responder     *apierror.Responder
}

func NewBeneficiaryHandler(beneficiaries *service.BeneficiaryService, responder *apierror.Responder) *BeneficiaryHandler {
	return &BeneficiaryHandler{beneficiaries: beneficiaries, responder: responder}
}

// Create handles POST /api/beneficiaries
func (h *BeneficiaryHandler) Create(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r, h.responder)
	if !ok {
		return
	}
	in, _ := middleware.Valid[validation.BeneficiaryInput](r)
	b, err := h.beneficiaries.Create(r.Context(), id, in)
	if err != nil {
		h.responder.Error(w, r, err)
		return
	}
	apierror.JSON(w, http.StatusCreated, b)
}

// List handles GET /api/beneficiaries
func (h *BeneficiaryHandler) List(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r, h.responder)
	if !ok {
		return
	}
	q, _ := middleware.Valid[validation.BeneficiaryListQuery](r)
	page, err := h.beneficiaries.List(r.Context(), id, q)
	if err != nil {
		h.responder.Error(w, r, err)
		return
	}
	apierror.JSON(w, http.StatusOK, page)
}
