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

// AdminHandler serves employee management and the user listings.
type AdminHandler struct {
	admin     *service.AdminService
	responder *apierror.Responder
	logger    *slog.Logger
}

func NewAdminHandler(admin *service.AdminService, responder *apierror.Responder, logger *slog.Logger) *AdminHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminHandler{admin: admin, responder: responder, logger: logger}
}

// EmployeeStatusResponse is returned when an employee is enabled or disabled.
type EmployeeStatusResponse struct {
	ID      string `json:"id"`
	StaffID string `json:"staffId"`
	Active  bool   `json:"active"`
}

// CreateEmployee handles POST /api/admin/employees
func (h *AdminHandler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r, h.responder)
	if !ok {
		return
	}
	in, _ := middleware.Valid[validation.CreateEmployeeInput](r)
	user, err := h.admin.CreateEmployee(r.Context(), id, in)
	if err != nil {
		h.responder.Error(w, r, err)
		return
	}
	apierror.JSON(w, http.StatusCreated, user)
}

// ListEmployees handles GET /api/admin/employees
func (h *AdminHandler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r, h.responder)
	if !ok {
		return
	}
	users, err := h.admin.ListEmployees(r.Context(), id)
	if err != nil {
		h.responder.Error(w, r, err)
		return
	}
	if users == nil {
		users = []*domain.User{}
	}
	apierror.JSON(w, http.StatusOK, listResponse[*domain.User]{Items: users})
}

// SetEmployeeActive handles PATCH /api/admin/employees/{id}/active
func (h *AdminHandler) SetEmployeeActive(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r, h.responder)
	if !ok {
		return
	}
	in, _ := middleware.Valid[validation.EmployeeActiveInput](r)
	user, err := h.admin.SetEmployeeActive(r.Context(), id, in)
	if err != nil {
		h.responder.Error(w, r, err)
		return
	}
	resp := EmployeeStatusResponse{ID: user.ID}
	if user.Employee != nil {
		resp.StaffID, resp.Active = user.Employee.StaffID, user.Employee.Active
	}
	apierror.JSON(w, http.StatusOK, resp)
}

// ResetEmployeePassword handles PATCH /api/admin/employees/{id}/password
func (h *AdminHandler) ResetEmployeePassword(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r, h.responder)
	if !ok {
		return
	}
	in, _ := middleware.Valid[validation.EmployeePasswordInput](r)
	if err := h.admin.ResetEmployeePassword(r.Context(), id, in); err != nil {
		h.responder.Error(w, r, err)
		return
	}
	apierror.JSON(w, http.StatusOK, okResponse{OK: true})
}

// ListUsers handles GET /api/admin/users
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r, h.responder)
	if !ok {
		return
	}
	q, _ := middleware.Valid[validation.UserListQuery](r)
	page, err := h.admin.ListUsers(r.Context(), id, q)
	if err != nil {
		h.responder.Error(w, r, err)
		return
	}
	apierror.JSON(w, http.StatusOK, page)
}

// ListCustomers handles GET /api/staff/customers
func (h *AdminHandler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r, h.responder)
	if !ok {
		return
	}
	q, _ := middleware.Valid[validation.CustomerCursorQuery](r)
	page, err := h.admin.ListCustomers(r.Context(), id, q)
	if err != nil {
		h.responder.Error(w, r, err)
		return
	}
	apierror.JSON(w, http.StatusOK, page)
}
