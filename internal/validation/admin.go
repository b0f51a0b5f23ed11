package validation

import (
	"time"

	"github.com/aryan0dhankhar/paymentsportal/internal/domain"
)

// CreateEmployeeInput is a validated admin-initiated employee account.
type CreateEmployeeInput struct {
	RegisterInput
	StaffID    string
	Department string
}

type createEmployeeBody struct {
	registerBody
	StaffID    *string `json:"staffId"`
	Department *string `json:"department"`
}

// CreateEmployee validates POST /api/admin/employees.
func CreateEmployee(in Input) (CreateEmployeeInput, error) {
	c := &checker{}
	var body createEmployeeBody
	if !c.decodeBody(in.Body, &body) {
		return CreateEmployeeInput{}, c.err()
	}
	out := CreateEmployeeInput{
		RegisterInput: RegisterInput{
			FirstName: c.field("body.firstName", body.FirstName).trim().required().match(PersonNameRe, "Invalid first name").value(),
			Surname:   c.field("body.surname", body.Surname).trim().required().match(PersonNameRe, "Invalid surname").value(),
			IDNumber:  c.field("body.idNumber", body.IDNumber).trim().required().match(IDNumberRe, "ID number must be 13 digits").value(),
			Username:  c.field("body.username", body.Username).trim().lower().required().match(UsernameRe, "Username must be 4-20 letters, digits or underscores").value(),
			Password:  c.password("body.password", body.Password),
		},
		StaffID:    c.field("body.staffId", body.StaffID).trim().upper().required().match(StaffIDRe, "Invalid staff id").value(),
		Department: c.field("body.department", body.Department).trim().optional().match(DepartmentRe, "Invalid department").value(),
	}
	return out, c.err()
}

// EmployeeActiveInput toggles an employee account.
type EmployeeActiveInput struct {
	ID     string
	Active bool
}

type employeeActiveBody struct {
	Active *bool `json:"active"`
}

// SetEmployeeActive validates PATCH /api/admin/employees/{id}/active.
func SetEmployeeActive(in Input) (EmployeeActiveInput, error) {
	c := &checker{}
	out := EmployeeActiveInput{
		ID: c.param("params.id", in.Params["id"]).trim().lower().required().match(UUIDRe, "Invalid id").value(),
	}
	var body employeeActiveBody
	if c.decodeBody(in.Body, &body) {
		if body.Active == nil {
			c.add("body.active", CodeInvalidType, "Required")
		} else {
			out.Active = *body.Active
		}
	}
	return out, c.err()
}

// EmployeePasswordInput is an admin password reset for an employee.
type EmployeePasswordInput struct {
	ID       string
	Password string
}

type employeePasswordBody struct {
	Password *string `json:"password"`
}

// ResetEmployeePassword validates PATCH /api/admin/employees/{id}/password.
func ResetEmployeePassword(in Input) (EmployeePasswordInput, error) {
	c := &checker{}
	out := EmployeePasswordInput{
		ID: c.param("params.id", in.Params["id"]).trim().lower().required().match(UUIDRe, "Invalid id").value(),
	}
	var body employeePasswordBody
	if c.decodeBody(in.Body, &body) {
		out.Password = c.password("body.password", body.Password)
	}
	return out, c.err()
}

// UserListQuery is a validated admin user listing request.
type UserListQuery struct {
	Role  domain.Role
	Page  int
	Limit int
}

// ListUsers validates GET /api/admin/users.
func ListUsers(in Input) (UserListQuery, error) {
	c := &checker{}
	out := UserListQuery{
		Role:  domain.Role(c.enumQuery(in.Query, "role", "", string(domain.RoleCustomer), string(domain.RoleEmployee), string(domain.RoleAdmin))),
		Page:  c.intQuery(in.Query, "page", 1, 1, MaxPage),
		Limit: c.intQuery(in.Query, "limit", 20, 1, 100),
	}
	return out, c.err()
}

// CustomerCursorQuery is a validated staff customer listing request.
type CustomerCursorQuery struct {
	Limit  int
	Cursor *time.Time
}

// ListCustomers validates GET /api/staff/customers.
func ListCustomers(in Input) (CustomerCursorQuery, error) {
	c := &checker{}
	out := CustomerCursorQuery{
		Limit:  c.intQuery(in.Query, "limit", 100, 1, 500),
		Cursor: c.cursorQuery(in.Query),
	}
	return out, c.err()
}
