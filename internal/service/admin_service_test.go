package service

import (
	"context"
	"errors"
	"testing"

	"github.com/aryan0dhankhar/paymentsportal/internal/domain"
	"github.com/aryan0dhankhar/paymentsportal/internal/validation"
)

func TestCreateEmployee(t *testing.T) {
	f := newFixture(t)
	emp := f.employee(t, "eve_staff", "2222222222222", "EMP-001")
	if emp.Role != domain.RoleEmployee || emp.Employee == nil || !emp.Employee.Active {
		t.Fatalf("unexpected employee %+v", emp)
	}
	if emp.Employee.StaffID != "EMP-001" || emp.Employee.Department != "Payments" {
		t.Fatalf("employee record %+v", emp.Employee)
	}

	_, err := f.admin.CreateEmployee(context.Background(), adminIdentity, validation.CreateEmployeeInput{
		RegisterInput: validation.RegisterInput{
			FirstName: "Sam", Surname: "Clerk", IDNumber: "3333333333333", Username: "sam_staff", Password: strongPassword,
		},
		StaffID: "EMP-001",
	})
	var conflict *domain.ConflictError
	if !errors.As(err, &conflict) || conflict.Field != "staffId" {
		t.Fatalf("expected staffId conflict, got %v", err)
	}

	employees, err := f.admin.ListEmployees(context.Background(), adminIdentity)
	if err != nil || len(employees) != 1 {
		t.Fatalf("list employees: %d, %v", len(employees), err)
	}
}

func TestAdminOperationsRequireAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, actor := range []domain.Identity{clerk, customerA} {
		if _, err := f.admin.ListEmployees(ctx, actor); !errors.Is(err, domain.ErrForbidden) {
			t.Errorf("%s list employees: %v", actor.Role, err)
		}
		if _, err := f.admin.ListUsers(ctx, actor, validation.UserListQuery{Page: 1, Limit: 10}); !errors.Is(err, domain.ErrForbidden) {
			t.Errorf("%s list users: %v", actor.Role, err)
		}
	}
	if _, err := f.admin.ListCustomers(ctx, customerA, validation.CustomerCursorQuery{Limit: 10}); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("customer list customers: %v", err)
	}
	if _, err := f.admin.ListCustomers(ctx, clerk, validation.CustomerCursorQuery{Limit: 10}); err != nil {
		t.Errorf("employee list customers: %v", err)
	}
}

func TestEmployeeUpdatesIgnoreCustomers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	customer := f.register(t, "alice", "1234567890123").User

	if _, err := f.admin.SetEmployeeActive(ctx, adminIdentity, validation.EmployeeActiveInput{ID: customer.ID}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("toggle customer: %v", err)
	}
	err := f.admin.ResetEmployeePassword(ctx, adminIdentity, validation.EmployeePasswordInput{ID: customer.ID, Password: "N3w!Password99"})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("reset customer password: %v", err)
	}
}

func TestResetEmployeePassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	emp := f.employee(t, "eve_staff", "2222222222222", "EMP-001")
	const fresh = "N3w!Password99"

	if err := f.admin.ResetEmployeePassword(ctx, adminIdentity, validation.EmployeePasswordInput{ID: emp.ID, Password: fresh}); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if _, err := f.auth.Login(ctx, validation.LoginInput{Username: "eve_staff", Password: fresh}); err != nil {
		t.Fatalf("login with reset password: %v", err)
	}
}

func TestToggleEmployeeActive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	emp := f.employee(t, "eve_staff", "2222222222222", "EMP-001")

	off, err := f.admin.SetEmployeeActive(ctx, adminIdentity, validation.EmployeeActiveInput{ID: emp.ID, Active: false})
	if err != nil || off.Employee.Active {
		t.Fatalf("disable: %+v, %v", off, err)
	}
	on, err := f.admin.SetEmployeeActive(ctx, adminIdentity, validation.EmployeeActiveInput{ID: emp.ID, Active: true})
	if err != nil || !on.Employee.Active {
		t.Fatalf("enable: %+v, %v", on, err)
	}
	info, err := f.store.Users().GetAuthInfo(ctx, emp.ID)
	if err != nil || !info.Active {
		t.Fatalf("auth info %+v, %v", info, err)
	}
}

func TestSeedAdminIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, created, err := f.admin.SeedAdmin(ctx, "Site", "Admin", strongPassword)
	if err != nil || !created {
		t.Fatalf("first seed: created=%v err=%v", created, err)
	}
	if first.Role != domain.RoleAdmin || first.Username != SeedAdminUsername {
		t.Fatalf("seeded %+v", first)
	}
	second, created, err := f.admin.SeedAdmin(ctx, "Other", "Name", "Diff3rent!Pass")
	if err != nil || created || second.ID != first.ID {
		t.Fatalf("second seed: created=%v id=%s err=%v", created, second.ID, err)
	}
	if _, err := f.auth.Login(ctx, validation.LoginInput{Username: SeedAdminUsername, Password: strongPassword}); err != nil {
		t.Fatalf("admin login: %v", err)
	}
}

func TestListUsersAndCustomers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "alice", "1234567890123")
	f.register(t, "bob_1", "1234567890124")
	f.employee(t, "eve_staff", "2222222222222", "EMP-001")

	page, err := f.admin.ListUsers(ctx, adminIdentity, validation.UserListQuery{Role: domain.RoleCustomer, Page: 1, Limit: 10})
	if err != nil || page.Total != 2 {
		t.Fatalf("list customers by role: %+v, %v", page, err)
	}

	customers, err := f.admin.ListCustomers(ctx, adminIdentity, validation.CustomerCursorQuery{Limit: 1})
	if err != nil {
		t.Fatalf("list customers: %v", err)
	}
	if len(customers.Items) != 1 || customers.Items[0].Username != "bob_1" || customers.NextCursor == nil {
		t.Fatalf("customers page %+v", customers)
	}
}
