package service

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/jmylchreest/vocalis-api/internal/metronome"
	"github.com/jmylchreest/vocalis-api/internal/models"
)

func newTestAccountService(users *mockUserRepo, customers *mockCustomers) *AccountService {
	svc := NewAccountService(users, customers, testLogger())
	svc.bcryptCost = bcrypt.MinCost
	return svc
}

func validSignup() SignupInput {
	return SignupInput{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     " Ada@Example.com ",
		Password:  "correct-horse",
	}
}

// ========================================
// Signup Tests
// ========================================

func TestAccountService_Signup(t *testing.T) {
	users := newMockUserRepo()
	customers := &mockCustomers{id: "cus_1"}
	svc := newTestAccountService(users, customers)

	user, err := svc.Signup(context.Background(), validSignup())
	if err != nil {
		t.Fatalf("Signup() error = %v", err)
	}
	if user.CustomerID != "cus_1" || user.Email != "ada@example.com" || user.FullName != "Ada Lovelace" {
		t.Errorf("user = %+v", user)
	}
	if len(customers.created) != 1 || customers.created[0] != "Ada Lovelace|ada@example.com" {
		t.Errorf("created customers = %v", customers.created)
	}

	stored, _ := users.GetByCustomerID(context.Background(), "cus_1")
	if stored.PasswordHash == "" || stored.PasswordHash == "correct-horse" {
		t.Error("password must be stored hashed")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("correct-horse")); err != nil {
		t.Errorf("stored hash does not match password: %v", err)
	}
}

func TestAccountService_SignupValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*SignupInput)
	}{
		{"bad email", func(in *SignupInput) { in.Email = "not-an-email" }},
		{"short password", func(in *SignupInput) { in.Password = "short" }},
		{"no name", func(in *SignupInput) { in.FirstName, in.LastName, in.FullName = "", "", "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			customers := &mockCustomers{id: "cus_1"}
			svc := newTestAccountService(newMockUserRepo(), customers)
			in := validSignup()
			tt.mutate(&in)

			_, err := svc.Signup(context.Background(), in)
			if !errors.Is(err, ErrInvalidSignup) {
				t.Errorf("error = %v, want ErrInvalidSignup", err)
			}
			if len(customers.created) != 0 {
				t.Error("no customer should be created for invalid input")
			}
		})
	}
}

func TestAccountService_SignupDuplicateEmail(t *testing.T) {
	users := newMockUserRepo(&models.User{CustomerID: "cus_0", Email: "ada@example.com"})
	customers := &mockCustomers{id: "cus_1"}
	svc := newTestAccountService(users, customers)

	_, err := svc.Signup(context.Background(), validSignup())
	if !errors.Is(err, ErrEmailTaken) {
		t.Errorf("error = %v, want ErrEmailTaken", err)
	}
	if len(customers.created) != 0 {
		t.Error("duplicate signup must not create a billing customer")
	}
}

func TestAccountService_SignupProviderFailure(t *testing.T) {
	customers := &mockCustomers{err: metronome.ErrProviderUnavailable}
	users := newMockUserRepo()
	svc := newTestAccountService(users, customers)

	_, err := svc.Signup(context.Background(), validSignup())
	if !errors.Is(err, metronome.ErrProviderUnavailable) {
		t.Errorf("error = %v, want ErrProviderUnavailable", err)
	}
	if n, _ := users.Count(context.Background()); n != 0 {
		t.Error("user must not be stored when the customer was not created")
	}
}

// ========================================
// Login Tests
// ========================================

func TestAccountService_Login(t *testing.T) {
	users := newMockUserRepo()
	svc := newTestAccountService(users, &mockCustomers{id: "cus_1"})
	if _, err := svc.Signup(context.Background(), validSignup()); err != nil {
		t.Fatalf("Signup() error = %v", err)
	}

	tests := []struct {
		name     string
		email    string
		password string
		wantErr  error
	}{
		{"valid", "ADA@example.com", "correct-horse", nil},
		{"wrong password", "ada@example.com", "wrong-horse", ErrInvalidCredentials},
		{"unknown email", "bob@example.com", "correct-horse", ErrInvalidCredentials},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, err := svc.Login(context.Background(), tt.email, tt.password)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr == nil && user.CustomerID != "cus_1" {
				t.Errorf("CustomerID = %q", user.CustomerID)
			}
		})
	}
}

func TestAccountService_GetUser(t *testing.T) {
	svc := newTestAccountService(newMockUserRepo(&models.User{CustomerID: "cus_1", Email: "a@example.com"}), &mockCustomers{})

	if u, err := svc.GetUser(context.Background(), "cus_1"); err != nil || u.Email != "a@example.com" {
		t.Errorf("GetUser() = %+v, %v", u, err)
	}
	if _, err := svc.GetUser(context.Background(), "cus_x"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("error = %v, want ErrUserNotFound", err)
	}
}
