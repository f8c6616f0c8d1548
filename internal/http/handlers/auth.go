package handlers

import (
	"context"
	"log/slog"
	"time"

	"github.com/jmylchreest/vocalis-api/internal/models"
	"github.com/jmylchreest/vocalis-api/internal/service"
)

// AccountService is the account operations used by AuthHandler.
type AccountService interface {
	Signup(ctx context.Context, in service.SignupInput) (*models.User, error)
	Login(ctx context.Context, email, password string) (*models.User, error)
	GetUser(ctx context.Context, customerID string) (*models.User, error)
}

// AuthHandler handles signup, login and user lookup.
type AuthHandler struct {
	accounts AccountService
	logger   *slog.Logger
}

// NewAuthHandler creates an auth handler.
func NewAuthHandler(accounts AccountService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{accounts: accounts, logger: logger.With("component", "auth_handler")}
}

// UserResponse is the public view of a user.
type UserResponse struct {
	CustomerID     string     `json:"customer_id" doc:"Billing customer ID"`
	Email          string     `json:"email"`
	FirstName      string     `json:"first_name"`
	FullName       string     `json:"full_name"`
	CreatedAt      time.Time  `json:"created_at"`
	PlanID         string     `json:"plan_id,omitempty"`
	ContractID     string     `json:"contract_id,omitempty"`
	PlanSelectedAt *time.Time `json:"plan_selected_at,omitempty"`
}

func toUserResponse(u *models.User) UserResponse {
	return UserResponse{
		CustomerID:     u.CustomerID,
		Email:          u.Email,
		FirstName:      u.FirstName,
		FullName:       u.FullName,
		CreatedAt:      u.CreatedAt,
		PlanID:         u.PlanID,
		ContractID:     u.ContractID,
		PlanSelectedAt: u.PlanSelectedAt,
	}
}

// SignupInput represents the signup request.
type SignupInput struct {
	Body struct {
		FirstName string `json:"first_name" maxLength:"100"`
		LastName  string `json:"last_name" required:"false" maxLength:"100"`
		FullName  string `json:"full_name" required:"false" maxLength:"200"`
		Email     string `json:"email" format:"email" maxLength:"254"`
		Password  string `json:"password" minLength:"8" maxLength:"128"`
	}
}

// SignupOutput represents the signup response.
type SignupOutput struct {
	Body struct {
		Success    bool         `json:"success"`
		CustomerID string       `json:"customer_id"`
		Message    string       `json:"message"`
		User       UserResponse `json:"user"`
	}
}

// Signup creates the billing customer and the local user.
func (h *AuthHandler) Signup(ctx context.Context, input *SignupInput) (*SignupOutput, error) {
	user, err := h.accounts.Signup(ctx, service.SignupInput{
		FirstName: input.Body.FirstName,
		LastName:  input.Body.LastName,
		FullName:  input.Body.FullName,
		Email:     input.Body.Email,
		Password:  input.Body.Password,
	})
	if err != nil {
		return nil, mapError(h.logger, "signup", err)
	}

	out := &SignupOutput{}
	out.Body.Success = true
	out.Body.CustomerID = user.CustomerID
	out.Body.Message = "Account created successfully"
	out.Body.User = toUserResponse(user)
	return out, nil
}

// LoginInput represents the login request.
type LoginInput struct {
	Body struct {
		Email    string `json:"email" maxLength:"254"`
		Password string `json:"password" maxLength:"128"`
	}
}

// LoginOutput represents the login response.
type LoginOutput struct {
	Body struct {
		CustomerID string       `json:"customer_id"`
		User       UserResponse `json:"user"`
	}
}

// Login checks credentials and returns the user.
func (h *AuthHandler) Login(ctx context.Context, input *LoginInput) (*LoginOutput, error) {
	user, err := h.accounts.Login(ctx, input.Body.Email, input.Body.Password)
	if err != nil {
		return nil, mapError(h.logger, "login", err)
	}
	out := &LoginOutput{}
	out.Body.CustomerID = user.CustomerID
	out.Body.User = toUserResponse(user)
	return out, nil
}

// GetUserInput identifies a user by customer ID.
type GetUserInput struct {
	CustomerID string `path:"customer_id" doc:"Billing customer ID"`
}

// GetUserOutput represents a user lookup.
type GetUserOutput struct {
	Body UserResponse
}

// GetUser returns the local user for a customer.
func (h *AuthHandler) GetUser(ctx context.Context, input *GetUserInput) (*GetUserOutput, error) {
	user, err := h.accounts.GetUser(ctx, input.CustomerID)
	if err != nil {
		return nil, mapError(h.logger, "get_user", err)
	}
	return &GetUserOutput{Body: toUserResponse(user)}, nil
}
