package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/jmylchreest/vocalis-api/internal/models"
	"github.com/jmylchreest/vocalis-api/internal/repository"
)

// Account errors.
var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidSignup      = errors.New("invalid signup request")
	ErrUserNotFound       = errors.New("user not found")
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 8

// CustomerCreator creates billing customers.
type CustomerCreator interface {
	CreateCustomer(ctx context.Context, name, email string) (string, error)
}

// SignupInput is the data collected at registration.
type SignupInput struct {
	FirstName string
	LastName  string
	FullName  string
	Email     string
	Password  string
}

func (in *SignupInput) normalize() error {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.FullName = strings.TrimSpace(in.FullName)
	if in.FullName == "" {
		in.FullName = strings.TrimSpace(in.FirstName + " " + in.LastName)
	}

	if _, err := mail.ParseAddress(in.Email); err != nil {
		return fmt.Errorf("%w: invalid email address", ErrInvalidSignup)
	}
	if in.FullName == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidSignup)
	}
	if len(in.Password) < MinPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrInvalidSignup, MinPasswordLength)
	}
	return nil
}

// AccountService handles signup, login and user lookup.
type AccountService struct {
	users      repository.UserRepository
	customers  CustomerCreator
	bcryptCost int
	logger     *slog.Logger
}

// NewAccountService creates a new account service.
func NewAccountService(users repository.UserRepository, customers CustomerCreator, logger *slog.Logger) *AccountService {
	return &AccountService{
		users:      users,
		customers:  customers,
		bcryptCost: bcrypt.DefaultCost,
		logger:     logger.With("component", "accounts"),
	}
}

// Signup creates the billing customer and the local user record.
// The password is stored only as a bcrypt hash.
func (s *AccountService) Signup(ctx context.Context, in SignupInput) (*models.User, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}

	if _, err := s.users.GetByEmail(ctx, in.Email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	customerID, err := s.customers.CreateCustomer(ctx, in.FullName, in.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to create billing customer: %w", err)
	}

	user := &models.User{
		CustomerID:   customerID,
		Email:        in.Email,
		FirstName:    in.FirstName,
		FullName:     in.FullName,
		PasswordHash: string(hash),
	}
	if err := s.users.Upsert(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to store user: %w", err)
	}

	s.logger.Info("account created", "customer_id", customerID)
	return user, nil
}

// Login verifies credentials and returns the user.
func (s *AccountService) Login(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if user.PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// GetUser returns the user for a billing customer ID.
func (s *AccountService) GetUser(ctx context.Context, customerID string) (*models.User, error) {
	user, err := s.users.GetByCustomerID(ctx, customerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}
