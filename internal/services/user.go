package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/control-eventos/apiserver/internal/store"
	"github.com/control-eventos/apiserver/types"
	"golang.org/x/crypto/bcrypt"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	List(ctx context.Context, role types.Role) ([]types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Update(ctx context.Context, user types.User) (types.User, error)
	Delete(ctx context.Context, id int) error
}

// NewUser is the input for creating an account.
type NewUser struct {
	Email    string
	Password string
	Name     string
	Role     types.Role
}

// UserService encapsulates user use-cases.
type UserService struct {
	repo UserRepository
	cost int
}

func NewUserService(repo UserRepository) *UserService {
	return &UserService{repo: repo, cost: bcrypt.DefaultCost}
}

func (s *UserService) GetByID(ctx context.Context, id int) (types.User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *UserService) GetByEmail(ctx context.Context, email string) (types.User, error) {
	return s.repo.GetByEmail(ctx, types.NormalizeEmail(email))
}

func (s *UserService) List(ctx context.Context, role types.Role) ([]types.User, error) {
	if role != "" && !role.Valid() {
		return nil, ErrInvalidRole
	}
	return s.repo.List(ctx, role)
}

// Register creates a self-service account with the user role.
func (s *UserService) Register(ctx context.Context, input NewUser) (types.User, error) {
	input.Role = types.RoleUser
	return s.create(ctx, input)
}

// Authenticate checks a password login.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (types.User, error) {
	user, err := s.repo.GetByEmail(ctx, types.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, ErrInvalidCredentials
		}
		return types.User{}, err
	}
	if user.PasswordHash == "" {
		return types.User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return types.User{}, ErrInvalidCredentials
	}
	return user, nil
}

// CreateByAdmin creates an account on behalf of actor. Only a global
// admin may grant the global-admin role.
func (s *UserService) CreateByAdmin(ctx context.Context, actor types.User, input NewUser) (types.User, error) {
	if !actor.Role.IsAdmin() {
		return types.User{}, ErrForbidden
	}
	if input.Role == "" {
		input.Role = types.RoleUser
	}
	if !input.Role.Valid() {
		return types.User{}, ErrInvalidRole
	}
	if input.Role == types.RoleGlobalAdmin && actor.Role != types.RoleGlobalAdmin {
		return types.User{}, ErrForbidden
	}
	return s.create(ctx, input)
}

// Bootstrap creates a global admin without an acting user.
func (s *UserService) Bootstrap(ctx context.Context, input NewUser) (types.User, error) {
	input.Role = types.RoleGlobalAdmin
	return s.create(ctx, input)
}

// Delete removes targetID on behalf of actor.
func (s *UserService) Delete(ctx context.Context, actor types.User, targetID int) error {
	if !actor.Role.IsAdmin() {
		return ErrForbidden
	}
	if actor.ID == targetID {
		return fmt.Errorf("%w: cannot delete own account", ErrForbidden)
	}
	target, err := s.repo.GetByID(ctx, targetID)
	if err != nil {
		return err
	}
	if target.Role == types.RoleGlobalAdmin && actor.Role != types.RoleGlobalAdmin {
		return fmt.Errorf("%w: only global admins can delete global admins", ErrForbidden)
	}
	return s.repo.Delete(ctx, targetID)
}

// FindOrCreateExternal returns the account for an externally verified
// email, creating a user-role account on first sign-in.
func (s *UserService) FindOrCreateExternal(ctx context.Context, email, name, provider string) (types.User, error) {
	email = types.NormalizeEmail(email)
	if email == "" {
		return types.User{}, errors.New("external identity has no email")
	}
	user, err := s.repo.GetByEmail(ctx, email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return types.User{}, err
	}

	name = strings.TrimSpace(name)
	if name == "" {
		name = types.DefaultName(email)
	}
	user, err = s.repo.Create(ctx, types.User{
		Email:        email,
		Name:         name,
		Role:         types.RoleUser,
		AuthProvider: provider,
	})
	if errors.Is(err, store.ErrConflict) {
		return s.repo.GetByEmail(ctx, email)
	}
	return user, err
}

func (s *UserService) create(ctx context.Context, input NewUser) (types.User, error) {
	email := types.NormalizeEmail(input.Email)
	if email == "" || input.Password == "" {
		return types.User{}, errors.New("email and password are required")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(input.Password), s.cost)
	if err != nil {
		return types.User{}, fmt.Errorf("hash password: %w", err)
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		name = types.DefaultName(email)
	}
	return s.repo.Create(ctx, types.User{
		Email:        email,
		Name:         name,
		Role:         input.Role,
		PasswordHash: string(hashed),
		AuthProvider: types.AuthProviderPassword,
	})
}
