package user

import (
	"context"
	"log/slog"

	"github.com/frahmantamala/barangay-procurement/internal"
	"golang.org/x/crypto/bcrypt"
)

type RepositoryAPI interface {
	List(ctx context.Context) ([]User, error)
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	EmailTaken(ctx context.Context, email string, exceptID int64) (bool, error)
	CountByRole(ctx context.Context, role internal.Role) (int64, error)
	FirstByRole(ctx context.Context, role internal.Role) (*User, error)
	Create(ctx context.Context, u *User) error
	Update(ctx context.Context, u *User) error
	Delete(ctx context.Context, id int64) error
}

type Service struct {
	repo       RepositoryAPI
	logger     *slog.Logger
	bcryptCost int
}

func NewService(repo RepositoryAPI, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger, bcryptCost: bcrypt.DefaultCost}
}

// WithBcryptCost overrides the hashing cost, mostly for tests.
func (s *Service) WithBcryptCost(cost int) *Service {
	s.bcryptCost = cost
	return s
}

func (s *Service) hash(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

func requireAdmin(actor internal.Actor) error {
	if !actor.HasRole(internal.RoleAdmin) {
		return internal.ErrNotAuthorized
	}
	return nil
}

func (s *Service) GetByID(ctx context.Context, id int64) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

// FirstNameByRole returns the first name of the earliest user holding role,
// or an empty string when nobody does.
func (s *Service) FirstNameByRole(ctx context.Context, role internal.Role) (string, error) {
	u, err := s.repo.FirstByRole(ctx, role)
	if err != nil || u == nil {
		return "", err
	}
	return u.FirstName(), nil
}

func (s *Service) List(ctx context.Context, actor internal.Actor) ([]User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.repo.List(ctx)
}

func (s *Service) Create(ctx context.Context, actor internal.Actor, dto CreateUserDTO) (*User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	email := normalizeEmail(dto.Email)
	taken, err := s.repo.EmailTaken(ctx, email, 0)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, internal.ErrDuplicateEmail
	}

	hash, err := s.hash(dto.Password)
	if err != nil {
		return nil, err
	}
	u := &User{
		Email:        email,
		Name:         dto.Name,
		PasswordHash: hash,
		Role:         internal.Role(dto.Role),
		Status:       dto.Status,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		s.logger.Error("failed to create user", "email", email, "error", err)
		return nil, err
	}
	s.logger.Info("user created", "user_id", u.ID, "role", u.Role, "actor_id", actor.ID)
	return u, nil
}

// Update refuses to demote the only admin and to change the actor's own status.
func (s *Service) Update(ctx context.Context, actor internal.Actor, id int64, dto UpdateUserDTO) (*User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	role := internal.Role(dto.Role)
	if u.IsAdmin() && role != internal.RoleAdmin {
		admins, err := s.repo.CountByRole(ctx, internal.RoleAdmin)
		if err != nil {
			return nil, err
		}
		if admins <= 1 {
			return nil, internal.ErrLastAdminProtection
		}
	}
	if u.ID == actor.ID && (dto.Status != u.Status || dto.Password != "") {
		return nil, internal.ErrSelfModificationDenied
	}

	email := normalizeEmail(dto.Email)
	taken, err := s.repo.EmailTaken(ctx, email, u.ID)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, internal.ErrDuplicateEmail
	}

	u.Name, u.Email, u.Role, u.Status = dto.Name, email, role, dto.Status
	if dto.Password != "" {
		if u.PasswordHash, err = s.hash(dto.Password); err != nil {
			return nil, err
		}
	}
	if err := s.repo.Update(ctx, u); err != nil {
		s.logger.Error("failed to update user", "user_id", id, "error", err)
		return nil, err
	}
	s.logger.Info("user updated", "user_id", id, "role", u.Role, "status", u.Status, "actor_id", actor.ID)
	return u, nil
}

// Delete never removes admins or the actor.
func (s *Service) Delete(ctx context.Context, actor internal.Actor, id int64) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if u.IsAdmin() {
		return internal.ErrAdminDeletionDenied
	}
	if u.ID == actor.ID {
		return internal.ErrSelfModificationDenied
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		s.logger.Error("failed to delete user", "user_id", id, "error", err)
		return err
	}
	s.logger.Info("user deleted", "user_id", id, "actor_id", actor.ID)
	return nil
}

// UpdatePassword resets another user's password. Admins change their own
// password elsewhere.
func (s *Service) UpdatePassword(ctx context.Context, actor internal.Actor, id int64, dto UpdatePasswordDTO) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if err := dto.Validate(); err != nil {
		return err
	}
	if id == actor.ID {
		return internal.ErrSelfModificationDenied
	}
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if u.PasswordHash, err = s.hash(dto.Password); err != nil {
		return err
	}
	if err := s.repo.Update(ctx, u); err != nil {
		return err
	}
	s.logger.Info("user password reset", "user_id", id, "actor_id", actor.ID)
	return nil
}
