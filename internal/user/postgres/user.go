package postgres

import (
	"context"
	"errors"

	"github.com/frahmantamala/barangay-procurement/internal"
	userDatamodel "github.com/frahmantamala/barangay-procurement/internal/core/datamodel/user"
	"github.com/frahmantamala/barangay-procurement/internal/user"
	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) List(ctx context.Context) ([]user.User, error) {
	var models []userDatamodel.User
	if err := r.db.WithContext(ctx).Order("created_at DESC").Order("id DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]user.User, len(models))
	for i := range models {
		out[i] = *user.FromDataModel(&models[i])
	}
	return out, nil
}

func (r *UserRepository) first(q *gorm.DB) (*user.User, error) {
	var model userDatamodel.User
	if err := q.First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrUserNotFound
		}
		return nil, err
	}
	return user.FromDataModel(&model), nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*user.User, error) {
	return r.first(r.db.WithContext(ctx).Where("id = ?", id))
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	return r.first(r.db.WithContext(ctx).Where("LOWER(email) = LOWER(?)", email))
}

func (r *UserRepository) EmailTaken(ctx context.Context, email string, exceptID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&userDatamodel.User{}).
		Where("LOWER(email) = LOWER(?) AND id <> ?", email, exceptID).
		Count(&count).Error
	return count > 0, err
}

func (r *UserRepository) CountByRole(ctx context.Context, role internal.Role) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&userDatamodel.User{}).Where("role = ?", string(role)).Count(&count).Error
	return count, err
}

// FirstByRole returns nil without an error when no user holds role.
func (r *UserRepository) FirstByRole(ctx context.Context, role internal.Role) (*user.User, error) {
	u, err := r.first(r.db.WithContext(ctx).Where("role = ?", string(role)).Order("id ASC"))
	if errors.Is(err, internal.ErrUserNotFound) {
		return nil, nil
	}
	return u, err
}

func (r *UserRepository) Create(ctx context.Context, u *user.User) error {
	model := user.ToDataModel(u)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	u.ID, u.CreatedAt, u.UpdatedAt = model.ID, model.CreatedAt, model.UpdatedAt
	return nil
}

func (r *UserRepository) Update(ctx context.Context, u *user.User) error {
	res := r.db.WithContext(ctx).Model(&userDatamodel.User{}).Where("id = ?", u.ID).Updates(map[string]interface{}{
		"email":         u.Email,
		"name":          u.Name,
		"password_hash": u.PasswordHash,
		"role":          string(u.Role),
		"status":        u.Status,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return internal.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).Delete(&userDatamodel.User{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return internal.ErrUserNotFound
	}
	return nil
}
