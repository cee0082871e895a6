package category

import (
	"context"
	"log/slog"
	"time"

	"github.com/frahmantamala/barangay-procurement/internal"
	"github.com/frahmantamala/barangay-procurement/internal/settings"
)

type RepositoryAPI interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error
	GetCategory(ctx context.Context, id int64) (*Category, error)
	GetSubcategory(ctx context.Context, id int64) (*Subcategory, error)
	ListCategories(ctx context.Context, f ListFilter) ([]Category, int64, error)
	ListSubcategories(ctx context.Context, f ListFilter) ([]Subcategory, int64, error)
	IsActiveCategory(ctx context.Context, id int64) (bool, error)
}

type TxRepository interface {
	GetCategory(ctx context.Context, id int64) (*Category, error)
	GetSubcategory(ctx context.Context, id int64) (*Subcategory, error)
	// NextPosition is max(position) + 1 within a group, or 1 for an empty group.
	NextPosition(ctx context.Context, group string) (int, error)
	PositionTaken(ctx context.Context, group string, position int, exceptID int64) (bool, error)
	CreateCategory(ctx context.Context, c *Category) error
	UpdateCategory(ctx context.Context, c *Category) error
	DeleteCategory(ctx context.Context, id int64) error
	CreateSubcategory(ctx context.Context, s *Subcategory) error
	UpdateSubcategory(ctx context.Context, s *Subcategory) error
	DeleteSubcategory(ctx context.Context, id int64) error
	CreateBudget(ctx context.Context, subcategoryID int64, year int) error
}

type Service struct {
	repo   RepositoryAPI
	locks  settings.LockSource
	logger *slog.Logger
	now    func() time.Time
}

func NewService(repo RepositoryAPI, locks settings.LockSource, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, locks: locks, logger: logger, now: time.Now}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// canManage gates registry mutations to the captain and administrators.
func canManage(actor internal.Actor) error {
	if !actor.HasRole(internal.RoleCaptain, internal.RoleAdmin) {
		return internal.ErrNotAuthorized
	}
	return nil
}

func (s *Service) ensureUnlocked(ctx context.Context, name settings.Name) error {
	if s.locks == nil {
		return nil
	}
	snap, err := s.locks.Snapshot(ctx)
	if err != nil {
		return err
	}
	return snap.Ensure(name)
}

// IsActiveCategory lets requests reject unknown or inactive categories.
func (s *Service) IsActiveCategory(ctx context.Context, id int64) (bool, error) {
	return s.repo.IsActiveCategory(ctx, id)
}

func (s *Service) ListCategories(ctx context.Context, dto ListFilterDTO) (*Page[Category], error) {
	f, appErr := dto.Filter()
	if appErr != nil {
		return nil, appErr
	}
	items, total, err := s.repo.ListCategories(ctx, f)
	if err != nil {
		s.logger.Error("failed to list categories", "error", err)
		return nil, err
	}
	return newPage(items, total, f), nil
}

func (s *Service) ListSubcategories(ctx context.Context, dto ListFilterDTO) (*Page[Subcategory], error) {
	f, appErr := dto.Filter()
	if appErr != nil {
		return nil, appErr
	}
	items, total, err := s.repo.ListSubcategories(ctx, f)
	if err != nil {
		s.logger.Error("failed to list subcategories", "error", err)
		return nil, err
	}
	return newPage(items, total, f), nil
}

func (s *Service) GetCategory(ctx context.Context, id int64) (*Category, error) {
	return s.repo.GetCategory(ctx, id)
}

func (s *Service) GetSubcategory(ctx context.Context, id int64) (*Subcategory, error) {
	return s.repo.GetSubcategory(ctx, id)
}

func (s *Service) placeAt(ctx context.Context, tx TxRepository, c *Category, requested *int) error {
	if requested == nil {
		if c.ID != 0 {
			return nil
		}
		next, err := tx.NextPosition(ctx, c.GroupName)
		if err != nil {
			return err
		}
		c.Position = next
		return nil
	}
	taken, err := tx.PositionTaken(ctx, c.GroupName, *requested, c.ID)
	if err != nil {
		return err
	}
	if taken {
		return internal.ErrDuplicatePosition
	}
	c.Position = *requested
	return nil
}

// CreateCategory appends the category to its group unless a free position
// is given.
func (s *Service) CreateCategory(ctx context.Context, actor internal.Actor, dto CategoryDTO) (*Category, error) {
	if err := canManage(actor); err != nil {
		return nil, err
	}
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	c := NewCategory(dto)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := s.placeAt(ctx, tx, c, dto.Position); err != nil {
			return err
		}
		return tx.CreateCategory(ctx, c)
	})
	if err != nil {
		s.logger.Warn("failed to create category", "error", err, "actor_id", actor.ID)
		return nil, err
	}
	s.logger.Info("category created", "category_id", c.ID, "group", c.GroupName, "position", c.Position, "actor_id", actor.ID)
	return c, nil
}

func (s *Service) UpdateCategory(ctx context.Context, actor internal.Actor, id int64, dto CategoryDTO) (*Category, error) {
	if err := canManage(actor); err != nil {
		return nil, err
	}
	if err := s.ensureUnlocked(ctx, settings.Categories); err != nil {
		return nil, err
	}
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	var c *Category
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		if c, err = tx.GetCategory(ctx, id); err != nil {
			return err
		}
		movedGroup := c.GroupName != dto.GroupName
		c.apply(dto)

		requested := dto.Position
		if requested == nil && movedGroup {
			c.ID, c.Position = 0, 0
			err = s.placeAt(ctx, tx, c, nil)
			c.ID = id
		} else {
			err = s.placeAt(ctx, tx, c, requested)
		}
		if err != nil {
			return err
		}
		return tx.UpdateCategory(ctx, c)
	})
	if err != nil {
		s.logger.Warn("failed to update category", "category_id", id, "error", err, "actor_id", actor.ID)
		return nil, err
	}
	s.logger.Info("category updated", "category_id", id, "actor_id", actor.ID)
	return c, nil
}

// DeleteCategory soft deletes; requests keep pointing at it.
func (s *Service) DeleteCategory(ctx context.Context, actor internal.Actor, id int64) error {
	if err := canManage(actor); err != nil {
		return err
	}
	if err := s.ensureUnlocked(ctx, settings.Categories); err != nil {
		return err
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetCategory(ctx, id); err != nil {
			return err
		}
		return tx.DeleteCategory(ctx, id)
	})
	if err != nil {
		s.logger.Warn("failed to delete category", "category_id", id, "error", err, "actor_id", actor.ID)
		return err
	}
	s.logger.Info("category deleted", "category_id", id, "actor_id", actor.ID)
	return nil
}

// CreateSubcategory also opens a zeroed budget for the current year.
func (s *Service) CreateSubcategory(ctx context.Context, actor internal.Actor, dto SubcategoryDTO) (*Subcategory, error) {
	if err := canManage(actor); err != nil {
		return nil, err
	}
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	sub := NewSubcategory(dto)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		parent, err := tx.GetCategory(ctx, dto.CategoryID)
		if err != nil {
			return err
		}
		sub.CategoryName = parent.Name
		if err := tx.CreateSubcategory(ctx, sub); err != nil {
			return err
		}
		return tx.CreateBudget(ctx, sub.ID, s.now().Year())
	})
	if err != nil {
		s.logger.Warn("failed to create subcategory", "error", err, "actor_id", actor.ID)
		return nil, err
	}
	s.logger.Info("subcategory created", "subcategory_id", sub.ID, "category_id", sub.CategoryID, "actor_id", actor.ID)
	return sub, nil
}

func (s *Service) UpdateSubcategory(ctx context.Context, actor internal.Actor, id int64, dto SubcategoryDTO) (*Subcategory, error) {
	if err := canManage(actor); err != nil {
		return nil, err
	}
	if err := s.ensureUnlocked(ctx, settings.Subcategories); err != nil {
		return nil, err
	}
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	var sub *Subcategory
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		if sub, err = tx.GetSubcategory(ctx, id); err != nil {
			return err
		}
		if sub.CategoryID != dto.CategoryID {
			parent, err := tx.GetCategory(ctx, dto.CategoryID)
			if err != nil {
				return err
			}
			sub.CategoryName = parent.Name
		}
		sub.apply(dto)
		return tx.UpdateSubcategory(ctx, sub)
	})
	if err != nil {
		s.logger.Warn("failed to update subcategory", "subcategory_id", id, "error", err, "actor_id", actor.ID)
		return nil, err
	}
	s.logger.Info("subcategory updated", "subcategory_id", id, "actor_id", actor.ID)
	return sub, nil
}

func (s *Service) DeleteSubcategory(ctx context.Context, actor internal.Actor, id int64) error {
	if err := canManage(actor); err != nil {
		return err
	}
	if err := s.ensureUnlocked(ctx, settings.Subcategories); err != nil {
		return err
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetSubcategory(ctx, id); err != nil {
			return err
		}
		return tx.DeleteSubcategory(ctx, id)
	})
	if err != nil {
		s.logger.Warn("failed to delete subcategory", "subcategory_id", id, "error", err, "actor_id", actor.ID)
		return err
	}
	s.logger.Info("subcategory deleted", "subcategory_id", id, "actor_id", actor.ID)
	return nil
}
