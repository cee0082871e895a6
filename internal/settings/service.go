package settings

import (
	"context"
	"log/slog"
	"time"

	"github.com/frahmantamala/barangay-procurement/internal"
	"github.com/frahmantamala/barangay-procurement/internal/core/events"
)

type RepositoryAPI interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error
	List(ctx context.Context) ([]Setting, error)
	ListTimeline(ctx context.Context, limit int) ([]TimelineEntry, error)
}

type TxRepository interface {
	// GetOrCreateForUpdate returns the locked row for name, inserting an
	// unlocked one when the setting was never seeded.
	GetOrCreateForUpdate(ctx context.Context, name Name) (*Setting, error)
	SetLocked(ctx context.Context, id int64, locked bool) error
	AppendTimeline(ctx context.Context, entry *TimelineEntry) error
}

// LockSource is what mutating use cases consult before they start.
type LockSource interface {
	Snapshot(ctx context.Context) (Snapshot, error)
}

const TimelineLimit = 50

type Service struct {
	repo      RepositoryAPI
	publisher events.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

func NewService(repo RepositoryAPI, publisher events.Publisher, logger *slog.Logger) *Service {
	if publisher == nil {
		publisher = events.Noop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, publisher: publisher, logger: logger, now: time.Now}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) Snapshot(ctx context.Context) (Snapshot, error) {
	list, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	return NewSnapshot(list), nil
}

// List returns every known lock, including the ones never written.
func (s *Service) List(ctx context.Context) ([]Setting, error) {
	stored, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	byName := make(map[Name]Setting, len(stored))
	for _, st := range stored {
		byName[st.Name] = st
	}
	out := make([]Setting, 0, len(Names))
	for _, n := range Names {
		st, ok := byName[n]
		if !ok {
			st = Setting{Name: n}
		}
		out = append(out, st)
	}
	return out, nil
}

func (s *Service) Timeline(ctx context.Context) ([]TimelineEntry, error) {
	return s.repo.ListTimeline(ctx, TimelineLimit)
}

type change struct {
	name   Name
	locked bool
}

// ToggleLock sets one lock. Repeating the same value writes nothing.
func (s *Service) ToggleLock(ctx context.Context, actor internal.Actor, name Name, dto ToggleLockDTO) (*Setting, error) {
	if !name.Valid() {
		return nil, internal.ErrSettingNotFound
	}
	if err := dto.Validate(); err != nil {
		return nil, err
	}
	saved, err := s.apply(ctx, actor, []change{{name: name, locked: *dto.IsLocked}})
	if err != nil {
		return nil, err
	}
	return &saved[0], nil
}

// SaveChanges applies several lock values in one transaction.
func (s *Service) SaveChanges(ctx context.Context, actor internal.Actor, dto SaveChangesDTO) ([]Setting, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}
	changes := make([]change, len(dto.Settings))
	for i, c := range dto.Settings {
		changes[i] = change{name: Name(c.Name), locked: *c.IsLocked}
	}
	if _, err := s.apply(ctx, actor, changes); err != nil {
		return nil, err
	}
	return s.List(ctx)
}

func (s *Service) apply(ctx context.Context, actor internal.Actor, changes []change) ([]Setting, error) {
	if !actor.HasRole(internal.RoleCaptain) {
		return nil, internal.ErrNotAuthorized
	}

	saved := make([]Setting, 0, len(changes))
	var toggled []TimelineEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		saved, toggled = saved[:0], toggled[:0]
		for _, c := range changes {
			st, err := tx.GetOrCreateForUpdate(ctx, c.name)
			if err != nil {
				return err
			}
			action, changed := st.Toggle(c.locked)
			if changed {
				if err := tx.SetLocked(ctx, st.ID, st.IsLocked); err != nil {
					return err
				}
				entry := TimelineEntry{SettingID: st.ID, Setting: st.Name, Action: action, UserID: actor.ID, CreatedAt: s.now()}
				if err := tx.AppendTimeline(ctx, &entry); err != nil {
					return err
				}
				toggled = append(toggled, entry)
			}
			saved = append(saved, *st)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("failed to save lock settings", "error", err, "actor_id", actor.ID)
		return nil, err
	}

	for _, e := range toggled {
		s.logger.Info("lock setting toggled", "setting", e.Setting, "action", e.Action, "actor_id", actor.ID)
		if err := s.publisher.Publish(ctx, events.NewSettingToggledEvent(string(e.Setting), e.Action == ActionLocked, actor.ID)); err != nil {
			s.logger.Warn("failed to publish setting event", "setting", e.Setting, "error", err)
		}
	}
	return saved, nil
}
