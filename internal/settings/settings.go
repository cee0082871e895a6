// Package settings holds the fund lock flags that gate budget and category
// mutations.
package settings

import (
	"time"

	"github.com/frahmantamala/barangay-procurement/internal"
	fundDatamodel "github.com/frahmantamala/barangay-procurement/internal/core/datamodel/fund"
)

type Name string

const (
	Budget        Name = "budget"
	Categories    Name = "categories"
	Subcategories Name = "sub_categories"
)

// Names lists every lock in display order.
var Names = []Name{Budget, Categories, Subcategories}

func (n Name) Valid() bool {
	for _, known := range Names {
		if n == known {
			return true
		}
	}
	return false
}

type Action string

const (
	ActionLocked   Action = "locked"
	ActionUnlocked Action = "unlocked"
)

func ActionFor(locked bool) Action {
	if locked {
		return ActionLocked
	}
	return ActionUnlocked
}

type Setting struct {
	ID        int64     `json:"id"`
	Name      Name      `json:"name"`
	IsLocked  bool      `json:"is_locked"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Toggle sets the flag and reports the action taken, or false when the
// setting already had the requested value.
func (s *Setting) Toggle(locked bool) (Action, bool) {
	if s.IsLocked == locked {
		return "", false
	}
	s.IsLocked = locked
	return ActionFor(locked), true
}

type TimelineEntry struct {
	ID        int64     `json:"id"`
	SettingID int64     `json:"setting_id"`
	Setting   Name      `json:"setting"`
	Action    Action    `json:"action"`
	UserID    int64     `json:"user_id"`
	UserName  string    `json:"user_name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Snapshot is a read-only view of the lock flags taken at the start of a use
// case. A setting without a row is unlocked.
type Snapshot map[Name]bool

func NewSnapshot(settings []Setting) Snapshot {
	snap := make(Snapshot, len(settings))
	for _, s := range settings {
		snap[s.Name] = s.IsLocked
	}
	return snap
}

func (s Snapshot) IsLocked(name Name) bool {
	return s[name]
}

// Ensure fails with a SettingLocked error when name is locked.
func (s Snapshot) Ensure(name Name) error {
	if s.IsLocked(name) {
		return internal.NewSettingLockedError(string(name))
	}
	return nil
}

func FromDataModel(m *fundDatamodel.Setting) Setting {
	return Setting{ID: m.ID, Name: Name(m.Name), IsLocked: m.IsLocked, UpdatedAt: m.UpdatedAt}
}
