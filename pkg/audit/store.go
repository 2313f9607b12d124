package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/netops-labs/enms-in-go/pkg/model"
)

// ChangelogTimeFormat is the layout of the changelog time column.
const ChangelogTimeFormat = "2006-01-02 15:04:05.000000"

// Store persists audit events as changelog rows. It writes outside any
// request transaction so failed requests still leave a trace.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

// NewStore creates a changelog sink on db.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Save writes event as a changelog entry.
func (s *Store) Save(ctx context.Context, event Event) error {
	if s == nil || s.db == nil {
		return nil
	}
	entry := Changelog(event, s.now())
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("failed to save audit event %s: %w", event.MessageID(), err)
	}
	return nil
}

// Changelog converts event into a changelog row stamped with now.
func Changelog(event Event, now time.Time) *model.Changelog {
	entry := &model.Changelog{
		Time:     now.UTC().Format(ChangelogTimeFormat),
		Severity: event.Severity().Name(),
		Content:  event.Message(),
	}
	entry.Name = uuid.NewString()
	entry.Type = "changelog"
	if actor, ok := event.(Actor); ok {
		entry.User = actor.Actor()
	}
	return entry
}
