// Package backup dumps one user's words and progress and restores them into another profile.
package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/example/wordbot/internal/database"
	"github.com/example/wordbot/pkg/models"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

// FormatVersion is written into every dump; Restore rejects other versions.
const FormatVersion = 1

// Dump is a self-contained copy of one user's learning data.
type Dump struct {
	Version    int                   `json:"version"`
	UserID     int64                 `json:"user_id"`
	ExportedAt time.Time             `json:"exported_at"`
	Groups     []models.Group        `json:"groups"`
	Words      []models.Word         `json:"words"`
	Progress   []models.UserProgress `json:"progress"`
}

// RecordError is one skipped record of a restore.
type RecordError struct {
	Section string `json:"section"`
	Index   int    `json:"index"`
	Err     error  `json:"-"`
}

func (e RecordError) Error() string {
	return fmt.Sprintf("%s[%d]: %v", e.Section, e.Index, e.Err)
}

func (e RecordError) Unwrap() error { return e.Err }

// ImportReport counts what Restore wrote and lists what it skipped.
type ImportReport struct {
	Groups   int
	Words    int
	Progress int
	Skipped  []RecordError
}

type Service struct {
	store *database.Store
	log   logrus.FieldLogger
	now   func() time.Time
}

// NewService constructs a backup service over the store.
func NewService(store *database.Store, log logrus.FieldLogger) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{store: store, log: log.WithField("component", "backup"), now: time.Now}
}

// Dump reads the user's groups, owned words and every progress row, shared words included.
func (s *Service) Dump(ctx context.Context, userID int64) (*Dump, error) {
	groups, err := s.store.Groups.GetByOwner(ctx, userID)
	if err != nil {
		return nil, err
	}
	words, err := s.store.Words.List(ctx, database.WordFilter{UserID: userID, OwnedOnly: true})
	if err != nil {
		return nil, err
	}
	progress, err := s.store.Progress.GetByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Dump{
		Version:    FormatVersion,
		UserID:     userID,
		ExportedAt: s.now().UTC(),
		Groups:     lo.Ternary(groups == nil, []models.Group{}, groups),
		Words:      lo.Ternary(words == nil, []models.Word{}, words),
		Progress:   lo.Ternary(progress == nil, []models.UserProgress{}, progress),
	}, nil
}

// Restore writes the dump into userID record by record. Invalid records are
// reported and skipped; a store failure stops the restore and returns what was done so far.
func (s *Service) Restore(ctx context.Context, userID int64, dump *Dump) (ImportReport, error) {
	var report ImportReport
	if dump == nil {
		return report, models.NewValidationError("dump", "is empty")
	}
	if dump.Version != FormatVersion {
		return report, models.NewValidationError("version", fmt.Sprintf("unsupported backup version %d", dump.Version))
	}
	if userID <= 0 {
		return report, models.NewValidationError("user_id", "must be positive")
	}

	now := s.now()
	if err := s.store.Users.Ensure(ctx, userID, "", now); err != nil {
		return report, err
	}

	skip := func(section string, i int, err error) bool {
		if !errors.Is(err, models.ErrValidation) && !errors.Is(err, models.ErrNotFound) {
			return false
		}
		report.Skipped = append(report.Skipped, RecordError{Section: section, Index: i, Err: err})
		return true
	}

	groupIDs := make(map[int64]int64, len(dump.Groups))
	for i, g := range dump.Groups {
		group, err := s.store.Groups.GetOrCreate(ctx, userID, g.Name, lo.Ternary(g.CreatedAt.IsZero(), now, g.CreatedAt))
		if err != nil {
			if skip("groups", i, err) {
				continue
			}
			return report, err
		}
		groupIDs[g.ID] = group.ID
		report.Groups++
	}

	existing, err := s.store.Words.List(ctx, database.WordFilter{UserID: userID, OwnedOnly: true})
	if err != nil {
		return report, err
	}
	byText := lo.KeyBy(existing, wordKey)

	wordIDs := make(map[int64]int64, len(dump.Words))
	for i, w := range dump.Words {
		oldID := w.ID
		w.ID = 0
		w.OwnerID = userID
		w.GroupID = remapGroup(w.GroupID, groupIDs)
		w.Normalize()
		if err := w.Validate(); err != nil {
			skip("words", i, err)
			continue
		}
		if found, ok := byText[wordKey(w)]; ok {
			wordIDs[oldID] = found.ID
			continue
		}
		if err := s.store.Words.Create(ctx, &w); err != nil {
			if skip("words", i, err) {
				continue
			}
			return report, err
		}
		byText[wordKey(w)] = w
		wordIDs[oldID] = w.ID
		report.Words++
	}

	for i, p := range dump.Progress {
		wordID, err := s.resolveWord(ctx, p.WordID, wordIDs)
		if err != nil {
			if skip("progress", i, err) {
				continue
			}
			return report, err
		}
		p.UserID = userID
		p.WordID = wordID
		if p.CreatedAt.IsZero() {
			p.CreatedAt = now
		}
		if p.UpdatedAt.IsZero() {
			p.UpdatedAt = now
		}
		if err := s.store.Progress.Upsert(ctx, &p); err != nil {
			if skip("progress", i, err) {
				continue
			}
			return report, err
		}
		report.Progress++
	}

	s.log.WithFields(logrus.Fields{
		"user_id":  userID,
		"groups":   report.Groups,
		"words":    report.Words,
		"progress": report.Progress,
		"skipped":  len(report.Skipped),
	}).Info("backup restored")
	return report, nil
}

// resolveWord maps a dumped word id to the restored one; ids not in the
// dump must name a shared word.
func (s *Service) resolveWord(ctx context.Context, oldID int64, wordIDs map[int64]int64) (int64, error) {
	if id, ok := wordIDs[oldID]; ok {
		return id, nil
	}
	w, err := s.store.Words.GetByID(ctx, oldID)
	if err != nil {
		return 0, err
	}
	if !w.IsShared() {
		return 0, fmt.Errorf("word %d is not shared: %w", oldID, models.ErrNotFound)
	}
	return w.ID, nil
}

func remapGroup(id *int64, groupIDs map[int64]int64) *int64 {
	if id == nil {
		return nil
	}
	if newID, ok := groupIDs[*id]; ok {
		return &newID
	}
	return nil
}

func wordKey(w models.Word) string {
	return strings.ToLower(w.Source) + "\x00" + strings.ToLower(w.Target)
}

// Encode writes the dump as indented JSON.
func Encode(w io.Writer, dump *Dump) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(dump); err != nil {
		return fmt.Errorf("encode backup: %w", err)
	}
	return nil
}

// Decode reads a dump written by Encode.
func Decode(r io.Reader) (*Dump, error) {
	var dump Dump
	if err := json.NewDecoder(r).Decode(&dump); err != nil {
		return nil, fmt.Errorf("%w: decode backup: %v", models.ErrValidation, err)
	}
	return &dump, nil
}
