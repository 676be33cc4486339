package excel

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/wordbot/internal/database"
	"github.com/example/wordbot/pkg/models"
)

// Spaced dashes are tried before bare ones so "well-known - taniqli" keeps its hyphen.
var separators = []string{" - ", " – ", " — ", ":", "–", "—", "-"}

// ParseWordLine splits "word - translation" or "word: translation"
func ParseWordLine(line string) (source, target string, err error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return "", "", models.NewValidationError("line", "empty line")
	}
	for _, sep := range separators {
		before, after, found := strings.Cut(line, sep)
		if !found {
			continue
		}
		source, target = strings.TrimSpace(before), strings.TrimSpace(after)
		if source == "" || target == "" {
			return "", "", models.NewValidationError("line", "empty word or translation")
		}
		return source, target, nil
	}
	return "", "", models.NewValidationError("line", "no separator found")
}

// AddWordsFromLines stores one owned word per parsable line and collects per-line errors.
// Blank lines are ignored.
func AddWordsFromLines(ctx context.Context, store *database.Store, userID int64, groupID *int64, lines []string) (int, []error) {
	var errs []error
	added := 0
	now := time.Now()
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		source, target, err := ParseWordLine(line)
		if err != nil {
			errs = append(errs, fmt.Errorf("line %d: %w", i+1, err))
			continue
		}
		w := models.Word{OwnerID: userID, GroupID: groupID, Source: source, Target: target, CreatedAt: now}
		if err := store.Words.Create(ctx, &w); err != nil {
			errs = append(errs, fmt.Errorf("line %d: %w", i+1, err))
			if !errors.Is(err, models.ErrValidation) {
				break
			}
			continue
		}
		added++
	}
	return added, errs
}
