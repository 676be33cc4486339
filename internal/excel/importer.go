package excel

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/example/wordbot/internal/database"
	"github.com/example/wordbot/pkg/models"
	"github.com/xuri/excelize/v2"
)

// Supported input formats
const (
	FormatXLSX = "xlsx"
	FormatCSV  = "csv"
)

// ImportConfig defines the import configuration
type ImportConfig struct {
	FilePath       string    // Path to the Excel or CSV file
	Reader         io.Reader // Used instead of FilePath when set
	Format         string    // xlsx or csv; taken from the file extension when empty
	SourceColumn   string    // Column with the word
	TargetColumn   string    // Column with the translation
	ExampleColumn  string    // Column with an example sentence
	GroupColumn    string    // Column with the group name
	VariantsColumn string    // Column with extra accepted translations
	SheetName      string    // Sheet to import; the first sheet when empty
	SkipHeader     bool      // Skip the header row
	DefaultGroup   string    // Group for rows that name none
}

// DefaultImportConfig returns the default import configuration
func DefaultImportConfig() ImportConfig {
	return ImportConfig{
		SourceColumn:   "A",
		TargetColumn:   "B",
		ExampleColumn:  "C",
		GroupColumn:    "D",
		VariantsColumn: "E",
		SkipHeader:     true,
	}
}

// RowError is a rejected input row, 1-based
type RowError struct {
	Row int
	Err error
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Row, e.Err)
}

func (e RowError) Unwrap() error { return e.Err }

// ImportResult holds the result of an import operation
type ImportResult struct {
	TotalProcessed int
	GroupsCreated  int
	Created        int
	Updated        int
	Errors         []RowError
}

// ImportWords imports words from an Excel or CSV file into the user's own list
func ImportWords(ctx context.Context, store *database.Store, userID int64, config ImportConfig) (*ImportResult, error) {
	rows, err := readRows(config)
	if err != nil {
		return nil, err
	}

	existing, err := store.Words.List(ctx, database.WordFilter{UserID: userID, OwnedOnly: true})
	if err != nil {
		return nil, err
	}
	imp := &importer{
		store:  store,
		userID: userID,
		config: config,
		words:  make(map[string]models.Word, len(existing)),
		groups: make(map[string]int64),
		result: &ImportResult{},
		now:    time.Now(),
	}
	for _, w := range existing {
		imp.words[strings.ToLower(w.Source)] = w
	}

	currentGroup := config.DefaultGroup
	for i, row := range rows {
		if i == 0 && config.SkipHeader {
			continue
		}
		if isBlank(row) {
			continue
		}
		// A row holding only a name opens a group for the rows below it
		if name, ok := imp.groupHeader(row); ok {
			currentGroup = name
			continue
		}

		imp.result.TotalProcessed++
		if err := imp.processRow(ctx, row, currentGroup); err != nil {
			if !errors.Is(err, models.ErrValidation) && !errors.Is(err, models.ErrNotFound) {
				return imp.result, err
			}
			imp.result.Errors = append(imp.result.Errors, RowError{Row: i + 1, Err: err})
		}
	}
	return imp.result, nil
}

func readRows(config ImportConfig) ([][]string, error) {
	format := strings.ToLower(config.Format)
	if format == "" {
		format = strings.TrimPrefix(strings.ToLower(filepath.Ext(config.FilePath)), ".")
	}

	r := config.Reader
	if r == nil {
		file, err := os.Open(config.FilePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", config.FilePath, err)
		}
		defer file.Close()
		r = file
	}

	if format == FormatCSV {
		return readCSV(r)
	}
	return readExcel(r, config.SheetName)
}

// readExcel returns all rows of the sheet
func readExcel(r io.Reader, sheet string) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open Excel file: %v", models.ErrValidation, err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, models.NewValidationError("sheet", "workbook has no sheets")
		}
		sheet = sheets[0]
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get rows: %v", models.ErrValidation, err)
	}
	return rows, nil
}

func readCSV(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // Allow variable number of fields
	reader.LazyQuotes = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: error reading CSV: %v", models.ErrValidation, err)
	}
	return rows, nil
}

type importer struct {
	store  *database.Store
	userID int64
	config ImportConfig
	words  map[string]models.Word
	groups map[string]int64
	result *ImportResult
	now    time.Time
}

func (imp *importer) cell(row []string, column string) string {
	if column == "" {
		return ""
	}
	if idx := columnToIndex(column); idx >= 0 && idx < len(row) {
		return strings.TrimSpace(row[idx])
	}
	return ""
}

func (imp *importer) groupHeader(row []string) (string, bool) {
	c := imp.config
	name := imp.cell(row, c.SourceColumn)
	if name == "" {
		return "", false
	}
	for _, col := range []string{c.TargetColumn, c.ExampleColumn, c.GroupColumn, c.VariantsColumn} {
		if imp.cell(row, col) != "" {
			return "", false
		}
	}
	return strings.Trim(name, `"`), true
}

// processRow creates the word or updates the owned word with the same source
func (imp *importer) processRow(ctx context.Context, row []string, currentGroup string) error {
	c := imp.config
	word := models.Word{
		OwnerID:   imp.userID,
		Source:    cleanWord(imp.cell(row, c.SourceColumn)),
		Target:    imp.cell(row, c.TargetColumn),
		Example:   imp.cell(row, c.ExampleColumn),
		Variants:  splitVariants(imp.cell(row, c.VariantsColumn)),
		CreatedAt: imp.now,
	}
	word.Normalize()
	if err := word.Validate(); err != nil {
		return err
	}

	groupName := imp.cell(row, c.GroupColumn)
	if groupName == "" {
		groupName = currentGroup
	}
	if groupName != "" {
		id, err := imp.groupID(ctx, groupName)
		if err != nil {
			return fmt.Errorf("failed to process group: %w", err)
		}
		word.GroupID = &id
	}

	key := strings.ToLower(word.Source)
	if existing, ok := imp.words[key]; ok {
		if !sameGroup(existing.GroupID, word.GroupID) {
			return models.NewValidationError("group", fmt.Sprintf("word %q exists in another group", word.Source))
		}
		existing.Target = word.Target
		existing.Example = word.Example
		existing.Variants = word.Variants
		existing.UpdatedAt = imp.now
		if err := imp.store.Words.Update(ctx, &existing); err != nil {
			return err
		}
		imp.words[key] = existing
		imp.result.Updated++
		return nil
	}

	if err := imp.store.Words.Create(ctx, &word); err != nil {
		return err
	}
	imp.words[key] = word
	imp.result.Created++
	return nil
}

func (imp *importer) groupID(ctx context.Context, name string) (int64, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if id, ok := imp.groups[key]; ok {
		return id, nil
	}
	group, err := imp.store.Groups.GetByName(ctx, imp.userID, strings.TrimSpace(name))
	if errors.Is(err, models.ErrNotFound) {
		group = &models.Group{OwnerID: imp.userID, Name: name, CreatedAt: imp.now}
		if err = imp.store.Groups.Create(ctx, group); err == nil {
			imp.result.GroupsCreated++
		}
	}
	if err != nil {
		return 0, err
	}
	imp.groups[key] = group.ID
	return group.ID, nil
}

func sameGroup(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// splitVariants splits a cell on ';' or '|'
func splitVariants(cell string) models.StringList {
	if cell == "" {
		return nil
	}
	parts := strings.FieldsFunc(cell, func(r rune) bool { return r == ';' || r == '|' })
	return models.StringList(parts)
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// cleanWord drops a trailing parenthesised note such as "go (went, gone)"
func cleanWord(word string) string {
	if i := strings.Index(word, "("); i > 0 {
		return strings.TrimSpace(word[:i])
	}
	return strings.TrimSpace(word)
}

// Helper function to convert Excel column letter to index
func columnToIndex(column string) int {
	column = strings.ToUpper(column)
	index := 0
	for i := 0; i < len(column); i++ {
		if column[i] < 'A' || column[i] > 'Z' {
			return -1
		}
		index = index*26 + int(column[i]-'A'+1)
	}
	return index - 1
}
