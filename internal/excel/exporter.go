package excel

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/example/wordbot/internal/database"
	"github.com/xuri/excelize/v2"
)

const exportSheet = "Sheet1"

var exportHeader = []interface{}{"Source", "Target", "Example", "Group", "Variants"}

// ExportWords writes the user's own words as an XLSX workbook, optionally one group only.
// The column layout matches DefaultImportConfig.
func ExportWords(ctx context.Context, store *database.Store, userID int64, groupID *int64, w io.Writer) (int, error) {
	words, err := store.Words.List(ctx, database.WordFilter{UserID: userID, GroupID: groupID, OwnedOnly: true})
	if err != nil {
		return 0, err
	}
	groups, err := store.Groups.GetByOwner(ctx, userID)
	if err != nil {
		return 0, err
	}
	names := make(map[int64]string, len(groups))
	for _, g := range groups {
		names[g.ID] = g.Name
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetRow(exportSheet, "A1", &exportHeader); err != nil {
		return 0, fmt.Errorf("failed to write header: %w", err)
	}
	for i, word := range words {
		group := ""
		if word.GroupID != nil {
			group = names[*word.GroupID]
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return 0, err
		}
		row := []interface{}{word.Source, word.Target, word.Example, group, strings.Join(word.Variants, "; ")}
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return 0, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if err := f.Write(w); err != nil {
		return 0, fmt.Errorf("failed to write workbook: %w", err)
	}
	return len(words), nil
}
