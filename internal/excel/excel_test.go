package excel

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/example/wordbot/internal/database"
	"github.com/example/wordbot/internal/database/dbtest"
	"github.com/example/wordbot/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestParseWordLine(t *testing.T) {
	tests := []struct {
		name   string
		line   string
		source string
		target string
		reason string
	}{
		{name: "dash", line: "hello - salom", source: "hello", target: "salom"},
		{name: "en dash", line: "world – dunyo", source: "world", target: "dunyo"},
		{name: "em dash", line: "book — kitob", source: "book", target: "kitob"},
		{name: "colon", line: "pen:qalam", source: "pen", target: "qalam"},
		{name: "extra whitespace", line: "  apple  -   olma  ", source: "apple", target: "olma"},
		{name: "hyphenated phrase", line: "well-known - mashhur", source: "well-known", target: "mashhur"},
		{name: "empty", line: "   ", reason: "empty line"},
		{name: "no separator", line: "hello_world", reason: "no separator found"},
		{name: "empty source", line: " - salom", reason: "empty word or translation"},
		{name: "empty target", line: "hello - ", reason: "empty word or translation"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source, target, err := ParseWordLine(tt.line)
			if tt.reason != "" {
				require.ErrorIs(t, err, models.ErrValidation)
				assert.Contains(t, err.Error(), tt.reason)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.source, source)
			assert.Equal(t, tt.target, target)
		})
	}
}

func TestAddWordsFromLines(t *testing.T) {
	store := dbtest.New(t)
	added, errs := AddWordsFromLines(context.Background(), store, 1, nil, []string{
		"hello - salom",
		"",
		"invalid_no_separator",
		"world - dunyo",
		" - empty",
	})
	assert.Equal(t, 2, added)
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0].Error(), "line 3")
	assert.Contains(t, errs[1].Error(), "line 5")
}

func workbook(t *testing.T, rows [][]interface{}) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		r := row
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &r))
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return &buf
}

func TestImportWords_XLSX(t *testing.T) {
	ctx := context.Background()
	store := dbtest.New(t)
	buf := workbook(t, [][]interface{}{
		{"Source", "Target", "Example", "Group", "Variants"},
		{"apple", "olma", "An apple a day", "fruit", "olmacha; olma"},
		{"go (went, gone)", "bormoq", "", "verbs", ""},
		{"", "missing source", "", "", ""},
		{"pear", "nok", "", "fruit", "noklar|nok mevasi"},
	})

	cfg := DefaultImportConfig()
	cfg.Reader = buf
	cfg.Format = FormatXLSX
	res, err := ImportWords(ctx, store, 1, cfg)
	require.NoError(t, err)

	assert.Equal(t, 4, res.TotalProcessed)
	assert.Equal(t, 3, res.Created)
	assert.Equal(t, 2, res.GroupsCreated)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, 4, res.Errors[0].Row)
	assert.ErrorIs(t, res.Errors[0], models.ErrValidation)

	words, err := store.Words.List(ctx, database.WordFilter{UserID: 1, OwnedOnly: true})
	require.NoError(t, err)
	require.Len(t, words, 3)
	assert.Equal(t, "go", words[1].Source)
	assert.Equal(t, models.StringList{"noklar", "nok mevasi"}, words[2].Variants)
	require.NotNil(t, words[0].GroupID)
	assert.Equal(t, *words[0].GroupID, *words[2].GroupID)
}

func TestImportWords_CSVGroupHeadersAndUpdates(t *testing.T) {
	ctx := context.Background()
	store := dbtest.New(t)
	existing := dbtest.Word(t, store, 1, "run", "chopmoq")

	csv := strings.Join([]string{
		"source,target,example,group,variants",
		"Verbs,,,,",
		"walk,yurmoq,,,",
		"Motion,,,,",
		"jump,sakramoq,,,",
		"run,yugurmoq,,,",
	}, "\n")
	cfg := DefaultImportConfig()
	cfg.Reader = strings.NewReader(csv)
	cfg.Format = FormatCSV
	res, err := ImportWords(ctx, store, 1, cfg)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Created)
	assert.Equal(t, 2, res.GroupsCreated)
	require.Len(t, res.Errors, 1, "existing ungrouped word cannot move into a group")
	assert.Equal(t, 6, res.Errors[0].Row)

	walk, err := store.Groups.GetByName(ctx, 1, "Verbs")
	require.NoError(t, err)
	words, err := store.Words.List(ctx, database.WordFilter{UserID: 1, GroupID: &walk.ID})
	require.NoError(t, err)
	require.Len(t, words, 1)
	assert.Equal(t, "walk", words[0].Source)

	cfg.Reader = strings.NewReader("source,target\nrun,yugurmoq\n")
	res, err = ImportWords(ctx, store, 1, cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)
	got, err := store.Words.GetByID(ctx, existing.ID)
	require.NoError(t, err)
	assert.Equal(t, "yugurmoq", got.Target)
}

func TestExportThenImport(t *testing.T) {
	ctx := context.Background()
	store := dbtest.New(t)
	group, err := store.Groups.GetOrCreate(ctx, 1, "fruit", time.Now())
	require.NoError(t, err)
	apple := models.Word{OwnerID: 1, GroupID: &group.ID, Source: "apple", Target: "olma", Variants: models.StringList{"olmacha"}}
	require.NoError(t, store.Words.Create(ctx, &apple))
	dbtest.Word(t, store, 1, "book", "kitob")
	dbtest.Word(t, store, models.SharedOwner, "cat", "mushuk")

	var buf bytes.Buffer
	n, err := ExportWords(ctx, store, 1, nil, &buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "shared words are not exported")

	cfg := DefaultImportConfig()
	cfg.Reader = &buf
	cfg.Format = FormatXLSX
	res, err := ImportWords(ctx, store, 2, cfg)
	require.NoError(t, err)
	assert.Empty(t, res.Errors)
	assert.Equal(t, 2, res.Created)

	words, err := store.Words.List(ctx, database.WordFilter{UserID: 2, OwnedOnly: true})
	require.NoError(t, err)
	require.Len(t, words, 2)
	assert.Equal(t, "apple", words[0].Source)
	assert.Equal(t, models.StringList{"olmacha"}, words[0].Variants)
	require.NotNil(t, words[0].GroupID)
	assert.Nil(t, words[1].GroupID)

	buf.Reset()
	n, err = ExportWords(ctx, store, 1, &group.ID, &buf)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
