package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/example/wordbot/internal/backup"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--env-file", filepath.Join(t.TempDir(), "missing.env")}, args...))
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestImportExportCommands(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DB_DRIVER", "sqlite3")
	t.Setenv("DB_DSN", filepath.Join(dir, "data", "wordbot.db"))
	t.Setenv("LOG_LEVEL", "error")

	out, err := execute(t, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "Schema is up to date")

	csvPath := filepath.Join(dir, "words.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("Source,Target,Example,Group,Variants\nhello,salom,,Basics,\nworld,dunyo,,Basics,\n"), 0o644))

	out, err = execute(t, "import", "--user", "5", "-i", csvPath, "--group", "")
	require.NoError(t, err)
	assert.Contains(t, out, "2 created")

	backupPath := filepath.Join(dir, "out", "backup.json")
	out, err = execute(t, "export", "--user", "5", "--format", "json", "-o", backupPath, "--group", "")
	require.NoError(t, err)
	assert.Contains(t, out, "Exported 2 words")

	f, err := os.Open(backupPath)
	require.NoError(t, err)
	dump, err := backup.Decode(f)
	f.Close()
	require.NoError(t, err)
	assert.Equal(t, int64(5), dump.UserID)
	assert.Len(t, dump.Words, 2)

	xlsxPath := filepath.Join(dir, "out", "words.xlsx")
	_, err = execute(t, "export", "--user", "5", "--format", "xlsx", "-o", xlsxPath, "--group", "")
	require.NoError(t, err)
	book, err := excelize.OpenFile(xlsxPath)
	require.NoError(t, err)
	rows, err := book.GetRows("Sheet1")
	require.NoError(t, err)
	assert.Len(t, rows, 3)
	require.NoError(t, book.Close())

	out, err = execute(t, "import", "--user", "6", "-i", backupPath, "--group", "")
	require.NoError(t, err)
	assert.Contains(t, out, "Restored 1 groups, 2 words")
}

func TestExportRequiresUser(t *testing.T) {
	_, err := execute(t, "export", "--user", "0", "--format", "json", "-o", "-", "--group", "")
	assert.Error(t, err)
}
