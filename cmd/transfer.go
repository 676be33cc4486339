package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/example/wordbot/internal/backup"
	"github.com/example/wordbot/internal/excel"
	"github.com/spf13/cobra"
)

const (
	formatJSON = "json"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export one user's words (xlsx) or full backup (json)",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		userID, _ := cmd.Flags().GetInt64("user")
		format, _ := cmd.Flags().GetString("format")
		outputPath, _ := cmd.Flags().GetString("output")
		group, _ := cmd.Flags().GetString("group")
		if userID <= 0 {
			return fmt.Errorf("--user is required")
		}
		format = strings.ToLower(format)
		if format != excel.FormatXLSX && format != formatJSON {
			return fmt.Errorf("unsupported export format %q", format)
		}
		if outputPath == "" {
			outputPath = fmt.Sprintf("wordbot-%d-%s.%s", userID, time.Now().UTC().Format("20060102-150405"), format)
		}

		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		store, err := openStore(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer store.Close()

		var writer io.Writer = cmd.OutOrStdout()
		if outputPath != "-" {
			if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
				return fmt.Errorf("create output directory: %w", err)
			}
			file, openErr := os.Create(outputPath)
			if openErr != nil {
				return fmt.Errorf("create output file: %w", openErr)
			}
			defer func() {
				if cerr := file.Close(); cerr != nil && err == nil {
					err = cerr
				}
			}()
			writer = file
		}

		if format == formatJSON {
			dump, err := backup.NewService(store, logger).Dump(ctx, userID)
			if err != nil {
				return err
			}
			if err := backup.Encode(writer, dump); err != nil {
				return err
			}
			if outputPath != "-" {
				cmd.Printf("Exported %d words and %d progress records to %s\n", len(dump.Words), len(dump.Progress), outputPath)
			}
			return nil
		}

		var groupID *int64
		if group != "" {
			g, err := store.Groups.GetByName(ctx, userID, group)
			if err != nil {
				return err
			}
			groupID = &g.ID
		}
		n, err := excel.ExportWords(ctx, store, userID, groupID, writer)
		if err != nil {
			return err
		}
		if outputPath != "-" {
			cmd.Printf("Exported %d words to %s\n", n, outputPath)
		}
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import words (xlsx, csv) or a json backup into one user's profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, _ := cmd.Flags().GetInt64("user")
		inputPath, _ := cmd.Flags().GetString("input")
		group, _ := cmd.Flags().GetString("group")
		if userID <= 0 {
			return fmt.Errorf("--user is required")
		}
		if inputPath == "" {
			return fmt.Errorf("--input is required")
		}

		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		store, err := openStore(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.Users.Ensure(ctx, userID, "", time.Now()); err != nil {
			return err
		}

		if strings.EqualFold(filepath.Ext(inputPath), "."+formatJSON) {
			file, err := os.Open(inputPath)
			if err != nil {
				return fmt.Errorf("open backup: %w", err)
			}
			defer file.Close()
			dump, err := backup.Decode(file)
			if err != nil {
				return err
			}
			report, err := backup.NewService(store, logger).Restore(ctx, userID, dump)
			if err != nil {
				return err
			}
			cmd.Printf("Restored %d groups, %d words, %d progress records\n", report.Groups, report.Words, report.Progress)
			for _, skipped := range report.Skipped {
				cmd.PrintErrf("skipped %v\n", skipped)
			}
			return nil
		}

		importCfg := excel.DefaultImportConfig()
		importCfg.FilePath = inputPath
		importCfg.DefaultGroup = group
		res, err := excel.ImportWords(ctx, store, userID, importCfg)
		if err != nil {
			return err
		}
		cmd.Printf("Processed %d rows: %d created, %d updated, %d groups created\n",
			res.TotalProcessed, res.Created, res.Updated, res.GroupsCreated)
		for _, rowErr := range res.Errors {
			cmd.PrintErrf("%v\n", rowErr)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd, importCmd)

	exportCmd.Flags().Int64("user", 0, "user (chat) id")
	exportCmd.Flags().String("format", excel.FormatXLSX, "xlsx word list or json backup")
	exportCmd.Flags().StringP("output", "o", "", "output file, - for stdout")
	exportCmd.Flags().String("group", "", "export only this group (xlsx)")

	importCmd.Flags().Int64("user", 0, "user (chat) id")
	importCmd.Flags().StringP("input", "i", "", "xlsx, csv or json backup file")
	importCmd.Flags().String("group", "", "group for rows that name none (xlsx, csv)")
}
