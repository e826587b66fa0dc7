package main

import (
	"fmt"
	"maps"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/biscuitvixen/e6-dl/pkg/pooldb"
	"github.com/biscuitvixen/e6-dl/pkg/ui"
)

// dbCmd represents the db command
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Inspect and maintain the pool database",
	Long: `Inspect and maintain the database recording which posts of which pools
have been downloaded.`,
}

// dbListCmd represents the db list command
var dbListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded pools",
	Args:  cobra.NoArgs,
	RunE:  runDBList,
}

// dbImportCmd represents the db import-legacy command
var dbImportCmd = &cobra.Command{
	Use:   "import-legacy [path]",
	Short: "Import the SQLite database of e6dl 1.x",
	Long: `Import pools and downloaded posts from the SQLite database written by
e6dl 1.x. Without a path, ` + pooldb.LegacyFileName + ` in the download
directory is used. Imported records are merged into existing ones.`,
	Example: `  e6dl db import-legacy ~/comics/` + pooldb.LegacyFileName,
	Args:    cobra.MaximumNArgs(1),
	RunE:    runDBImport,
}

// dbVerifyCmd represents the db verify command
var dbVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Forget recorded posts whose file is missing",
	Long: `Check that every recorded post still has its file on disk. Records of
missing files are dropped so the next update downloads them again.`,
	Args: cobra.NoArgs,
	RunE: runDBVerify,
}

func init() {
	rootCmd.AddCommand(dbCmd)
	dbCmd.AddCommand(dbListCmd)
	dbCmd.AddCommand(dbImportCmd)
	dbCmd.AddCommand(dbVerifyCmd)
}

// openDatabase loads the configuration and the pool database
func openDatabase() (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	s, err := newSession(cfg, nil)
	if err != nil {
		return nil, err
	}
	if s.dbReset != nil {
		ui.PrintWarning("Pool database was unreadable and has been reset", s.dbReset.Error())
	}
	return s, nil
}

func runDBList(cmd *cobra.Command, args []string) error {
	s, err := openDatabase()
	if err != nil {
		return err
	}
	defer s.Close()

	db := s.tracker.Database()
	if len(db.Pools) == 0 {
		fmt.Println("No pools recorded yet.")
		return nil
	}

	fmt.Println(poolTable(db))
	fmt.Printf("%d pools in %s\n", len(db.Pools), s.store.Path())
	return nil
}

// poolTable renders every recorded pool ordered by ID
func poolTable(db *pooldb.Database) string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FCB328")).Padding(0, 1)
	cellStyle := lipgloss.NewStyle().Padding(0, 1)

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("#1F3C67"))).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers("ID", "NAME", "ARTIST", "POSTS", "FOLDER", "UPDATED")

	for _, id := range db.PoolIDs() {
		rec, _ := db.Get(id)
		updated := "-"
		if !rec.UpdatedAt.IsZero() {
			updated = rec.UpdatedAt.Format("2006-01-02")
		}
		t.Row(strconv.Itoa(id), rec.Name, rec.Artist, strconv.Itoa(len(rec.Downloaded)), rec.Folder, updated)
	}
	return t.String()
}

func runDBImport(cmd *cobra.Command, args []string) error {
	s, err := openDatabase()
	if err != nil {
		return err
	}
	defer s.Close()

	root := s.cfg.Download.RootDirectory
	path := filepath.Join(root, pooldb.LegacyFileName)
	if len(args) > 0 {
		path = args[0]
	}

	var stats pooldb.ImportStats
	err = s.tracker.Update(func(db *pooldb.Database) error {
		var importErr error
		stats, importErr = pooldb.ImportLegacy(cmd.Context(), db, path, root)
		return importErr
	})
	if err != nil {
		return fmt.Errorf("failed to import %s: %w", path, err)
	}

	s.log.WithField("source", path).WithField("pools", stats.Pools).Info("Imported legacy database")
	ui.PrintSuccess("Imported " + stats.String() + " from " + path)
	return nil
}

func runDBVerify(cmd *cobra.Command, args []string) error {
	s, err := openDatabase()
	if err != nil {
		return err
	}
	defer s.Close()

	var dropped map[int][]int
	err = s.tracker.Update(func(db *pooldb.Database) error {
		dropped = pooldb.Verify(db, s.cfg.Download.RootDirectory, s.log)
		return nil
	})
	if err != nil {
		return err
	}

	if len(dropped) == 0 {
		ui.PrintSuccess("Every recorded file is present")
		return nil
	}
	for _, id := range slices.Sorted(maps.Keys(dropped)) {
		ui.PrintInfo(fmt.Sprintf("Pool %d", id), fmt.Sprintf("%d missing posts forgotten", len(dropped[id])))
	}
	fmt.Println("\nRun 'e6dl update' to download them again.")
	return nil
}
