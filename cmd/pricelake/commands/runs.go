package commands

import (
	"errors"
	"os"
	"time"

	"pricelake/lib/serviceutil"
	"pricelake/services/capture/db"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var runsCatalog *string

func init() {
	runsCatalog = runsCmd.Flags().String("catalog", "", "Sqlite database recording capture runs.")
	rootCmd.AddCommand(runsCmd)
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Lists capture runs recorded in the catalog, newest first.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := readConfig()
		if err != nil {
			serviceutil.Fatal("failed to read config", err)
		}
		catalog, err := openCatalog(cfg, *runsCatalog)
		if err != nil {
			serviceutil.Fatal("failed to open catalog", err)
		}
		if catalog == nil {
			serviceutil.Fatal("no catalog configured", errors.New("pass --catalog or set catalog in the config"))
		}
		defer catalog.Close()

		runs, err := db.New(catalog).ListCaptureRuns(cmd.Context())
		if err != nil {
			serviceutil.Fatal("failed to list capture runs", err)
		}

		t := table.NewWriter()
		t.SetStyle(table.StyleRounded)
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"started", "store", "status", "pages", "skus", "output"})
		for _, run := range runs {
			t.AppendRow(table.Row{
				time.Unix(run.StartedAt, 0).UTC().Format(time.DateTime),
				run.Region + "-" + run.Store,
				run.Status,
				run.Pages,
				run.Skus,
				run.OutputDir,
			})
		}
		t.Render()
	},
}
