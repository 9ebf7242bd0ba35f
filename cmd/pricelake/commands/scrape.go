package commands

import (
	"database/sql"
	"fmt"
	"time"

	"pricelake/lib/restyutil"
	"pricelake/lib/scrapers/grocery"
	"pricelake/lib/serviceutil"
	"pricelake/services/capture"
	"pricelake/services/capture/db"

	"github.com/spf13/cobra"
)

var (
	scrapeRegion     *int
	scrapeStore      *int
	scrapeOutput     *string
	scrapeHost       *string
	scrapeRoot       *string
	scrapeLimit      *int
	scrapeNoCompress *bool
	scrapeCatalog    *string
)

func init() {
	// store region and number are found by choosing a store for pickup on
	// the webapp and reading the store code out of the cookies, e.g.
	// 479-030 is region 479 store 30. A store missing from the pickup
	// search still prints its number on physical receipts.
	scrapeRegion = scrapeCmd.Flags().IntP("region", "r", 0, "Region number (e.g. 479).")
	scrapeStore = scrapeCmd.Flags().IntP("store", "s", 0, "Store number (e.g. 40).")
	scrapeOutput = scrapeCmd.Flags().StringP("output", "o", "", "Root path to write raw data to.")
	scrapeHost = scrapeCmd.Flags().StringP("api-host", "H", "", "Search API hostname.")
	scrapeRoot = scrapeCmd.Flags().StringP("api-root", "R", "", "Search API path.")
	scrapeLimit = scrapeCmd.Flags().Int("limit", 60, "Items to request per page.")
	scrapeNoCompress = scrapeCmd.Flags().Bool("no-compress", false, "Write plain json instead of zstd.")
	scrapeCatalog = scrapeCmd.Flags().String("catalog", "", "Optional sqlite database recording capture runs.")

	_ = scrapeCmd.MarkFlagRequired("region")
	_ = scrapeCmd.MarkFlagRequired("store")
	_ = scrapeCmd.MarkFlagRequired("output")

	rootCmd.AddCommand(scrapeCmd)
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape -r <region> -s <store> -o <dir>",
	Short: "Captures every reachable product page of a store to the bronze tree.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := readConfig()
		if err != nil {
			serviceutil.Fatal("failed to read config", err)
		}

		client, err := newSearchClient(cfg, *scrapeHost, *scrapeRoot, *scrapeLimit)
		if err != nil {
			serviceutil.Fatal("failed to initialize search api client", err)
		}
		if *verbose {
			client.SetInstrumentOutput(restyutil.NewFilesystemOutput(".dev/resty/scrape"))
		}

		catalog, err := openCatalog(cfg, *scrapeCatalog)
		if err != nil {
			serviceutil.Fatal("failed to open catalog", err)
		}
		if catalog != nil {
			defer catalog.Close()
		}

		service := capture.NewService(client, catalog)
		summary, err := service.Capture(cmd.Context(), capture.Request{
			Region:    *scrapeRegion,
			Store:     *scrapeStore,
			OutputDir: *scrapeOutput,
			Compress:  !*scrapeNoCompress,
		})
		if err != nil {
			serviceutil.Fatal("capture run failed", err)
		}

		fmt.Printf("wrote %d pages (%d skus) to %s\n", summary.Pages, summary.Skus, summary.OutputDir)
	},
}

// newSearchClient resolves api identifiers from flags first, config second.
func newSearchClient(cfg Config, host, root string, limit int) (*grocery.Client, error) {
	if host == "" {
		host = cfg.ApiHost
	}
	if root == "" {
		root = cfg.ApiRoot
	}
	if host == "" || root == "" {
		return nil, fmt.Errorf("api host and root are required, pass -H/-R or set them in the config")
	}

	minDelay, maxDelay := 7200, 12000
	if cfg.MaxDelayMs > 0 {
		minDelay, maxDelay = cfg.MinDelayMs, cfg.MaxDelayMs
	}

	return grocery.NewClient(grocery.ClientOptions{
		Host:      host,
		Path:      root,
		PageLimit: limit,
		MinDelay:  time.Duration(minDelay) * time.Millisecond,
		MaxDelay:  time.Duration(maxDelay) * time.Millisecond,
	})
}

// openCatalog opens the run catalog if one is configured, preferring the
// flag over the config file. No catalog at all is fine.
func openCatalog(cfg Config, flagPath string) (*sql.DB, error) {
	dbcfg := cfg.Catalog
	if flagPath != "" {
		dbcfg.File = flagPath
		dbcfg.Url = ""
	}
	if dbcfg.File == "" && dbcfg.Url == "" {
		return nil, nil
	}
	return dbcfg.OpenDB(db.Schema)
}
