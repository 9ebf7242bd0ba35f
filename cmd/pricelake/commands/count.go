package commands

import (
	"fmt"

	"pricelake/lib/serviceutil"

	"github.com/spf13/cobra"
)

var (
	countRegion *int
	countStore  *int
	countHost   *string
	countRoot   *string
)

func init() {
	countRegion = countCmd.Flags().IntP("region", "r", 0, "Region number (e.g. 479).")
	countStore = countCmd.Flags().IntP("store", "s", 0, "Store number (e.g. 40).")
	countHost = countCmd.Flags().StringP("api-host", "H", "", "Search API hostname.")
	countRoot = countCmd.Flags().StringP("api-root", "R", "", "Search API path.")

	_ = countCmd.MarkFlagRequired("region")
	_ = countCmd.MarkFlagRequired("store")

	rootCmd.AddCommand(countCmd)
}

var countCmd = &cobra.Command{
	Use:   "count -r <region> -s <store>",
	Short: "Prints the catalog size a store reports, without crawling it.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := readConfig()
		if err != nil {
			serviceutil.Fatal("failed to read config", err)
		}
		client, err := newSearchClient(cfg, *countHost, *countRoot, 1)
		if err != nil {
			serviceutil.Fatal("failed to initialize search api client", err)
		}

		total, err := client.TotalProductCount(cmd.Context(), *countRegion, *countStore)
		if err != nil {
			serviceutil.Fatal("failed to fetch product count", err)
		}
		fmt.Println(total)
	},
}
