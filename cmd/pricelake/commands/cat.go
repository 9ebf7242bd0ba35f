package commands

import (
	"os"

	"pricelake/lib/serviceutil"
	"pricelake/services/capture/bronze"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(catCmd)
}

var catCmd = &cobra.Command{
	Use:   "cat <artifact>...",
	Short: "Prints bronze artifacts to stdout, decompressing as needed.",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		for _, path := range args {
			contents, err := bronze.ReadArtifact(path)
			if err != nil {
				serviceutil.Fatal("failed to read artifact", err)
			}
			_, err = os.Stdout.Write(contents)
			if err != nil {
				serviceutil.Fatal("failed to write to stdout", err)
			}
		}
	},
}
