package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/qtc-project/pqnoise/internal/constants"
	"github.com/qtc-project/pqnoise/pkg/version"
)

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and suite information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version.Full())
			fmt.Printf("suite: %s\n", constants.SuiteName)
		},
	}
}
