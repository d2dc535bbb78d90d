package cli

import (
	"fmt"
	"io"
	"runtime"

	"github.com/spf13/cobra"
)

// Version is stamped by the release build with
// -ldflags "-X github.com/evcraddock/propdesk/internal/cli.Version=...".
var Version = "dev"

type versionInfo struct {
	Version  string `json:"version"`
	Go       string `json:"go"`
	Platform string `json:"platform"`
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the pd version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := versionInfo{
				Version:  Version,
				Go:       runtime.Version(),
				Platform: runtime.GOOS + "/" + runtime.GOARCH,
			}
			return emit(cmd, info, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "pd %s (%s, %s)\n", info.Version, info.Go, info.Platform)
				return err
			})
		},
	}
}
