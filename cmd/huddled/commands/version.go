// Copyright © 2024 Niko Carpenter <niko@nikocarpenter.com>
//
// This source code is governed by the MIT license, which can be found in the LICENSE file.

package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/n0ot/huddled/pkg/version"
)

// Copyright is the copyright including authors of huddled.
var Copyright = "Copyright © 2024 Niko Carpenter <niko@nikocarpenter.com>"

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version of huddled",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("huddled version %s\n%s\n", version.GetVersion(), Copyright)
	},
}

func init() {
	RootCmd.AddCommand(versionCmd)
}
