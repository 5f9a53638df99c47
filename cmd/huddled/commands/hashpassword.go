// Copyright © 2024 Niko Carpenter <niko@nikocarpenter.com>
//
// This source code is governed by the MIT license, which can be found in the LICENSE file.

package commands

import (
	"fmt"

	"github.com/howeyc/gopass"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/n0ot/huddled/pkg/server"
)

// hashPasswordCmd represents the hash-password command
var hashPasswordCmd = &cobra.Command{
	Use:   "hash-password",
	Short: "Hash a password for server.statsPassword",
	Long: `hash-password prompts for a stats password, and prints its bcrypt hash.

Put the hash in the server.statsPassword config option, or HUDDLE_SERVER_STATSPASSWORD.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("Password: ")
		pass, err := gopass.GetPasswdMasked()
		if err != nil {
			return err
		}
		fmt.Printf("Confirm password: ")
		confirm, err := gopass.GetPasswdMasked()
		if err != nil {
			return err
		}
		if string(pass) != string(confirm) {
			return errors.New("Passwords don't match")
		}

		hash, err := server.HashPassword(string(pass))
		if err != nil {
			return err
		}
		fmt.Println(hash)
		return nil
	},
}

func init() {
	RootCmd.AddCommand(hashPasswordCmd)
}
