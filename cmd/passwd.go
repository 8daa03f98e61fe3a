package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/denysvitali/filemanager-go/pkg/auth"
)

var passwdCmd = &cobra.Command{
	Use:   "passwd",
	Short: "Print a bcrypt hash usable as PASSWORD",
	RunE: func(cmd *cobra.Command, args []string) error {
		password, _ := cmd.Flags().GetString("password")
		cost, _ := cmd.Flags().GetInt("cost")
		if password == "" {
			return fmt.Errorf("--password is required")
		}

		hash, err := auth.HashPassword(password, cost)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), hash)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(passwdCmd)

	passwdCmd.Flags().StringP("password", "p", "", "Password to hash")
	passwdCmd.Flags().Int("cost", bcrypt.DefaultCost, "bcrypt cost")
}
