// Package main provides a CLI for administering a filegate server.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	serverURL  string
	username   string
	password   string
	token      string
	configPath string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "filegate-cli",
		Short: "Filegate CLI",
		Long:  "Command-line interface for administering a filegate server",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load saved session if not explicitly provided
			if serverURL == "" || token == "" {
				loadCLIConfig()
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "Server URL")
	rootCmd.PersistentFlags().StringVar(&username, "username", "", "Username")
	rootCmd.PersistentFlags().StringVar(&password, "password", "", "Password")
	rootCmd.PersistentFlags().StringVar(&token, "token", "", "Session token")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to CLI config file")

	rootCmd.AddCommand(loginCmd)

	// Account commands
	accountCmd := &cobra.Command{
		Use:   "account",
		Short: "Account management",
	}

	accountCmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List accounts",
			Run:   listAccounts,
		},
		&cobra.Command{
			Use:   "admins",
			Short: "List accounts with admin access",
			Run:   listAdmins,
		},
		&cobra.Command{
			Use:   "info [username]",
			Short: "Show one account",
			Args:  cobra.MaximumNArgs(1),
			Run:   accountInfo,
		},
		&cobra.Command{
			Use:   "add [username]",
			Short: "Create a new account",
			Args:  cobra.ExactArgs(1),
			Run:   addAccount,
		},
		&cobra.Command{
			Use:   "del [username]",
			Short: "Delete an account",
			Args:  cobra.ExactArgs(1),
			Run:   delAccount,
		},
		&cobra.Command{
			Use:   "admin [username] [true|false|clear]",
			Short: "Set or clear the admin flag",
			Args:  cobra.ExactArgs(2),
			Run:   setAdmin,
		},
		&cobra.Command{
			Use:   "passwd [username]",
			Short: "Set a new password for an account",
			Args:  cobra.ExactArgs(1),
			Run:   setPassword,
		},
	)

	rootCmd.AddCommand(accountCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
