/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"

	"github.com/control-eventos/apiserver/internal/db"
	"github.com/control-eventos/apiserver/internal/services"
	"github.com/control-eventos/apiserver/internal/store"
	"github.com/spf13/cobra"
)

var (
	adminEmail    string
	adminPassword string
	adminName     string
)

// adminCmd groups account maintenance commands.
var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Manage administrator accounts",
}

var adminCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a global admin account",
	Long: `Creates a global admin directly in the database. Usage:

	eventos admin create --email root@example.com --password secret --name "Root"
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadRuntime()
		if err != nil {
			return err
		}

		dbConn, err := db.Open(cmd.Context(), cfg.Database)
		if err != nil {
			return err
		}
		defer func() { _ = dbConn.Close() }()

		users := services.NewUserService(store.NewUserRepository(dbConn))
		user, err := users.Bootstrap(cmd.Context(), services.NewUser{
			Email:    adminEmail,
			Password: adminPassword,
			Name:     adminName,
		})
		if err != nil {
			if errors.Is(err, store.ErrConflict) {
				return fmt.Errorf("an account for %s already exists", adminEmail)
			}
			return err
		}

		ctx := log.WithUserID(cmd.Context(), user.ID)
		log.Info(ctx, "global admin created")
		fmt.Fprintf(cmd.OutOrStdout(), "created global admin %s (id %d)\n", user.Email, user.ID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(adminCmd)
	adminCmd.AddCommand(adminCreateCmd)
	adminCreateCmd.Flags().StringVar(&adminEmail, "email", "", "admin email")
	adminCreateCmd.Flags().StringVar(&adminPassword, "password", "", "admin password")
	adminCreateCmd.Flags().StringVar(&adminName, "name", "", "display name (defaults to the email local part)")
	_ = adminCreateCmd.MarkFlagRequired("email")
	_ = adminCreateCmd.MarkFlagRequired("password")
}
