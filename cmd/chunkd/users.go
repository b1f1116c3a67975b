package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/DanikLP1/chunk-upload-service/internal/config"
	"github.com/DanikLP1/chunk-upload-service/internal/db"
)

func newUsersCmd() *cobra.Command {
	parent := &cobra.Command{Use: "users", Short: "Manage API key holders"}
	parent.AddCommand(&cobra.Command{
		Use:   "add <name>",
		Short: "Create a user and print its API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			database, err := db.OpenSQLite(config.New().DBPath)
			if err != nil {
				return err
			}
			defer database.Close()
			u, key, err := database.CreateUser(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			// ключ показывается один раз, в базе только хэш
			fmt.Fprintf(cmd.OutOrStdout(), "id=%d name=%s key=%s\n", u.ID, u.Name, key)
			return nil
		},
	})
	parent.AddCommand(&cobra.Command{
		Use:   "disable <id>",
		Short: "Revoke a user's API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid id %q", args[0])
			}
			database, err := db.OpenSQLite(config.New().DBPath)
			if err != nil {
				return err
			}
			defer database.Close()
			return database.DisableUser(cmd.Context(), uint(id))
		},
	})
	return parent
}
