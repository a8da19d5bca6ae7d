package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zulandar/boardsync/internal/auth"
	"github.com/zulandar/boardsync/internal/config"
)

func newTokenCmd() *cobra.Command {
	var (
		configPath string
		userID     string
		name       string
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for development",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runToken(cmd, configPath, userID, name)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to boardsync config file")
	cmd.Flags().StringVar(&userID, "user", "", "user id (required)")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	return cmd
}

func runToken(cmd *cobra.Command, configPath, userID, name string) error {
	if userID == "" {
		return errors.New("--user is required")
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	token, err := auth.NewTokenService(cfg.Auth).Issue(auth.Identity{UserID: userID, Name: name})
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
