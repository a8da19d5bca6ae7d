package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/boardsync/internal/config"
	"github.com/zulandar/boardsync/internal/intent"
)

// TokenEnv supplies the bearer token for client commands when --token is unset.
const TokenEnv = "BSYNC_TOKEN"

type moveFlags struct {
	configPath string
	server     string
	token      string
	kind       string
	move       intent.MoveRequest
}

func newMoveCmd() *cobra.Command {
	var f moveFlags

	cmd := &cobra.Command{
		Use:   "move",
		Short: "Move a card, list or board through a running server",
		Long:  "Submits one move through the debounced intent queue, the same path interactive clients use, and waits for the server's answer.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMove(cmd, f)
		},
	}

	cmd.Flags().StringVarP(&f.configPath, "config", "c", defaultConfigPath, "path to boardsync config file")
	cmd.Flags().StringVar(&f.server, "server", "", "server base URL (default http://localhost:<server.port>)")
	cmd.Flags().StringVar(&f.token, "token", "", "bearer token (default $"+TokenEnv+")")
	cmd.Flags().StringVar(&f.kind, "kind", "cards", "what to move: cards, lists or boards")
	cmd.Flags().UintVar(&f.move.ItemID, "item", 0, "id of the item to move (required)")
	cmd.Flags().UintVar(&f.move.SourceListID, "from", 0, "source list id (cards)")
	cmd.Flags().UintVar(&f.move.DestinationListID, "to", 0, "destination list id (cards)")
	cmd.Flags().IntVar(&f.move.OldSeqNo, "old", 1, "current position, 1-based")
	cmd.Flags().IntVar(&f.move.NewSeqNo, "new", 1, "target position, 1-based")
	cmd.Flags().UintVar(&f.move.BoardID, "board", 0, "board id (lists)")
	cmd.Flags().UintVar(&f.move.ProjectID, "project", 0, "project id (boards)")
	cmd.Flags().StringVar(&f.move.ItemTitle, "title", "", "item title for the announcement")
	return cmd
}

func runMove(cmd *cobra.Command, f moveFlags) error {
	if f.move.ItemID == 0 {
		return errors.New("--item is required")
	}
	switch f.kind {
	case "cards", "lists", "boards":
	default:
		return fmt.Errorf("--kind %q must be cards, lists or boards", f.kind)
	}
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if f.server == "" {
		f.server = fmt.Sprintf("http://localhost:%d", cfg.Server.Port)
	}
	if f.token == "" {
		f.token = os.Getenv(TokenEnv)
	}
	if f.move.SourceListID != 0 && f.move.DestinationListID == 0 {
		f.move.DestinationListID = f.move.SourceListID
	}

	client := intent.NewMoveClient(f.server, f.token, cfg.Client.RequestTimeout)
	results := make(chan error, 1)
	q := intent.NewQueue(client.Execute, intent.WithResultHandler(func(_ intent.Intent, err error) {
		results <- err
	}))
	defer q.Close()

	q.Schedule(intent.Intent{Kind: f.kind, Move: f.move}, cfg.Client.QuietPeriod)

	select {
	case err := <-results:
		if err != nil {
			if errors.Is(err, intent.ErrRetryable) {
				return fmt.Errorf("%w (retry with the current position)", err)
			}
			return err
		}
	case <-time.After(cfg.Client.QuietPeriod + cfg.Client.RequestTimeout + time.Second):
		return errors.New("move: no answer from server")
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Moved %s %d to position %d\n", f.kind, f.move.ItemID, f.move.NewSeqNo)
	return nil
}
