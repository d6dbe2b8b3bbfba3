package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/marcelsud/zoom-relay/config"
	"github.com/marcelsud/zoom-relay/relay"
	"github.com/marcelsud/zoom-relay/relay/redis"
)

// Flag variables for dead-letters command
var (
	deadLetterLimit int
	deadLetterJSON  bool
)

// openLister connects to the dead letter store; replaced in tests
var openLister = func(cfg *config.Config) (relay.DeadLetterLister, func(), error) {
	if cfg.RedisAddr == "" {
		return nil, nil, errors.New("REDIS_ADDR is not set: dead letters are only stored in redis")
	}
	repo, err := redis.NewRepository(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, nil, err
	}
	return repo, func() { repo.Close(context.Background()) }, nil
}

var deadLettersCmd = &cobra.Command{
	Use:   "dead-letters",
	Short: "List tasks the queue gave up on, newest first",
	Long: `List dead letters stored in Redis, newest first.

Examples:
  relayctl dead-letters
  relayctl dead-letters --limit 5 --json`,
	RunE: runDeadLettersCmd,
}

func runDeadLettersCmd(cmd *cobra.Command, args []string) error {
	if deadLetterLimit <= 0 {
		return fmt.Errorf("--limit must be positive, got %d", deadLetterLimit)
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	lister, closeFn, err := openLister(cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()
	list, err := lister.List(ctx, deadLetterLimit)
	if err != nil {
		return fmt.Errorf("listing dead letters: %w", err)
	}

	if deadLetterJSON {
		return printDeadLettersJSON(cmd.OutOrStdout(), list)
	}
	return printDeadLetters(cmd.OutOrStdout(), list)
}

func printDeadLettersJSON(out io.Writer, list []relay.DeadLetter) error {
	if list == nil {
		list = []relay.DeadLetter{}
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(list)
}

func printDeadLetters(out io.Writer, list []relay.DeadLetter) error {
	if len(list) == 0 {
		fmt.Fprintln(out, "No dead letters.")
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FAILED AT\tMESSAGE ID\tEVENT\tTRACKING ID\tSTATUS\tRETRIES\tERROR")
	for _, dl := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d/%d\t%s\n",
			dl.FailedAt.UTC().Format(time.RFC3339),
			dl.MessageID,
			orDash(dl.Event),
			orDash(dl.TrackingID),
			dl.LastStatus,
			dl.Attempts, dl.MaxRetries,
			orDash(dl.Error),
		)
	}
	return w.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func init() {
	deadLettersCmd.Flags().IntVarP(&deadLetterLimit, "limit", "n", 20, "Maximum number of entries")
	deadLettersCmd.Flags().BoolVar(&deadLetterJSON, "json", false, "Output in JSON format")
	RootCmd.AddCommand(deadLettersCmd)
}
