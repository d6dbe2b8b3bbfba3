package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marcelsud/zoom-relay/relay/challenge"
)

var challengeSecret string

var challengeCmd = &cobra.Command{
	Use:   "challenge <plainToken>",
	Short: "Compute the answer to a Zoom URL validation challenge",
	Args:  cobra.ExactArgs(1),
	RunE:  runChallengeCmd,
}

func runChallengeCmd(cmd *cobra.Command, args []string) error {
	secret, err := resolveSecret(challengeSecret)
	if err != nil {
		return err
	}

	resp := challenge.Response{
		PlainToken:     args[0],
		EncryptedToken: challenge.EncryptToken(secret, args[0]),
	}
	out, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("encoding response: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}

func init() {
	challengeCmd.Flags().StringVar(&challengeSecret, "secret", "", "Zoom secret token (defaults to ZOOM_WEBHOOK_SECRET_TOKEN)")
	RootCmd.AddCommand(challengeCmd)
}
