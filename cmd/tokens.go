package cmd

import (
	"fmt"
	"strconv"

	"channel-manager/feature/token"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// tokensCmd is the parent command for token operations.
var tokensCmd = &cobra.Command{
	Use:   "tokens",
	Short: "Inspect and refresh provider tokens",
}

var tokensDiagnosticsCmd = &cobra.Command{
	Use:   "diagnostics <connection-id>",
	Short: "Show the tokens of a connection without refreshing them",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		a, err := newApp()
		if err != nil {
			return err
		}
		diags, err := a.tokens.Diagnostics(cmd.Context(), id)
		if err != nil {
			return err
		}
		return printJSON(diags)
	},
}

var tokensRefreshCmd = &cobra.Command{
	Use:   "refresh <connection-id> <read|write>",
	Short: "Force a refresh of one token",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		typ, err := token.ParseType(args[1])
		if err != nil {
			return err
		}
		a, err := newApp()
		if err != nil {
			return err
		}
		tok, err := a.tokens.Refresh(cmd.Context(), id, typ)
		if err != nil {
			return err
		}
		a.log.Info("Token refreshed",
			zap.Uint("connection_id", id),
			zap.String("type", string(typ)),
			zap.Timep("expires_at", tok.ExpiresAt))
		return nil
	},
}

func init() {
	tokensCmd.AddCommand(tokensDiagnosticsCmd, tokensRefreshCmd)
	RootCmd.AddCommand(tokensCmd)
}

func parseID(s string) (uint, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return uint(n), nil
}
