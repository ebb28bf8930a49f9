package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/OpenChargingCloud/WWCP-OCPP-sub134/crypto"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "ocppsig",
	Short: "Sign, verify and relay OCPP messages",
	Long: `ocppsig works with digitally signed OCPP messages.

It can:
  • Generate elliptic curve key pairs for message signing
  • Sign JSON messages, adding to the signatures already present
  • Verify all signatures of a message under a verification policy
  • Run a relay node which verifies and forwards signed messages over libp2p`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(*cobra.Command, []string) {
		if verbose {
			slog.SetLogLoggerLevel(slog.LevelDebug)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

// readInput reads the named file, or standard input for "-".
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return data, nil
}

// writeOutput writes data to the named file, or standard output for an empty path or "-".
func writeOutput(cmd *cobra.Command, path string, data []byte) error {
	if path == "" || path == "-" {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return err
	}

	err := os.WriteFile(path, append(data, '\n'), 0o600)
	if err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func indentJSON(data []byte) ([]byte, error) {
	var v json.RawMessage = data
	return json.MarshalIndent(v, "", "  ")
}

func loadRole(cmd *cobra.Command, path string) (*crypto.SignerRole, error) {
	data, err := readInput(cmd, path)
	if err != nil {
		return nil, err
	}

	role, err := crypto.ParseSignerRole(data)
	if err != nil {
		return nil, fmt.Errorf("loading key %s: %w", path, err)
	}
	return role, nil
}
