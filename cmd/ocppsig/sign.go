package main

import (
	"encoding/json"
	"time"

	"github.com/spf13/cobra"

	ocpp "github.com/OpenChargingCloud/WWCP-OCPP-sub134"
	"github.com/OpenChargingCloud/WWCP-OCPP-sub134/crypto"
	"github.com/OpenChargingCloud/WWCP-OCPP-sub134/crypto/local"
)

var (
	signKey       string
	signContext   string
	signTimestamp bool
	signOut       string
)

var signCmd = &cobra.Command{
	Use:   "sign <message.json|->",
	Short: "Sign a JSON message",
	Long: `Signs the message body and prints the message with the new signature
appended to its signatures field. Signatures already present are kept, so
several parties can co-sign one message in turn.`,
	Args: cobra.ExactArgs(1),
	RunE: runSign,
}

func init() {
	signCmd.Flags().StringVarP(&signKey, "key", "k", "", "Key file as written by 'keys generate'")
	signCmd.Flags().StringVarP(&signContext, "context", "c", "", "JSON-LD context of the message")
	signCmd.Flags().BoolVar(&signTimestamp, "timestamp", true, "Record the signing time")
	signCmd.Flags().StringVarP(&signOut, "out", "o", "", "Output file, standard output if empty")
	_ = signCmd.MarkFlagRequired("key")

	rootCmd.AddCommand(signCmd)
}

func runSign(cmd *cobra.Command, args []string) error {
	role, err := loadRole(cmd, signKey)
	if err != nil {
		return err
	}
	if signTimestamp {
		role = role.KeyPair.ToRole(
			crypto.WithSignerName(role.SignerName(nil)),
			crypto.WithDescription(role.Description(nil)),
			crypto.WithTimestampFunc(func(any) time.Time { return time.Now() }),
		)
	}

	signer, err := local.NewSigner(role)
	if err != nil {
		return err
	}

	signed, err := readInput(cmd, args[0])
	if err != nil {
		return err
	}

	var data ocpp.SignableData
	body, err := data.LoadSignatures(signed)
	if err != nil {
		return err
	}

	if err = signer.Sign(json.RawMessage(body), signContext, &data); err != nil {
		return err
	}

	out, err := ocpp.AttachSignatures(body, data.Signatures())
	if err != nil {
		return err
	}
	if out, err = indentJSON(out); err != nil {
		return err
	}
	return writeOutput(cmd, signOut, out)
}
