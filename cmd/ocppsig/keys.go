package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/OpenChargingCloud/WWCP-OCPP-sub134/crypto"
)

var (
	keysCurve       string
	keysEncoding    string
	keysName        string
	keysDescription string
	keysOut         string
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage signing keys",
}

var keysGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a key pair",
	Long: `Generates a fresh key pair on the given curve and prints it as JSON.

The signer name and description are stored with the key and end up in
every signature made with it.`,
	Args: cobra.NoArgs,
	RunE: runKeysGenerate,
}

func init() {
	keysGenerateCmd.Flags().StringVar(&keysCurve, "curve", string(crypto.DefaultCurve),
		"Elliptic curve, one of "+curveNames())
	keysGenerateCmd.Flags().StringVar(&keysEncoding, "encoding", string(crypto.EncodingBase64),
		"Encoding of the key material, base64 or hex")
	keysGenerateCmd.Flags().StringVar(&keysName, "name", "", "Signer name")
	keysGenerateCmd.Flags().StringVar(&keysDescription, "description", "", "Signer description")
	keysGenerateCmd.Flags().StringVarP(&keysOut, "out", "o", "", "Output file, standard output if empty")

	keysCmd.AddCommand(keysGenerateCmd)
	rootCmd.AddCommand(keysCmd)
}

func runKeysGenerate(cmd *cobra.Command, _ []string) error {
	kp := crypto.GenerateKeys(crypto.Curve(keysCurve))
	if kp == nil {
		return fmt.Errorf("%w: %s", crypto.ErrUnsupportedCurve, keysCurve)
	}

	switch enc := crypto.Encoding(keysEncoding); enc {
	case crypto.EncodingBase64, crypto.EncodingHex:
		kp.Encoding = enc
	default:
		return fmt.Errorf("unsupported encoding %q", keysEncoding)
	}

	role := kp.ToRole(crypto.WithSignerName(keysName), crypto.WithDescription(keysDescription))
	data, err := json.MarshalIndent(role, "", "  ")
	if err != nil {
		return err
	}
	return writeOutput(cmd, keysOut, data)
}

func curveNames() string {
	curves := crypto.Curves()
	names := make([]string, len(curves))
	for i, c := range curves {
		names[i] = c.String()
	}
	return strings.Join(names, ", ")
}
