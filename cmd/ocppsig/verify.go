package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	ocpp "github.com/OpenChargingCloud/WWCP-OCPP-sub134"
)

var (
	verifyContext string
	verifyPolicy  string
)

var verifyCmd = &cobra.Command{
	Use:   "verify <message.json|->",
	Short: "Verify the signatures of a JSON message",
	Long: `Verifies the signatures of a message and prints the status of each.

Policies:
  verifyAll         every signature must be valid, no signatures is an error
  verifyAny         one valid signature is enough, no signatures is an error
  acceptUnverified  messages without signatures pass, present ones must be valid

The command fails if the message does not satisfy the policy.`,
	Args: cobra.ExactArgs(1),
	RunE: runVerify,
}

func init() {
	verifyCmd.Flags().StringVarP(&verifyContext, "context", "c", "", "JSON-LD context of the message")
	verifyCmd.Flags().StringVarP(&verifyPolicy, "policy", "p", ocpp.VerifyAll.String(), "Verification policy")

	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
	policy, err := ocpp.ParseVerificationRuleActions(verifyPolicy)
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

	report, err := data.Verify(json.RawMessage(body), verifyContext, policy)
	printReport(cmd, report)
	return err
}

func printReport(cmd *cobra.Command, report ocpp.Report) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "#\tSTATUS\tALGORITHM\tSIGNER\tKEY ID")
	for i, res := range report.Results {
		status := color.GreenString(res.Status.String())
		if res.Status != ocpp.StatusValid {
			status = color.RedString(res.Status.String())
		}

		signer := res.Signature.Name
		if signer == "" {
			signer = "-"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", i, status, res.Signature.Algorithm, signer, shortKeyID(res.Signature.KeyID))
	}
}

func shortKeyID(keyID []byte) string {
	const keep = 8
	if len(keyID) <= keep*2 {
		return fmt.Sprintf("%X", keyID)
	}
	return fmt.Sprintf("%X..%X", keyID[:keep], keyID[len(keyID)-keep:])
}
