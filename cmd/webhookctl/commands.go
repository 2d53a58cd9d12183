package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"telnyx-webhooks/internal/common/logging"
	"telnyx-webhooks/internal/signature"
)

// errRejected is returned by verify after the reason has been printed
var errRejected = errors.New("webhook rejected")

// fixture is the document written by sign --json. verify decodes fixtures
// into a generic map instead, so wrongly typed fields are reported as
// invalid_parameters.
type fixture struct {
	Payload   string `json:"payload"`
	Signature string `json:"signature"`
	Timestamp string `json:"timestamp"`
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func newRootCmd(out io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "webhookctl",
		Short:         "Generate keys, sign and verify Ed25519 webhook deliveries",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)

	root.AddCommand(newKeygenCmd(), newSignCmd(), newVerifyCmd())
	return root
}

func newKeygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Generate an Ed25519 key pair (base64)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pub, priv, err := signature.GenerateKeyPair()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "public_key=%s\nprivate_key=%s\n", pub, priv)
			return nil
		},
	}
}

func newSignCmd() *cobra.Command {
	var (
		privateKey  = envOr("TELNYX_PRIVATE_KEY", "")
		timestamp   string
		payloadFile string
		asJSON      bool
	)

	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Sign a payload the way the provider does",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if privateKey == "" {
				return fmt.Errorf("--private-key is required (or env TELNYX_PRIVATE_KEY)")
			}
			priv, err := signature.ParsePrivateKey(privateKey)
			if err != nil {
				return err
			}

			payload, err := readPayload(cmd, payloadFile)
			if err != nil {
				return err
			}

			if timestamp == "" {
				timestamp = strconv.FormatInt(time.Now().Unix(), 10)
			}
			sig := signature.Sign(priv, timestamp, payload)

			w := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(fixture{Payload: string(payload), Signature: sig, Timestamp: timestamp})
			}
			fmt.Fprintf(w, "%s: %s\n%s: %s\n", signature.SignatureHeader, sig, signature.TimestampHeader, timestamp)
			return nil
		},
	}

	cmd.Flags().StringVar(&privateKey, "private-key", privateKey, "Base64 Ed25519 private key or seed (env TELNYX_PRIVATE_KEY)")
	cmd.Flags().StringVar(&timestamp, "timestamp", "", "Unix timestamp to sign (default: now)")
	cmd.Flags().StringVar(&payloadFile, "payload-file", "-", "File holding the raw payload, - for stdin")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print a fixture document for verify")
	return cmd
}

func newVerifyCmd() *cobra.Command {
	var (
		publicKey   = envOr("TELNYX_PUBLIC_KEY", "")
		fixturePath string
		tolerance   int64
		now         int64
	)

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify a captured delivery from a JSON fixture",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if fixturePath == "" {
				return fmt.Errorf("--fixture is required")
			}
			data, err := os.ReadFile(fixturePath)
			if err != nil {
				return fmt.Errorf("failed to read fixture: %w", err)
			}

			var doc map[string]any
			if err := json.Unmarshal(data, &doc); err != nil {
				return fmt.Errorf("failed to parse fixture: %w", err)
			}

			verifierOpts := []signature.VerifierOption{signature.WithLogger(logging.NewNopLogger())}
			if now > 0 {
				at := time.Unix(now, 0)
				verifierOpts = append(verifierOpts, signature.WithClock(func() time.Time { return at }))
			}
			v := signature.NewVerifier(signature.Config{PublicKey: publicKey}, verifierOpts...)

			var opts []signature.Option
			if cmd.Flags().Changed("tolerance") {
				opts = append(opts, signature.WithTolerance(signature.ToleranceSeconds(tolerance)))
			}

			outcome := v.VerifyValues(doc["payload"], doc["signature"], doc["timestamp"], opts...)

			w := cmd.OutOrStdout()
			if !outcome.Accepted() {
				fmt.Fprintf(w, "rejected: %s (%s)\n", outcome.Reason(), outcome.Reason().Message())
				return errRejected
			}
			fmt.Fprintln(w, "accepted")
			return nil
		},
	}

	cmd.Flags().StringVar(&publicKey, "public-key", publicKey, "Base64 Ed25519 public key (env TELNYX_PUBLIC_KEY)")
	cmd.Flags().StringVar(&fixturePath, "fixture", "", "JSON file with payload, signature and timestamp")
	cmd.Flags().Int64Var(&tolerance, "tolerance", 300, "Allowed clock distance in seconds")
	cmd.Flags().Int64Var(&now, "now", 0, "Verify as of this Unix time instead of the current clock")
	return cmd
}

func readPayload(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" || path == "" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read payload: %w", err)
	}
	return data, nil
}
