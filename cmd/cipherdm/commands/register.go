package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"cipherdm/internal/crypto"
)

func registerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "register",
		Short: "Publish your public key to the backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePassphrase(); err != nil {
				return err
			}
			id, err := wire.Identity.LoadIdentity(passphrase)
			if err != nil {
				return err
			}
			spki, err := crypto.EncodeSPKI(id.Public)
			if err != nil {
				return err
			}
			if err := wire.Relay.RegisterPublicKey(cmd.Context(), id.Username, spki); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registered %s (%s)\n", id.Username, crypto.Fingerprint(id.Public))
			return nil
		},
	}
}
