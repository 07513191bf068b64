package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"cipherdm/internal/domain"
)

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Generate identity keys and store them securely",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePassphrase(); err != nil {
				return err
			}
			if wire.Config.Username == "" {
				return errors.New("username required (--username)")
			}
			if ok, err := wire.Store.HasIdentity(); err != nil {
				return err
			} else if ok {
				return errors.New("identity already exists; remove it first to rotate")
			}
			_, fp, err := wire.Identity.GenerateIdentity(passphrase, domain.Username(wire.Config.Username))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Identity created.\nFingerprint: %s\n", fp)
			return nil
		},
	}
}

func importCmd() *cobra.Command {
	var privateKey, publicKey string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a base64 PKCS#8 private key and SPKI public key",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePassphrase(); err != nil {
				return err
			}
			if wire.Config.Username == "" {
				return errors.New("username required (--username)")
			}
			_, fp, err := wire.Identity.ImportIdentity(
				passphrase, domain.Username(wire.Config.Username), privateKey, publicKey)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Identity imported.\nFingerprint: %s\n", fp)
			return nil
		},
	}
	cmd.Flags().StringVar(&privateKey, "private", "", "base64 PKCS#8 X25519 private key")
	cmd.Flags().StringVar(&publicKey, "public", "", "base64 SPKI X25519 public key")
	_ = cmd.MarkFlagRequired("private")
	_ = cmd.MarkFlagRequired("public")
	return cmd
}
