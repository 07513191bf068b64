package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"cipherdm/internal/app"
)

var (
	configPath string
	passphrase string
	wire       *app.Wire
)

func Execute() error {
	root := &cobra.Command{
		Use:           "cipherdm",
		Short:         "End-to-end encrypted direct messaging client",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.LoadConfig(configPath, cmd.Flags())
			if err != nil {
				return err
			}
			if err := os.MkdirAll(cfg.Home, 0o700); err != nil {
				return err
			}
			log, err := app.NewLogger(cfg.Log, os.Stderr)
			if err != nil {
				return err
			}
			if passphrase == "" {
				passphrase = os.Getenv("CIPHERDM_PASSPHRASE")
			}
			wire, err = app.NewWire(cfg, log)
			return err
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "config file (default ./cipherdm.yaml or ~/.cipherdm/cipherdm.yaml)")
	pf.StringVarP(&passphrase, "passphrase", "p", "", "passphrase protecting the identity (or CIPHERDM_PASSPHRASE)")
	pf.String("home", "", "data dir (default ~/.cipherdm)")
	pf.String("username", "", "your username")
	pf.String("server", "", "backend base URL, e.g. https://localhost:5000")
	pf.Duration("timeout", 0, "HTTP request timeout")
	pf.StringSlice("pin", nil, "pinned certificate SHA-256 (base64), repeatable")
	pf.String("trust-mode", "", "certificate pinning mode: enforce or diagnostic")
	pf.String("root-ca", "", "extra root CA PEM file")
	pf.String("log-level", "", "log level")
	pf.String("log-format", "", "log format: auto, console or json")

	root.AddCommand(
		initCmd(),
		importCmd(),
		fingerprintCmd(),
		registerCmd(),
		newChatCmd(),
		chatsCmd(),
		sendCmd(),
		listenCmd(),
		pinsCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	err := root.ExecuteContext(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, "error:", err)
		return err
	}
	return nil
}

func requirePassphrase() error {
	if passphrase == "" {
		return errors.New("passphrase required (-p or CIPHERDM_PASSPHRASE)")
	}
	return nil
}

// openSession unlocks the identity and loads every chat.
func openSession(ctx context.Context) (*app.Session, error) {
	if err := requirePassphrase(); err != nil {
		return nil, err
	}
	s, err := wire.Open(passphrase)
	if err != nil {
		return nil, err
	}
	if err := s.Chats.Load(ctx); err != nil {
		return nil, fmt.Errorf("load chats: %w", err)
	}
	return s, nil
}
