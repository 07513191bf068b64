package commands

import (
	"sync"

	"github.com/spf13/cobra"

	"cipherdm/internal/domain"
	chatsvc "cipherdm/internal/services/chat"
)

func listenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "listen",
		Short: "Load your chats and print new messages as they arrive",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePassphrase(); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			var mu sync.Mutex
			notify := chatsvc.WithNotify(func(id domain.ChatID, m domain.DisplayMessage) {
				mu.Lock()
				defer mu.Unlock()
				printMessage(out, id, m)
			})

			s, err := wire.Open(passphrase, notify)
			if err != nil {
				return err
			}
			return s.Follow(cmd.Context(), func() {
				mu.Lock()
				defer mu.Unlock()
				for _, c := range s.Chats.Chats() {
					printChat(out, c)
				}
			})
		},
	}
}
