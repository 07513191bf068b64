package commands

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"cipherdm/internal/domain"
)

func newChatCmd() *cobra.Command {
	var group bool
	cmd := &cobra.Command{
		Use:   "new-chat <name> <participant>...",
		Short: "Create a chat; without --group exactly one other participant is allowed",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePassphrase(); err != nil {
				return err
			}
			id, err := wire.Identity.LoadIdentity(passphrase)
			if err != nil {
				return err
			}
			kind := domain.ChatDirect
			if group {
				kind = domain.ChatGroup
			}
			members := []domain.Username{id.Username}
			for _, a := range args[1:] {
				if u := domain.Username(a); u != id.Username {
					members = append(members, u)
				}
			}
			if kind == domain.ChatDirect && len(members) != 2 {
				return fmt.Errorf("a direct chat needs exactly one other participant")
			}
			chatID, err := wire.Relay.CreateChat(cmd.Context(), args[0], kind, members)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s chat %d\n", kind, chatID)
			return nil
		},
	}
	cmd.Flags().BoolVar(&group, "group", false, "create a plaintext group chat")
	return cmd
}

func chatsCmd() *cobra.Command {
	var only int64
	cmd := &cobra.Command{
		Use:   "chats",
		Short: "Print your chats with decrypted history",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, c := range s.Chats.Chats() {
				if only != 0 && c.ID != domain.ChatID(only) {
					continue
				}
				printChat(out, c)
				msgs, err := s.Chats.View(c.ID)
				if err != nil {
					return err
				}
				for _, m := range msgs {
					printMessage(out, c.ID, m)
				}
				_ = s.Chats.MarkRead(c.ID)
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&only, "chat", 0, "only print this chat id")
	return cmd
}

func sendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send <chatID> <message>",
		Short: "Send a message; direct chats are encrypted end to end",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || n <= 0 {
				return fmt.Errorf("invalid chat id %q", args[0])
			}
			s, err := openSession(cmd.Context())
			if err != nil {
				return err
			}
			if err := s.Chats.Send(cmd.Context(), domain.ChatID(n), strings.Join(args[1:], " ")); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "sent")
			return nil
		},
	}
}

func printChat(w io.Writer, c domain.ChatSummary) {
	label := "group"
	if c.Kind == domain.ChatDirect {
		label = "e2e with " + c.Peer.String()
	}
	fmt.Fprintf(w, "== %d %s (%s) [%s, %d unread]\n", c.ID, c.Name, label, c.State, c.Unread)
}

func printMessage(w io.Writer, chat domain.ChatID, m domain.DisplayMessage) {
	text := m.Content
	if m.Pending {
		text = "(decrypting...)"
	}
	lock := " "
	if m.Encrypted {
		lock = "*"
	}
	fmt.Fprintf(w, "%d %s %s[%s] %s\n", chat, m.Timestamp, lock, m.Sender, text)
}
