package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/nfrund/relay/internal/message"
)

var chatURL string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Connect to a relay from the terminal",
	Long: `Opens a WebSocket connection to a relay. The first line you type is your
display name. After that:

  /users       list connected participants
  /cmd <text>  send a command to the server
  anything     send a chat message to everyone`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		return runChat(ctx, chatURL, cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

func init() {
	chatCmd.Flags().StringVar(&chatURL, "url", "ws://127.0.0.1:8080/ws", "relay WebSocket URL")
	rootCmd.AddCommand(chatCmd)
}

func runChat(ctx context.Context, url string, in io.Reader, out io.Writer) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", url, err)
	}
	defer conn.Close()

	readErr := make(chan error, 1)
	go func() {
		readErr <- printIncoming(conn, out)
	}()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	named := false
	for {
		select {
		case <-ctx.Done():
			return closeChat(conn)
		case err := <-readErr:
			return err
		case line, ok := <-lines:
			if !ok {
				return closeChat(conn)
			}
			payload := line
			if named {
				env := parseInput(line)
				if env == nil {
					continue
				}
				payload = message.Encode(env)
			}
			named = true
			if err := conn.WriteMessage(websocket.TextMessage, []byte(payload)); err != nil {
				return fmt.Errorf("send: %w", err)
			}
		}
	}
}

// printIncoming writes every frame from the relay to out until the connection ends.
func printIncoming(conn *websocket.Conn, out io.Writer) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("receive: %w", err)
		}
		env, err := message.Decode(string(data))
		if err != nil {
			fmt.Fprintln(out, string(data))
			continue
		}
		fmt.Fprintln(out, message.Format(env))
	}
}

func closeChat(conn *websocket.Conn) error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := conn.WriteMessage(websocket.CloseMessage, msg); err != nil {
		return fmt.Errorf("close: %w", err)
	}
	return nil
}

// parseInput turns a typed line into an envelope. Blank lines yield nil.
func parseInput(line string) message.Envelope {
	trimmed := strings.TrimSpace(line)
	switch {
	case trimmed == "":
		return nil
	case trimmed == "/users":
		return message.RosterRequest{}
	case strings.HasPrefix(trimmed, "/cmd "):
		return message.Command{Raw: strings.TrimSpace(strings.TrimPrefix(trimmed, "/cmd "))}
	default:
		return message.Chat{Text: line}
	}
}
