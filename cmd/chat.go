package cmd

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tanpawarit/Chative-Slot-Booking/server"
)

func newChatCommand() *cobra.Command {
	var (
		from string
		url  string
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the booking assistant from the terminal",
		Long: "Runs the assistant in process, or against a running server's /sms-test " +
			"endpoint when --url is set. Type 'exit' to quit.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var handler server.MessageHandler
			if url != "" {
				handler = &remoteHandler{url: url, client: &http.Client{Timeout: 2 * time.Minute}}
			} else {
				a, err := buildApp(ctx)
				if err != nil {
					return err
				}
				defer a.Close()
				handler = a.orchestrator
			}
			return runChat(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), from, handler)
		},
	}
	cmd.Flags().StringVar(&from, "from", "+15551234567", "caller id to chat as")
	cmd.Flags().StringVar(&url, "url", "", "sms-test endpoint of a running server, e.g. http://localhost:8000/sms-test")
	return cmd
}

// runChat reads one message per line until EOF or "exit"/"quit".
func runChat(ctx context.Context, in io.Reader, out io.Writer, from string, h server.MessageHandler) error {
	fmt.Fprintln(out, "=== Chat with the booking assistant ===")
	fmt.Fprintln(out, "Type 'exit' to quit.")

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "You: ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(line) {
		case "exit", "quit":
			fmt.Fprintln(out, "Goodbye!")
			return nil
		}

		reply, err := h.HandleMessage(ctx, from, line)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			fmt.Fprintf(out, "Error: %v\n", err)
			continue
		}
		fmt.Fprintf(out, "Assistant: %s\n", reply)
	}
}

// remoteHandler sends turns to a running server's JSON test endpoint.
type remoteHandler struct {
	url    string
	client *http.Client
}

func (r *remoteHandler) HandleMessage(ctx context.Context, callerID string, text string) (string, error) {
	payload, err := json.Marshal(map[string]string{"From": callerID, "Body": text})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", errors.New(resp.Status + ": " + strings.TrimSpace(string(body)))
	}
	return string(body), nil
}
