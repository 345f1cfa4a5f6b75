package main

import (
	"bufio"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/spf13/cobra"
)

var tailSource string

var tailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Tail the live event stream",
	Args:  cobra.NoArgs,
	RunE:  runTail,
}

func init() {
	tailCmd.Flags().StringVar(&tailSource, "source", "", "only follow this source's room")
}

func runTail(cmd *cobra.Command, args []string) error {
	u := serverURL + "/api/logs/stream"
	if tailSource != "" {
		u += "?source=" + url.QueryEscape(tailSource)
	}

	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, u, nil)
	if err != nil {
		return err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("stream failed: server returned %d", resp.StatusCode)
	}

	// Minimal SSE reader: "event:" names the message, "data:" carries
	// the payload, a blank line ends one message.
	var event string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data := strings.TrimPrefix(line, "data: ")
			// When following a room, the all-logs feed duplicates the
			// room feed; show only the scoped one.
			if tailSource != "" && event == "log" {
				continue
			}
			fmt.Printf("[%s] %s\n", event, data)
		}
	}
	return scanner.Err()
}
