package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"github.com/user/logpipe/internal/client"
	"github.com/user/logpipe/internal/domain"
)

var (
	sendLevel  string
	sendSource string
	sendMeta   string
)

var sendCmd = &cobra.Command{
	Use:   "send <message>",
	Short: "Send one log event through the producer client",
	Args:  cobra.ExactArgs(1),
	RunE:  runSend,
}

func init() {
	sendCmd.Flags().StringVar(&sendLevel, "level", "info", "event level")
	sendCmd.Flags().StringVar(&sendSource, "source", "logctl", "event source")
	sendCmd.Flags().StringVar(&sendMeta, "meta", "", "metadata as a JSON object")
}

func runSend(cmd *cobra.Command, args []string) error {
	level, err := domain.ParseLevel(sendLevel)
	if err != nil {
		return err
	}

	var meta json.RawMessage
	if sendMeta != "" {
		if !json.Valid([]byte(sendMeta)) {
			return fmt.Errorf("--meta is not valid JSON: %s", sendMeta)
		}
		meta = json.RawMessage(sendMeta)
	}

	c, err := client.New(client.Config{
		ServerURL:     serverURL + "/api/logs",
		Source:        sendSource,
		FlushInterval: 200 * time.Millisecond,
		Logger:        slog.Default(),
	})
	if err != nil {
		return err
	}

	c.Send(domain.NewLogEvent(level, args[0], sendSource, "logctl", meta))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	c.Flush(ctx)

	if err := c.Close(); err != nil {
		return err
	}

	stats := c.Stats()
	if stats.Delivered == 0 {
		return fmt.Errorf("event was not delivered (state: %s)", stats.State)
	}
	fmt.Println("delivered")
	return nil
}
