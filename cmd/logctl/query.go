package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/user/logpipe/internal/domain"
	"github.com/user/logpipe/internal/usecase"
)

var (
	flagLevel  string
	flagSearch string
	flagRange  string
	flagOutput string
)

var queryCmd = &cobra.Command{
	Use:   "query [source]",
	Short: "Query stored log events",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runQuery,
}

var exportCmd = &cobra.Command{
	Use:   "export [source]",
	Short: "Export stored log events to a file",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runExport,
}

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List known log sources",
	Args:  cobra.NoArgs,
	RunE:  runSources,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate event counts",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func init() {
	for _, cmd := range []*cobra.Command{queryCmd, exportCmd} {
		cmd.Flags().StringVar(&flagLevel, "level", "", "filter by level (debug|info|warn|error)")
		cmd.Flags().StringVar(&flagSearch, "search", "", "case-insensitive substring filter")
		cmd.Flags().StringVar(&flagRange, "range", "", "time range, e.g. 15m, 24h, 7d")
	}
	exportCmd.Flags().StringVarP(&flagOutput, "output", "o", "", "output file (default stdout)")
}

func queryURL(path string, args []string) string {
	u := serverURL + path
	if len(args) == 1 {
		u += "/" + url.PathEscape(args[0])
	}
	params := url.Values{}
	if flagLevel != "" {
		params.Set("level", flagLevel)
	}
	if flagSearch != "" {
		params.Set("search", flagSearch)
	}
	if flagRange != "" {
		params.Set("timeRange", flagRange)
	}
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return u
}

func getJSON(u string, data any) error {
	resp, err := http.Get(u)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   string          `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if !env.Success {
		return fmt.Errorf("server error: %s", env.Error)
	}
	return json.Unmarshal(env.Data, data)
}

func runQuery(cmd *cobra.Command, args []string) error {
	var events []domain.LogEvent
	if err := getJSON(queryURL("/api/logs", args), &events); err != nil {
		return err
	}

	for _, e := range events {
		fmt.Printf("%s  %-5s  %-16s  %s\n",
			e.Timestamp.Local().Format(time.RFC3339), e.Level, e.Source, e.Message)
	}
	fmt.Fprintf(os.Stderr, "%d events\n", len(events))
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	resp, err := http.Get(queryURL("/api/logs/export", args))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("export failed: server returned %d", resp.StatusCode)
	}

	out := os.Stdout
	if flagOutput != "" {
		f, err := os.Create(flagOutput)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	n, err := io.Copy(out, resp.Body)
	if err != nil {
		return err
	}
	if flagOutput != "" {
		fmt.Fprintf(os.Stderr, "wrote %d bytes to %s\n", n, flagOutput)
	}
	return nil
}

func runSources(cmd *cobra.Command, args []string) error {
	var sources []string
	if err := getJSON(serverURL+"/api/logs/sources", &sources); err != nil {
		return err
	}
	for _, s := range sources {
		fmt.Println(s)
	}
	return nil
}

func runStats(cmd *cobra.Command, args []string) error {
	var stats usecase.LogStats
	if err := getJSON(serverURL+"/api/logs/stats", &stats); err != nil {
		return err
	}

	fmt.Printf("total: %d\n", stats.Total)
	fmt.Println("by level:")
	for level, count := range stats.ByLevel {
		fmt.Printf("  %-5s %d\n", level, count)
	}
	fmt.Println("by source:")
	for source, count := range stats.BySource {
		fmt.Printf("  %-16s %d\n", source, count)
	}
	return nil
}
