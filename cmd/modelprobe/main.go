// Command modelprobe checks which Gemini models GEMINI_API_KEY can reach and
// whether a given model answers.  Developer tooling only.
package main

import (
	"context"
	"fmt"
	"io"
	"iter"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/iliyamo/stuffworth/internal/logging"
)

var (
	// Global flags
	apiKey  string
	timeout time.Duration
	verbose bool

	// Logger
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "modelprobe",
	Short: "Probe Gemini model availability for the configured API key",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		level := "info"
		if verbose {
			level = "debug"
		}
		var err error
		logger, err = logging.New("dev", level)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List models and the actions each supports",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()
		client, err := newClient(ctx)
		if err != nil {
			return err
		}
		n, err := listModels(cmd.OutOrStdout(), client.Models.All(ctx), cmd.Flag("filter").Value.String())
		logger.Debug("listed models", zap.Int("count", n))
		return err
	},
}

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Send a one-line prompt to a model and print the reply",
	RunE: func(cmd *cobra.Command, args []string) error {
		model, _ := cmd.Flags().GetString("model")
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()
		client, err := newClient(ctx)
		if err != nil {
			return err
		}
		return ping(ctx, cmd.OutOrStdout(), client.Models, model)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "Gemini API key (defaults to GEMINI_API_KEY)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "request timeout")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	listCmd.Flags().String("filter", "", "only show models whose name contains this text")
	pingCmd.Flags().String("model", "gemini-2.5-flash", "model to ping")

	rootCmd.AddCommand(listCmd, pingCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newClient(ctx context.Context) (*genai.Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is not set")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return client, nil
}

// listModels prints one line per model and returns how many were printed.
func listModels(w io.Writer, models iter.Seq2[*genai.Model, error], filter string) (int, error) {
	n := 0
	for m, err := range models {
		if err != nil {
			return n, fmt.Errorf("list models: %w", err)
		}
		name := strings.TrimPrefix(m.Name, "models/")
		if filter != "" && !strings.Contains(name, filter) {
			continue
		}
		fmt.Fprintf(w, "%-40s %s\n", name, strings.Join(m.SupportedActions, ","))
		n++
	}
	return n, nil
}

type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

func ping(ctx context.Context, w io.Writer, g generator, model string) error {
	start := time.Now()
	resp, err := g.GenerateContent(ctx, model, genai.Text("Reply with the single word: pong"), nil)
	if err != nil {
		return fmt.Errorf("ping %s: %w", model, err)
	}
	fmt.Fprintf(w, "%s replied in %s: %s\n", model, time.Since(start).Round(time.Millisecond), strings.TrimSpace(resp.Text()))
	return nil
}
