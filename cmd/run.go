package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/chew-z/llm-nodes/internal/api"
	"github.com/chew-z/llm-nodes/internal/chat"
	"github.com/chew-z/llm-nodes/internal/config"
	"github.com/chew-z/llm-nodes/internal/nodes"
	"github.com/chew-z/llm-nodes/internal/pixels"
	"github.com/spf13/cobra"
)

var captionCmd = &cobra.Command{
	Use:   "caption --image FILE [--image FILE...]",
	Short: "Caption images with the XZImageToText node",
	Long: `Caption one or more PNG, JPEG or GIF images. Each image is sent as its own
request, in order. A single image prints its caption as plain text. Several
images print {"caption": [...]} as JSON unless --json=false is given, in which
case each caption is followed by a "---" separator line.`,
	Args: cobra.NoArgs,
	Run:  runCaption,
}

var respondCmd = &cobra.Command{
	Use:   "respond --message TEXT",
	Short: "Get a response with the XZLlmResponse node",
	Long: `Send a user message, preceded by the system prompt unless it is empty,
and print the model's response.`,
	Args: cobra.NoArgs,
	Run:  runRespond,
}

func init() {
	rootCmd.AddCommand(captionCmd)
	rootCmd.AddCommand(respondCmd)

	captionCmd.Flags().StringSliceP("image", "i", nil, "Image file to caption (repeatable)")
	captionCmd.Flags().StringP("prompt", "P", nodes.DefaultPrompt, "Caption prompt")
	captionCmd.Flags().Uint64("seed", 0, "Seed forwarded to the model")
	captionCmd.Flags().Bool("json", false, "Print the node output as JSON (default when captioning several images)")
	_ = captionCmd.MarkFlagRequired("image")

	respondCmd.Flags().StringP("message", "m", "", "User message")
	respondCmd.Flags().StringP("system", "s", nodes.DefaultSystemPrompt, "System prompt (empty to omit)")
	respondCmd.Flags().Uint64("seed", 0, "Seed forwarded to the model")
	respondCmd.Flags().Bool("json", false, "Print the node output as JSON")
}

// loadRunConfig loads config and applies the connection flags on top.
func loadRunConfig(cmd *cobra.Command) *config.Config {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	flags := cmd.Flags()
	if flags.Changed("base-url") {
		cfg.BaseURL, _ = flags.GetString("base-url")
	}
	if flags.Changed("api-key") {
		cfg.APIKey, _ = flags.GetString("api-key")
	}
	if flags.Changed("model") {
		cfg.ModelID, _ = flags.GetString("model")
	}

	setupLogging(cfg.Debug)
	return cfg
}

func setupLogging(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// captionSeparator follows each caption in plain multi-image output.
const captionSeparator = "---"

// captionsAsJSON reports whether n captions print as JSON. An explicit
// --json wins; otherwise several captions default to JSON.
func captionsAsJSON(flagSet, flagValue bool, n int) bool {
	if flagSet {
		return flagValue
	}
	return n > 1
}

func printOutput(w io.Writer, asJSON bool, name string, value any) error {
	if asJSON {
		out, err := json.Marshal(map[string]any{name: value})
		if err != nil {
			return fmt.Errorf("failed to encode output: %w", err)
		}
		_, err = fmt.Fprintln(w, string(out))
		return err
	}
	switch v := value.(type) {
	case nodes.Captions:
		if len(v) == 1 {
			_, err := fmt.Fprintln(w, v[0])
			return err
		}
		for _, c := range v {
			if _, err := fmt.Fprintf(w, "%s\n%s\n", c, captionSeparator); err != nil {
				return err
			}
		}
		return nil
	default:
		_, err := fmt.Fprintln(w, v)
		return err
	}
}

func runCaption(cmd *cobra.Command, args []string) {
	cfg := loadRunConfig(cmd)

	files, _ := cmd.Flags().GetStringSlice("image")
	prompt, _ := cmd.Flags().GetString("prompt")
	seed, _ := cmd.Flags().GetUint64("seed")
	asJSON, _ := cmd.Flags().GetBool("json")

	params := api.CaptionParams{
		Seed:    seed,
		BaseURL: cfg.BaseURL,
		APIKey:  cfg.APIKey,
		ModelID: cfg.ModelID,
		Prompt:  prompt,
	}

	images := make([]pixels.Image, 0, len(files))
	for _, f := range files {
		img, err := pixels.LoadFile(f)
		if err != nil {
			log.Fatalf("Failed to load image: %v", err)
		}
		images = append(images, img)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := chat.NewClient(chat.WithTimeout(cfg.Timeout))
	captions, err := nodes.NewCaptioner(client).Run(ctx, images, params)
	if err != nil {
		log.Fatalf("Caption failed: %v", err)
	}

	asJSON = captionsAsJSON(cmd.Flags().Changed("json"), asJSON, len(captions))
	if err := printOutput(cmd.OutOrStdout(), asJSON, "caption", captions); err != nil {
		log.Fatal(err)
	}
}

func runRespond(cmd *cobra.Command, args []string) {
	cfg := loadRunConfig(cmd)

	message, _ := cmd.Flags().GetString("message")
	system, _ := cmd.Flags().GetString("system")
	seed, _ := cmd.Flags().GetUint64("seed")
	asJSON, _ := cmd.Flags().GetBool("json")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := chat.NewClient(chat.WithTimeout(cfg.Timeout))
	text, err := nodes.NewResponder(client).Run(ctx, api.ResponseParams{
		Seed:         seed,
		BaseURL:      cfg.BaseURL,
		APIKey:       cfg.APIKey,
		ModelID:      cfg.ModelID,
		SystemPrompt: system,
		UserMessage:  message,
	})
	if err != nil {
		log.Fatalf("Response failed: %v", err)
	}

	if err := printOutput(cmd.OutOrStdout(), asJSON, "response", text); err != nil {
		log.Fatal(err)
	}
}
