package cmd

import (
	"fmt"
	"os"

	"github.com/chew-z/llm-nodes/internal/server"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "llm-nodes",
	Short: "Image caption and LLM response nodes for OpenAI-compatible endpoints",
	Long: `llm-nodes provides two processing nodes backed by an OpenAI-compatible
chat-completions endpoint:

  XZImageToText   captions one or more images with a text prompt
  XZLlmResponse   answers a user message, with an optional system prompt

Run a node once from the command line, or start the node server so a
node-graph host can fetch the node schemas and execute them over HTTP.`,
	Version: server.Version,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("base-url", "", "Chat completions base URL (default from config)")
	rootCmd.PersistentFlags().String("api-key", "", "API key (default from config or XZ_API_KEY/OPENAI_API_KEY)")
	rootCmd.PersistentFlags().String("model", "", "Model ID (default from config)")
}
