package cmd

import (
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chew-z/llm-nodes/internal/server"
	"github.com/spf13/cobra"
)

const (
	defaultHost = "127.0.0.1"
	defaultPort = 8189
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the node server",
	Long: `Start the node server. It publishes the node schemas under /object_info
and runs a node per POST /nodes/<name>/run request.`,
	Run: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("host", "H", defaultHost, "Host to bind the server to")
	serveCmd.Flags().IntP("port", "p", defaultPort, "Port to listen on")
	serveCmd.Flags().BoolP("debug", "d", false, "Enable debug mode (verbose logging)")
	serveCmd.Flags().BoolP("verbose", "v", false, "Enable terminal output")
}

func runServe(cmd *cobra.Command, args []string) {
	cfg := loadRunConfig(cmd)

	// The API key may also arrive per request, so only warn
	if cfg.APIKey == "" {
		log.Print("No API key configured; requests must carry api_key. Set one with 'llm-nodes config set api_key KEY' or XZ_API_KEY.")
	}

	host, err := cmd.Flags().GetString("host")
	if err != nil {
		log.Fatalf("Failed to get host flag: %v", err)
	}
	port, err := cmd.Flags().GetInt("port")
	if err != nil {
		log.Fatalf("Failed to get port flag: %v", err)
	}

	// Flags win; config applies only when the flag was left at its default
	if !cmd.Flags().Changed("host") && cfg.Host != "" {
		host = cfg.Host
	}
	if !cmd.Flags().Changed("port") && cfg.Port != 0 {
		port = cfg.Port
	}

	debug, err := cmd.Flags().GetBool("debug")
	if err != nil {
		log.Fatalf("Failed to get debug flag: %v", err)
	}
	if debug {
		cfg.Debug = true
	}

	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		log.Fatalf("Failed to get verbose flag: %v", err)
	}
	if verbose {
		cfg.Verbose = true
	}

	setupLogging(cfg.Debug)

	srv := server.NewServer(cfg, host, port)

	go func() {
		if cfg.Verbose {
			log.Printf("Starting node server on %s:%d", host, port)
			log.Printf("Base URL: %s, model: %s", cfg.BaseURL, cfg.ModelID)
		}
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := server.CreateShutdownContext(30 * time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited gracefully")
}
