package main

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/tendant/simple-image/pkg/simpleimage/client"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	_ = godotenv.Load()

	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "imagectl",
		Short: "Image repository CLI",
		Long: `Command line client of the image repository.

Uploads images, resolves format URLs and downloads representations.
The repository address defaults to $SIMPLEIMAGE_URL.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().String("server", getEnv("SIMPLEIMAGE_URL", "http://localhost:8080"), "repository base URL")
	rootCmd.PersistentFlags().String("token", os.Getenv("SIMPLEIMAGE_TOKEN"), "bearer token for uploads")
	rootCmd.PersistentFlags().Duration("timeout", client.DefaultTimeout, "request timeout")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")

	rootCmd.AddCommand(NewUploadCommand())
	rootCmd.AddCommand(NewURLCommand())
	rootCmd.AddCommand(NewURLsCommand())
	rootCmd.AddCommand(NewFetchCommand())
	rootCmd.AddCommand(NewConvertCommand())

	return rootCmd
}

// newClientFromFlags creates a repository client from the global flags
func newClientFromFlags(cmd *cobra.Command) (*client.Client, error) {
	server, _ := cmd.Flags().GetString("server")
	token, _ := cmd.Flags().GetString("token")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	opts := []client.Option{client.WithTimeout(timeout)}
	if token != "" {
		opts = append(opts, client.WithBearerToken(token))
	}
	if verbose(cmd) {
		fmt.Fprintf(cmd.ErrOrStderr(), "Using repository %s\n", server)
	}
	return client.New(server, opts...)
}

func verbose(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("verbose")
	return v
}

func timeoutOf(cmd *cobra.Command) time.Duration {
	d, _ := cmd.Flags().GetDuration("timeout")
	return d
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
