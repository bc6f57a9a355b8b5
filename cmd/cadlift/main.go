// Package main provides the entry point for the CADLift generation service.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Vartmor/CADLift-sub001/internal/config"
	"github.com/Vartmor/CADLift-sub001/internal/observability"
)

var (
	configPath string
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "cadlift",
	Short: "CADLift 3D generation service",
	Long:  "CADLift turns images, text prompts and parametric CAD programs into repaired, scored and exported 3D meshes.",
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if err := loaded.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
		observability.SetupLogging(loaded.Log.Level, loaded.Log.Format, cmd.ErrOrStderr())
		cfg = loaded
		return nil
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a config file (environment variables take precedence)")
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
