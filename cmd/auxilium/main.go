package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/selkane/auxilium/internal/config"
	"github.com/selkane/auxilium/internal/observability"
)

var (
	cfgFile string
	v       *viper.Viper
)

var rootCmd = &cobra.Command{
	Use:           "auxilium",
	Short:         "Multilingual, multimodal conversation core",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		v, err = config.NewViper(cfgFile)
		if err != nil {
			return err
		}
		if err := v.BindPFlags(cmd.Flags()); err != nil {
			return err
		}
		return v.BindPFlags(cmd.InheritedFlags())
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default ./auxilium.yaml or $HOME/.auxilium/auxilium.yaml)")
	pf.String("mode", "local", "local or gcp")
	pf.String("llm-backend", "", "gemini, vertex or mock (default depends on mode and api key)")
	pf.String("api-key", "", "Gemini API key")
	pf.String("gcp-project", "", "Google Cloud project for vertex and firestore")
	pf.String("gcp-location", "us-central1", "Vertex AI location")
	pf.String("model", "gemini-2.5-flash", "completion model")
	pf.String("speech-model", "gemini-2.5-flash-preview-tts", "speech synthesis model")
	pf.String("voice", "Kore", "prebuilt voice name")
	pf.String("storage-backend", "memory", "memory or firestore")
	pf.String("audio-dir", "audio", "directory the synthesized speech is written to")
	pf.Int("history-window", 10, "number of past messages sent as context")
	pf.String("log-level", "info", "debug, info, warn or error")
	pf.String("log-format", "json", "json or text")
}

// loadConfig reads the merged configuration and sets up logging.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(v)
	if err != nil {
		return nil, err
	}
	observability.Configure(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
