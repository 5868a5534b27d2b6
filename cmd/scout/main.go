package main

import (
	"io"
	"os"

	"github.com/go-go-golems/scout/pkg/config"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"
)

var v = config.NewViper()

var rootCmd = &cobra.Command{
	Use:   "scout",
	Short: "scout answers questions with cited web, academic and personal sources",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.ReadConfigFile(v, v.GetString("config")); err != nil {
			return err
		}
		// reinitialize the logger now that flags and config are parsed
		return initLogger()
	},
	SilenceUsage: true,
}

type logConfig struct {
	WithCaller bool
	Level      string
	LogFormat  string
	LogFile    string
}

func initLogger() error {
	level := v.GetString("log-level")
	if v.GetBool("verbose") && level != "trace" {
		level = "debug"
	}
	return InitLogger(&logConfig{
		Level:      level,
		LogFile:    v.GetString("log-file"),
		LogFormat:  v.GetString("log-format"),
		WithCaller: v.GetBool("with-caller"),
	})
}

func InitLogger(config *logConfig) error {
	if config.WithCaller {
		log.Logger = log.With().Caller().Logger()
	}
	var logWriter io.Writer = os.Stderr
	if config.LogFormat == "text" {
		logWriter = zerolog.ConsoleWriter{
			Out:     os.Stderr,
			NoColor: !isatty.IsTerminal(os.Stderr.Fd()),
		}
	}
	if config.LogFile != "" {
		logWriter = io.MultiWriter(
			logWriter,
			zerolog.ConsoleWriter{
				NoColor: true,
				Out: &lumberjack.Logger{
					Filename:   config.LogFile,
					MaxSize:    10, // megabytes
					MaxBackups: 3,
					MaxAge:     28, // days
				},
			})
	}
	log.Logger = log.Output(logWriter)

	if config.Level == "" {
		config.Level = "warn"
	}
	level, err := zerolog.ParseLevel(config.Level)
	if err != nil {
		return errors.Wrapf(err, "invalid log level %q", config.Level)
	}
	zerolog.SetGlobalLevel(level)
	return nil
}

func loadSettings() (*config.Settings, error) {
	return config.Load(v)
}

func main() {
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (default $HOME/.scout/config.yaml)")
	flags.String("log-level", "warn", "log level (trace, debug, info, warn, error)")
	flags.String("log-format", "text", "log format (json, text)")
	flags.String("log-file", "", "also write logs to this file")
	flags.Bool("with-caller", false, "log caller")
	flags.BoolP("verbose", "v", false, "debug logging")
	cobra.CheckErr(v.BindPFlags(flags))

	rootCmd.AddCommand(newAskCommand(), newUploadCommand(), newChatsCommand(), newConfigCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSettings()
			if err != nil {
				return err
			}
			redacted := s.Clone()
			if redacted.LLM.APIKey != "" {
				redacted.LLM.APIKey = "***"
			}
			if redacted.Embeddings.APIKey != "" {
				redacted.Embeddings.APIKey = "***"
			}
			return printStructured(cmd.OutOrStdout(), "yaml", redacted)
		},
	}
}
