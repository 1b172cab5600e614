package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/openmined/syftbox-client/internal/client/config"
	"github.com/openmined/syftbox-client/internal/utils"
	"github.com/openmined/syftbox-client/internal/version"
)

var home, _ = os.UserHomeDir()

var rootCmd = &cobra.Command{
	Use:     "syftbox",
	Short:   "SyftBox CLI",
	Version: version.Detailed(),
}

func init() {
	rootCmd.Flags().SortFlags = false
	rootCmd.Flags().StringP("email", "e", "", "Email for the SyftBox datasite")
	rootCmd.Flags().StringP("datadir", "d", config.DefaultDataDir, "SyftBox data directory")
	rootCmd.Flags().StringP("server", "s", config.DefaultServerURL, "SyftBox server URL")
	rootCmd.Flags().String("client-url", config.DefaultClientURL, "Local control plane URL")
	rootCmd.Flags().String("client-token", "", "Local control plane access token")
	rootCmd.PersistentFlags().StringP("config", "c", config.DefaultConfigPath, "SyftBox config file")
}

func main() {
	// pick up SYFTBOX_* overrides from a local .env, if any
	_ = godotenv.Load()

	setupLogging()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func setupLogging() {
	// TODO handle log rotation
	logFile := config.DefaultLogFilePath

	if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create log directory: %v\n", err)
		os.Exit(1)
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
		os.Exit(1)
	}

	stdoutHandler := tint.NewHandler(os.Stdout, &tint.Options{
		Level:      slog.LevelDebug,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		NoColor:    !isatty.IsTerminal(os.Stdout.Fd()),
	})

	logInterceptor := utils.NewLogInterceptor(file)
	fileHandler := slog.NewTextHandler(logInterceptor, &slog.HandlerOptions{
		Level: slog.LevelDebug,
		// The interceptor already stamps each line with a timestamp.
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{}
			}
			return a
		},
	})

	slog.SetDefault(slog.New(utils.NewMultiLogHandler(stdoutHandler, fileHandler)))
}

// loadConfig builds a client config from the resolved config file, the
// SYFTBOX_* environment and the root command's flags, in increasing order
// of precedence for env over file, flags only when explicitly set.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	v := viper.New()

	configPath := resolveConfigPath(cmd)
	v.SetConfigFile(configPath)
	v.SetConfigType("json")

	// a missing file is fine, everything can come from flags and env
	if err := v.ReadInConfig(); err != nil {
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if !notFound && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config read %q: %w", configPath, err)
		}
	}

	if f := cmd.Flags().Lookup("email"); f != nil {
		v.BindPFlag("email", f)
	}
	if f := cmd.Flags().Lookup("datadir"); f != nil {
		v.BindPFlag("data_dir", f)
	}
	if f := cmd.Flags().Lookup("server"); f != nil {
		v.BindPFlag("server_url", f)
	}
	if f := cmd.Flags().Lookup("client-url"); f != nil {
		v.BindPFlag("client_url", f)
	}
	if f := cmd.Flags().Lookup("client-token"); f != nil {
		v.BindPFlag("client_token", f)
	}

	v.SetEnvPrefix("SYFTBOX")
	v.AutomaticEnv()
	v.SetDefault("apps_enabled", true)

	return &config.Config{
		Path:         configPath,
		Email:        v.GetString("email"),
		DataDir:      v.GetString("data_dir"),
		ServerURL:    v.GetString("server_url"),
		ClientURL:    v.GetString("client_url"),
		ClientToken:  v.GetString("client_token"),
		RefreshToken: v.GetString("refresh_token"),
		AccessToken:  v.GetString("access_token"),
		AppsEnabled:  v.GetBool("apps_enabled"),
	}, nil
}
