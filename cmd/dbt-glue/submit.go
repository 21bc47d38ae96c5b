package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/akmalsoliev/dbt-glue/internal/config"
	"github.com/akmalsoliev/dbt-glue/internal/history"
	"github.com/akmalsoliev/dbt-glue/internal/metrics"
	"github.com/akmalsoliev/dbt-glue/internal/model"
	"github.com/akmalsoliev/dbt-glue/internal/submission"
)

var submitCmd = &cobra.Command{
	Use:   "submit <compiled-model.py>",
	Short: "Submit a compiled Python model to a Glue interactive session",
	Long: `Submit reads a compiled dbt Python model, provisions (or reuses) a Glue
interactive session, installs the model's packages, and runs the model code,
blocking until it finishes or times out.`,
	Args: cobra.ExactArgs(1),
	RunE: runSubmit,
}

func init() {
	rootCmd.AddCommand(submitCmd)

	submitCmd.Flags().String("alias", "", "model alias (defaults to the file name)")
	submitCmd.Flags().String("schema", "", "target schema")
	submitCmd.Flags().StringSlice("packages", nil, "extra pip packages to install before the model runs")
	submitCmd.Flags().Int("timeout", 0, "statement timeout in seconds (0 uses the configured default)")
	submitCmd.Flags().String("session-id", "", "reuse an existing Glue session instead of provisioning one")
	submitCmd.Flags().Bool("serve-metrics", false, "expose Prometheus metrics on metrics_port while running")

	viper.BindPFlag("session_id", submitCmd.Flags().Lookup("session-id"))
}

func runSubmit(cmd *cobra.Command, args []string) error {
	codePath := args[0]
	code, err := os.ReadFile(codePath)
	if err != nil {
		return fmt.Errorf("read compiled model: %w", err)
	}

	creds, err := config.CredentialsFromViper()
	if err != nil {
		return err
	}

	alias, _ := cmd.Flags().GetString("alias")
	if alias == "" {
		alias = strings.TrimSuffix(filepath.Base(codePath), filepath.Ext(codePath))
	}
	schema, _ := cmd.Flags().GetString("schema")
	pkgs, _ := cmd.Flags().GetStringSlice("packages")
	timeout, _ := cmd.Flags().GetInt("timeout")
	if timeout <= 0 {
		timeout = viper.GetInt("timeout")
	}

	parsed := &model.ParsedModel{
		Alias:  alias,
		Schema: schema,
		Config: model.Config{Packages: pkgs, Timeout: timeout},
	}

	opts := []submission.Option{
		submission.WithPollInterval(time.Duration(viper.GetInt("polling_interval")) * time.Second),
	}

	if store, err := openHistoryStore(); err != nil {
		slog.Warn("run history disabled", "error", err)
	} else {
		defer store.Close()
		opts = append(opts, submission.WithRecorder(store))
	}

	if serve, _ := cmd.Flags().GetBool("serve-metrics"); serve {
		addr := fmt.Sprintf(":%d", viper.GetInt("metrics_port"))
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			if err := http.ListenAndServe(addr, mux); err != nil {
				slog.Error("metrics server stopped", "error", err)
			}
		}()
		slog.Info("serving metrics", "addr", addr)
	}

	helper := submission.NewJobHelper(parsed, creds, opts...)
	if err := helper.Submit(cmd.Context(), string(code)); err != nil {
		return err
	}

	slog.Info("model completed", "model", alias)
	return nil
}

// openHistoryStore opens the run-history database, creating its directory if
// needed. The location can be overridden with history_path.
func openHistoryStore() (*history.Store, error) {
	path := viper.GetString("history_path")
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		dir := filepath.Join(home, ".dbt-glue")
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
		path = filepath.Join(dir, "history.db")
	}
	return history.NewStore(path)
}
