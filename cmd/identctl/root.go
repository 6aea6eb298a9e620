package main

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/plastinin/identtracker/internal/adapter/remote"
	"github.com/plastinin/identtracker/internal/config"
	"github.com/plastinin/identtracker/internal/domain"
	"github.com/plastinin/identtracker/internal/usecase"
	"github.com/plastinin/identtracker/pkg/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// globalFlags флаги, общие для всех команд
type globalFlags struct {
	apiURL   string
	token    string
	logLevel string
	json     bool
}

// pollFlags переопределения настроек опроса
type pollFlags struct {
	interval   time.Duration
	timeout    time.Duration
	maxRetries int
}

type commandContext struct {
	flags *globalFlags

	once      sync.Once
	cfg       *config.Config
	lifecycle *usecase.LifecycleUseCase
	logger    *zap.Logger
	err       error
}

func newCommandContext(flags *globalFlags) *commandContext {
	return &commandContext{flags: flags}
}

// ensure загружает конфигурацию и собирает клиент один раз за запуск
func (c *commandContext) ensure() (*usecase.LifecycleUseCase, error) {
	c.once.Do(func() {
		cfg, err := config.Load()
		if err != nil {
			c.err = err
			return
		}
		if v := strings.TrimSpace(c.flags.apiURL); v != "" {
			cfg.RemoteAPI.BaseURL = v
		}
		if v := strings.TrimSpace(c.flags.token); v != "" {
			cfg.RemoteAPI.Token = v
		}
		if cfg.RemoteAPI.Token == "" {
			c.err = fmt.Errorf("no API token: set IDENT_API_TOKEN or pass --token")
			return
		}

		level := cfg.Log.Level
		if c.flags.logLevel != "" {
			level = c.flags.logLevel
		}
		log, err := logger.NewWithWriter(level, "console", os.Stderr)
		if err != nil {
			c.err = fmt.Errorf("setup logging: %w", err)
			return
		}

		client := remote.NewClient(cfg.RemoteAPI, remote.NewSession(cfg.RemoteAPI.Token), log)
		c.cfg = cfg
		c.logger = log
		c.lifecycle = usecase.NewLifecycleUseCase(client, log)
	})
	return c.lifecycle, c.err
}

// preferences настройки опроса из конфигурации с учётом флагов команды
func (c *commandContext) preferences(cmd *cobra.Command, pf *pollFlags) domain.PollPreferences {
	prefs := c.cfg.Poll.Preferences()
	var o domain.PreferenceOverrides
	if cmd.Flags().Changed("interval") {
		o.Interval = &pf.interval
	}
	if cmd.Flags().Changed("timeout") {
		o.Timeout = &pf.timeout
	}
	if cmd.Flags().Changed("max-retries") {
		o.MaxRetries = &pf.maxRetries
	}
	return o.Apply(prefs)
}

func (c *commandContext) flush() {
	if c.logger != nil {
		_ = c.logger.Sync()
	}
}

func addPollFlags(cmd *cobra.Command, pf *pollFlags) {
	cmd.Flags().DurationVar(&pf.interval, "interval", domain.DefaultPollInterval, "Pause between status polls")
	cmd.Flags().DurationVar(&pf.timeout, "timeout", domain.DefaultPollTimeout, "Give up waiting after this long")
	cmd.Flags().IntVar(&pf.maxRetries, "max-retries", domain.DefaultPollMaxRetries, "Consecutive poll failures tolerated")
}

func newRootCommand() *cobra.Command {
	flags := &globalFlags{}
	ctx := newCommandContext(flags)

	rootCmd := &cobra.Command{
		Use:           "identctl",
		Short:         "Submit and track identification tasks",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			ctx.flush()
		},
	}

	rootCmd.PersistentFlags().StringVar(&flags.apiURL, "api-url", "", "Identification API base URL (overrides IDENT_API_URL)")
	rootCmd.PersistentFlags().StringVar(&flags.token, "token", "", "Bearer token (overrides IDENT_API_TOKEN)")
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&flags.json, "json", false, "Print JSON instead of tables")

	rootCmd.AddCommand(newSubmitCommand(ctx))
	rootCmd.AddCommand(newStatusCommand(ctx))
	rootCmd.AddCommand(newWaitCommand(ctx))
	rootCmd.AddCommand(newCancelCommand(ctx))
	rootCmd.AddCommand(newResultCommand(ctx))

	return rootCmd
}
