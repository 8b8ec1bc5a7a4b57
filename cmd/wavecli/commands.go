package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/EgorLis/wavesocket/internal/app"
	"github.com/EgorLis/wavesocket/internal/config"
	"github.com/EgorLis/wavesocket/internal/envelope"
	"github.com/EgorLis/wavesocket/internal/waveclient"
)

type rootFlags struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	var f rootFlags
	root := &cobra.Command{
		Use:          "wavecli",
		Short:        "Wave protocol client over WebSocket",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&f.configPath, "config", "c", "conf/wave.yaml", "config file (json, yaml or toml)")
	root.PersistentFlags().StringVar(&f.logLevel, "log-level", "", "override log level (debug, info, warn, error)")

	root.AddCommand(newWatchCmd(&f), newSubmitCmd(&f), newConfigCmd())
	return root
}

// load читает конфиг и готовит логгер.
func load(f *rootFlags, errOut io.Writer) (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return cfg, nil, err
	}
	if f.logLevel != "" {
		cfg.LogLevel = f.logLevel
	}
	log := slog.New(slog.NewTextHandler(errOut, &slog.HandlerOptions{Level: cfg.Level()}))
	return cfg, log, nil
}

func newWatchCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "watch WAVE_ID...",
		Short: "Open waves and print every wavelet update as a JSON line",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := load(f, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			a, err := app.New(cfg, log)
			if err != nil {
				return err
			}
			defer a.Stop()

			out := json.NewEncoder(cmd.OutOrStdout())
			if err := a.Client().AttachHandler(waveclient.UpdateHandlerFunc(func(u *envelope.WaveletUpdate) error {
				return out.Encode(envelope.Fields(u))
			})); err != nil {
				return err
			}
			events, cancel := a.Client().Status().Chan(16)
			defer cancel()

			ctx := cmd.Context()
			if err := a.Start(ctx); err != nil {
				return err
			}
			for _, id := range args {
				if err := a.Watch(id, nil); err != nil {
					return err
				}
			}
			log.Info("watching, press Ctrl+C to stop", "waves", len(args))

			for {
				select {
				case ev := <-events:
					log.Info("status", "event", ev.String())
				case <-ctx.Done():
					return nil
				}
			}
		},
	}
}

func newSubmitCmd(f *rootFlags) *cobra.Command {
	var (
		file    string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a delta read from a JSON file and print the server response",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := load(f, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			fields, err := readFields(file, cmd.InOrStdin())
			if err != nil {
				return err
			}
			a, err := app.New(cfg, log)
			if err != nil {
				return err
			}
			defer a.Stop()

			ctx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}
			if err := a.Start(ctx); err != nil {
				return err
			}
			resp, err := a.Submit(ctx, fields)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(envelope.Fields(resp))
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "-", "delta JSON file, - for stdin")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "give up waiting for the response after this long")
	return cmd
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "config", Short: "Config helpers"}
	cmd.AddCommand(&cobra.Command{
		Use:   "init PATH",
		Short: "Write a default config; the format follows the file extension",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(args[0]); err == nil {
				return fmt.Errorf("%s already exists", args[0])
			}
			if err := config.Save(args[0], config.Default()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "wrote", args[0])
			return nil
		},
	})
	return cmd
}

func readFields(path string, stdin io.Reader) (map[string]any, error) {
	var (
		b   []byte
		err error
	)
	if path == "-" || path == "" {
		b, err = io.ReadAll(stdin)
	} else {
		b, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, err
	}
	var fields map[string]any
	if err := json.Unmarshal(b, &fields); err != nil {
		return nil, fmt.Errorf("delta: %w", err)
	}
	if fields == nil {
		return nil, fmt.Errorf("delta: expected a JSON object")
	}
	return fields, nil
}
