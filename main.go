package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/km-arc/go-modular/app"
	kernel "github.com/km-arc/go-modular/framework/app"
	"github.com/km-arc/go-modular/framework/config"
	"github.com/km-arc/go-modular/framework/metadata"
)

var mode string

var rootCmd = &cobra.Command{
	Use:          "go-modular",
	Short:        "Modular HTTP application",
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Compose the application and serve HTTP until interrupted",
	RunE:  runServe,
}

var routesCmd = &cobra.Command{
	Use:   "routes",
	Short: "Print the bound route table without connecting to the database",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := compose(cmd.Context(), false)
		if err != nil {
			return err
		}
		for _, r := range a.Routes() {
			fmt.Fprintln(cmd.OutOrStdout(), r.String())
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&mode, "mode", "", "load .env.<mode> before .env")
	rootCmd.AddCommand(serveCmd, routesCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// compose builds the application. Without withDatabase the database module is
// left out of the tree, so nothing connects or migrates; it binds no routes.
func compose(ctx context.Context, withDatabase bool) (*kernel.Application, error) {
	cfg, err := config.Load(config.Options{Mode: mode})
	if err != nil {
		return nil, err
	}
	if !withDatabase {
		cfg.Database.Enabled = false
	}
	defs := metadata.New()
	return kernel.Create(ctx, cfg, defs, app.Declare(defs, cfg),
		kernel.WithMiddleware(app.RequireToken("/admin", cfg.Auth.AdminToken)))
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := compose(ctx, true)
	if err != nil {
		return err
	}
	defer a.Logger().Close()

	errChan := make(chan error, 1)
	if err := a.Start(func(net.Addr) {}, func(err error) { errChan <- err }); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return a.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}
}
