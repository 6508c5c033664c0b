package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	configPath string
	serverURL  string
	caller     string
	showFull   bool

	rootCmd = &cobra.Command{
		Use:           "reputation",
		Short:         "Time-decayed reputation aggregation engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the build version of this binary or of a running server",
		Args:  cobra.NoArgs,
		RunE:  runVersion,
	}

	getCmd = &cobra.Command{
		Use:   "get [user] [tag]",
		Short: "Fetch a user's effective reputation on a tag",
		Args:  cobra.ExactArgs(2),
		RunE:  runGet,
	}

	recalcCmd = &cobra.Command{
		Use:   "recalc [user] [tag]",
		Short: "Recompute a user's reputation on a tag from the vote ledger",
		Args:  cobra.ExactArgs(2),
		RunE:  runRecalc,
	}
)

func init() {
	serveCmd.Flags().StringVarP(&configPath, "config", "c", "/etc/reputation/config.yaml", "path to the config file")

	for _, cmd := range []*cobra.Command{versionCmd, getCmd, recalcCmd} {
		cmd.Flags().StringVarP(&serverURL, "server", "s", "", "base url of a running server")
	}
	for _, cmd := range []*cobra.Command{getCmd, recalcCmd} {
		cmd.Flags().StringVar(&caller, "as", "", "caller key sent with the request")
	}
	getCmd.Flags().BoolVar(&showFull, "full", false, "print the full reputation record")

	rootCmd.AddCommand(serveCmd, versionCmd, getCmd, recalcCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
