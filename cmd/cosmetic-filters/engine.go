package main

import (
	"encoding/json"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/bnema/cosmetic-filters/internal/engine"
	"github.com/bnema/cosmetic-filters/internal/metrics"
	"github.com/bnema/cosmetic-filters/internal/server"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Print the rules and CSS that apply to a host",
	RunE:  runResolve,
}

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Filter an HTML page for a host",
	Long: `Replays the page lifecycle on a virtual clock with the enforcer attached
and writes the resulting HTML, hidden elements carrying the forced style.`,
	RunE: runApply,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve resolution and filtering over HTTP",
	RunE:  runServe,
}

func init() {
	for _, c := range []*cobra.Command{resolveCmd, applyCmd, serveCmd} {
		c.Flags().StringP("table", "t", "", "rule table path (default: output.path)")
	}
	for _, c := range []*cobra.Command{resolveCmd, applyCmd} {
		c.Flags().String("host", "", "page host")
		c.MarkFlagRequired("host")
	}
	applyCmd.Flags().StringP("input", "i", "-", "HTML file, - for stdin")
	applyCmd.Flags().StringP("output", "o", "-", "output file, - for stdout")
	serveCmd.Flags().String("addr", "", "listen address (default: server.addr)")
	serveCmd.Flags().Bool("watch", false, "reload the table when it changes (default: server.watch)")
}

func runResolve(cmd *cobra.Command, args []string) error {
	host, _ := cmd.Flags().GetString("host")

	eng, err := loadEngine(tablePath(cmd))
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(eng.Resolve(host))
}

func runApply(cmd *cobra.Command, args []string) error {
	host, _ := cmd.Flags().GetString("host")
	input, _ := cmd.Flags().GetString("input")
	output, _ := cmd.Flags().GetString("output")

	eng, err := loadEngine(tablePath(cmd))
	if err != nil {
		return err
	}

	var in io.Reader = cmd.InOrStdin()
	if input != "-" {
		f, err := appFs.Open(input)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	var out io.Writer = cmd.OutOrStdout()
	if output != "-" {
		f, err := appFs.Create(output)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	report, err := eng.Filter(cmd.Context(), host, in, out)
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"host":        report.Host,
		"entries":     report.Entries,
		"state":       report.State,
		"stylesheets": report.Stats.Stylesheets,
		"scans":       report.Stats.Scans,
		"hidden":      report.Stats.Hidden,
	}).Info("page filtered")
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("addr")
	if addr == "" {
		addr = cfg.Server.Addr
	}
	watch := cfg.Server.Watch
	if cmd.Flags().Changed("watch") {
		watch, _ = cmd.Flags().GetBool("watch")
	}
	path := tablePath(cmd)

	m := metrics.New()
	srv, err := server.New(func() (*engine.Engine, error) {
		return loadEngine(path, engine.WithRecorder(m))
	}, server.WithLogger(log), server.WithMetrics(m), server.WithAllowedOrigins(cfg.Server.AllowedOrigins))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if watch {
		go func() {
			if err := srv.Watch(ctx, path); err != nil {
				log.WithError(err).Error("table watcher stopped")
			}
		}()
	}

	return srv.ListenAndServe(ctx, addr)
}
