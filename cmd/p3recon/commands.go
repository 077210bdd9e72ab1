package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"P3Recon/internal/app"
	"P3Recon/internal/config"
	"P3Recon/internal/domain"
	"P3Recon/internal/infrastructure/httpapi"
	"P3Recon/internal/logging"
)

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "p3recon",
		Short:         "Find and rank candidate parcels for public-private redevelopment",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to YAML config (overrides P3RECON_CONFIG)")

	root.AddCommand(
		newServeCmd(opts),
		newRefreshCmd(opts),
		newSearchCmd(opts),
		newCandidateCmd(opts),
	)
	return root
}

// bootstrap loads config and builds the application; the caller closes it.
// Logs go to stderr so command output stays machine-readable.
func bootstrap(ctx context.Context, opts *rootOptions, logOut io.Writer) (*app.Application, config.Config, *slog.Logger, error) {
	cfg := config.Load(opts.configPath)
	logger := logging.NewWithWriter(logOut, cfg.Logging.Level, cfg.Logging.Format)

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return nil, cfg, logger, err
	}
	return application, cfg, logger, nil
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON API, seeding the store first when it is empty",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			application, _, logger, err := bootstrap(ctx, opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer application.Close()

			if err := application.Serve(ctx); err != nil {
				logger.Error("application stopped", "error", err)
				return err
			}
			return nil
		},
	}
}

func newRefreshCmd(opts *rootOptions) *cobra.Command {
	var minAcres, minBldgSqft float64

	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Run one refresh pass synchronously and print its summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			application, cfg, _, err := bootstrap(cmd.Context(), opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer application.Close()

			params := app.DefaultParams(cfg)
			if cmd.Flags().Changed("min-acres") {
				params.MinAcres = minAcres
			}
			if cmd.Flags().Changed("min-bldg-sqft") {
				params.MinBldgSqft = minBldgSqft
			}

			summary, err := application.Refresher().Run(cmd.Context(), params)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), summary)
		},
	}
	cmd.Flags().Float64Var(&minAcres, "min-acres", 0, "minimum parcel acreage")
	cmd.Flags().Float64Var(&minBldgSqft, "min-bldg-sqft", 0, "minimum building square footage")
	return cmd
}

func newSearchCmd(opts *rootOptions) *cobra.Command {
	var q domain.SearchQuery

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Print ranked candidates around a point",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			application, cfg, _, err := bootstrap(cmd.Context(), opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer application.Close()

			if !cmd.Flags().Changed("radius") {
				q.RadiusMiles = cfg.Search.DefaultRadiusMiles
			}

			results, err := application.Searcher().Search(cmd.Context(), q)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), httpapi.SearchPayload(q, results))
		},
	}
	cmd.Flags().Float64Var(&q.Lat, "lat", 0, "latitude of the search centre")
	cmd.Flags().Float64Var(&q.Lon, "lon", 0, "longitude of the search centre")
	cmd.Flags().Float64Var(&q.RadiusMiles, "radius", 0, "search radius in miles (default from config)")
	cmd.Flags().Float64Var(&q.MinAcres, "min-acres", 0, "minimum parcel acreage")
	cmd.Flags().Float64Var(&q.MinBldgSqft, "min-bldg-sqft", 0, "minimum building square footage")
	cmd.Flags().IntVar(&q.MinScore, "min-score", 0, "minimum score total")
	_ = cmd.MarkFlagRequired("lat")
	_ = cmd.MarkFlagRequired("lon")
	return cmd
}

func newCandidateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "candidate <id>",
		Short: "Print one candidate with its signals and score",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("candidate id %q: %w", args[0], err)
			}

			application, _, _, err := bootstrap(cmd.Context(), opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer application.Close()

			detail, err := application.Searcher().Candidate(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), httpapi.DetailPayload(detail))
		},
	}
}

func printJSON(w io.Writer, payload any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}
