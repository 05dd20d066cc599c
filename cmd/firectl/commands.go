package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/freedom_case_2/fire/internal/ai"
	"github.com/freedom_case_2/fire/internal/analytics"
	"github.com/freedom_case_2/fire/internal/app"
	"github.com/freedom_case_2/fire/internal/config"
	"github.com/freedom_case_2/fire/internal/importer"
	"github.com/freedom_case_2/fire/internal/models"
	"github.com/freedom_case_2/fire/internal/service"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "firectl",
		Short:         "Operate the ticket results store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newMigrateCmd(),
		newImportCmd(),
		newIngestCmd(),
		newLoadsCmd(),
		newQueryCmd(),
		newResetCmd(),
	)
	return root
}

// withApp loads configuration, opens storage and runs fn.
func withApp(cmd *cobra.Command, migrate bool, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := app.NewLogger(cfg, "firectl")
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := app.New(ctx, cfg, logger, migrate)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, false, func(ctx context.Context, a *app.App) error {
				pg := a.Postgres()
				if pg == nil {
					return errors.New("DATABASE_URL is required for migrate")
				}
				return pg.Migrate(a.Logger)
			})
		},
	}
}

func newImportCmd() *cobra.Command {
	var unitsPath, managersPath, ticketsPath string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import business units, managers and tickets from CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			if unitsPath == "" && managersPath == "" && ticketsPath == "" {
				return errors.New("at least one of --business-units, --managers, --tickets is required")
			}
			var files importer.Files
			var closers []io.Closer
			defer func() {
				for _, c := range closers {
					c.Close()
				}
			}()
			open := func(path string) (io.Reader, error) {
				if path == "" {
					return nil, nil
				}
				f, err := os.Open(path)
				if err != nil {
					return nil, err
				}
				closers = append(closers, f)
				return f, nil
			}
			var err error
			if files.BusinessUnits, err = open(unitsPath); err != nil {
				return err
			}
			if files.Managers, err = open(managersPath); err != nil {
				return err
			}
			if files.Tickets, err = open(ticketsPath); err != nil {
				return err
			}

			return withApp(cmd, true, func(ctx context.Context, a *app.App) error {
				existing, err := a.Store.ListBusinessUnits(ctx)
				if err != nil {
					return err
				}
				im := importer.Importer{Store: a.Store, Logger: a.Logger}
				summary, err := im.Import(ctx, files, existing)
				if err != nil {
					var perr *importer.ParseError
					if errors.As(err, &perr) {
						for _, e := range perr.Errors {
							fmt.Fprintln(cmd.ErrOrStderr(), e)
						}
					}
					return err
				}
				run, err := a.Pipeline.RecomputeLoads(ctx, service.RunKindImport)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]any{"import": summary, "run": run})
			})
		},
	}
	cmd.Flags().StringVar(&unitsPath, "business-units", "", "business units CSV")
	cmd.Flags().StringVar(&managersPath, "managers", "", "managers CSV")
	cmd.Flags().StringVar(&ticketsPath, "tickets", "", "tickets CSV")
	return cmd
}

func newIngestCmd() *cobra.Command {
	var pull bool
	cmd := &cobra.Command{
		Use:   "ingest [results.csv|results.json]",
		Short: "Reconcile classifier results and recompute loads",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if pull == (len(args) == 1) {
				return errors.New("pass either a results file or --pull")
			}
			var rows []models.ResultRow
			if !pull {
				var err error
				if rows, err = readRowsFile(args[0]); err != nil {
					return err
				}
			}
			return withApp(cmd, true, func(ctx context.Context, a *app.App) error {
				var (
					summary service.RunSummary
					err     error
				)
				if pull {
					summary, err = a.Pipeline.Pull(ctx)
				} else {
					summary, err = a.Pipeline.Ingest(ctx, rows, service.RunKindIngest)
				}
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), summary)
			})
		},
	}
	cmd.Flags().BoolVar(&pull, "pull", false, "fetch the batch from the classifier feed")
	return cmd
}

func readRowsFile(path string) ([]models.ResultRow, error) {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return ai.DecodeRows(b)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	rows, errs := importer.ParseResults(f)
	if len(errs) > 0 {
		return nil, fmt.Errorf("%s: %s", path, strings.Join(errs, "; "))
	}
	return rows, nil
}

func newLoadsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "loads",
		Short: "Recompute manager loads from baseline and results",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, true, func(ctx context.Context, a *app.App) error {
				summary, err := a.Pipeline.RecomputeLoads(ctx, service.RunKindLoads)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), summary.Loads)
			})
		},
	}
}

func newQueryCmd() *cobra.Command {
	var (
		specPath  string
		chartType string
		title     string
		groupBy   []string
		filterCol string
		filterVal []string
		topN      int
	)
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Run an aggregation over reconciled results",
		RunE: func(cmd *cobra.Command, args []string) error {
			var spec analytics.Spec
			if specPath != "" {
				b, err := os.ReadFile(specPath)
				if err != nil {
					return err
				}
				if err := json.Unmarshal(b, &spec); err != nil {
					return fmt.Errorf("parse spec: %w", err)
				}
			} else {
				spec = analytics.Spec{
					ChartType: chartType,
					Title:     title,
					GroupBy:   analytics.GroupBy(groupBy),
					FilterCol: filterCol,
					FilterVal: analytics.FilterValue(filterVal),
				}
				if cmd.Flags().Changed("top-n") {
					spec.TopN = &topN
				}
			}
			return withApp(cmd, true, func(ctx context.Context, a *app.App) error {
				resp, err := a.Query.Query(ctx, spec)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), resp)
			})
		},
	}
	cmd.Flags().StringVar(&specPath, "spec", "", "JSON spec file; overrides the other flags")
	cmd.Flags().StringVar(&chartType, "chart", analytics.ChartBar, "chart type (bar or line)")
	cmd.Flags().StringVar(&title, "title", "", "chart title")
	cmd.Flags().StringSliceVar(&groupBy, "group-by", nil, "one or two columns")
	cmd.Flags().StringVar(&filterCol, "filter-col", "", "filter column")
	cmd.Flags().StringSliceVar(&filterVal, "filter-val", nil, "filter value(s)")
	cmd.Flags().IntVar(&topN, "top-n", 0, "keep the first N groups")
	return cmd
}

func newResetCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete all stored data",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("refusing to reset without --yes")
			}
			return withApp(cmd, true, func(ctx context.Context, a *app.App) error {
				if err := a.Store.Reset(ctx); err != nil {
					return err
				}
				a.Logger.Info().Msg("all tables truncated")
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm deletion")
	return cmd
}
