package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"boohill-ingest/api"
	"boohill-ingest/models"
	"boohill-ingest/scraper/portal"
	"boohill-ingest/services"
	"boohill-ingest/storage"
)

func parseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parse [file|-]",
		Short: "Parse listing text and print the batch report",
		Long: `Parse listing text without touching the store. Every house is reported
as new; use "import --dry-run" to classify against the corpus.

Example:
  boohill parse paste.txt --trace
  pbpaste | boohill parse - --csv batch.csv`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			showTrace, _ := cmd.Flags().GetBool("trace")
			csvPath, _ := cmd.Flags().GetString("csv")

			text, err := readInput(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.close()

			preview, err := a.importer().Preview(cmd.Context(), text)
			if err != nil {
				return err
			}
			return a.report(cmd.OutOrStdout(), preview, nil, showTrace, csvPath)
		},
	}

	cmd.Flags().Bool("trace", false, "Print the parse trace")
	cmd.Flags().String("csv", "", "Also write the parsed batch to this CSV file (default $CSV_OUTPUT_PATH)")
	return cmd
}

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import [file|-]",
		Short: "Parse listing text and import it into the store",
		Long: `Parse listing text, classify every house against the store, and write
the batch in one transaction.

Houses sharing an item with a stored house are duplicates: only their new
items are added. Houses matching a stored identity without a shared item
are "similar" and handled by --similar:
  insert  add them as new houses (default)
  merge   add their items to the first matching stored house
  skip    leave them out

Example:
  boohill import paste.txt --dry-run
  boohill import paste.txt --similar merge`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}
			return runImport(cmd, text)
		},
	}
	addImportFlags(cmd)
	return cmd
}

func fetchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch <url>...",
		Short: "Fetch portal pages in a headless browser and import their text",
		Long: `Load each portal page in headless Chrome, read its visible text, and
import the combined text exactly as "import" would.

Example:
  boohill fetch "https://new.land.naver.com/complexes/1234?a=APT" --dry-run`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			pages, err := portal.New(a.cfg, a.logger).Fetch(cmd.Context(), args)
			a.close()
			if len(pages) == 0 {
				if err == nil {
					err = portal.ErrNoURLs
				}
				return fmt.Errorf("no pages fetched: %w", err)
			}
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "some pages failed: %v\n", err)
			}
			return runImport(cmd, portal.JoinPages(pages))
		},
	}
	addImportFlags(cmd)
	return cmd
}

func addImportFlags(cmd *cobra.Command) {
	cmd.Flags().String("similar", string(services.SimilarInsert), "What to do with similar houses: insert, merge or skip")
	cmd.Flags().Bool("dry-run", false, "Classify and report without writing")
	cmd.Flags().Bool("trace", false, "Print the parse trace")
	cmd.Flags().String("csv", "", "Also write the parsed batch to this CSV file (default $CSV_OUTPUT_PATH)")
}

func runImport(cmd *cobra.Command, text string) error {
	similar, _ := cmd.Flags().GetString("similar")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	showTrace, _ := cmd.Flags().GetBool("trace")
	csvPath, _ := cmd.Flags().GetString("csv")

	mode, err := services.ParseSimilarMode(similar)
	if err != nil {
		return err
	}

	a, err := newApp(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer a.close()

	imp := a.importer()
	preview, err := imp.Preview(cmd.Context(), text)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s\n", services.PreviewSummary(preview))

	var out *models.ImportOutcome
	if !dryRun {
		if out, err = imp.Apply(cmd.Context(), preview, mode); err != nil {
			return err
		}
	}
	return a.report(cmd.OutOrStdout(), preview, out, showTrace, csvPath)
}

func housesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "houses",
		Short: "List stored houses with their items",
		Long: `List stored houses of one or more buildings, optionally for one area.

Example:
  boohill houses --building 216 --building 217 --area 47`,
		RunE: func(cmd *cobra.Command, args []string) error {
			buildings, _ := cmd.Flags().GetStringSlice("building")
			area, _ := cmd.Flags().GetString("area")
			asJSON, _ := cmd.Flags().GetBool("json")

			if len(buildings) == 0 {
				return errors.New("--building flag is required")
			}

			a, err := newApp(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer a.close()

			houses, err := a.store.FetchHousesWithItems(cmd.Context(), models.HouseQuery{BuildingNumbers: buildings, Area: area})
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(houses)
			}
			services.NewReportService(a.logger).PrintHouses(cmd.OutOrStdout(), houses)
			return nil
		},
	}

	cmd.Flags().StringSlice("building", nil, "Building number (repeatable or comma-separated)")
	cmd.Flags().String("area", "", "Area in 평")
	cmd.Flags().Bool("json", false, "Print JSON instead of a table")
	return cmd
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the preview/apply HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			port, _ := cmd.Flags().GetString("port")

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, true)
			if err != nil {
				return err
			}
			defer a.close()

			if port == "" {
				port = a.cfg.HTTPPort
			}
			srv := api.NewServer(port, api.NewHandlers(a.importer(), a.store, a.logger), a.logger)

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start() }()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Stop(shutdownCtx)
		},
	}

	cmd.Flags().String("port", "", "Listen port (default $HTTP_PORT)")
	return cmd
}

// report prints the batch report and, when asked, the trace and a CSV copy.
func (a *app) report(w io.Writer, preview *models.ImportPreview, out *models.ImportOutcome, showTrace bool, csvPath string) error {
	svc := services.NewReportService(a.logger)
	if showTrace {
		svc.PrintTrace(w, preview)
	}
	svc.Print(w, svc.Generate(preview, out))

	if csvPath == "" {
		csvPath = a.cfg.CSVOutputPath
	}
	if csvPath == "" {
		return nil
	}
	return writeCSV(csvPath, preview.Parse.Houses)
}

func writeCSV(path string, houses []*models.ParsedHouse) error {
	w, err := storage.NewCSVWriter(path)
	if err != nil {
		return err
	}
	return exportBatch(w, houses)
}

func exportBatch(w storage.BatchWriter, houses []*models.ParsedHouse) error {
	if err := w.WriteHouses(houses); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// readInput reads the named file, or stdin when the name is "-" or absent.
func readInput(stdin io.Reader, args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("read %s: %w", args[0], err)
	}
	return string(data), nil
}
