package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/david/tender-matcher/internal/ingest"
	"github.com/david/tender-matcher/internal/models"
)

var extractCmd = &cobra.Command{
	Use:   "extract FILE|URL...",
	Short: "Extract tender records from PDF, HTML or text documents",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().String("region", "", "region to set on every record")
	extractCmd.Flags().String("province", "", "province to set on every record")
	extractCmd.Flags().String("deadline", "", "submission deadline (RFC 3339 or dd/mm/yyyy)")
	extractCmd.Flags().Bool("save", false, "store the records in the database")
	extractCmd.Flags().IntP("workers", "w", 4, "documents processed concurrently")
}

func enrichmentFlags(cmd *cobra.Command) (models.TenderEnrichment, error) {
	var e models.TenderEnrichment
	if v, _ := cmd.Flags().GetString("region"); v != "" {
		e.Region = &v
	}
	if v, _ := cmd.Flags().GetString("province"); v != "" {
		e.Province = &v
	}
	if v, _ := cmd.Flags().GetString("deadline"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			t = t.UTC()
			e.Deadline = &t
		} else if t, ok := ingest.ParseDate(v); ok {
			e.Deadline = &t
		} else {
			return e, fmt.Errorf("invalid deadline %q", v)
		}
	}
	return e, nil
}

func isURL(arg string) bool {
	return strings.HasPrefix(arg, "http://") || strings.HasPrefix(arg, "https://")
}

func runExtract(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	lg, err := newLogger()
	if err != nil {
		return err
	}
	defer lg.Sync()

	enrich, err := enrichmentFlags(cmd)
	if err != nil {
		return err
	}
	components, err := buildComponents(lg)
	if err != nil {
		return err
	}

	fetcher := ingest.NewCollyFetcher(lg.Named("fetcher"))
	ingester := ingest.NewIngester(components.Pipeline, nil, nil, fetcher, lg.Named("ingest"))

	save, _ := cmd.Flags().GetBool("save")
	if save {
		store, closeStore, err := openStore(ctx, lg)
		if err != nil {
			return err
		}
		defer closeStore()
		ingester.Tenders, ingester.Runs = store, store
	}

	workers, _ := cmd.Flags().GetInt("workers")
	results := make([]any, len(args))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for i, arg := range args {
		i, arg := i, arg
		g.Go(func() error {
			res, err := extractOne(gctx, ingester, arg, enrich, save)
			if err != nil {
				lg.Warn("extraction failed", zap.String("document", arg), zap.Error(err))
				results[i] = map[string]string{"document": arg, "error": err.Error()}
				return nil
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if len(results) == 1 {
		return enc.Encode(results[0])
	}
	return enc.Encode(results)
}

func extractOne(ctx context.Context, in *ingest.Ingester, arg string, enrich models.TenderEnrichment, save bool) (any, error) {
	if save && isURL(arg) {
		return in.IngestURL(ctx, arg, enrich)
	}

	var u ingest.Upload
	if isURL(arg) {
		fetched, err := ingest.FetchUpload(ctx, in.Fetcher, arg)
		if err != nil {
			return nil, err
		}
		u = fetched
	} else {
		data, err := os.ReadFile(arg)
		if err != nil {
			return nil, err
		}
		u = ingest.Upload{Name: filepath.Base(arg), Data: data}
	}

	if save {
		return in.IngestDocument(ctx, u, enrich)
	}
	return in.Extract(ctx, u, enrich)
}
