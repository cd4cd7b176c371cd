package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/david/tender-matcher/internal/matching"
	"github.com/david/tender-matcher/internal/models"
)

var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Rank contractors against a tender",
	Long: `Rank contractors against a tender.

The tender and contractors are read from JSON files, or from the database
when --identifier is given.`,
	RunE: runRank,
}

func init() {
	rootCmd.AddCommand(rankCmd)

	rankCmd.Flags().StringP("tender", "t", "", "tender record JSON file")
	rankCmd.Flags().StringP("contractors", "c", "", "JSON file with an array of contractor profiles")
	rankCmd.Flags().String("identifier", "", "stored tender identifier (CIG); ranks stored contractors")
	rankCmd.Flags().Bool("eligible-only", false, "hide contractors below the eligibility threshold")
}

// loadTenderAndContractors resolves the inputs of rank from files or the
// database.
func loadTenderAndContractors(cmd *cobra.Command) (models.TenderRecord, []models.ContractorProfile, error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	identifier, _ := cmd.Flags().GetString("identifier")
	if identifier != "" {
		lg, err := newLogger()
		if err != nil {
			return models.TenderRecord{}, nil, err
		}
		store, closeStore, err := openStore(ctx, lg)
		if err != nil {
			return models.TenderRecord{}, nil, err
		}
		defer closeStore()

		t, err := store.GetTenderByIdentifier(ctx, strings.ToUpper(identifier))
		if err != nil {
			return models.TenderRecord{}, nil, err
		}
		contractors, err := store.ListContractors(ctx)
		return t.TenderRecord, contractors, err
	}

	tenderFile, _ := cmd.Flags().GetString("tender")
	contractorsFile, _ := cmd.Flags().GetString("contractors")
	if tenderFile == "" || contractorsFile == "" {
		return models.TenderRecord{}, nil, errors.New("either --identifier or both --tender and --contractors are required")
	}
	var tender models.TenderRecord
	if err := readJSON(tenderFile, &tender); err != nil {
		return tender, nil, err
	}
	var contractors []models.ContractorProfile
	err := readJSON(contractorsFile, &contractors)
	return tender, contractors, err
}

func runRank(cmd *cobra.Command, _ []string) error {
	lg, err := newLogger()
	if err != nil {
		return err
	}
	defer lg.Sync()

	components, err := buildComponents(lg)
	if err != nil {
		return err
	}
	tender, contractors, err := loadTenderAndContractors(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ranked, err := components.Engine.Rank(ctx, tender, contractors)
	if err != nil {
		return err
	}
	eligibleOnly, _ := cmd.Flags().GetBool("eligible-only")

	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetTitle(fmt.Sprintf("%s  %s", tender.Identifier, derefOr(tender.Title, "")))
	t.AppendHeader(table.Row{"#", "Contractor", "Total", "Cat", "Region", "Amount", "Cert", "Eligible", "Missing"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight},
		{Number: 9, WidthMax: 60},
	})

	n := 0
	for _, r := range ranked {
		if eligibleOnly && !r.Score.Eligible {
			continue
		}
		n++
		t.AppendRow(rankRow(n, r))
	}
	t.AppendFooter(table.Row{"", fmt.Sprintf("%d of %d contractors", n, len(contractors))})
	t.Render()
	return nil
}

func rankRow(n int, r matching.RankedMatch) table.Row {
	b := r.Score.Breakdown
	eligible := "no"
	if r.Score.Eligible {
		eligible = "yes"
	}
	return table.Row{n, r.Contractor.Name, r.Score.Total, b.Categories, b.Region, b.Amount, b.Certifications,
		eligible, strings.Join(r.Score.MissingRequirements, "; ")}
}

func derefOr(p *string, def string) string {
	if p == nil {
		return def
	}
	return *p
}
