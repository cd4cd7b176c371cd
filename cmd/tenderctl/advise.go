package main

import (
	"errors"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/david/tender-matcher/internal/models"
)

var adviseCmd = &cobra.Command{
	Use:   "advise",
	Short: "Print the participation traffic light for one tender and one contractor",
	RunE:  runAdvise,
}

func init() {
	rootCmd.AddCommand(adviseCmd)

	adviseCmd.Flags().StringP("tender", "t", "", "tender record JSON file")
	adviseCmd.Flags().StringP("contractor", "c", "", "contractor profile JSON file")
}

func runAdvise(cmd *cobra.Command, _ []string) error {
	tenderFile, _ := cmd.Flags().GetString("tender")
	contractorFile, _ := cmd.Flags().GetString("contractor")
	if tenderFile == "" || contractorFile == "" {
		return errors.New("--tender and --contractor are required")
	}

	lg, err := newLogger()
	if err != nil {
		return err
	}
	defer lg.Sync()
	components, err := buildComponents(lg)
	if err != nil {
		return err
	}

	var tender models.TenderRecord
	if err := readJSON(tenderFile, &tender); err != nil {
		return err
	}
	var contractor models.ContractorProfile
	if err := readJSON(contractorFile, &contractor); err != nil {
		return err
	}

	report, err := components.Advisor.Report(tender, contractor)
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetTitle(contractor.Name + " / " + tender.Identifier)
	t.AppendHeader(table.Row{"Check", "Light", "Notes"})
	t.AppendRow(table.Row{"Legal", report.Legal.Light, strings.Join(report.Legal.Issues, "; ")})
	t.AppendRow(table.Row{"Economic", report.Economic.Light, report.Economic.Note})
	t.AppendRow(table.Row{"Score", report.Score.Total, strings.Join(report.Score.MissingRequirements, "; ")})
	t.AppendFooter(table.Row{"Recommendation", report.Recommendation})
	t.Render()
	return nil
}
