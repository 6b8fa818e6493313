package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/kadry-group/leave-cli/internal/compliance"
	"github.com/kadry-group/leave-cli/internal/model"
)

var checkCmd = &cobra.Command{
	Use:   "check <extract.json>",
	Short: "Run compliance rules over a previously extracted record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return eris.Wrap(err, "read record file")
		}

		var rec model.ExtractedRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return eris.Wrap(err, "decode record")
		}

		validation := compliance.ValidateRecord(&rec)
		report := compliance.Check(&rec)

		merged := make([]model.Finding, 0, len(validation)+len(report.Findings))
		merged = append(merged, validation...)
		merged = append(merged, report.Findings...)

		out := struct {
			Validation             []model.Finding `json:"validation"`
			Compliance             []model.Finding `json:"compliance"`
			Decision               model.Decision  `json:"decision"`
			NeedsRewrite           bool            `json:"needs_rewrite"`
			ComplianceRulesVersion string          `json:"compliance_rules_version"`
		}{
			Validation:             validation,
			Compliance:             report.Findings,
			Decision:               model.BuildDecision(merged),
			NeedsRewrite:           report.NeedsRewrite,
			ComplianceRulesVersion: compliance.RulesVersion,
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
