package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kadry-group/leave-cli/internal/extract"
)

var (
	extractModel string
	extractDebug bool
)

var extractCmd = &cobra.Command{
	Use:   "extract <file.pdf>",
	Short: "Extract a leave request from a scanned PDF",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		if !strings.HasSuffix(strings.ToLower(path), ".pdf") {
			return eris.New("input must be a PDF file")
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return eris.Wrap(err, "read input file")
		}
		if int64(len(data)) > cfg.PDF.MaxPDFBytes() {
			return eris.New(fmt.Sprintf("file exceeds the %d MB upload limit", cfg.PDF.MaxUploadMB))
		}

		p := newPipeline()
		res, err := p.Run(cmd.Context(), data, filepath.Base(path), extractModel)
		if err != nil {
			var ue *extract.UpstreamError
			if eris.As(err, &ue) {
				zap.L().Error("extraction failed",
					zap.String("step", ue.Step),
					zap.Int("status", ue.Status),
					zap.String("upstream_request_id", ue.UpstreamID),
				)
				if extractDebug {
					for _, step := range ue.Trail {
						fmt.Fprintln(os.Stderr, step)
					}
				}
			}
			return eris.Wrap(err, "extract")
		}

		resp := buildResponse(res, extractDebug || cfg.Anthropic.DebugSteps)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	},
}

func init() {
	extractCmd.Flags().StringVar(&extractModel, "model", "", "vision model override for this run")
	extractCmd.Flags().BoolVar(&extractDebug, "debug", false, "include the step-by-step debug trail")
	rootCmd.AddCommand(extractCmd)
}
