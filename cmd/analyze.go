package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/salvageiq/auctionmind/internal/model"
)

var (
	analyzeVIN   string
	analyzeLotID int64
	analyzeSite  int
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run a one-shot analysis for a VIN or a lot",
	RunE: func(cmd *cobra.Command, args []string) error {
		if analyzeVIN == "" && analyzeLotID == 0 {
			return eris.New("either --vin or --lot is required")
		}

		env, err := initPipeline(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		var result model.AnalysisResult
		if analyzeVIN != "" {
			result, err = env.Pipeline.AnalyzeVIN(cmd.Context(), analyzeVIN)
		} else {
			var site model.Site
			site, err = model.ParseSite(analyzeSite)
			if err != nil {
				return err
			}
			result, err = env.Pipeline.AnalyzeLot(cmd.Context(), analyzeLotID, site)
		}
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeVIN, "vin", "", "17-character VIN")
	analyzeCmd.Flags().Int64Var(&analyzeLotID, "lot", 0, "lot id")
	analyzeCmd.Flags().IntVar(&analyzeSite, "site", 1, "auction site (1=copart, 2=iaai)")
	rootCmd.AddCommand(analyzeCmd)
}
