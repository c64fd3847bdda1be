package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/genetics-tutor/backend/internal/catalog"
	"github.com/genetics-tutor/backend/internal/evaluation"
	"github.com/genetics-tutor/backend/internal/ingestion"
	"github.com/genetics-tutor/backend/internal/memory"
	"github.com/genetics-tutor/backend/internal/response"
	"github.com/genetics-tutor/backend/internal/tutor"
	appLogger "github.com/genetics-tutor/backend/pkg/logger"
)

var (
	datasetPath string
	modeFlag    string
	catalogDir  string
	logLevel    string
)

var rootCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Score topic selection against a labelled query set",
	Long:  "Runs every dataset query through an in-memory tutor and reports how often the chosen topics match the expected ones.",
	RunE:  runEvaluate,
}

func init() {
	rootCmd.Flags().StringVarP(&datasetPath, "dataset", "d", "testdata/eval.json", "Path to the JSON dataset")
	rootCmd.Flags().StringVarP(&modeFlag, "mode", "m", string(response.ModeLookup), "Selection mode: lookup or ranked")
	rootCmd.Flags().StringVar(&catalogDir, "catalog-dir", "", "Directory of extra HTML topic sheets")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "warn", "Log level")
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	if err := appLogger.Init(logLevel, "console", "stderr"); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer appLogger.Sync()

	mode := response.Mode(modeFlag)
	if mode != response.ModeLookup && mode != response.ModeRanked {
		return fmt.Errorf("unknown mode %q", modeFlag)
	}

	topics := catalog.Default()
	if catalogDir != "" {
		extra, err := ingestion.NewProcessor().LoadDir(catalogDir)
		if err != nil {
			return fmt.Errorf("load topic sheets: %w", err)
		}
		if topics, err = topics.Merge(extra...); err != nil {
			return fmt.Errorf("merge topic sheets: %w", err)
		}
	}

	ds, err := evaluation.LoadDataset(datasetPath)
	if err != nil {
		return err
	}

	engine := tutor.NewEngine(
		memory.NewInMemoryStore(memory.DefaultHistoryCap),
		response.NewSelector(topics, response.Options{Mode: mode}),
		nil,
		tutor.Config{},
	)

	report, err := evaluation.NewEvaluator(engine).Run(cmd.Context(), ds)
	if err != nil {
		return err
	}

	appLogger.Info("Evaluation finished",
		zap.Int("queries", report.TotalQueries),
		zap.Float64("topic_recall", report.TopicRecall),
	)

	b, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
