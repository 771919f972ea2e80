package main

import (
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/EbinDavis252/Aqua-risk/internal/model"
	"github.com/EbinDavis252/Aqua-risk/internal/util"
)

type trainFlags struct {
	data     string
	out      string
	target   string
	trees    int
	maxDepth int
	seed     int64
	testSize float64
}

var rootCmd = &cobra.Command{
	Use:   "train",
	Short: "Fit the aqua-risk classifiers from CSV data",
	Long: `Fit a random forest from a labelled CSV file and write it as a JSON
artifact the server loads at startup.

Available subcommands:
  financial - loan default model (age, income, loan_amount, region, loan_term, previous_default, farm_type)
  technical - farm failure model (temp, pH, ammonia, DO, turbidity)`,
	SilenceUsage: true,
}

func newTrainCmd(name, short, defaultData, defaultOut, defaultTarget string, spec func(string) model.DatasetSpec) *cobra.Command {
	flags := &trainFlags{}
	cmd := &cobra.Command{
		Use:   name,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTrain(cmd, name, spec(flags.target), flags)
		},
	}
	cmd.Flags().StringVar(&flags.data, "data", defaultData, "labelled training CSV")
	cmd.Flags().StringVar(&flags.out, "out", defaultOut, "path of the JSON model artifact")
	cmd.Flags().StringVar(&flags.target, "target", defaultTarget, "label column (0/1)")
	cmd.Flags().IntVar(&flags.trees, "trees", 100, "number of trees")
	cmd.Flags().IntVar(&flags.maxDepth, "max-depth", 0, "maximum tree depth (0 grows fully)")
	cmd.Flags().Int64Var(&flags.seed, "seed", 0, "random seed (0 uses the clock)")
	cmd.Flags().Float64Var(&flags.testSize, "test-size", 0.2, "fraction of rows held out for evaluation")
	return cmd
}

func runTrain(cmd *cobra.Command, name string, spec model.DatasetSpec, flags *trainFlags) error {
	if flags.testSize < 0 || flags.testSize >= 1 {
		return fmt.Errorf("--test-size must be in [0,1), got %v", flags.testSize)
	}
	timer := util.StartTimer()

	ds, err := model.LoadCSV(flags.data, spec)
	if err != nil {
		return err
	}
	seed := flags.seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	train, test := ds.Split(flags.testSize, seed)

	forest, err := model.TrainForest(train, model.TrainOptions{
		Trees:    flags.trees,
		MaxDepth: flags.maxDepth,
		Seed:     seed,
	})
	if err != nil {
		return fmt.Errorf("train %s model: %w", name, err)
	}
	if err := forest.Save(flags.out); err != nil {
		return err
	}

	fields := logrus.Fields{
		"model":       name,
		"rows":        ds.Len(),
		"train_rows":  train.Len(),
		"test_rows":   test.Len(),
		"trees":       len(forest.Trees),
		"out":         flags.out,
		"duration_ms": timer.ElapsedMs(),
	}
	if test.Len() > 0 {
		acc, err := model.Accuracy(forest, test)
		if err != nil {
			return fmt.Errorf("evaluate %s model: %w", name, err)
		}
		fields["holdout_accuracy"] = fmt.Sprintf("%.3f", acc)
	}
	logrus.WithFields(fields).Info("model written")
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s model to %s\n", name, flags.out)
	return nil
}

func init() {
	rootCmd.AddCommand(
		newTrainCmd("financial", "Train the loan default model",
			"data/loan_data.csv", "ml_models/financial_model.json", "default", financialSpec),
		newTrainCmd("technical", "Train the farm failure model",
			"data/water_quality_data.csv", "ml_models/technical_model.json", "failure", technicalSpec),
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logrus.WithError(err).Error("training failed")
		os.Exit(1)
	}
}
