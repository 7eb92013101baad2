package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"garchflow/internal/config"
	"garchflow/internal/errs"
	"garchflow/internal/garch"
	"garchflow/internal/model"
	"garchflow/internal/pipeline"
	"garchflow/internal/returns"
	"garchflow/internal/workbook"
)

func newRootCmd(log zerolog.Logger) *cobra.Command {
	v := viper.New()
	var configFile string
	var priceCSV string

	root := &cobra.Command{
		Use:   "nfgarch",
		Short: "GARCH / normalizing-flow volatility modeling and backtesting",
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "path to a config file (yaml/json/toml)")
	root.PersistentFlags().StringVar(&priceCSV, "prices", "", "path to a price matrix CSV")
	v.BindPFlag("config_file", root.PersistentFlags().Lookup("config"))

	root.AddCommand(newFitCmd(log, v, &configFile, &priceCSV))
	root.AddCommand(newSimulateCmd(log, v, &configFile, &priceCSV))
	root.AddCommand(newEvaluateCmd(log, v, &configFile, &priceCSV))
	root.AddCommand(newRunCmd(log, v, &configFile, &priceCSV))
	return root
}

func loadConfig(v *viper.Viper, configFile string) (config.Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return config.Config{}, errs.Wrap(err, errs.KindInvalidInput, "reading config file %s", configFile)
		}
	}
	return config.Load(v)
}

// newFitCmd fits a single (family, innovation) GARCH model to one
// asset's full return series and prints its AIC/BIC/log-likelihood.
func newFitCmd(log zerolog.Logger, v *viper.Viper, configFile, priceCSV *string) *cobra.Command {
	return &cobra.Command{
		Use:   "fit <asset>",
		Short: "fit a single GARCH model to one asset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v, *configFile)
			if err != nil {
				return err
			}
			assetID := args[0]

			pm, err := returns.LoadPriceCSV(*priceCSV)
			if err != nil {
				return err
			}
			seriesList, err := returns.ToReturnsMatrix(pm)
			if err != nil {
				return err
			}
			series, err := findAsset(seriesList, assetID)
			if err != nil {
				return err
			}

			spec := model.ModelSpec{Variance: cfg.Family, Innovation: cfg.Innovation}
			fit, err := garch.Fit(cmd.Context(), assetID, series, spec, garch.FitOptions{})
			if err != nil {
				return err
			}
			log.Info().
				Str("asset", assetID).
				Float64("aic", fit.AIC).
				Float64("bic", fit.BIC).
				Float64("log_lik", fit.LogLik).
				Bool("converged", fit.Converged).
				Msg("fit complete")
			fmt.Printf("%s: AIC=%.4f BIC=%.4f LogLik=%.4f converged=%v\n", assetID, fit.AIC, fit.BIC, fit.LogLik, fit.Converged)
			return nil
		},
	}
}

func newSimulateCmd(log zerolog.Logger, v *viper.Viper, configFile, priceCSV *string) *cobra.Command {
	var horizon int
	cmd := &cobra.Command{
		Use:   "simulate <asset>",
		Short: "fit a GARCH+NF model and simulate forward return paths",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSingleJobPipeline(cmd.Context(), log, v, *configFile, *priceCSV, args[0], horizon)
		},
	}
	cmd.Flags().IntVar(&horizon, "horizon", 10, "simulation horizon in steps")
	return cmd
}

func newEvaluateCmd(log zerolog.Logger, v *viper.Viper, configFile, priceCSV *string) *cobra.Command {
	return &cobra.Command{
		Use:   "evaluate <asset>",
		Short: "fit, simulate and evaluate a GARCH+NF model for one asset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSingleJobPipeline(cmd.Context(), log, v, *configFile, *priceCSV, args[0], 20)
		},
	}
}

func newRunCmd(log zerolog.Logger, v *viper.Viper, configFile, priceCSV *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "evaluate every asset in the price matrix and write the result workbook",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v, *configFile)
			if err != nil {
				return err
			}
			pm, err := returns.LoadPriceCSV(*priceCSV)
			if err != nil {
				return err
			}
			seriesList, err := returns.ToReturnsMatrix(pm)
			if err != nil {
				return err
			}

			spec := model.ModelSpec{Variance: cfg.Family, Innovation: cfg.Innovation}
			jobs := make([]pipeline.Job, 0, len(seriesList))
			for _, s := range seriesList {
				train, test := returns.ChronoSplit(s, 0.8)
				jobs = append(jobs, pipeline.Job{
					AssetID: s.AssetID,
					Spec:    spec,
					SplitID: "split-0",
					Window:  returns.Window{Train: train, Test: test},
				})
			}

			results, err := pipeline.Run(cmd.Context(), log, cfg, jobs)
			if err != nil {
				return err
			}

			wb := buildWorkbook(spec, results)
			if err := workbook.Write(cfg.OutputDir, wb); err != nil {
				return err
			}
			if err := pipeline.WriteManifest(cfg.OutputDir, cfg.OutputDir, cfg, pipeline.Seeds{
				NFTrain:    cfg.NFSeed,
				NFSample:   cfg.NFSeed + 2,
				MCForecast: cfg.NFSeed + 1,
			}); err != nil {
				return err
			}
			log.Info().Int("jobs", len(jobs)).Str("output", cfg.OutputDir).Msg("run complete")
			return nil
		},
	}
}

func runSingleJobPipeline(ctx context.Context, log zerolog.Logger, v *viper.Viper, configFile, priceCSV, assetID string, horizon int) error {
	cfg, err := loadConfig(v, configFile)
	if err != nil {
		return err
	}
	pm, err := returns.LoadPriceCSV(priceCSV)
	if err != nil {
		return err
	}
	seriesList, err := returns.ToReturnsMatrix(pm)
	if err != nil {
		return err
	}
	series, err := findAsset(seriesList, assetID)
	if err != nil {
		return err
	}

	train, test := returns.ChronoSplit(series, 0.8)
	// The pipeline simulates as many steps as the test window holds, so
	// the horizon is applied by truncating the test window.
	if horizon > 0 && horizon < len(test.R) {
		test.R = test.R[:horizon]
		if len(test.Time) > horizon {
			test.Time = test.Time[:horizon]
		}
	}
	spec := model.ModelSpec{Variance: cfg.Family, Innovation: cfg.Innovation}
	job := pipeline.Job{AssetID: assetID, Spec: spec, SplitID: "split-0", Window: returns.Window{Train: train, Test: test}}

	results, err := pipeline.Run(ctx, log, cfg, []pipeline.Job{job})
	if err != nil {
		return err
	}
	if results[0].Err != nil {
		return results[0].Err
	}
	report := results[0].Report
	fmt.Printf("%s: AIC=%.4f BIC=%.4f MSE=%.6f KS=%.4f(p=%.4f) Wasserstein=%.6f\n",
		assetID, report.AIC, report.BIC, report.MSE, report.KSStat, report.KSPValue, report.Wasserstein)
	return nil
}

func findAsset(seriesList []model.ReturnSeries, assetID string) (model.ReturnSeries, error) {
	for _, s := range seriesList {
		if s.AssetID == assetID {
			return s, nil
		}
	}
	return model.ReturnSeries{}, errs.New(errs.KindInvalidInput, "unknown asset %q", assetID)
}

func buildWorkbook(spec model.ModelSpec, results []pipeline.Result) workbook.Workbook {
	var wb workbook.Workbook
	for _, r := range results {
		if r.Err != nil {
			continue
		}
		report := r.Report
		wb.ModelPerformance = append(wb.ModelPerformance, workbook.ModelPerformanceRow{
			Model:     spec.Hash(),
			Source:    "nf-garch",
			AvgAIC:    report.AIC,
			AvgBIC:    report.BIC,
			AvgLogLik: report.LogLik,
			AvgMSE:    report.MSE,
			AvgMAE:    report.MAE,
		})
		for _, v := range report.VaR {
			wb.VaRPerformance = append(wb.VaRPerformance, workbook.VaRPerformanceRow{
				Model:                spec.Hash(),
				Asset:                report.AssetID,
				ConfidenceLevel:      1 - v.Alpha,
				TotalObs:             v.TotalObs,
				ExpectedRate:         v.Alpha,
				Violations:           v.Violations,
				ViolationRate:        v.ViolationRate,
				KupiecPValue:         v.Kupiec.PValue,
				ChristoffersenPValue: v.Christoffersen.PValue,
				DQPValue:             v.DynamicQuantile.PValue,
			})
		}
		wb.DistributionalFit = append(wb.DistributionalFit, workbook.DistributionalFitRow{
			Model:               spec.Hash(),
			Asset:                report.AssetID,
			KSStatistic:         report.KSStat,
			KSPValue:            report.KSPValue,
			WassersteinDistance: report.Wasserstein,
		})
	}
	return wb
}
