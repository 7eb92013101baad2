// Package workbook writes the evaluator's result workbook: a directory
// of per-sheet CSV files with a frozen column schema, one CSV per
// logical sheet rather than a single multi-sheet binary file.
package workbook

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"garchflow/internal/errs"
)

// ModelPerformanceRow is one row of Model_Performance_Summary.csv.
type ModelPerformanceRow struct {
	Model                                           string
	Source                                          string
	AvgAIC, AvgBIC, AvgLogLik, AvgMSE, AvgMAE float64
}

// VaRPerformanceRow is one row of VaR_Performance_Summary.csv.
type VaRPerformanceRow struct {
	Model                string
	Asset                string
	ConfidenceLevel      float64
	TotalObs             int
	ExpectedRate         float64
	Violations           int
	ViolationRate        float64
	KupiecPValue         float64
	ChristoffersenPValue float64
	DQPValue             float64
}

// StressTestRow is one row of Stress_Test_Summary.csv.
type StressTestRow struct {
	Model            string
	Asset            string
	ScenarioType     string
	ScenarioName     string
	ConvergenceRate  float64
	PassLBTest       bool
	PassARCHTest     bool
	TotalTests       int
	RobustnessScore  float64
}

// NFWinnerRow is one row of NF_Winners_By_Asset.csv.
type NFWinnerRow struct {
	Asset        string
	WinningModel string
	Split        string
	Metric       string
	Value        float64
}

// DistributionalFitRow is one row of Distributional_Fit_Summary.csv.
type DistributionalFitRow struct {
	Model               string
	Asset               string
	KSStatistic         float64
	KSPValue            float64
	WassersteinDistance float64
	Notes               string
}

// Workbook bundles all five frozen output sheets.
type Workbook struct {
	ModelPerformance  []ModelPerformanceRow
	VaRPerformance    []VaRPerformanceRow
	StressTest        []StressTestRow
	NFWinners         []NFWinnerRow
	DistributionalFit []DistributionalFitRow
}

// Write emits the five CSV files into dir, one per sheet, creating dir
// if it does not exist.
func Write(dir string, wb Workbook) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errs.Wrap(err, errs.KindInvalidInput, "creating workbook directory %s", dir)
	}

	if err := writeSheet(filepath.Join(dir, "Model_Performance_Summary.csv"),
		[]string{"Model", "Source", "Avg_AIC", "Avg_BIC", "Avg_LogLik", "Avg_MSE", "Avg_MAE"},
		len(wb.ModelPerformance),
		func(i int) []string {
			r := wb.ModelPerformance[i]
			return []string{
				text(r.Model), text(r.Source),
				num(r.AvgAIC), num(r.AvgBIC), num(r.AvgLogLik), num(r.AvgMSE), num(r.AvgMAE),
			}
		}); err != nil {
		return err
	}

	if err := writeSheet(filepath.Join(dir, "VaR_Performance_Summary.csv"),
		[]string{"Model", "Asset", "Confidence_Level", "Total_Obs", "Expected_Rate", "Violations", "Violation_Rate", "Kupiec_PValue", "Christoffersen_PValue", "DQ_PValue"},
		len(wb.VaRPerformance),
		func(i int) []string {
			r := wb.VaRPerformance[i]
			return []string{
				text(r.Model), text(r.Asset), num(r.ConfidenceLevel), intCell(r.TotalObs),
				num(r.ExpectedRate), intCell(r.Violations), num(r.ViolationRate),
				num(r.KupiecPValue), num(r.ChristoffersenPValue), num(r.DQPValue),
			}
		}); err != nil {
		return err
	}

	if err := writeSheet(filepath.Join(dir, "Stress_Test_Summary.csv"),
		[]string{"Model", "Asset", "Scenario_Type", "Scenario_Name", "Convergence_Rate", "Pass_LB_Test", "Pass_ARCH_Test", "Total_Tests", "Robustness_Score"},
		len(wb.StressTest),
		func(i int) []string {
			r := wb.StressTest[i]
			return []string{
				text(r.Model), text(r.Asset), text(r.ScenarioType), text(r.ScenarioName),
				num(r.ConvergenceRate), boolCell(r.PassLBTest), boolCell(r.PassARCHTest),
				intCell(r.TotalTests), num(r.RobustnessScore),
			}
		}); err != nil {
		return err
	}

	if err := writeSheet(filepath.Join(dir, "NF_Winners_By_Asset.csv"),
		[]string{"Asset", "Winning_Model", "Split", "Metric", "Value"},
		len(wb.NFWinners),
		func(i int) []string {
			r := wb.NFWinners[i]
			return []string{text(r.Asset), text(r.WinningModel), text(r.Split), text(r.Metric), num(r.Value)}
		}); err != nil {
		return err
	}

	if err := writeSheet(filepath.Join(dir, "Distributional_Fit_Summary.csv"),
		[]string{"Model", "Asset", "KS_Statistic", "KS_PValue", "Wasserstein_Distance", "Notes"},
		len(wb.DistributionalFit),
		func(i int) []string {
			r := wb.DistributionalFit[i]
			return []string{text(r.Model), text(r.Asset), num(r.KSStatistic), num(r.KSPValue), num(r.WassersteinDistance), text(r.Notes)}
		}); err != nil {
		return err
	}

	return nil
}

func writeSheet(path string, header []string, n int, row func(i int) []string) error {
	file, err := os.Create(path)
	if err != nil {
		return errs.Wrap(err, errs.KindInvalidInput, "creating sheet %s", path)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write(header); err != nil {
		return errs.Wrap(err, errs.KindInvalidInput, "writing header for %s", path)
	}
	for i := 0; i < n; i++ {
		if err := writer.Write(row(i)); err != nil {
			return errs.Wrap(err, errs.KindInvalidInput, "writing row %d of %s", i, path)
		}
	}
	return nil
}

// num renders a numeric cell; a missing value is the literal "0" rather
// than a string placeholder, and a non-finite metric (NaN/Inf, which
// the evaluator can legitimately produce) renders as that same "0"
// in the CSV rather than leaking the Go-specific
// "NaN"/"+Inf" spelling into the frozen CSV schema.
func num(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "0"
	}
	return fmt.Sprintf("%f", v)
}

func intCell(v int) string {
	return fmt.Sprintf("%d", v)
}

func boolCell(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

// text renders a text cell; a missing value is the literal "N/A".
func text(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
