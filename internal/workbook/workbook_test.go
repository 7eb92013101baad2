package workbook

import (
	"encoding/csv"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestWrite_ProducesFiveSheetsWithFrozenHeaders(t *testing.T) {
	dir := t.TempDir()

	wb := Workbook{
		ModelPerformance: []ModelPerformanceRow{
			{Model: "sGARCH-normal", Source: "nf-garch", AvgAIC: 100.5, AvgBIC: 110.2, AvgLogLik: -48.1, AvgMSE: 0.002, AvgMAE: 0.03},
		},
		VaRPerformance: []VaRPerformanceRow{
			{Model: "sGARCH-normal", Asset: "AAPL", ConfidenceLevel: 0.95, TotalObs: 250, ExpectedRate: 0.05, Violations: 13, ViolationRate: 0.052},
		},
		StressTest: []StressTestRow{
			{Model: "sGARCH-normal", Asset: "AAPL", ScenarioType: "shock", ScenarioName: "2008-crisis", ConvergenceRate: 1.0, PassLBTest: true, PassARCHTest: false, TotalTests: 5, RobustnessScore: 0.8},
		},
		NFWinners: []NFWinnerRow{
			{Asset: "AAPL", WinningModel: "eGARCH-skewt", Split: "split-0", Metric: "BIC", Value: 88.4},
		},
		DistributionalFit: []DistributionalFitRow{
			{Model: "sGARCH-normal", Asset: "AAPL", KSStatistic: 0.03, KSPValue: 0.6, WassersteinDistance: 0.001, Notes: ""},
		},
	}

	if err := Write(dir, wb); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	cases := []struct {
		file   string
		header []string
	}{
		{"Model_Performance_Summary.csv", []string{"Model", "Source", "Avg_AIC", "Avg_BIC", "Avg_LogLik", "Avg_MSE", "Avg_MAE"}},
		{"VaR_Performance_Summary.csv", []string{"Model", "Asset", "Confidence_Level", "Total_Obs", "Expected_Rate", "Violations", "Violation_Rate", "Kupiec_PValue", "Christoffersen_PValue", "DQ_PValue"}},
		{"Stress_Test_Summary.csv", []string{"Model", "Asset", "Scenario_Type", "Scenario_Name", "Convergence_Rate", "Pass_LB_Test", "Pass_ARCH_Test", "Total_Tests", "Robustness_Score"}},
		{"NF_Winners_By_Asset.csv", []string{"Asset", "Winning_Model", "Split", "Metric", "Value"}},
		{"Distributional_Fit_Summary.csv", []string{"Model", "Asset", "KS_Statistic", "KS_PValue", "Wasserstein_Distance", "Notes"}},
	}

	for _, c := range cases {
		path := filepath.Join(dir, c.file)
		f, err := os.Open(path)
		if err != nil {
			t.Fatalf("sheet %s not created: %v", c.file, err)
		}
		r := csv.NewReader(f)
		records, err := r.ReadAll()
		f.Close()
		if err != nil {
			t.Fatalf("reading %s: %v", c.file, err)
		}
		if len(records) != 2 {
			t.Fatalf("%s: got %d rows (incl. header), want 2", c.file, len(records))
		}
		for i, want := range c.header {
			if records[0][i] != want {
				t.Errorf("%s header[%d] = %q, want %q", c.file, i, records[0][i], want)
			}
		}
	}
}

func TestWrite_MissingTextCellBecomesNA(t *testing.T) {
	dir := t.TempDir()
	wb := Workbook{
		DistributionalFit: []DistributionalFitRow{
			{Model: "sGARCH-normal", Asset: "AAPL", Notes: ""},
		},
	}
	if err := Write(dir, wb); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	f, err := os.Open(filepath.Join(dir, "Distributional_Fit_Summary.csv"))
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	notesCol := 5
	if records[1][notesCol] != "N/A" {
		t.Errorf("empty Notes rendered as %q, want N/A", records[1][notesCol])
	}
}

func TestWrite_NonFiniteNumericCellBecomesZero(t *testing.T) {
	dir := t.TempDir()
	wb := Workbook{
		DistributionalFit: []DistributionalFitRow{
			{Model: "sGARCH-normal", Asset: "AAPL", KSStatistic: math.NaN(), WassersteinDistance: math.Inf(1)},
		},
	}
	if err := Write(dir, wb); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	f, err := os.Open(filepath.Join(dir, "Distributional_Fit_Summary.csv"))
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	ksStatCol, wassersteinCol := 2, 4
	if records[1][ksStatCol] != "0" {
		t.Errorf("NaN KSStatistic rendered as %q, want 0", records[1][ksStatCol])
	}
	if records[1][wassersteinCol] != "0" {
		t.Errorf("+Inf WassersteinDistance rendered as %q, want 0", records[1][wassersteinCol])
	}
}
