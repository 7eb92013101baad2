package returns

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"garchflow/internal/errs"
	"garchflow/internal/model"
)

func writeTempCSV(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "prices.csv")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("writing temp csv: %v", err)
	}
	return path
}

func TestLoadPriceCSV_ParsesHeaderAndRows(t *testing.T) {
	path := writeTempCSV(t, "AAPL,MSFT\n100,200\n101,198\n103,202\n")
	pm, err := LoadPriceCSV(path)
	if err != nil {
		t.Fatalf("LoadPriceCSV failed: %v", err)
	}
	rows, cols := pm.P.Dims()
	if rows != 3 || cols != 2 {
		t.Fatalf("dims = (%d,%d), want (3,2)", rows, cols)
	}
	if pm.AssetIDs[0] != "AAPL" || pm.AssetIDs[1] != "MSFT" {
		t.Fatalf("AssetIDs = %v, want [AAPL MSFT]", pm.AssetIDs)
	}
}

func TestLoadPriceCSV_RejectsNonPositivePrice(t *testing.T) {
	path := writeTempCSV(t, "AAPL\n100\n-5\n")
	_, err := LoadPriceCSV(path)
	if errs.KindOf(err) != errs.KindInvalidInput {
		t.Fatalf("kind = %v, want INVALID_INPUT for non-positive price", errs.KindOf(err))
	}
}

func TestToReturns_LogReturnFormula(t *testing.T) {
	prices := []float64{100, 110, 99}
	rs, err := ToReturns("A", prices)
	if err != nil {
		t.Fatalf("ToReturns failed: %v", err)
	}
	if len(rs.R) != 2 {
		t.Fatalf("len(R) = %d, want 2", len(rs.R))
	}
	want0 := math.Log(110.0 / 100.0)
	want1 := math.Log(99.0 / 110.0)
	if math.Abs(rs.R[0]-want0) > 1e-12 || math.Abs(rs.R[1]-want1) > 1e-12 {
		t.Fatalf("R = %v, want [%v %v]", rs.R, want0, want1)
	}
}

func TestToReturns_TooShort_IsInvalidInput(t *testing.T) {
	_, err := ToReturns("A", []float64{100})
	if errs.KindOf(err) != errs.KindInvalidInput {
		t.Fatalf("kind = %v, want INVALID_INPUT", errs.KindOf(err))
	}
}

func TestChronoSplit_DeterministicFloorCut(t *testing.T) {
	r := seriesOfLen(t, 10)
	train, test := ChronoSplit(r, 0.7)
	if len(train.R) != 7 || len(test.R) != 3 {
		t.Fatalf("split lengths = (%d,%d), want (7,3)", len(train.R), len(test.R))
	}

	train2, test2 := ChronoSplit(r, 0.7)
	if !almostEqualSlice(train.R, train2.R) || !almostEqualSlice(test.R, test2.R) {
		t.Fatalf("ChronoSplit is not deterministic across repeated calls")
	}
}

func TestTSCVWindows_SlidesByStepUntilExhausted(t *testing.T) {
	r := seriesOfLen(t, 20)
	windows := TSCVWindows(r, 10, 5, 2)

	// s=0: train [0,10) test [10,12); s=5: train [5,15) test [15,17); s=10: train [10,20) test [20,22) overshoots.
	if len(windows) != 2 {
		t.Fatalf("got %d windows, want 2", len(windows))
	}
	if windows[0].Start != 0 || windows[1].Start != 5 {
		t.Fatalf("window starts = [%d %d], want [0 5]", windows[0].Start, windows[1].Start)
	}
	for _, w := range windows {
		if len(w.Train.R) != 10 || len(w.Test.R) != 2 {
			t.Errorf("window at start=%d has wrong lengths: train=%d test=%d", w.Start, len(w.Train.R), len(w.Test.R))
		}
	}
}

func TestIsDegenerate_ConstantSeries(t *testing.T) {
	r := seriesOfLen(t, 10)
	for i := range r.R {
		r.R[i] = 0
	}
	if !IsDegenerate(r) {
		t.Errorf("IsDegenerate(constant zero series) = false, want true")
	}
}

func seriesOfLen(t *testing.T, n int) model.ReturnSeries {
	t.Helper()
	r := make([]float64, n)
	tm := make([]float64, n)
	for i := range r {
		r[i] = 0.001 * float64(i)
		tm[i] = float64(i)
	}
	return model.ReturnSeries{AssetID: "A", Time: tm, R: r}
}

func almostEqualSlice(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if math.Abs(a[i]-b[i]) > 1e-12 {
			return false
		}
	}
	return true
}
