// Package returns implements the returns preparer: turning
// a price matrix into log-return series and producing deterministic
// chronological and sliding-window cross-validation splits.
package returns

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"

	"gonum.org/v1/gonum/mat"

	"garchflow/internal/errs"
	"garchflow/internal/model"
)

// PriceMatrix is a T x K dense table: one row per business day, one
// column per asset.
type PriceMatrix struct {
	P        *mat.Dense
	AssetIDs []string
}

// LoadPriceCSV reads a price-matrix CSV: header row of asset ids, then
// one numeric row per business day.
func LoadPriceCSV(path string) (*PriceMatrix, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.Wrap(err, errs.KindInvalidInput, "open %s", path)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, errs.Wrap(err, errs.KindInvalidInput, "read header of %s", path)
	}
	if len(header) == 0 {
		return nil, errs.New(errs.KindInvalidInput, "empty header in %s", path)
	}
	K := len(header)

	var data []float64
	row := 0
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errs.Wrap(err, errs.KindInvalidInput, "read row %d of %s", row+2, path)
		}
		if len(record) == 1 && record[0] == "" {
			continue
		}
		if len(record) != K {
			return nil, errs.New(errs.KindInvalidInput, "row %d: expected %d columns, got %d", row+2, K, len(record))
		}
		for j, s := range record {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, errs.Wrap(err, errs.KindInvalidInput, "parse float row %d col %d (%q)", row+2, j+1, s)
			}
			if v <= 0 {
				return nil, errs.New(errs.KindInvalidInput, "non-positive price at row %d col %d: %v", row+2, j+1, v)
			}
			data = append(data, v)
		}
		row++
	}
	if row == 0 {
		return nil, errs.New(errs.KindInvalidInput, "no data rows in %s", path)
	}

	return &PriceMatrix{
		P:        mat.NewDense(row, K, data),
		AssetIDs: header,
	}, nil
}

// ToReturns converts one asset's price column to a ReturnSeries via
// r[t] = ln(P[t]/P[t-1]), dropping the first observation.
// Fails with INVALID_INPUT if any price is non-positive or the column
// has fewer than 2 observations.
func ToReturns(assetID string, prices []float64) (model.ReturnSeries, error) {
	if len(prices) < 2 {
		return model.ReturnSeries{}, errs.New(errs.KindInvalidInput, "series length < 2 for asset %s", assetID)
	}
	for i, p := range prices {
		if p <= 0 || math.IsNaN(p) || math.IsInf(p, 0) {
			return model.ReturnSeries{}, errs.New(errs.KindInvalidInput, "non-positive or non-finite price at index %d for asset %s", i, assetID)
		}
	}
	r := make([]float64, len(prices)-1)
	t := make([]float64, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		r[i-1] = math.Log(prices[i] / prices[i-1])
		t[i-1] = float64(i - 1)
	}
	return model.ReturnSeries{AssetID: assetID, Time: t, R: r}, nil
}

// ToReturnsMatrix converts every column of a PriceMatrix to a
// ReturnSeries, returning one per asset.
func ToReturnsMatrix(pm *PriceMatrix) ([]model.ReturnSeries, error) {
	T, K := pm.P.Dims()
	out := make([]model.ReturnSeries, 0, K)
	for k := 0; k < K; k++ {
		col := make([]float64, T)
		for t := 0; t < T; t++ {
			col[t] = pm.P.At(t, k)
		}
		rs, err := ToReturns(pm.AssetIDs[k], col)
		if err != nil {
			return nil, err
		}
		out = append(out, rs)
	}
	return out, nil
}

// ChronoSplit deterministically splits r at floor(ratio*T); it never
// shuffles.
func ChronoSplit(r model.ReturnSeries, ratio float64) (train, test model.ReturnSeries) {
	T := r.Len()
	cut := int(math.Floor(ratio * float64(T)))
	if cut < 0 {
		cut = 0
	}
	if cut > T {
		cut = T
	}
	train = model.ReturnSeries{AssetID: r.AssetID, Time: r.Time[:cut], R: r.R[:cut]}
	test = model.ReturnSeries{AssetID: r.AssetID, Time: r.Time[cut:], R: r.R[cut:]}
	return train, test
}

// Window is one (train, test) pair yielded by TSCVWindows.
type Window struct {
	Train model.ReturnSeries
	Test  model.ReturnSeries
	Start int
}

// TSCVWindows enumerates the sliding-window cross-validation sequence:
// train=[s,s+W), test=[s+W,s+W+H), s advances by S until s+W+H > T. The
// sequence is finite and restartable: calling this function again with
// identical arguments reproduces the exact same (s,...) sequence.
func TSCVWindows(r model.ReturnSeries, window, step, horizon int) []Window {
	T := r.Len()
	var out []Window
	for s := 0; s+window+horizon <= T; s += step {
		train := model.ReturnSeries{
			AssetID: r.AssetID,
			Time:    r.Time[s : s+window],
			R:       r.R[s : s+window],
		}
		test := model.ReturnSeries{
			AssetID: r.AssetID,
			Time:    r.Time[s+window : s+window+horizon],
			R:       r.R[s+window : s+window+horizon],
		}
		out = append(out, Window{Train: train, Test: test, Start: s})
		if step <= 0 {
			break
		}
	}
	return out
}

// IsDegenerate reports whether a training slice has (numerically) zero
// standard deviation, in which case the caller should skip it with a
// warning rather than attempt a fit.
func IsDegenerate(r model.ReturnSeries) bool {
	if r.Len() < 2 {
		return true
	}
	mean := 0.0
	for _, v := range r.R {
		mean += v
	}
	mean /= float64(r.Len())
	var ss float64
	for _, v := range r.R {
		d := v - mean
		ss += d * d
	}
	return ss/float64(r.Len()) < 1e-20
}

// DescribeWindow is a small formatting helper used by logging call sites.
func DescribeWindow(w Window) string {
	return fmt.Sprintf("train=[%d,%d) test=[%d,%d)", w.Start, w.Start+len(w.Train.R), w.Start+len(w.Train.R), w.Start+len(w.Train.R)+len(w.Test.R))
}
