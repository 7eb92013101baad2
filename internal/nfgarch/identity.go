// Package nfgarch composes a fitted GARCH model with a trained
// normalizing flow into an NF-GARCH simulator: standardized residuals
// come out of the GARCH engine, a flow is trained on them, and
// flow-sampled innovations drive the GARCH recursion back into simulated
// return paths.
package nfgarch

import (
	"garchflow/internal/errs"
	"garchflow/internal/model"
)

// CheckIdentity enforces that an NFModel may only drive the GarchFit it
// was trained on. Rejects cross-contamination where a flow trained on
// one asset/model is accidentally paired with another fit's recursion
// state.
func CheckIdentity(fit *model.GarchFit, nf *model.NFModel) error {
	if nf.SourceFit != fit.ID {
		return errs.New(errs.KindInvalidInput,
			"nf model %s was trained on fit %s, not %s (asset %s)",
			nf.ID, nf.SourceFit, fit.ID, fit.AssetID)
	}
	if nf.Diverged {
		return errs.New(errs.KindTrainingDiverged, "nf model %s diverged during training", nf.ID)
	}
	return nil
}
