// Command nfgarch is the thin CLI shell around the GARCH / normalizing-
// flow volatility core: it loads configuration, prepares
// returns, runs the orchestrated pipeline, and writes the result
// workbook. Exit codes follow the error taxonomy in internal/errs.
package main

import (
	"os"

	"github.com/rs/zerolog"

	"garchflow/internal/errs"
)

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	root := newRootCmd(log)
	if err := root.Execute(); err != nil {
		log.Error().Err(err).Msg("nfgarch failed")
		os.Exit(errs.KindOf(err).ExitCode())
	}
}
