// Package config loads and validates the recognized configuration
// options, using the same viper-backed pattern common to layered
// file/env/flag configuration in service CLIs.
package config

import (
	"strings"

	"github.com/spf13/viper"

	"garchflow/internal/errs"
	"garchflow/internal/model"
)

// Engine selects between the manual GARCH core and the out-of-scope
// comparison engine.
type Engine string

const (
	EngineManual   Engine = "manual"
	EngineExternal Engine = "external"
)

// SplitKind selects the train/test split strategy.
type SplitKind string

const (
	SplitChrono SplitKind = "chrono"
	SplitTSCV   SplitKind = "tscv"
)

// Config is the fully-validated, recognized configuration.
type Config struct {
	Engine     Engine
	Family     model.VarianceFamily
	Innovation model.InnovationFamily

	Split  SplitKind
	Window int
	Step   int

	NFBlocks int
	NFWidth  int
	NFLR     float64
	NFEpochs int
	NFSeed   int64

	VaRLevels []float64

	MCReplicates int

	TimeoutSeconds int

	OutputDir string
}

// Load reads configuration from the given viper instance (already
// pointed at a config file, env prefix, and/or bound flags by the
// caller) and validates it into a Config.
func Load(v *viper.Viper) (Config, error) {
	v.SetDefault("engine", "manual")
	v.SetDefault("family", "sgarch")
	v.SetDefault("innovation", "normal")
	v.SetDefault("split", "chrono")
	v.SetDefault("window", 500)
	v.SetDefault("step", 20)
	v.SetDefault("horizon", 1)
	v.SetDefault("nf.blocks", 6)
	v.SetDefault("nf.width", 64)
	v.SetDefault("nf.lr", 1e-3)
	v.SetDefault("nf.epochs", 500)
	v.SetDefault("nf.seed", 0)
	v.SetDefault("var.levels", []float64{0.95, 0.99})
	v.SetDefault("mc.replicates", 5000)
	v.SetDefault("timeout_seconds", 60)
	v.SetDefault("output_dir", "./run")

	engine := Engine(strings.ToLower(v.GetString("engine")))
	family, err := parseFamily(v.GetString("family"))
	if err != nil {
		return Config{}, err
	}
	innovation, err := parseInnovation(v.GetString("innovation"))
	if err != nil {
		return Config{}, err
	}
	split := SplitKind(strings.ToLower(v.GetString("split")))

	cfg := Config{
		Engine:         engine,
		Family:         family,
		Innovation:     innovation,
		Split:          split,
		Window:         v.GetInt("window"),
		Step:           v.GetInt("step"),
		NFBlocks:       v.GetInt("nf.blocks"),
		NFWidth:        v.GetInt("nf.width"),
		NFLR:           v.GetFloat64("nf.lr"),
		NFEpochs:       v.GetInt("nf.epochs"),
		NFSeed:         v.GetInt64("nf.seed"),
		VaRLevels:      v.GetFloat64Slice("var.levels"),
		MCReplicates:   v.GetInt("mc.replicates"),
		TimeoutSeconds: v.GetInt("timeout_seconds"),
		OutputDir:      v.GetString("output_dir"),
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Engine {
	case EngineManual, EngineExternal:
	default:
		return errs.New(errs.KindSpec, "unrecognized engine %q", c.Engine)
	}
	switch c.Split {
	case SplitChrono, SplitTSCV:
	default:
		return errs.New(errs.KindSpec, "unrecognized split %q", c.Split)
	}
	if c.NFBlocks <= 0 || c.NFWidth <= 0 {
		return errs.New(errs.KindSpec, "nf.blocks and nf.width must be positive")
	}
	if c.MCReplicates <= 0 {
		return errs.New(errs.KindSpec, "mc.replicates must be positive")
	}
	for _, a := range c.VaRLevels {
		if a <= 0 || a >= 1 {
			return errs.New(errs.KindSpec, "var.levels entries must be in (0,1), got %v", a)
		}
	}
	if c.OutputDir == "" {
		return errs.New(errs.KindSpec, "output_dir must not be empty")
	}
	return nil
}

func parseFamily(s string) (model.VarianceFamily, error) {
	switch strings.ToLower(s) {
	case "sgarch":
		return model.SGARCH, nil
	case "egarch":
		return model.EGARCH, nil
	case "gjrgarch":
		return model.GJRGARCH, nil
	case "tgarch":
		return model.TGARCH, nil
	default:
		return 0, errs.New(errs.KindSpec, "unrecognized family %q", s)
	}
}

func parseInnovation(s string) (model.InnovationFamily, error) {
	switch strings.ToLower(s) {
	case "normal":
		return model.Normal, nil
	case "student_t":
		return model.StudentT, nil
	case "skew_student_t":
		return model.SkewStudentT, nil
	default:
		return 0, errs.New(errs.KindSpec, "unrecognized innovation %q", s)
	}
}
