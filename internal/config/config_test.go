package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"garchflow/internal/errs"
	"garchflow/internal/model"
)

func TestLoad_Defaults(t *testing.T) {
	v := viper.New()
	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, EngineManual, cfg.Engine)
	assert.Equal(t, model.SGARCH, cfg.Family)
	assert.Equal(t, 5000, cfg.MCReplicates)
	assert.Len(t, cfg.VaRLevels, 2)
}

func TestLoad_RejectsUnknownFamily(t *testing.T) {
	v := viper.New()
	v.Set("family", "not-a-family")
	_, err := Load(v)
	assert.Equal(t, errs.KindSpec, errs.KindOf(err))
}

func TestLoad_RejectsOutOfRangeVaRLevel(t *testing.T) {
	v := viper.New()
	v.Set("var.levels", []float64{0.95, 1.5})
	_, err := Load(v)
	assert.Equal(t, errs.KindSpec, errs.KindOf(err))
}
