package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/steeltrace/steeltrace/internal/config"
)

func TestPipelineConfig_MapsDrawingSettings(t *testing.T) {
	cfg := pipelineConfig(config.DrawingConfig{
		MinLineLengthMM:      1.5,
		MaxLineLengthMM:      200,
		MinStrokeWidth:       0.25,
		MaxStrokeWidth:       4,
		NearThresholdMM:      8,
		MinElementConfidence: 0.5,
		IncludeDashed:        true,
	})

	assert.Equal(t, 1.5, cfg.Lines.MinLengthMM)
	assert.Equal(t, 200.0, cfg.Lines.MaxLengthMM)
	assert.Equal(t, 0.25, cfg.Lines.MinStrokeWidth)
	assert.Equal(t, 4.0, cfg.Lines.MaxStrokeWidth)
	assert.True(t, cfg.Lines.IncludeDashed)
	assert.Equal(t, 8.0, cfg.Detector.NearThresholdMM)
	assert.Equal(t, 0.5, cfg.Detector.MinElementConfidence)
}

func TestPipelineConfig_ZeroValuesKeepDefaults(t *testing.T) {
	cfg := pipelineConfig(config.DrawingConfig{})

	assert.Equal(t, 0.5, cfg.Lines.MinLengthMM)
	assert.Equal(t, 10.0, cfg.Detector.NearThresholdMM)
	assert.Equal(t, 0.3, cfg.Detector.MinElementConfidence)
}
