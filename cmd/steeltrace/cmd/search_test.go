package cmd

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/steeltrace/steeltrace/internal/config"
	"github.com/steeltrace/steeltrace/internal/search"
)

func TestSearchCmd_RequiresQuery(t *testing.T) {
	cmd := newSearchCmd()
	cmd.SetOut(&strings.Builder{})
	cmd.SetErr(&strings.Builder{})
	cmd.SetArgs([]string{})

	err := cmd.Execute()

	assert.Error(t, err)
}

func TestStrategyDefaults(t *testing.T) {
	cases := []struct {
		strategy  config.RetrievalStrategy
		mode      search.FusionMode
		rerank    bool
		diversify bool
	}{
		{config.StrategySimilarity, search.FusionVectorOnly, false, false},
		{config.StrategyHybrid, search.FusionRRF, false, false},
		{config.StrategyReranking, search.FusionRRF, true, false},
		{config.StrategyMMR, search.FusionRRF, false, true},
	}
	for _, tc := range cases {
		t.Run(string(tc.strategy), func(t *testing.T) {
			mode, rerank, diversify := strategyDefaults(tc.strategy)
			assert.Equal(t, tc.mode, mode)
			assert.Equal(t, tc.rerank, rerank)
			assert.Equal(t, tc.diversify, diversify)
		})
	}
}
