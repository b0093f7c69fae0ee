package dataprocessing

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"robokin/internal/validation"
	"robokin/pkg/contracts/domain"
)

func TestDecodeSamples(t *testing.T) {
	table := &domain.Table{Header: header, Rows: [][]string{
		{"1", "1", "encoder", "x", ts(0), "1.5"},
		{"2.0", "1", "encoder", "x", ts(0), "2"},
		{"1", "1", "encoder", "x", ts(20), "NaN"},
		{"1", "1", "encoder", "x", ts(40), "+Inf"},
		{"1", "1", "encoder", "x", ts(60), "-inf"},
		{"1", "1", "encoder", "x", ts(80), "abc"},
		{"1.5", "1", "encoder", "x", ts(0), "1"},
		{"9223372036854775808", "1", "encoder", "x", ts(0), "1"},
		{"1e300", "1", "encoder", "x", ts(0), "1"},
		{"NaN", "1", "encoder", "x", ts(0), "1"},
	}}

	samples, drops, err := DecodeSamples(table)
	require.NoError(t, err)

	require.Len(t, samples, 2)
	assert.Equal(t, domain.RunID(1), samples[0].Run)
	assert.Equal(t, 1.5, samples[0].Value)
	assert.Equal(t, domain.RunID(2), samples[1].Run)

	assert.Equal(t, domain.DropReport{
		DropRuleValueDecode:    4,
		DropRuleRunNonIntegral: 4,
	}, drops)
}

func TestPipeline_NonFiniteValuesWithoutValueRule(t *testing.T) {
	rules := validation.DefaultRules()
	delete(rules, domain.ColumnValue)
	schema, err := validation.NewSchema(rules)
	require.NoError(t, err)

	p := NewPipeline(DefaultFeatureSchema(), validation.NewSchemaValidator(schema, nil))
	table := &domain.Table{Header: header, Rows: [][]string{
		{"1", "1", "encoder", "x", ts(0), "0"},
		{"1", "1", "encoder", "x", ts(20), "NaN"},
		{"1", "1", "encoder", "x", ts(40), "+Inf"},
		{"1", "1", "encoder", "x", ts(60), "6"},
	}}

	result, err := p.Run(context.Background(), table)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Drops[DropRuleValueDecode])
	require.Len(t, result.Features, 1)
	x1 := featureIndex(t, result.Schema, "x_1")
	for _, row := range result.Features[0].Rows {
		for i, v := range row.Values {
			assert.Falsef(t, math.IsNaN(v) || math.IsInf(v, 0), "column %d at %d is not finite", i, row.TimeMs)
		}
	}
	assert.Equal(t, 6.0, result.Features[0].Rows[len(result.Features[0].Rows)-1].Values[x1])
}
