package validation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"robokin/pkg/contracts/domain"
)

var testHeader = []string{"run_uuid", "robot_id", "sensor_type", "field", "time", "value", "note"}

func testTable(rows ...[]string) *domain.Table {
	return &domain.Table{Header: testHeader, Rows: rows}
}

func TestNewSchema(t *testing.T) {
	tests := []struct {
		name    string
		rules   map[string]Rule
		wantErr string
	}{
		{
			name:  "default rules",
			rules: DefaultRules(),
		},
		{
			name:    "empty",
			rules:   map[string]Rule{},
			wantErr: "no rules",
		},
		{
			name:    "unknown dtype",
			rules:   map[string]Rule{"value": {DType: "decimal"}},
			wantErr: "invalid rule for column value",
		},
		{
			name:    "missing dtype",
			rules:   map[string]Rule{"value": {}},
			wantErr: "invalid rule for column value",
		},
		{
			name:    "accepted value not coercible",
			rules:   map[string]Rule{"robot_id": {DType: DTypeInt, AcceptedValues: []string{"one"}}},
			wantErr: "accepted value",
		},
		{
			name:    "blank column",
			rules:   map[string]Rule{" ": {DType: DTypeString}},
			wantErr: "empty column name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSchema(tt.rules)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestSchema_IsImmutable(t *testing.T) {
	rules := DefaultRules()
	s, err := NewSchema(rules)
	require.NoError(t, err)

	rules[domain.ColumnRobotID] = Rule{DType: DTypeInt, AcceptedValues: []string{"9"}}
	delete(rules, domain.ColumnValue)

	assert.True(t, s.Accepts(domain.ColumnRobotID, "1"))
	assert.False(t, s.Accepts(domain.ColumnRobotID, "9"))
	_, ok := s.Rule(domain.ColumnValue)
	assert.True(t, ok)

	cols := s.Columns()
	cols[0] = "mutated"
	assert.NotEqual(t, "mutated", s.Columns()[0])
}

func TestSchemaValidator_Validate(t *testing.T) {
	v := NewSchemaValidator(DefaultSchema(), nil)

	table := testTable(
		[]string{"7", "1", "encoder", "x", "2023-01-01T00:00:00Z", "1.50", "keep"},
		[]string{"7.0", "2.0", "load_cell", "fz", "2023-01-01T00:00:00.020Z", "3", "keep"},
		[]string{"7", "3", "encoder", "x", "2023-01-01T00:00:00Z", "1", "bad robot"},
		[]string{"7", "1", "encoder", "w", "2023-01-01T00:00:00Z", "1", "bad field"},
		[]string{"7", "1", "encoder", "x", "2023-01-01T00:00:00Z", "abc", "bad value"},
		[]string{"7", "1", "encoder", "x", "", "1", "null time"},
		[]string{"7", "1", "encoder", "x", "2023-01-01T00:00:00Z", "NaN", "nan value"},
		[]string{"7", "1", "gyro", "q", "2023-01-01T00:00:00Z", "zz", "many failures"},
	)

	out, drops, err := v.Validate(context.Background(), table)
	require.NoError(t, err)

	require.Len(t, out.Rows, 2)
	assert.Equal(t, testHeader, out.Header)
	assert.Equal(t, []string{"7", "1", "encoder", "x", "2023-01-01T00:00:00Z", "1.5", "keep"}, out.Rows[0])
	assert.Equal(t, []string{"7", "2", "load_cell", "fz", "2023-01-01T00:00:00.020Z", "3", "keep"}, out.Rows[1])

	assert.Equal(t, domain.DropReport{
		"robot_id.accepted_values": 1,
		"field.accepted_values":    2,
		"value.dtype":              1,
		"time.null":                1,
		"value.null":               1,
	}, drops)
	assert.Equal(t, len(table.Rows)-len(out.Rows), drops.Total())

	// input untouched
	assert.Equal(t, "7.0", table.Rows[1][0])
}

func TestSchemaValidator_ValidateIsIdempotent(t *testing.T) {
	v := NewSchemaValidator(DefaultSchema(), nil)
	table := testTable(
		[]string{"1", "1", "encoder", "y", "2023-01-01T00:00:00Z", "2", ""},
		[]string{"1", "5", "encoder", "y", "2023-01-01T00:00:00Z", "2", ""},
	)

	once, _, err := v.Validate(context.Background(), table)
	require.NoError(t, err)
	twice, drops, err := v.Validate(context.Background(), once)
	require.NoError(t, err)

	assert.Equal(t, once, twice)
	assert.Zero(t, drops.Total())
}

func TestSchemaValidator_MissingColumn(t *testing.T) {
	v := NewSchemaValidator(DefaultSchema(), nil)
	table := &domain.Table{Header: []string{"run_uuid", "robot_id"}}

	_, _, err := v.Validate(context.Background(), table)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrMissingColumn))
}

func TestSchemaValidator_EmptyTable(t *testing.T) {
	v := NewSchemaValidator(DefaultSchema(), nil)

	out, drops, err := v.Validate(context.Background(), testTable())
	require.NoError(t, err)
	assert.Equal(t, 0, out.Len())
	assert.Empty(t, drops)
}

func TestSchemaValidator_Cancelled(t *testing.T) {
	v := NewSchemaValidator(DefaultSchema(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := v.Validate(ctx, testTable([]string{"1", "1", "encoder", "x", "t", "1", ""}))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCoerceInt(t *testing.T) {
	tests := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{raw: "2", want: "2"},
		{raw: " 2.0 ", want: "2"},
		{raw: "-9223372036854775808", want: "-9223372036854775808"},
		{raw: "2.5", wantErr: true},
		{raw: "9223372036854775808", wantErr: true},
		{raw: "1e19", wantErr: true},
		{raw: "NaN", wantErr: true},
		{raw: "inf", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := coerce(DTypeInt, tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
