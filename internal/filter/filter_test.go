package filter

import (
	"encoding/json"
	"testing"

	"github.com/ThiagoRGoveia/market-data-loader/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluate_NoConditionsAlwaysPasses(t *testing.T) {
	rows := []map[string]string{
		{},
		{"volume": "0"},
		{"symbol": "PETR4", "close": "abc"},
	}

	for _, row := range rows {
		assert.True(t, Evaluate(row, nil))
		assert.True(t, Evaluate(row, []models.Condition{}))
	}
}

func TestEvaluate_VolumeGreaterThanZero(t *testing.T) {
	conditions := []models.Condition{{Field: "volume", Operation: ">", Value: "0"}}

	assert.False(t, Evaluate(map[string]string{"volume": "0"}, conditions))
	assert.True(t, Evaluate(map[string]string{"volume": "150"}, conditions))
}

func TestEvaluate_ImplicitAnd(t *testing.T) {
	conditions := []models.Condition{
		{Field: "series", Operation: "EQUALS", Value: "EQ"},
		{Field: "volume", Operation: ">=", Value: float64(100)},
	}

	assert.True(t, Evaluate(map[string]string{"series": " EQ ", "volume": "100"}, conditions))
	assert.False(t, Evaluate(map[string]string{"series": "BE", "volume": "100"}, conditions))
	assert.False(t, Evaluate(map[string]string{"series": "EQ", "volume": "99"}, conditions))
}

func TestEvaluateCondition(t *testing.T) {
	row := map[string]string{
		"symbol": "PETR4",
		"series": " EQ",
		"close":  "30.5",
		"volume": "150",
		"note":   "n/a",
	}

	tests := []struct {
		name      string
		condition models.Condition
		want      bool
	}{
		{"missing field", models.Condition{Field: "isin", Operation: "=", Value: "x"}, false},
		{"equal string", models.Condition{Field: "symbol", Operation: "=", Value: "PETR4"}, true},
		{"equal number", models.Condition{Field: "volume", Operation: "=", Value: float64(150)}, true},
		{"equal mismatch", models.Condition{Field: "symbol", Operation: "=", Value: "VALE3"}, false},
		{"not equal", models.Condition{Field: "symbol", Operation: "!=", Value: "VALE3"}, true},
		{"not equal same", models.Condition{Field: "symbol", Operation: "!=", Value: "PETR4"}, false},
		{"greater", models.Condition{Field: "close", Operation: ">", Value: "30"}, true},
		{"greater equal", models.Condition{Field: "close", Operation: ">=", Value: "30.5"}, true},
		{"less", models.Condition{Field: "close", Operation: "<", Value: "30.5"}, false},
		{"less equal", models.Condition{Field: "close", Operation: "<=", Value: float64(31)}, true},
		{"non numeric field", models.Condition{Field: "note", Operation: ">", Value: "0"}, false},
		{"non numeric field less", models.Condition{Field: "note", Operation: "<", Value: "0"}, false},
		{"non numeric value", models.Condition{Field: "close", Operation: "<", Value: "abc"}, false},
		{"starts with", models.Condition{Field: "symbol", Operation: "STARTSWITH", Value: "PE"}, true},
		{"ends with", models.Condition{Field: "symbol", Operation: "ENDSWITH", Value: "4"}, true},
		{"contains", models.Condition{Field: "symbol", Operation: "CONTAINS", Value: "TR"}, true},
		{"contains mismatch", models.Condition{Field: "symbol", Operation: "CONTAINS", Value: "XX"}, false},
		{"equals trims the field", models.Condition{Field: "series", Operation: "EQUALS", Value: "EQ"}, true},
		{"in", models.Condition{Field: "symbol", Operation: "IN", Value: []any{"VALE3", "PETR4"}}, true},
		{"in mismatch", models.Condition{Field: "symbol", Operation: "IN", Value: []any{"VALE3"}}, false},
		{"in requires a list", models.Condition{Field: "symbol", Operation: "IN", Value: "PETR4"}, false},
		{"between", models.Condition{Field: "volume", Operation: "BETWEEN", Value: []any{"100", float64(150)}}, true},
		{"between outside", models.Condition{Field: "volume", Operation: "BETWEEN", Value: []any{"0", "149"}}, false},
		{"between needs two bounds", models.Condition{Field: "volume", Operation: "BETWEEN", Value: []any{"0"}}, false},
		{"regex", models.Condition{Field: "symbol", Operation: "REGEX", Value: "^[A-Z]{4}[0-9]$"}, true},
		{"regex mismatch", models.Condition{Field: "symbol", Operation: "REGEX", Value: "^VALE"}, false},
		{"invalid regex", models.Condition{Field: "symbol", Operation: "REGEX", Value: "([a-z"}, false},
		{"unknown operation", models.Condition{Field: "symbol", Operation: "LIKE", Value: "P%"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EvaluateCondition(row, tt.condition))
		})
	}
}

func TestEvaluate_ConditionsDecodedFromJSON(t *testing.T) {
	var conditions []models.Condition
	err := json.Unmarshal([]byte(`[
		{"field": "volume", "operation": "BETWEEN", "value": [1, 1000]},
		{"field": "symbol", "operation": "IN", "value": ["PETR4", "VALE3"]}
	]`), &conditions)
	require.NoError(t, err)

	assert.True(t, Evaluate(map[string]string{"volume": "500", "symbol": "VALE3"}, conditions))
	assert.False(t, Evaluate(map[string]string{"volume": "5000", "symbol": "VALE3"}, conditions))
}
