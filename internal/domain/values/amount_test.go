package values

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAmount_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		want      decimal.Decimal
		malformed bool
		raw       string
	}{
		{name: "number", input: `9500`, want: decimal.NewFromInt(9500)},
		{name: "fractional number", input: `123.45`, want: decimal.RequireFromString("123.45")},
		{name: "numeric string", input: `"50000"`, want: decimal.NewFromInt(50000)},
		{name: "zero", input: `0`, want: decimal.Zero},
		{name: "non-numeric string", input: `"ten thousand"`, want: decimal.Zero, malformed: true, raw: "ten thousand"},
		{name: "negative", input: `-20`, want: decimal.Zero, malformed: true, raw: "-20"},
		{name: "object", input: `{}`, want: decimal.Zero, malformed: true, raw: "{}"},
		{name: "null", input: `null`, want: decimal.Zero, malformed: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var a Amount
			require.NoError(t, json.Unmarshal([]byte(tt.input), &a))

			assert.True(t, tt.want.Equal(a.Decimal()), "got %s", a.Decimal())
			assert.Equal(t, tt.malformed, a.Malformed())
			assert.Equal(t, tt.raw, a.Raw())
		})
	}
}

func TestAmount_MissingField(t *testing.T) {
	var tx struct {
		ID     string `json:"id"`
		Amount Amount `json:"amount"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"id":"T1"}`), &tx))

	assert.True(t, tx.Amount.Malformed())
	assert.True(t, tx.Amount.Decimal().IsZero())
}

func TestAmount_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(struct {
		Amount Amount `json:"amount"`
	}{Amount: MustAmount(9500)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"amount":9500}`, string(data))

	var bad Amount
	require.NoError(t, json.Unmarshal([]byte(`"abc"`), &bad))
	data, err = json.Marshal(bad)
	require.NoError(t, err)
	assert.Equal(t, "0", string(data))
}

func TestNewAmountFromString(t *testing.T) {
	a, err := NewAmountFromString("1000.50")
	require.NoError(t, err)
	assert.Equal(t, "1000.5", a.String())
	assert.False(t, a.Malformed())

	_, err = NewAmountFromString("-1")
	assert.Error(t, err)

	_, err = NewAmountFromString("x")
	assert.Error(t, err)
}

func TestMustAmount_PanicsOnNegative(t *testing.T) {
	assert.Panics(t, func() { MustAmount(-1) })
	assert.NotPanics(t, func() { MustAmount(0) })
}
