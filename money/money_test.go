package money

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want Amount
	}{
		{"100", 10000},
		{"100.00", 10000},
		{"33.34", 3334},
		{"0.5", 50},
		{" 7.01 ", 701},
		{"-2.10", -210},
		{"0", 0},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParse_Rejects(t *testing.T) {
	_, err := Parse("")
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = Parse("ten")
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = Parse("1.005")
	assert.ErrorIs(t, err, ErrTooPrecise)

	_, err = Parse("10000000000000000")
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestString(t *testing.T) {
	assert.Equal(t, "33.34", Cents(3334).String())
	assert.Equal(t, "0.00", Cents(0).String())
	assert.Equal(t, "0.07", Cents(7).String())
	assert.Equal(t, "-1.50", Cents(-150).String())
	assert.Equal(t, "100.00", MustParse("100").String())
}

func TestJSON(t *testing.T) {
	out, err := json.Marshal(struct {
		Total Amount `json:"total"`
	}{Total: 3334})
	require.NoError(t, err)
	assert.JSONEq(t, `{"total":"33.34"}`, string(out))

	var in struct {
		A Amount `json:"a"`
		B Amount `json:"b"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"12.30","b":4.5}`), &in))
	assert.Equal(t, Amount(1230), in.A)
	assert.Equal(t, Amount(450), in.B)

	err = json.Unmarshal([]byte(`{"a":"1.234"}`), &in)
	assert.ErrorIs(t, err, ErrTooPrecise)
}

func TestScanValue(t *testing.T) {
	v, err := Cents(1999).Value()
	require.NoError(t, err)
	assert.Equal(t, "19.99", v)

	var a Amount
	require.NoError(t, a.Scan([]byte("19.99")))
	assert.Equal(t, Amount(1999), a)

	require.NoError(t, a.Scan("0.01"))
	assert.Equal(t, Amount(1), a)

	require.NoError(t, a.Scan(int64(3)))
	assert.Equal(t, Amount(300), a)

	require.NoError(t, a.Scan(nil))
	assert.Equal(t, Amount(0), a)

	assert.Error(t, a.Scan(1.5))
}

func TestSum(t *testing.T) {
	assert.Equal(t, Amount(10000), Sum(3334, 3333, 3333))
	assert.Equal(t, Amount(0), Sum())
}
