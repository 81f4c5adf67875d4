package parse

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScalar_UnmarshalJSON(t *testing.T) {
	testCases := []struct {
		name      string
		raw       string
		expected  Scalar
		expectErr bool
	}{
		{name: "String code", raw: `"1"`, expected: "1"},
		{name: "Numeric code", raw: `200`, expected: "200"},
		{name: "Boolean", raw: `true`, expected: "true"},
		{name: "Null", raw: `null`, expected: ""},
		{name: "Padded string", raw: `" 0 "`, expected: "0"},
		{name: "Object rejected", raw: `{"a":1}`, expectErr: true},
		{name: "Array rejected", raw: `[1]`, expectErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var s Scalar
			err := json.Unmarshal([]byte(tc.raw), &s)
			if tc.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, s)
		})
	}
}

func TestScalar_Unset(t *testing.T) {
	testCases := []struct {
		in       Scalar
		expected bool
	}{
		{"0", true},
		{"false", true},
		{"否", true},
		{"1", false},
		{"true", false},
		{"", false},
		{"unknown", false},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.expected, tc.in.Unset(), "scalar %q", tc.in)
	}
}

func TestScalar_Int(t *testing.T) {
	n, err := Scalar("1200").Int()
	require.NoError(t, err)
	assert.Equal(t, 1200, n)

	n, err = Scalar("").Int()
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = Scalar("12.0").Int()
	require.NoError(t, err)
	assert.Equal(t, 12, n)

	_, err = Scalar("many").Int()
	assert.Error(t, err)
}

func TestScalar_InStruct(t *testing.T) {
	var resp struct {
		Code  Scalar `json:"code"`
		Total Scalar `json:"total"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"code":200,"total":"3"}`), &resp))
	assert.True(t, resp.Code.Is("200"))
	total, err := resp.Total.Int()
	require.NoError(t, err)
	assert.Equal(t, 3, total)
}
