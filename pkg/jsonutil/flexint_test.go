package jsonutil

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlexInt(t *testing.T) {
	var v struct {
		A FlexInt `json:"a"`
		B FlexInt `json:"b"`
		C FlexInt `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a": 12345, "b": "678", "c": null}`), &v))
	assert.Equal(t, FlexInt(12345), v.A)
	assert.Equal(t, FlexInt(678), v.B)
	assert.Equal(t, FlexInt(0), v.C)

	assert.Error(t, json.Unmarshal([]byte(`{"a": "abc"}`), &v))
}

func TestFlexInt_MarshalsAsNumber(t *testing.T) {
	out, err := json.Marshal(struct {
		A FlexInt `json:"a"`
	}{A: 7})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":7}`, string(out))
}
