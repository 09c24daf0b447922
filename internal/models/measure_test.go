package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMeasureDecodesDashboardInput(t *testing.T) {
	var f Fish
	err := json.Unmarshal([]byte(`{"species":"Bream","weight":"242","length1":23.2,"length2":"","length3":null,"height":"*"}`), &f)
	require.NoError(t, err)

	require.Equal(t, Some(242), f.Weight)
	require.Equal(t, Some(23.2), f.Length1)
	require.False(t, f.Length2.Valid)
	require.False(t, f.Length3.Valid)
	require.False(t, f.Height.Valid)
	require.False(t, f.Width.Valid)
}

func TestMeasureRejectsGarbage(t *testing.T) {
	var m Measure
	require.Error(t, json.Unmarshal([]byte(`"12kg"`), &m))
}

func TestMeasureEncoding(t *testing.T) {
	out, err := json.Marshal(struct {
		A Measure `json:"a"`
		B Measure `json:"b"`
	}{A: Some(7.25)})
	require.NoError(t, err)
	require.JSONEq(t, `{"a":7.25,"b":null}`, string(out))

	require.Equal(t, "*", Measure{}.Cell())
	require.Equal(t, "0.036", Some(0.036).Cell())
	require.Nil(t, Measure{}.Ptr())
	require.Equal(t, 3.5, *Some(3.5).Ptr())
}
