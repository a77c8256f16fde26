package georitm

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInt(t *testing.T) {
	for input, expected := range map[string]Int{
		`1`:     1,
		`"1"`:   1,
		`" 7 "`: 7,
		`""`:    0,
		`null`:  0,
		`2.0`:   2,
		`true`:  1,
	} {
		t.Run(input, func(t *testing.T) {
			var i Int
			require.NoError(t, json.Unmarshal([]byte(input), &i))
			require.Equal(t, expected, i)
		})
	}

	t.Run("invalid", func(t *testing.T) {
		for _, input := range []string{`"abc"`, `"1a"`, `{}`} {
			i := Int(5)
			require.NoError(t, json.Unmarshal([]byte(input), &i))
			require.Equal(t, Int(0), i)
		}
	})
}

func TestFloat(t *testing.T) {
	var v struct {
		Lat Float `json:"lat"`
		Lon Float `json:"lon"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"lat":"55.75","lon":37.61}`), &v))
	require.InDelta(t, 55.75, float64(v.Lat), 0.0001)
	require.InDelta(t, 37.61, float64(v.Lon), 0.0001)

	t.Run("invalid", func(t *testing.T) {
		require.NoError(t, json.Unmarshal([]byte(`{"lat":"n/a","lon":[1]}`), &v))
		require.Zero(t, v.Lat)
		require.Zero(t, v.Lon)
	})
}

func TestText(t *testing.T) {
	for input, expected := range map[string]Text{
		`"Moscow"`: "Moscow",
		`77`:       "77",
		`1.5`:      "1.5",
		`true`:     "true",
		`null`:     "",
		`{"a":1}`:  "",
	} {
		t.Run(input, func(t *testing.T) {
			var v Text
			require.NoError(t, json.Unmarshal([]byte(input), &v))
			require.Equal(t, expected, v)
		})
	}
}

func TestID(t *testing.T) {
	for input, expected := range map[string]ID{
		`"abc"`:           "abc",
		`123`:             "123",
		`356938035643809`: "356938035643809",
		`null`:            "",
	} {
		t.Run(input, func(t *testing.T) {
			var id ID
			require.NoError(t, json.Unmarshal([]byte(input), &id))
			require.Equal(t, expected, id)
		})
	}

	t.Run("marshal", func(t *testing.T) {
		for id, expected := range map[ID]string{
			"123":  `123`,
			"0123": `"0123"`,
			"abc":  `"abc"`,
			"":     `""`,
		} {
			bts, err := json.Marshal(id)
			require.NoError(t, err)
			require.Equal(t, expected, string(bts))
		}
	})
}

func TestDecodeObjects(t *testing.T) {
	require.Equal(t, []Zone{{ID: "1"}, {ID: "2"}}, decodeObjects[Zone]([]byte(`[{"id":1},"x",null,{"id":"2"},{"id":{}}]`)))
	require.NotNil(t, decodeObjects[Zone]([]byte(`{"not":"a list"}`)))
	require.Empty(t, decodeObjects[Zone](nil))
}
