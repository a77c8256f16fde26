package georitm

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

const areasD1 = `[
	{"id":"A1","num":1,"name":"","hasAlarm":0,"zones":[{"id":"Z1","num":1,"name":"Hall","hasAlarm":1}]},
	{"id":"A2","num":"2","name":"Garage","hasAlarm":"1","zones":[]},
	"garbage"
]`

func treeHandler(trees map[float64]string) func(w http.ResponseWriter, body map[string]interface{}) {
	return func(w http.ResponseWriter, body map[string]interface{}) {
		if body["sort"] != "name" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		gt, _ := body["groupType"].(float64)
		_, _ = io.WriteString(w, trees[gt])
	}
}

func loggedIn(tb testing.TB, api *fakeAPI) *Client {
	tb.Helper()
	cli := newTestClient(tb, api.URL, 0)
	_, err := cli.Login(context.Background())
	require.NoError(tb, err)
	return cli
}

func TestDevicesKeepsMalformedFields(t *testing.T) {
	api := newFakeAPI(t, map[string]func(http.ResponseWriter, map[string]interface{}){
		pathTree: treeHandler(map[float64]string{
			0: `[{"objs":[{"id":"M1","name":"Car","objType":0,"lat":"n/a","lon":"37.61"}]}]`,
			1: `[{"objs":[{"id":"D1","name":"Home","objType":1,"region":77,"city":null}]}]`,
		}),
		pathAreas: func(w http.ResponseWriter, _ map[string]interface{}) {
			_, _ = io.WriteString(w, `[{"id":"A1","num":"1a","name":"House","zones":[{"id":"Z1","num":{},"name":"Hall"}]}]`)
		},
	})
	cli := loggedIn(t, api)

	devices, err := cli.Devices(context.Background())
	require.NoError(t, err)
	require.Len(t, devices, 2)
	require.Zero(t, devices[0].Lat)
	require.InDelta(t, 37.61, float64(devices[0].Lon), 0.0001)
	require.Equal(t, Text("77"), devices[1].Region)
	require.Empty(t, devices[1].City)
	require.Equal(t, []Area{
		{ID: "A1", Name: "House", Zones: []Zone{{ID: "Z1", Name: "Hall"}}},
	}, devices[1].Areas)
	require.EqualValues(t, 1, api.logins.Load())
}

func TestDevices(t *testing.T) {
	api := newFakeAPI(t, map[string]func(http.ResponseWriter, map[string]interface{}){
		pathTree: treeHandler(map[float64]string{
			0: `[{"objs":[{"id":"M1","name":"Car","objType":0}]},{"name":"empty group"},42]`,
			1: `[{"objs":[{"id":"D1","name":"Home","objType":"1","objectState":{"isOnline":1,"isGuarded":1}}]}]`,
		}),
		pathAreas: func(w http.ResponseWriter, body map[string]interface{}) {
			if body["objectId"] != "D1" {
				_, _ = io.WriteString(w, `[]`)
				return
			}
			_, _ = io.WriteString(w, areasD1)
		},
	})
	cli := loggedIn(t, api)

	devices, err := cli.Devices(context.Background())
	require.NoError(t, err)
	require.Len(t, devices, 2)

	mobile := devices[0]
	require.Equal(t, ID("M1"), mobile.ID)
	require.Equal(t, ObjectMobile, mobile.Type())
	require.Nil(t, mobile.Areas)

	home := devices[1]
	require.Equal(t, ID("D1"), home.ID)
	require.True(t, home.Stationary())
	require.True(t, home.Online())
	require.True(t, home.Guarded())
	require.NotNil(t, home.Areas)
	require.Equal(t, []Area{
		{ID: "A1", Num: 1, HasAlarm: 0, Zones: []Zone{{ID: "Z1", Num: 1, Name: "Hall", HasAlarm: 1}}},
		{ID: "A2", Num: 2, Name: "Garage", HasAlarm: 1, Zones: []Zone{}},
	}, home.Areas)

	for _, r := range api.calls(pathTree) {
		require.Equal(t, "Basic dG9rZW4=", r.Authorization)
	}
	require.Len(t, api.calls(pathTree), 2)
	require.Len(t, api.calls(pathAreas), 1)
	require.EqualValues(t, 1, api.logins.Load())
}

func TestDevicesEmptyLogsInAgain(t *testing.T) {
	api := newFakeAPI(t, map[string]func(http.ResponseWriter, map[string]interface{}){
		pathTree: reply(`[]`),
	})
	cli := loggedIn(t, api)

	devices, err := cli.Devices(context.Background())
	require.NoError(t, err)
	require.Empty(t, devices)
	require.EqualValues(t, 2, api.logins.Load())
	require.Len(t, api.calls(pathTree), 2, "must not refresh devices after logging in again")
	require.Empty(t, api.calls(pathAreas))
}

func TestDevicesStatusErrorsAreSkipped(t *testing.T) {
	api := newFakeAPI(t, map[string]func(http.ResponseWriter, map[string]interface{}){
		pathTree: func(w http.ResponseWriter, body map[string]interface{}) {
			if body["groupType"] == float64(0) {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			_, _ = io.WriteString(w, `[{"objs":[{"id":7,"name":"Shop","objType":1}]}]`)
		},
		pathAreas: func(w http.ResponseWriter, _ map[string]interface{}) {
			w.WriteHeader(http.StatusBadGateway)
		},
	})
	cli := loggedIn(t, api)

	devices, err := cli.Devices(context.Background())
	require.NoError(t, err)
	require.Len(t, devices, 1)
	require.Equal(t, ID("7"), devices[0].ID)
	require.NotNil(t, devices[0].Areas)
	require.Empty(t, devices[0].Areas)
	require.Equal(t, float64(7), api.calls(pathAreas)[0].Body["objectId"])
}

func TestDevicesUnauthorized(t *testing.T) {
	api := newFakeAPI(t, map[string]func(http.ResponseWriter, map[string]interface{}){
		pathTree: func(w http.ResponseWriter, _ map[string]interface{}) {
			w.WriteHeader(http.StatusUnauthorized)
		},
	})
	cli := loggedIn(t, api)

	_, err := cli.Devices(context.Background())
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestDevice(t *testing.T) {
	api := newFakeAPI(t, map[string]func(http.ResponseWriter, map[string]interface{}){
		pathObject: func(w http.ResponseWriter, body map[string]interface{}) {
			ids, _ := body["objectId"].([]interface{})
			require.Len(t, ids, 1)
			_, _ = io.WriteString(w, fmt.Sprintf(`[{"id":"other","objType":0},{"id":%q,"name":"Home","objType":1,"devices":[{"imei":356938035643809}]}]`, ids[0]))
		},
		pathAreas: reply(areasD1),
	})
	cli := loggedIn(t, api)

	t.Run("found", func(t *testing.T) {
		dev, err := cli.Device(context.Background(), "D1")
		require.NoError(t, err)
		require.NotNil(t, dev)
		require.Equal(t, ID("D1"), dev.ID)
		require.Equal(t, []SubDevice{{IMEI: "356938035643809"}}, dev.Devices)
		require.Len(t, dev.Areas, 2)
	})

	t.Run("not found", func(t *testing.T) {
		api := newFakeAPI(t, map[string]func(http.ResponseWriter, map[string]interface{}){
			pathObject: reply(`[{"id":"other","objType":1}]`),
		})
		cli := loggedIn(t, api)

		dev, err := cli.Device(context.Background(), "D1")
		require.NoError(t, err)
		require.Nil(t, dev)
		require.Empty(t, api.calls(pathAreas))
	})
}
