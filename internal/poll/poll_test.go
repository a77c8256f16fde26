package poll

import (
	"context"
	"errors"
	"io"
	"testing"

	georitm "github.com/caarlos0/georitm-bridge"
	"github.com/caarlos0/georitm-bridge/internal/entity"
	"github.com/caarlos0/georitm-bridge/internal/state"
	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	devices map[georitm.ID]*georitm.Device
	errs    map[georitm.ID]error
	calls   map[georitm.ID]int
}

func (f *fakeClient) Device(_ context.Context, id georitm.ID) (*georitm.Device, error) {
	if f.calls == nil {
		f.calls = map[georitm.ID]int{}
	}
	f.calls[id]++
	if err := f.errs[id]; err != nil {
		return nil, err
	}
	return f.devices[id], nil
}

func devices() []georitm.Device {
	return []georitm.Device{
		{
			ID:      "D1",
			Name:    "Home",
			ObjType: 1,
			State:   georitm.ObjectState{IsOnline: 1, IsGuarded: 1},
			Areas: []georitm.Area{
				{ID: "A1", Num: 1, Zones: []georitm.Zone{
					{ID: "Z1", Num: 1, Name: "Hall", HasAlarm: 1},
				}},
			},
		},
		{ID: "M1", Name: "Car", State: georitm.ObjectState{IsOnline: 0}},
	}
}

func TestRefresh(t *testing.T) {
	devs := devices()
	cli := &fakeClient{devices: map[georitm.ID]*georitm.Device{
		"D1": &devs[0],
		"M1": &devs[1],
	}}
	store := state.NewMemory()
	sensors := entity.Build(devs, entity.English)
	p := New(cli, store, sensors, log.New(io.Discard))
	require.Len(t, p.Sensors(), 4)

	require.NoError(t, p.Refresh(context.Background()))
	require.Equal(t, map[georitm.ID]int{"D1": 1, "M1": 1}, cli.calls, "one fetch per device")

	for id, expected := range map[string]string{
		"binary_sensor.georitm_D1_guard": state.Off,
		"binary_sensor.georitm_D1_A1":    state.Off,
		"binary_sensor.georitm_D1_Z1":    state.On,
		"binary_sensor.georitm_M1_guard": state.Unavailable,
	} {
		st, err := store.Get(id)
		require.NoError(t, err)
		require.Equal(t, expected, st.State, id)
	}
}

func TestPrune(t *testing.T) {
	devs := devices()
	store := state.NewMemory()
	for _, id := range []string{
		"binary_sensor.georitm_D1_guard",
		"binary_sensor.georitm_D9_guard",
		"binary_sensor.georitm_D9_A1",
	} {
		_, err := store.Set(id, state.Off, map[string]interface{}{"deviceId": "D9"})
		require.NoError(t, err)
	}

	p := New(&fakeClient{}, store, entity.Build(devs, entity.English), log.New(io.Discard))
	require.NoError(t, p.Prune())

	list, err := store.List()
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "binary_sensor.georitm_D1_guard", list[0].EntityID)
}

func TestRefreshErrors(t *testing.T) {
	devs := devices()
	cli := &fakeClient{devices: map[georitm.ID]*georitm.Device{
		"D1": &devs[0],
		"M1": &devs[1],
	}}
	store := state.NewMemory()
	p := New(cli, store, entity.Build(devs, entity.English), log.New(io.Discard))
	require.NoError(t, p.Refresh(context.Background()))

	devs[0].State.IsGuarded = 0
	cli.errs = map[georitm.ID]error{"D1": errors.New("timeout")}
	err := p.Refresh(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "device D1")

	st, err := store.Get("binary_sensor.georitm_D1_guard")
	require.NoError(t, err)
	require.Equal(t, state.Off, st.State, "keeps the last state")

	t.Run("device gone", func(t *testing.T) {
		cli.errs = nil
		delete(cli.devices, "D1")
		require.NoError(t, p.Refresh(context.Background()))

		st, err := store.Get("binary_sensor.georitm_D1_Z1")
		require.NoError(t, err)
		require.Equal(t, state.Unavailable, st.State)
		require.Equal(t, map[string]interface{}{"deviceId": "D1"}, st.Attributes)
	})
}
