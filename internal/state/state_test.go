package state

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func stores(t *testing.T) map[string]func(now func() time.Time) Store {
	t.Helper()
	return map[string]func(now func() time.Time) Store{
		"memory": func(now func() time.Time) Store {
			m := NewMemory()
			m.now = now
			return m
		},
		"bolt": func(now func() time.Time) Store {
			b, err := OpenBolt(filepath.Join(t.TempDir(), "state.db"))
			require.NoError(t, err)
			t.Cleanup(func() { require.NoError(t, b.Close()) })
			b.now = now
			return b
		},
	}
}

func TestStore(t *testing.T) {
	for name, newStore := range stores(t) {
		t.Run(name, func(t *testing.T) {
			clock := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
			store := newStore(func() time.Time { return clock })

			_, err := store.Get("binary_sensor.georitm_D1_guard")
			require.ErrorIs(t, err, ErrNotFound)

			st, err := store.Set("binary_sensor.georitm_D1_guard", On, map[string]interface{}{"deviceId": "D1"})
			require.NoError(t, err)
			require.True(t, st.IsOn())
			require.True(t, clock.Equal(st.LastChanged))

			clock = clock.Add(time.Minute)
			st, err = store.Set("binary_sensor.georitm_D1_guard", On, map[string]interface{}{"deviceId": "D1"})
			require.NoError(t, err)
			require.True(t, clock.Equal(st.LastUpdated))
			require.True(t, clock.Add(-time.Minute).Equal(st.LastChanged), "same state keeps last_changed")

			clock = clock.Add(time.Minute)
			_, err = store.Set("binary_sensor.georitm_D1_guard", Off, map[string]interface{}{"deviceId": "D1"})
			require.NoError(t, err)

			got, err := store.Get("binary_sensor.georitm_D1_guard")
			require.NoError(t, err)
			require.Equal(t, Off, got.State)
			require.Equal(t, "D1", got.Attributes["deviceId"])
			require.True(t, clock.Equal(got.LastChanged))

			_, err = store.Set("binary_sensor.georitm_D1_A1", Unavailable, nil)
			require.NoError(t, err)

			list, err := store.List()
			require.NoError(t, err)
			require.Len(t, list, 2)
			require.Equal(t, "binary_sensor.georitm_D1_A1", list[0].EntityID)
			require.False(t, list[0].Available())
			require.NotNil(t, list[0].Attributes)
		})
	}
}

func TestWatch(t *testing.T) {
	for name, newStore := range stores(t) {
		t.Run(name, func(t *testing.T) {
			store := newStore(time.Now)

			var got []State
			unwatch := store.Watch(func(st State) { got = append(got, st) })

			_, err := store.Set("a", On, nil)
			require.NoError(t, err)
			_, err = store.Set("b", Off, nil)
			require.NoError(t, err)

			unwatch()
			_, err = store.Set("c", Off, nil)
			require.NoError(t, err)

			require.Len(t, got, 2)
			require.Equal(t, "a", got[0].EntityID)
			require.Equal(t, Off, got[1].State)
		})
	}
}

func TestRetain(t *testing.T) {
	for name, newStore := range stores(t) {
		t.Run(name, func(t *testing.T) {
			store := newStore(time.Now)
			for _, id := range []string{"a", "b", "c"} {
				_, err := store.Set(id, On, nil)
				require.NoError(t, err)
			}

			var notified int
			store.Watch(func(State) { notified++ })

			removed, err := store.Retain(func(id string) bool { return id == "b" })
			require.NoError(t, err)
			require.Equal(t, []string{"a", "c"}, removed)
			require.Zero(t, notified)

			list, err := store.List()
			require.NoError(t, err)
			require.Len(t, list, 1)
			require.Equal(t, "b", list[0].EntityID)
			_, err = store.Get("a")
			require.ErrorIs(t, err, ErrNotFound)

			removed, err = store.Retain(func(string) bool { return true })
			require.NoError(t, err)
			require.Empty(t, removed)
		})
	}
}

func TestMemoryCopiesAttributes(t *testing.T) {
	store := NewMemory()
	attrs := map[string]interface{}{"deviceId": "D1"}
	_, err := store.Set("a", On, attrs)
	require.NoError(t, err)

	attrs["deviceId"] = "changed"
	got, err := store.Get("a")
	require.NoError(t, err)
	require.Equal(t, "D1", got.Attributes["deviceId"])

	got.Attributes["deviceId"] = "changed"
	got, err = store.Get("a")
	require.NoError(t, err)
	require.Equal(t, "D1", got.Attributes["deviceId"])
}

func TestBoltPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	store, err := OpenBolt(path)
	require.NoError(t, err)
	_, err = store.Set("a", On, map[string]interface{}{"deviceId": "D1"})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	store, err = OpenBolt(path)
	require.NoError(t, err)
	defer store.Close()
	got, err := store.Get("a")
	require.NoError(t, err)
	require.True(t, got.IsOn())
	require.Equal(t, "D1", got.Attributes["deviceId"])
}

func TestFromBool(t *testing.T) {
	require.Equal(t, On, FromBool(true))
	require.Equal(t, Off, FromBool(false))
}
