package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	georitm "github.com/caarlos0/georitm-bridge"
	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/require"
)

func zeroBackoff() backoff.BackOff {
	return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 3)
}

func TestExecutorLogsInAgain(t *testing.T) {
	var logins, objs atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/restapi/users/login/":
			logins.Add(1)
			_, _ = w.Write([]byte(`{"username":"me","basic":"token"}`))
		case "/restapi/objects/obj/":
			if objs.Add(1) == 1 {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_, _ = w.Write([]byte(`[{"id":"M1","name":"Car","objType":0}]`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)

	cli, err := georitm.New(georitm.Credentials{Login: "me", Password: "pwd"}, georitm.Options{
		BaseURL: srv.URL,
		Backoff: zeroBackoff,
	})
	require.NoError(t, err)

	api := vendor{execute: newExecutor(cli, zeroBackoff)}
	dev, err := api.Device(context.Background(), "M1")
	require.NoError(t, err)
	require.NotNil(t, dev)
	require.Equal(t, "Car", dev.Name)
	require.Equal(t, int32(1), logins.Load())
	require.Equal(t, int32(2), objs.Load())
}

func TestExecutorGivesUp(t *testing.T) {
	cli, err := georitm.New(georitm.Credentials{Login: "me", Password: "pwd"}, georitm.Options{})
	require.NoError(t, err)

	var calls int
	execute := newExecutor(cli, zeroBackoff)
	err = execute(context.Background(), func(*georitm.Client) error {
		calls++
		return errors.New("boom")
	})
	require.Error(t, err)
	require.Equal(t, 4, calls)

	t.Run("canceled", func(t *testing.T) {
		calls = 0
		err = execute(context.Background(), func(*georitm.Client) error {
			calls++
			return context.Canceled
		})
		require.ErrorIs(t, err, context.Canceled)
		require.Equal(t, 1, calls)
	})
}
