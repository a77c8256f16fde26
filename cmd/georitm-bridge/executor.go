package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	georitm "github.com/caarlos0/georitm-bridge"
	"github.com/caarlos0/georitm-bridge/internal/dispatch"
	"github.com/cenkalti/backoff/v4"
)

type Executor = func(ctx context.Context, fn func(cli *georitm.Client) error) error

func defaultBackoff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.MaxInterval = time.Second * 5
	bo.MaxElapsedTime = time.Minute
	return bo
}

// newExecutor serializes calls to the client, retrying failed ones.
// Unauthorized calls log in again before the next attempt.
func newExecutor(cli *georitm.Client, newBackoff func() backoff.BackOff) Executor {
	var clientLock sync.Mutex
	return func(ctx context.Context, fn func(cli *georitm.Client) error) error {
		t := time.Now()
		clientLock.Lock()
		defer clientLock.Unlock()
		log.Debugf("got client lock after %s", time.Since(t))

		return backoff.RetryNotify(func() error {
			requestCounter.Inc()
			err := fn(cli)
			if err == nil {
				return nil
			}
			requestErrorCounter.Inc()
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return backoff.Permanent(err)
			}
			if errors.Is(err, georitm.ErrUnauthorized) {
				log.Warn("session expired, logging in again")
				if _, lerr := cli.Login(ctx); lerr != nil {
					return backoff.Permanent(fmt.Errorf("could not login again: %w", lerr))
				}
			}
			return err
		}, backoff.WithContext(newBackoff(), ctx), func(err error, _ time.Duration) {
			log.Error("request to georitm failed", "err", err)
		})
	}
}

// vendor goes through the executor for every call.
type vendor struct {
	execute Executor
}

func (v vendor) Device(ctx context.Context, id georitm.ID) (dev *georitm.Device, err error) {
	err = v.execute(ctx, func(cli *georitm.Client) (err error) {
		dev, err = cli.Device(ctx, id)
		return
	})
	return
}

func (v vendor) Devices(ctx context.Context) (devices []georitm.Device, err error) {
	err = v.execute(ctx, func(cli *georitm.Client) (err error) {
		devices, err = cli.Devices(ctx)
		return
	})
	return
}

func (v vendor) Arm(ctx context.Context, dev georitm.Device) error {
	return v.execute(ctx, func(cli *georitm.Client) error {
		return cli.Arm(ctx, dev)
	})
}

func (v vendor) Disarm(ctx context.Context, dev georitm.Device) error {
	return v.execute(ctx, func(cli *georitm.Client) error {
		return cli.Disarm(ctx, dev)
	})
}

// countingCommander counts the commands it forwards.
type countingCommander struct {
	*dispatch.Dispatcher
}

func (c countingCommander) Send(ctx context.Context, entityID string, cmd dispatch.Command) error {
	err := c.Dispatcher.Send(ctx, entityID, cmd)
	result := "success"
	if err != nil {
		result = "error"
	}
	commandCounter.WithLabelValues(string(cmd), result).Inc()
	return err
}
