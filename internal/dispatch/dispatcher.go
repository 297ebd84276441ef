package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"watchtower/internal/channel"
	"watchtower/internal/logger"
	"watchtower/pkg/models"
)

// SendResult records one channel's delivery outcome for one alert.
type SendResult struct {
	Channel string
	Err     error
	Elapsed time.Duration
}

type registeredChannel struct {
	ch          channel.Channel
	minSeverity models.Severity
	timeout     time.Duration
}

// Dispatcher fans a triggered alert out to every registered channel whose
// minimum severity is at or below the alert's severity. Channel failures
// are isolated: one channel failing or hanging never blocks another's
// send, and Dispatch itself never returns an error.
type Dispatcher struct {
	channels []registeredChannel
}

// New creates an empty dispatcher.
func New() *Dispatcher {
	return &Dispatcher{}
}

// RegisterChannel adds a channel with its severity floor and send timeout.
// Registration happens at startup, before Dispatch is ever called.
func (d *Dispatcher) RegisterChannel(ch channel.Channel, minSeverity models.Severity, timeout time.Duration) {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	d.channels = append(d.channels, registeredChannel{
		ch:          ch,
		minSeverity: minSeverity,
		timeout:     timeout,
	})
}

// Dispatch sends the alert to every eligible channel concurrently and
// waits for all sends to finish or time out. The returned results
// enumerate every attempted channel, failed ones included.
func (d *Dispatcher) Dispatch(ctx context.Context, alert *models.SecurityAlert) []SendResult {
	eligible := make([]registeredChannel, 0, len(d.channels))
	for _, rc := range d.channels {
		if rc.minSeverity <= alert.Severity {
			eligible = append(eligible, rc)
		}
	}
	if len(eligible) == 0 {
		return nil
	}

	results := make([]SendResult, len(eligible))
	var wg sync.WaitGroup
	for i, rc := range eligible {
		wg.Add(1)
		go func(i int, rc registeredChannel) {
			defer wg.Done()
			sendCtx, cancel := context.WithTimeout(ctx, rc.timeout)
			defer cancel()

			start := time.Now()
			done := make(chan error, 1)
			go func() {
				done <- rc.ch.Send(sendCtx, alert)
			}()

			var err error
			select {
			case err = <-done:
			case <-sendCtx.Done():
				// A send that ignores its context still may not stall the
				// other channels or the caller.
				err = fmt.Errorf("send on %s timed out after %s: %w", rc.ch.Name(), rc.timeout, sendCtx.Err())
			}
			results[i] = SendResult{
				Channel: rc.ch.Name(),
				Err:     err,
				Elapsed: time.Since(start),
			}
			if err != nil {
				logger.Errorf("Channel %s failed to deliver alert %s: %v", rc.ch.Name(), alert.AlertID, err)
			}
		}(i, rc)
	}
	wg.Wait()
	return results
}

// Close closes every registered channel, returning the first error.
func (d *Dispatcher) Close() error {
	var firstErr error
	for _, rc := range d.channels {
		if err := rc.ch.Close(); err != nil {
			logger.Errorf("Failed to close channel %s: %v", rc.ch.Name(), err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
