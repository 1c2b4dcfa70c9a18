package device

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

var ErrTimeout = errors.New("device: timed out waiting")

// TimeoutError reports a wait whose condition never became true.
type TimeoutError struct {
	What   string
	Waited time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("device timeout waiting for %s after %s", e.What, e.Waited)
}

func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

// WaitOptions configures one Wait.
type WaitOptions struct {
	What        string
	Tick        time.Duration
	Timeout     time.Duration
	SettleTicks int
	// NoticeEvery logs a "still waiting" line every n polls; 0 disables it.
	NoticeEvery int
}

// Wait polls cond every Tick until it holds, then sleeps SettleTicks more
// ticks. With a positive Timeout it returns *TimeoutError once that much
// clock time has passed without cond holding; a zero Timeout never gives up.
func Wait(clk Clock, opts WaitOptions, cond func() bool) error {
	start := clk.Now()
	polls := 0
	for !cond() {
		waited := clk.Now().Sub(start)
		if opts.Timeout > 0 && waited >= opts.Timeout {
			return &TimeoutError{What: opts.What, Waited: waited}
		}
		if opts.NoticeEvery > 0 && polls > 0 && polls%opts.NoticeEvery == 0 {
			log.Info().Msgf("device.Wait still waiting for=%q waited=%s", opts.What, waited.Round(time.Second))
		}
		clk.Sleep(opts.Tick)
		polls++
	}
	if opts.SettleTicks > 0 {
		clk.Sleep(opts.Tick * time.Duration(opts.SettleTicks))
	}
	return nil
}
