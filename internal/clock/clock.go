// Package clock provides the millisecond time base for the control loop.
// All elapsed-time comparisons in the service go through Elapsed, which
// uses unsigned subtraction and therefore stays correct when the counter
// wraps around.
package clock

import "golang.org/x/sys/unix"

// Millis is a wraparound-tolerant millisecond counter value.
type Millis uint32

// Clock supplies the current counter value.
type Clock interface {
	Now() Millis
}

// Elapsed returns how many milliseconds have passed between since and now.
// The subtraction is unsigned, so the result is correct across counter
// overflow as long as the real interval is below ^Millis(0) ms.
func Elapsed(now, since Millis) Millis {
	return now - since
}

// Monotonic reads CLOCK_MONOTONIC, truncated to the Millis range.
type Monotonic struct{}

func (Monotonic) Now() Millis {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		// CLOCK_MONOTONIC cannot fail on any kernel we run on.
		return 0
	}
	return Millis(ts.Sec*1000 + ts.Nsec/1_000_000)
}
