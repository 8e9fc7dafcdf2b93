package clock

import "time"

// Clock reads wall time. The zero value uses time.Now.
type Clock struct {
	Now func() time.Time
}

func (c Clock) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// NowUnix returns current unix seconds.
func (c Clock) NowUnix() int64 {
	return c.now().Unix()
}

// Since returns the time elapsed since t.
func (c Clock) Since(t time.Time) time.Duration {
	return c.now().Sub(t)
}
