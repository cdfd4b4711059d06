package panel

import (
	"time"

	movingaverage "github.com/RobinUS2/golang-moving-average"
)

const (
	ratePeriod = time.Second
	rateWindow = 5
)

// rateMeter averages messages per second over the last few whole periods.
type rateMeter struct {
	avg   *movingaverage.MovingAverage
	start time.Time
	count int
	ready bool
}

func newRateMeter() *rateMeter {
	return &rateMeter{avg: movingaverage.New(rateWindow)}
}

func (r *rateMeter) observe(now time.Time, n int) {
	if r.start.IsZero() {
		r.start = now
	}
	r.count += n
	elapsed := now.Sub(r.start)
	if elapsed < ratePeriod {
		return
	}
	r.avg.Add(float64(r.count) / elapsed.Seconds())
	r.ready = true
	r.start, r.count = now, 0
}

func (r *rateMeter) perSecond() float64 {
	if !r.ready {
		return 0
	}
	return r.avg.Avg()
}
