package timezone

import "time"

var Location *time.Location

func init() {
	var err error
	Location, err = time.LoadLocation("UTC")
	if err != nil {
		panic(err)
	}
}

// credential expiries and cache deadlines come from upstream APIs as
// absolute instants, pinning the process to UTC avoids off-by-a-few-hours
// surprises when a host lands in a different region
func Now() time.Time {
	return time.Now().In(Location)
}
