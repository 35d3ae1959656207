package ingest

import "time"

func received() time.Time {
	return time.Now()
}
