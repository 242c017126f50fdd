package checkin

import "time"

// timeNow is indirected for tests.
var timeNow = time.Now
