package leveling

// Points awarded for contributions. Points are only ever added.
const (
	PointsForPost           int64 = 10
	PointsForComment        int64 = 2
	PointsForUpvoteReceived int64 = 5
)
