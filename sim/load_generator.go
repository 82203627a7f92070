package sim

// LoadGenerator produces new request arrivals. The Engine queries it once per
// step, before admission. Implementations live in sim/workload.
type LoadGenerator interface {
	// Name returns the registry name of the generator (e.g. "batch").
	Name() string
	// Arrivals returns the requests arriving at tick now, in arrival order.
	// occupancy is the number of requests in the system that are not done
	// (queued plus in flight), observed after the previous step completed.
	// Returned requests must be queued and carry ArrivalTime == now.
	Arrivals(now int64, occupancy int) []*Request
	// Exhausted reports whether the generator will never emit again.
	Exhausted() bool
}
