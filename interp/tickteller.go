package interp

// A TickTeller reports how many ticks have fully completed. Timestamps
// derived from it are in completed-tick units: events inside an in-flight
// tick carry the count as of that tick's start.
type TickTeller interface {
	TickCount() uint64
}
