package analysis

// PerfEntry is a single entry in the performance database.
type PerfEntry struct {
	Start uint64
	End   uint64
	Where string
	What  string
	Value float64
	Unit  string
}

// PerfLogger is the interface that provides the service that can record
// performance data entries.
type PerfLogger interface {
	AddDataEntry(entry PerfEntry)
}
