package event

// LinkStatus is the processing state of a SourceLink, derived from whether
// any Event references it.
type LinkStatus string

const (
	StatusDiscovered LinkStatus = "discovered"
	StatusProcessed  LinkStatus = "processed"
)

// StatusFor derives a link's status from the number of events that reference it.
func StatusFor(eventCount int64) LinkStatus {
	if eventCount > 0 {
		return StatusProcessed
	}
	return StatusDiscovered
}
