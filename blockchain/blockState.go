package blockchain

// BlockState only ever moves forward: New -> Mining -> Mined.
type BlockState int

const (
	New BlockState = iota
	Mining
	Mined
)

func (s BlockState) String() string {
	switch s {
	case New:
		return "New"
	case Mining:
		return "Mining"
	case Mined:
		return "Mined"
	default:
		return "Unknown"
	}
}
