package match

const (
	// EngineVersion is the current version of the matching engine
	EngineVersion = "v1.0.0"

	// DefaultDepthLimit is the number of price levels per side carried on book updates.
	DefaultDepthLimit = 10

	// DefaultCommandBuffer is the capacity of each market's command queue.
	DefaultCommandBuffer = 4096

	// DefaultEventBuffer is the ring buffer capacity per subscriber. Must be a power of 2.
	DefaultEventBuffer = 1024
)
