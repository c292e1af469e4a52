package hitqueue

// RetryType is a processor's verdict on a hit.
type RetryType int

const (
	// RetryNo means the hit is done (delivered or discarded) and is deleted.
	RetryNo RetryType = iota
	// RetryYes keeps the hit and retries it after a pause.
	RetryYes
	// RetryBreak keeps the hit and stops draining until the queue is woken again.
	RetryBreak
)

func (r RetryType) String() string {
	switch r {
	case RetryNo:
		return "no"
	case RetryYes:
		return "yes"
	case RetryBreak:
		return "break"
	default:
		return "unknown"
	}
}

// Processor handles a dequeued hit.
type Processor[T Hit] interface {
	Process(hit T) RetryType
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc[T Hit] func(hit T) RetryType

func (f ProcessorFunc[T]) Process(hit T) RetryType { return f(hit) }
