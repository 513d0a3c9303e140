package driver

// State is a step in the life of one file during a run:
// unvisited → read → transformed | unchanged → [written] → done.
// A file that fails or is rejected ends in failed.
type State string

const (
	StateUnvisited   State = "unvisited"
	StateRead        State = "read"
	StateTransformed State = "transformed"
	StateUnchanged   State = "unchanged"
	StateWritten     State = "written"
	StateFailed      State = "failed"
	StateDone        State = "done"
)

// Event reports progress for a file (or for the whole run when File is empty).
type Event struct {
	File  string
	State State
	Err   error
}

// ProgressSink consumes progress events. Workers call OnEvent concurrently.
type ProgressSink interface {
	OnEvent(Event)
}

// ChannelSink forwards events into a channel.
type ChannelSink struct {
	Ch chan<- Event
}

func (s ChannelSink) OnEvent(evt Event) {
	if s.Ch == nil {
		return
	}
	s.Ch <- evt
}

// SinkFunc adapts a function to ProgressSink.
type SinkFunc func(Event)

func (f SinkFunc) OnEvent(evt Event) { f(evt) }
