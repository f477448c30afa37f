package domain

type EventKind string

const (
	EventMeta  EventKind = "meta"
	EventToken EventKind = "token"
	EventDone  EventKind = "done"
	EventError EventKind = "error"
)

// Meta is emitted once, before the first token, and carries everything
// the client needs to render citations and pipeline telemetry.
type Meta struct {
	Sources        []SourceRef `json:"sources"`
	RetrievalTime  float64     `json:"retrieval_time"`
	RewrittenQuery string      `json:"rewritten_query"`
	Steps          []string    `json:"steps"`
	NumDocs        int         `json:"num_docs"`
	Context        string      `json:"context"`
}

type Done struct {
	TotalTime float64 `json:"total_time"`
}

// Event is the tagged variant streamed by the pipeline: exactly one
// payload field is set, selected by Kind. A stream is meta, zero or
// more tokens, then done; or error terminally at any point.
type Event struct {
	Kind  EventKind
	Meta  *Meta
	Token string
	Done  *Done
	Err   string
}

func MetaEvent(m Meta) Event { return Event{Kind: EventMeta, Meta: &m} }

func TokenEvent(s string) Event { return Event{Kind: EventToken, Token: s} }

func DoneEvent(total float64) Event {
	return Event{Kind: EventDone, Done: &Done{TotalTime: total}}
}

func ErrorEvent(msg string) Event { return Event{Kind: EventError, Err: msg} }
