// Package domain defines the types and ports of the export service
package domain

// RawEvent is one captured event as handed over by the ingestion side.
// Timestamp, Now and SentAt hold whatever the client sent: an ISO-8601
// string or a unix epoch in milliseconds
type RawEvent struct {
	UUID       string         `json:"uuid,omitempty"`
	Event      string         `json:"event"`
	Properties map[string]any `json:"properties,omitempty"`
	Set        map[string]any `json:"$set,omitempty"`
	SetOnce    map[string]any `json:"$set_once,omitempty"`
	DistinctID string         `json:"distinct_id"`
	TeamID     int64          `json:"team_id"`
	IP         string         `json:"ip,omitempty"`
	SiteURL    string         `json:"site_url,omitempty"`
	Timestamp  any            `json:"timestamp,omitempty"`
	Now        any            `json:"now,omitempty"`
	SentAt     any            `json:"sent_at,omitempty"`
}

// Columns is the warehouse column order; Row.Values follows it exactly
var Columns = []string{
	"uuid",
	"event",
	"properties",
	"elements",
	"set",
	"set_once",
	"distinct_id",
	"team_id",
	"ip",
	"site_url",
	"timestamp",
}

// Row is a normalized event in warehouse shape; structured fields are
// already serialized JSON text
type Row struct {
	UUID       string `json:"uuid"`
	Event      string `json:"event"`
	Properties string `json:"properties"`
	Elements   string `json:"elements"`
	Set        string `json:"set"`
	SetOnce    string `json:"set_once"`
	DistinctID string `json:"distinct_id"`
	TeamID     int64  `json:"team_id"`
	IP         string `json:"ip"`
	SiteURL    string `json:"site_url"`
	Timestamp  string `json:"timestamp"`
}

// Values returns the row in Columns order
func (r Row) Values() []any {
	return []any{
		r.UUID,
		r.Event,
		r.Properties,
		r.Elements,
		r.Set,
		r.SetOnce,
		r.DistinctID,
		r.TeamID,
		r.IP,
		r.SiteURL,
		r.Timestamp,
	}
}

// Batch is a group of rows delivered as one statement. It is a value:
// a retry gets a new Batch from Next and the old one is never touched
type Batch struct {
	ID      string `json:"id"`
	Rows    []Row  `json:"rows"`
	Retries int    `json:"retries"`
}

// Next returns the batch to submit after a failed attempt
func (b Batch) Next() Batch {
	return Batch{ID: b.ID, Rows: b.Rows, Retries: b.Retries + 1}
}

// Len is the number of rows in the batch
func (b Batch) Len() int { return len(b.Rows) }

// State of a batch in the delivery state machine
type State uint8

const (
	StatePending State = iota
	StateSubmitted
	StateDelivered
	StateAwaitingRetry
	StateAbandoned
)

var stateNames = [...]string{
	StatePending:       "pending",
	StateSubmitted:     "submitted",
	StateDelivered:     "delivered",
	StateAwaitingRetry: "awaiting_retry",
	StateAbandoned:     "abandoned",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Terminal reports whether no further work happens for the batch
func (s State) Terminal() bool {
	return s == StateDelivered || s == StateAbandoned
}

// IngestResult counts what happened to a group of events
type IngestResult struct {
	Accepted int `json:"accepted"`
	Ignored  int `json:"ignored"`
	Rejected int `json:"rejected"`
	// Err is the first rejection, nil when Rejected is 0
	Err error `json:"-"`
}
