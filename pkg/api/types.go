// Package api defines the wire types shared by the cardfetch service
// and its clients.
package api

// Statuses the service itself assigns to a card while it moves through
// the lookup queue. The status field is open-ended: backends may emit
// additional terminal labels (e.g. "found", "not found") and consumers
// must pass unknown values through rather than reject them.
const (
	StatusQueued    = "queued"
	StatusQueueFull = "queue full"
	StatusFound     = "found"
	StatusNotFound  = "not found"
)

// CardRecord is the latest known state of one requested card.
// Descriptive fields are empty until the lookup has completed.
type CardRecord struct {
	Name       string `json:"name"`
	OracleText string `json:"oracle_text"`
	ManaCost   string `json:"mana_cost"`
	TypeLine   string `json:"type_line"`
	SetName    string `json:"set_name"`
	Status     string `json:"status"`
}

// Pending reports whether the record is still waiting on the lookup
// queue. Anything other than the two queue states is treated as
// terminal.
func (r CardRecord) Pending() bool {
	return r.Status == StatusQueued || r.Status == StatusQueueFull
}

// FetchRequest is the body of POST /fetch and POST /export.
// An empty CardNames slice asks the service for everything it
// currently knows.
type FetchRequest struct {
	CardNames []string `json:"card_names"`
}

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	CacheSize  int  `json:"cache_size"`
	QueueSize  int  `json:"queue_size"`
	IsFetching bool `json:"is_fetching"`
}

// ClearResponse is the body of POST /clear.
type ClearResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
