package search

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultTicket ResultType = "ticket"
	ResultLead   ResultType = "lead"
	ResultClient ResultType = "client"
)

// Result is a single search hit returned to the caller.
type Result struct {
	Type    ResultType `json:"type"`
	ID      string     `json:"id"`
	Title   string     `json:"title"`
	Snippet string     `json:"snippet"`
	Status  string     `json:"status,omitempty"`
	Stage   string     `json:"stage,omitempty"`
}

// Query describes a search request.
type Query struct {
	Text         string
	FilterType   ResultType // empty = all types
	FilterStatus string     // tickets only
	Limit        int
	Offset       int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// TicketRecord is the data we index for a ticket.
type TicketRecord struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Type     string `json:"contentType"`
	Status   string `json:"status"`
	Assignee string `json:"assignee"`
	Reviewer string `json:"reviewer"`
	ClientID string `json:"clientId"`
}

// LeadRecord is the data we index for a sales lead.
type LeadRecord struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Company string `json:"company"`
	Stage   string `json:"stage"`
	Source  string `json:"source"`
}

// ClientRecord is the data we index for a client.
type ClientRecord struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	ContactName  string `json:"contactName"`
	ContactEmail string `json:"contactEmail"`
	Active       bool   `json:"active"`
}
