package store

import "time"

// Ticket statuses form a forward-moving production pipeline. The two billing
// extensions (invoiced, paid) are only reachable by roles holding the invoice
// action; the store does not enforce transition order.
const (
	StatusTodo           = "todo"
	StatusInProgress     = "in_progress"
	StatusInternalReview = "internal_review"
	StatusClientReview   = "client_review"
	StatusDone           = "done"
	StatusInvoiced       = "invoiced"
	StatusPaid           = "paid"
)

// TicketStatuses lists the pipeline states in order.
var TicketStatuses = []string{
	StatusTodo,
	StatusInProgress,
	StatusInternalReview,
	StatusClientReview,
	StatusDone,
	StatusInvoiced,
	StatusPaid,
}

// IsTicketStatus reports whether s is a known pipeline state.
func IsTicketStatus(s string) bool {
	for _, status := range TicketStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// IsTerminalStatus reports whether s counts as completed work for reporting.
func IsTerminalStatus(s string) bool {
	return s == StatusDone || s == StatusInvoiced || s == StatusPaid
}

type User struct {
	ID                    string
	DisplayName           string
	Email                 string
	PasswordHash          string
	Role                  string
	IsEmailVerified       bool
	VerificationToken     string
	VerificationExpiresAt *time.Time
	DeactivatedAt         *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// Client is an agency customer. Compensation maps rate-card keys
// ("blogRate", "whitepaperRate", ...) to flat per-piece rates and is used as
// the fallback revenue source when a ticket has no explicit actual revenue.
type Client struct {
	ID             string
	Name           string
	ContactName    string
	ContactEmail   string
	MonthlyRevenue float64
	Active         bool
	Compensation   map[string]float64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Ticket is a content-production work item.
type Ticket struct {
	ID              string
	Title           string
	Type            string
	Status          string
	ClientID        string
	ClientName      string
	Assignee        string
	Reviewer        string
	ReviewEnteredAt *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Financials is the per-ticket money record. ActualRevenue, when positive,
// overrides the client rate card. TotalCost is recomputed server-side from
// the hour/rate breakdown on every save.
type Financials struct {
	TicketID      string
	ActualRevenue float64
	AssigneeHours float64
	AssigneeRate  float64
	ReviewerHours float64
	ReviewerRate  float64
	TotalCost     float64
	UpdatedAt     time.Time
}

// Lead is a sales-pipeline record.
type Lead struct {
	ID             string
	Name           string
	Email          string
	Company        string
	Stage          string
	Source         string
	EstimatedValue float64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// StatusChange is one append-only row of an entity's transition log.
type StatusChange struct {
	ID        int64
	EntityID  string
	FromState string
	ToState   string
	Actor     string
	Notes     string
	CreatedAt time.Time
}

// AnalysisRun tracks one AI content-analysis invocation against a ticket.
// Runs are detached: the row is created up front, and results are written
// only when the run completes successfully.
type AnalysisRun struct {
	ID            string
	TicketID      string
	URL           string
	Status        string // running, completed, failed
	Title         string
	Summary       string
	WordCount     int
	HeadingCount  int
	TotalCost     float64
	CostBreakdown map[string]float64
	Error         string
	CreatedAt     time.Time
	CompletedAt   *time.Time
}

// AuditEvent records a console action for reporting.
type AuditEvent struct {
	ID         int64
	EventType  string
	ActorName  string
	EntityType string
	EntityID   string
	Payload    map[string]any
	CreatedAt  time.Time
}

// SidecarInclude declares which per-ticket sub-records a list call should
// side-load in bulk.
type SidecarInclude struct {
	Financials bool
	Timeline   bool
}
