package app

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"copydesk/api/internal/auth"
	"copydesk/api/internal/authpw"
	"copydesk/api/internal/billing"
	"copydesk/api/internal/config"
	"copydesk/api/internal/crm"
	"copydesk/api/internal/drafts"
	"copydesk/api/internal/export"
	"copydesk/api/internal/rbac"
	"copydesk/api/internal/search"
	"copydesk/api/internal/store"
	"copydesk/api/internal/timeline"
	"copydesk/api/internal/util"
)

type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	UserName     string
	Role         string
	JTI          string
	ExpiresAt    time.Time
}

type TicketInput struct {
	Title    string `json:"title"`
	Type     string `json:"type"`
	ClientID string `json:"clientId"`
	Assignee string `json:"assignee"`
	Reviewer string `json:"reviewer"`
}

type TransitionInput struct {
	Status string `json:"status"`
	Notes  string `json:"notes"`
}

type FinancialsInput struct {
	ActualRevenue float64 `json:"actualRevenue"`
	AssigneeHours float64 `json:"assigneeHours"`
	AssigneeRate  float64 `json:"assigneeRate"`
	ReviewerHours float64 `json:"reviewerHours"`
	ReviewerRate  float64 `json:"reviewerRate"`
}

type ClientInput struct {
	Name           string             `json:"name"`
	ContactName    string             `json:"contactName"`
	ContactEmail   string             `json:"contactEmail"`
	MonthlyRevenue float64            `json:"monthlyRevenue"`
	Active         *bool              `json:"active"`
	Compensation   map[string]float64 `json:"compensation"`
}

type LeadInput struct {
	Name           string  `json:"name"`
	Email          string  `json:"email"`
	Company        string  `json:"company"`
	Stage          string  `json:"stage"`
	Source         string  `json:"source"`
	EstimatedValue float64 `json:"estimatedValue"`
}

type dataStore interface {
	Ping(ctx context.Context) error

	GetUserByID(ctx context.Context, userID string) (store.User, error)
	GetUserByEmail(ctx context.Context, email string) (store.User, error)
	RevokeAccessToken(ctx context.Context, jti string, exp time.Time) error
	IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error)
	InsertAuditEvent(ctx context.Context, event store.AuditEvent) error
	ListAuditEvents(ctx context.Context, entityID string, limit int) ([]store.AuditEvent, error)

	ListTickets(ctx context.Context, status string) ([]store.Ticket, error)
	GetTicket(ctx context.Context, ticketID string) (store.Ticket, error)
	InsertTicket(ctx context.Context, item store.Ticket) error
	UpdateTicket(ctx context.Context, item store.Ticket) error
	UpdateTicketStatus(ctx context.Context, ticketID, status string) error
	DeleteTicket(ctx context.Context, ticketID string) error

	GetFinancials(ctx context.Context, ticketID string) (store.Financials, error)
	UpsertFinancials(ctx context.Context, fin store.Financials) error
	ListFinancialsByIDs(ctx context.Context, ticketIDs []string) (map[string]store.Financials, error)

	GetTimeline(ctx context.Context, entityID string) (timeline.Ledger, error)
	SaveTimeline(ctx context.Context, entityID string, ledger timeline.Ledger) error
	ListTimelinesByIDs(ctx context.Context, entityIDs []string) (map[string]timeline.Ledger, error)
	InsertStatusChange(ctx context.Context, change store.StatusChange) error
	ListStatusChanges(ctx context.Context, entityID string) ([]store.StatusChange, error)

	ListClients(ctx context.Context, activeOnly bool) ([]store.Client, error)
	GetClient(ctx context.Context, clientID string) (store.Client, error)
	InsertClient(ctx context.Context, item store.Client) error
	UpdateClient(ctx context.Context, item store.Client) error
	DeleteClient(ctx context.Context, clientID string) error

	ListLeads(ctx context.Context, stage string) ([]store.Lead, error)
	GetLead(ctx context.Context, leadID string) (store.Lead, error)
	InsertLead(ctx context.Context, item store.Lead) error
	UpdateLead(ctx context.Context, item store.Lead) error
	UpdateLeadStage(ctx context.Context, leadID, stage string) error
	DeleteLead(ctx context.Context, leadID string) error

	GetAnalysisRun(ctx context.Context, runID string) (store.AnalysisRun, error)
	ListAnalysisRuns(ctx context.Context, ticketID string) ([]store.AnalysisRun, error)
}

// SessionStore holds refresh sessions. Redis in the full deploy, Postgres
// when Redis is not configured.
type SessionStore interface {
	SaveRefreshSession(ctx context.Context, tokenHash string, user store.User, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
}

type analysisRunner interface {
	Start(ctx context.Context, ticketID, url string) (store.AnalysisRun, error)
}

type draftStore interface {
	SaveDraft(ticketID string, draft drafts.Draft, author, message string) (drafts.RevisionInfo, error)
	GetDraft(ticketID string) (drafts.Draft, drafts.RevisionInfo, error)
	GetDraftByHash(ticketID, hash string) (drafts.Draft, error)
	History(ticketID string, limit int) ([]drafts.RevisionInfo, error)
}

type searchService interface {
	Search(q search.Query) search.Response
	IndexTicket(t search.TicketRecord)
	IndexLead(l search.LeadRecord)
	IndexClient(c search.ClientRecord)
	DeleteTicket(id string)
	DeleteLead(id string)
	DeleteClient(id string)
}

type exportService interface {
	ExportMonthly(ctx context.Context, stats []billing.MonthlyStat, req export.Request) (*export.Result, error)
}

type Service struct {
	cfg      config.Config
	store    dataStore
	sessions SessionStore
	accounts *authpw.Service
	search   searchService
	analysis analysisRunner
	drafts   draftStore
	export   exportService
}

func New(
	cfg config.Config,
	dataStore dataStore,
	sessions SessionStore,
	accounts *authpw.Service,
	searchSvc searchService,
	runner analysisRunner,
	draftSvc draftStore,
	exportSvc exportService,
) *Service {
	return &Service{
		cfg:      cfg,
		store:    dataStore,
		sessions: sessions,
		accounts: accounts,
		search:   searchSvc,
		analysis: runner,
		drafts:   draftSvc,
		export:   exportSvc,
	}
}

// Bootstrap seeds a first admin account and a sample client so a fresh
// install is usable. No-op once any client exists.
func (s *Service) Bootstrap(ctx context.Context) error {
	clients, err := s.store.ListClients(ctx, false)
	if err != nil {
		return err
	}
	if len(clients) > 0 {
		return nil
	}

	if _, err := s.store.GetUserByEmail(ctx, "admin@copydesk.local"); errors.Is(err, sql.ErrNoRows) {
		signup, err := s.accounts.SignUp(ctx, authpw.SignUpRequest{
			Email:       "admin@copydesk.local",
			Password:    "copydesk-admin",
			DisplayName: "Admin",
			Role:        "admin",
		})
		if err != nil {
			return err
		}
		if err := s.accounts.VerifyEmail(ctx, signup.VerificationToken); err != nil {
			return err
		}
	}

	seed := store.Client{
		ID:             util.NewID("cli"),
		Name:           "Acme Industrial",
		ContactName:    "Dana Reyes",
		ContactEmail:   "dana@acme.example",
		MonthlyRevenue: 4000,
		Active:         true,
		Compensation: map[string]float64{
			billing.RateKey("blog"):       350,
			billing.RateKey("whitepaper"): 1200,
			billing.RateKey("caseStudy"):  800,
		},
	}
	if err := s.store.InsertClient(ctx, seed); err != nil {
		return err
	}
	s.search.IndexClient(search.ClientRecord{
		ID: seed.ID, Name: seed.Name, ContactName: seed.ContactName,
		ContactEmail: seed.ContactEmail, Active: seed.Active,
	})
	return nil
}

// ---- sessions ----

func (s *Service) SignIn(ctx context.Context, email, password string) (Session, error) {
	resp, err := s.accounts.SignIn(ctx, authpw.SignInRequest{Email: email, Password: password})
	if err != nil {
		return Session{}, domainError(http.StatusUnauthorized, "UNAUTHORIZED", err.Error(), nil)
	}
	if resp.RequiresVerify {
		return Session{}, domainError(http.StatusForbidden, "EMAIL_UNVERIFIED", "verify your email before signing in", nil)
	}
	return s.issueSession(ctx, resp.User)
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)
	user, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return Session{}, domainError(http.StatusUnauthorized, "UNAUTHORIZED", "invalid refresh token", nil)
	}
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), auth.Claims{
		Sub:   user.ID,
		Name:  user.DisplayName,
		Email: user.Email,
		Role:  user.Role,
		JTI:   jti,
		Exp:   expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewToken()
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), user, now.Add(s.cfg.RefreshTTL)); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		UserName:     user.DisplayName,
		Role:         user.Role,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	revoked, err := s.store.IsAccessTokenRevoked(ctx, claims.JTI)
	if err != nil {
		return Session{}, err
	}
	if revoked {
		return Session{}, auth.ErrInvalidToken
	}

	return Session{
		Token:     token,
		UserID:    claims.Sub,
		UserName:  claims.Name,
		Role:      string(rbac.Normalize(claims.Role)),
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) Logout(ctx context.Context, session Session, refreshToken string) error {
	if session.JTI != "" {
		_ = s.store.RevokeAccessToken(ctx, session.JTI, session.ExpiresAt)
	}
	if refreshToken != "" {
		_ = s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
	}
	return nil
}

func (s *Service) Can(role string, action rbac.Action) bool {
	return rbac.Can(rbac.Normalize(role), action)
}

// ---- tickets ----

// ListTickets returns tickets with financials and timeline sidecars
// side-loaded in bulk per the include flags.
func (s *Service) ListTickets(ctx context.Context, status string, include store.SidecarInclude) ([]map[string]any, error) {
	if status != "" && !store.IsTicketStatus(status) {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "unknown ticket status", nil)
	}
	tickets, err := s.store.ListTickets(ctx, status)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(tickets))
	for i, ticket := range tickets {
		ids[i] = ticket.ID
	}

	var financials map[string]store.Financials
	if include.Financials {
		if financials, err = s.store.ListFinancialsByIDs(ctx, ids); err != nil {
			return nil, err
		}
	}
	var ledgers map[string]timeline.Ledger
	if include.Timeline {
		if ledgers, err = s.store.ListTimelinesByIDs(ctx, ids); err != nil {
			return nil, err
		}
	}

	var compByName map[string]map[string]float64
	if include.Financials {
		clients, err := s.store.ListClients(ctx, false)
		if err != nil {
			return nil, err
		}
		compByName = make(map[string]map[string]float64, len(clients))
		for _, client := range clients {
			compByName[client.Name] = client.Compensation
		}
	}

	now := time.Now()
	items := make([]map[string]any, 0, len(tickets))
	for _, ticket := range tickets {
		item := ticketItem(ticket)
		if include.Financials {
			var fin *store.Financials
			if f, ok := financials[ticket.ID]; ok {
				fin = &f
				item["financials"] = financialsItem(f)
			}
			item["resolvedRevenue"] = billing.ResolveRevenue(fin, ticket.Type, compByName[ticket.ClientName])
		}
		if include.Timeline {
			ledger := ledgers[ticket.ID]
			item["daysInStatus"] = s.daysInStatus(ticket, ledger, now)
		}
		items = append(items, item)
	}
	return items, nil
}

func (s *Service) GetTicket(ctx context.Context, ticketID string) (map[string]any, error) {
	ticket, err := s.store.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	item := ticketItem(ticket)

	ledger, err := s.store.GetTimeline(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	item["daysInStatus"] = s.daysInStatus(ticket, ledger, now)
	if !ledger.Empty() {
		durations := make(map[string]int, len(store.TicketStatuses))
		for _, status := range store.TicketStatuses {
			if days := ledger.TotalDaysInState(status, ticket.Status, now); days > 0 {
				durations[status] = days
			}
		}
		item["stateDurations"] = durations
	}

	if fin, err := s.store.GetFinancials(ctx, ticketID); err == nil {
		item["financials"] = financialsItem(fin)
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	changes, err := s.store.ListStatusChanges(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	changeItems := make([]map[string]any, 0, len(changes))
	for _, change := range changes {
		changeItems = append(changeItems, map[string]any{
			"from":  change.FromState,
			"to":    change.ToState,
			"actor": change.Actor,
			"notes": change.Notes,
			"at":    change.CreatedAt.Format(time.RFC3339),
		})
	}
	item["statusChanges"] = changeItems
	return item, nil
}

// legacyDates maps a ticket onto the view the legacy entry policy reads.
func legacyDates(t store.Ticket) timeline.EntityDates {
	return timeline.EntityDates{
		InitialState:    store.StatusTodo,
		ReviewState:     store.StatusClientReview,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
		ReviewEnteredAt: t.ReviewEnteredAt,
	}
}

// daysInStatus prefers the ledger; tickets that predate ledgers fall back to
// the legacy entry policy.
func (s *Service) daysInStatus(ticket store.Ticket, ledger timeline.Ledger, now time.Time) int {
	if ledger.Empty() {
		return timeline.LegacyDaysInState(ticket.Status, legacyDates(ticket), now)
	}
	return ledger.TotalDaysInState(ticket.Status, ticket.Status, now)
}

func (s *Service) CreateTicket(ctx context.Context, session Session, input TicketInput) (map[string]any, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "title is required", nil)
	}
	contentType := strings.TrimSpace(input.Type)
	if contentType == "" {
		contentType = "blog"
	}

	now := time.Now()
	ticket := store.Ticket{
		ID:       util.NewID("tkt"),
		Title:    title,
		Type:     contentType,
		Status:   store.StatusTodo,
		ClientID: strings.TrimSpace(input.ClientID),
		Assignee: strings.TrimSpace(input.Assignee),
		Reviewer: strings.TrimSpace(input.Reviewer),
	}
	if err := s.store.InsertTicket(ctx, ticket); err != nil {
		return nil, err
	}

	// The ledger is born with the ticket so no new ticket ever needs the
	// legacy fallback.
	ledger := timeline.Initialize(store.StatusTodo, session.UserName, now)
	if err := s.store.SaveTimeline(ctx, ticket.ID, ledger); err != nil {
		return nil, err
	}
	if err := s.store.InsertStatusChange(ctx, store.StatusChange{
		EntityID:  ticket.ID,
		ToState:   store.StatusTodo,
		Actor:     session.UserName,
		CreatedAt: now,
	}); err != nil {
		return nil, err
	}

	s.search.IndexTicket(search.TicketRecord{
		ID: ticket.ID, Title: ticket.Title, Type: ticket.Type, Status: ticket.Status,
		Assignee: ticket.Assignee, Reviewer: ticket.Reviewer, ClientID: ticket.ClientID,
	})
	s.audit(ctx, session, "ticket.created", "ticket", ticket.ID, map[string]any{"title": title})
	return s.GetTicket(ctx, ticket.ID)
}

func (s *Service) UpdateTicket(ctx context.Context, session Session, ticketID string, input TicketInput) (map[string]any, error) {
	ticket, err := s.store.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if title := strings.TrimSpace(input.Title); title != "" {
		ticket.Title = title
	}
	if contentType := strings.TrimSpace(input.Type); contentType != "" {
		ticket.Type = contentType
	}
	ticket.ClientID = strings.TrimSpace(input.ClientID)
	ticket.Assignee = strings.TrimSpace(input.Assignee)
	ticket.Reviewer = strings.TrimSpace(input.Reviewer)

	if err := s.store.UpdateTicket(ctx, ticket); err != nil {
		return nil, err
	}
	s.search.IndexTicket(search.TicketRecord{
		ID: ticket.ID, Title: ticket.Title, Type: ticket.Type, Status: ticket.Status,
		Assignee: ticket.Assignee, Reviewer: ticket.Reviewer, ClientID: ticket.ClientID,
	})
	s.audit(ctx, session, "ticket.updated", "ticket", ticket.ID, nil)
	return s.GetTicket(ctx, ticketID)
}

// TransitionTicket moves a ticket to a new pipeline state and keeps the
// ledger in step. Billing states require the invoice action. Concurrent
// transitions are last-write-wins; the store does not detect the race.
func (s *Service) TransitionTicket(ctx context.Context, session Session, ticketID string, input TransitionInput) (map[string]any, error) {
	toStatus := strings.TrimSpace(input.Status)
	if !store.IsTicketStatus(toStatus) {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "unknown ticket status", nil)
	}

	ticket, err := s.store.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.Status == toStatus {
		return s.GetTicket(ctx, ticketID)
	}

	if toStatus == store.StatusInvoiced || toStatus == store.StatusPaid {
		if !s.Can(session.Role, rbac.ActionInvoice) {
			return nil, domainError(http.StatusForbidden, "FORBIDDEN", "billing role required for invoicing states", nil)
		}
	}

	now := time.Now()
	ledger, err := s.store.GetTimeline(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ledger.Empty() {
		// Legacy ticket: reconstruct the current visit's entry from the
		// fallback policy so the first real transition still accrues days.
		if entered := timeline.LegacyEntry(ticket.Status, legacyDates(ticket)); entered != nil {
			ledger = timeline.Initialize(ticket.Status, "", *entered)
		} else {
			ledger = timeline.Initialize(ticket.Status, "", now)
		}
	}

	ledger = ledger.Transition(ticket.Status, toStatus, session.UserName, now, input.Notes)
	if err := s.store.SaveTimeline(ctx, ticketID, ledger); err != nil {
		return nil, err
	}
	if err := s.store.InsertStatusChange(ctx, store.StatusChange{
		EntityID:  ticketID,
		FromState: ticket.Status,
		ToState:   toStatus,
		Actor:     session.UserName,
		Notes:     input.Notes,
		CreatedAt: now,
	}); err != nil {
		return nil, err
	}
	if err := s.store.UpdateTicketStatus(ctx, ticketID, toStatus); err != nil {
		return nil, err
	}

	s.search.IndexTicket(search.TicketRecord{
		ID: ticket.ID, Title: ticket.Title, Type: ticket.Type, Status: toStatus,
		Assignee: ticket.Assignee, Reviewer: ticket.Reviewer, ClientID: ticket.ClientID,
	})
	s.audit(ctx, session, "ticket.transitioned", "ticket", ticketID, map[string]any{
		"from": ticket.Status,
		"to":   toStatus,
	})
	return s.GetTicket(ctx, ticketID)
}

func (s *Service) DeleteTicket(ctx context.Context, session Session, ticketID string) error {
	if _, err := s.store.GetTicket(ctx, ticketID); err != nil {
		return err
	}
	if err := s.store.DeleteTicket(ctx, ticketID); err != nil {
		return err
	}
	s.search.DeleteTicket(ticketID)
	s.audit(ctx, session, "ticket.deleted", "ticket", ticketID, nil)
	return nil
}

// ---- financials ----

func (s *Service) SaveFinancials(ctx context.Context, session Session, ticketID string, input FinancialsInput) (map[string]any, error) {
	if input.ActualRevenue < 0 || input.AssigneeHours < 0 || input.AssigneeRate < 0 ||
		input.ReviewerHours < 0 || input.ReviewerRate < 0 {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "financial figures cannot be negative", nil)
	}
	ticket, err := s.store.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	fin := store.Financials{
		TicketID:      ticketID,
		ActualRevenue: input.ActualRevenue,
		AssigneeHours: input.AssigneeHours,
		AssigneeRate:  input.AssigneeRate,
		ReviewerHours: input.ReviewerHours,
		ReviewerRate:  input.ReviewerRate,
	}
	fin.TotalCost = billing.TotalCost(fin)
	if err := s.store.UpsertFinancials(ctx, fin); err != nil {
		return nil, err
	}

	s.audit(ctx, session, "financials.saved", "ticket", ticketID, map[string]any{
		"actualRevenue": fin.ActualRevenue,
		"totalCost":     fin.TotalCost,
	})

	item := financialsItem(fin)
	var compensation map[string]float64
	if ticket.ClientID != "" {
		if client, err := s.store.GetClient(ctx, ticket.ClientID); err == nil {
			compensation = client.Compensation
		}
	}
	item["resolvedRevenue"] = billing.ResolveRevenue(&fin, ticket.Type, compensation)
	return item, nil
}

// ---- stats ----

func (s *Service) MonthlyStats(ctx context.Context, monthsBack int) ([]billing.MonthlyStat, error) {
	tickets, err := s.store.ListTickets(ctx, "")
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(tickets))
	for i, ticket := range tickets {
		ids[i] = ticket.ID
	}
	ledgers, err := s.store.ListTimelinesByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	financials, err := s.store.ListFinancialsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	clients, err := s.store.ListClients(ctx, false)
	if err != nil {
		return nil, err
	}
	return billing.AggregateMonthly(tickets, ledgers, financials, clients, monthsBack, time.Now()), nil
}

// ClientRevenueTotals resolves total revenue per client name across all
// tickets in one pass.
func (s *Service) ClientRevenueTotals(ctx context.Context, clientNames []string) (map[string]float64, error) {
	if len(clientNames) == 0 {
		clients, err := s.store.ListClients(ctx, false)
		if err != nil {
			return nil, err
		}
		for _, client := range clients {
			clientNames = append(clientNames, client.Name)
		}
	}

	tickets, err := s.store.ListTickets(ctx, "")
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(tickets))
	for i, ticket := range tickets {
		ids[i] = ticket.ID
	}
	financials, err := s.store.ListFinancialsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	clients, err := s.store.ListClients(ctx, false)
	if err != nil {
		return nil, err
	}
	compensations := make(map[string]map[string]float64, len(clients))
	for _, client := range clients {
		compensations[client.Name] = client.Compensation
	}

	return billing.BulkClientRevenue(clientNames, tickets, financials, compensations), nil
}

func (s *Service) ExportMonthlyReport(ctx context.Context, monthsBack int, format string) (*export.Result, error) {
	stats, err := s.MonthlyStats(ctx, monthsBack)
	if err != nil {
		return nil, err
	}
	result, err := s.export.ExportMonthly(ctx, stats, export.Request{
		MonthsBack: monthsBack,
		Format:     export.Format(format),
	})
	if errors.Is(err, export.ErrUnsupportedFormat) {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "format must be csv or pdf", nil)
	}
	return result, err
}

// ---- clients ----

func (s *Service) ListClients(ctx context.Context, activeOnly bool) ([]map[string]any, error) {
	clients, err := s.store.ListClients(ctx, activeOnly)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(clients))
	for _, client := range clients {
		items = append(items, clientItem(client))
	}
	return items, nil
}

func (s *Service) CreateClient(ctx context.Context, session Session, input ClientInput) (map[string]any, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "name is required", nil)
	}
	client := store.Client{
		ID:             util.NewID("cli"),
		Name:           name,
		ContactName:    strings.TrimSpace(input.ContactName),
		ContactEmail:   strings.TrimSpace(input.ContactEmail),
		MonthlyRevenue: input.MonthlyRevenue,
		Active:         true,
		Compensation:   input.Compensation,
	}
	if input.Active != nil {
		client.Active = *input.Active
	}
	if err := s.store.InsertClient(ctx, client); err != nil {
		return nil, err
	}
	s.search.IndexClient(search.ClientRecord{
		ID: client.ID, Name: client.Name, ContactName: client.ContactName,
		ContactEmail: client.ContactEmail, Active: client.Active,
	})
	s.audit(ctx, session, "client.created", "client", client.ID, map[string]any{"name": name})
	return clientItem(client), nil
}

func (s *Service) UpdateClient(ctx context.Context, session Session, clientID string, input ClientInput) (map[string]any, error) {
	client, err := s.store.GetClient(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if name := strings.TrimSpace(input.Name); name != "" {
		client.Name = name
	}
	client.ContactName = strings.TrimSpace(input.ContactName)
	client.ContactEmail = strings.TrimSpace(input.ContactEmail)
	client.MonthlyRevenue = input.MonthlyRevenue
	if input.Active != nil {
		client.Active = *input.Active
	}
	if input.Compensation != nil {
		client.Compensation = input.Compensation
	}
	if err := s.store.UpdateClient(ctx, client); err != nil {
		return nil, err
	}
	s.search.IndexClient(search.ClientRecord{
		ID: client.ID, Name: client.Name, ContactName: client.ContactName,
		ContactEmail: client.ContactEmail, Active: client.Active,
	})
	s.audit(ctx, session, "client.updated", "client", client.ID, nil)
	return clientItem(client), nil
}

func (s *Service) DeleteClient(ctx context.Context, session Session, clientID string) error {
	if _, err := s.store.GetClient(ctx, clientID); err != nil {
		return err
	}
	if err := s.store.DeleteClient(ctx, clientID); err != nil {
		return err
	}
	s.search.DeleteClient(clientID)
	s.audit(ctx, session, "client.deleted", "client", clientID, nil)
	return nil
}

// ---- leads ----

func (s *Service) ListLeads(ctx context.Context, stage string) ([]map[string]any, error) {
	leads, err := s.store.ListLeads(ctx, stage)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(leads))
	for _, lead := range leads {
		items = append(items, leadItem(lead))
	}
	return items, nil
}

func (s *Service) CreateLead(ctx context.Context, session Session, input LeadInput) (map[string]any, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "name is required", nil)
	}
	stage := strings.TrimSpace(input.Stage)
	if stage == "" {
		stage = "new"
	}

	existing, err := s.store.ListLeads(ctx, "")
	if err != nil {
		return nil, err
	}
	candidate := store.Lead{
		Name:    name,
		Email:   strings.TrimSpace(input.Email),
		Company: strings.TrimSpace(input.Company),
	}
	index := crm.NewDuplicateIndex(existing, crm.DefaultMatchConfig())
	if duplicates := index.FindDuplicates(candidate); len(duplicates) > 0 {
		ids := make([]string, 0, len(duplicates))
		for _, dup := range duplicates {
			ids = append(ids, dup.ID)
		}
		return nil, domainError(http.StatusConflict, "DUPLICATE_LEAD", "a matching lead already exists", map[string]any{"duplicateIds": ids})
	}

	now := time.Now()
	lead := store.Lead{
		ID:             util.NewID("lead"),
		Name:           name,
		Email:          candidate.Email,
		Company:        candidate.Company,
		Stage:          stage,
		Source:         strings.TrimSpace(input.Source),
		EstimatedValue: input.EstimatedValue,
	}
	if err := s.store.InsertLead(ctx, lead); err != nil {
		return nil, err
	}
	if err := s.store.SaveTimeline(ctx, lead.ID, timeline.Initialize(stage, session.UserName, now)); err != nil {
		return nil, err
	}
	if err := s.store.InsertStatusChange(ctx, store.StatusChange{
		EntityID:  lead.ID,
		ToState:   stage,
		Actor:     session.UserName,
		CreatedAt: now,
	}); err != nil {
		return nil, err
	}

	s.search.IndexLead(search.LeadRecord{
		ID: lead.ID, Name: lead.Name, Email: lead.Email,
		Company: lead.Company, Stage: lead.Stage, Source: lead.Source,
	})
	s.audit(ctx, session, "lead.created", "lead", lead.ID, map[string]any{"name": name})
	return leadItem(lead), nil
}

func (s *Service) UpdateLead(ctx context.Context, session Session, leadID string, input LeadInput) (map[string]any, error) {
	lead, err := s.store.GetLead(ctx, leadID)
	if err != nil {
		return nil, err
	}
	if name := strings.TrimSpace(input.Name); name != "" {
		lead.Name = name
	}
	lead.Email = strings.TrimSpace(input.Email)
	lead.Company = strings.TrimSpace(input.Company)
	lead.Source = strings.TrimSpace(input.Source)
	lead.EstimatedValue = input.EstimatedValue
	if err := s.store.UpdateLead(ctx, lead); err != nil {
		return nil, err
	}
	s.search.IndexLead(search.LeadRecord{
		ID: lead.ID, Name: lead.Name, Email: lead.Email,
		Company: lead.Company, Stage: lead.Stage, Source: lead.Source,
	})
	s.audit(ctx, session, "lead.updated", "lead", lead.ID, nil)
	return leadItem(lead), nil
}

// MoveLeadStage transitions a lead's pipeline stage, keeping its ledger in
// step the same way ticket transitions do. Stage labels are free-form; the
// CRM pipeline is configurable per workspace.
func (s *Service) MoveLeadStage(ctx context.Context, session Session, leadID, stage, notes string) (map[string]any, error) {
	stage = strings.TrimSpace(stage)
	if stage == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "stage is required", nil)
	}
	lead, err := s.store.GetLead(ctx, leadID)
	if err != nil {
		return nil, err
	}
	if lead.Stage == stage {
		return leadItem(lead), nil
	}

	now := time.Now()
	ledger, err := s.store.GetTimeline(ctx, leadID)
	if err != nil {
		return nil, err
	}
	if ledger.Empty() {
		ledger = timeline.Initialize(lead.Stage, "", now)
	}
	ledger = ledger.Transition(lead.Stage, stage, session.UserName, now, notes)
	if err := s.store.SaveTimeline(ctx, leadID, ledger); err != nil {
		return nil, err
	}
	if err := s.store.InsertStatusChange(ctx, store.StatusChange{
		EntityID:  leadID,
		FromState: lead.Stage,
		ToState:   stage,
		Actor:     session.UserName,
		Notes:     notes,
		CreatedAt: now,
	}); err != nil {
		return nil, err
	}
	if err := s.store.UpdateLeadStage(ctx, leadID, stage); err != nil {
		return nil, err
	}

	lead.Stage = stage
	s.search.IndexLead(search.LeadRecord{
		ID: lead.ID, Name: lead.Name, Email: lead.Email,
		Company: lead.Company, Stage: lead.Stage, Source: lead.Source,
	})
	s.audit(ctx, session, "lead.staged", "lead", leadID, map[string]any{"stage": stage})
	return leadItem(lead), nil
}

func (s *Service) DeleteLead(ctx context.Context, session Session, leadID string) error {
	if _, err := s.store.GetLead(ctx, leadID); err != nil {
		return err
	}
	if err := s.store.DeleteLead(ctx, leadID); err != nil {
		return err
	}
	s.search.DeleteLead(leadID)
	s.audit(ctx, session, "lead.deleted", "lead", leadID, nil)
	return nil
}

// CheckLeadDuplicates reports existing leads that would collide with the
// candidate under the given match config, without creating anything.
func (s *Service) CheckLeadDuplicates(ctx context.Context, input LeadInput, cfg crm.MatchConfig) ([]map[string]any, error) {
	existing, err := s.store.ListLeads(ctx, "")
	if err != nil {
		return nil, err
	}
	index := crm.NewDuplicateIndex(existing, cfg)
	duplicates := index.FindDuplicates(store.Lead{
		Name:    strings.TrimSpace(input.Name),
		Email:   strings.TrimSpace(input.Email),
		Company: strings.TrimSpace(input.Company),
	})
	items := make([]map[string]any, 0, len(duplicates))
	for _, dup := range duplicates {
		items = append(items, leadItem(dup))
	}
	return items, nil
}

// ImportReport summarizes a CSV lead import.
type ImportReport struct {
	Imported   int                 `json:"imported"`
	Skipped    int                 `json:"skipped"`
	Duplicates []map[string]string `json:"duplicates"`
}

// ImportLeadsCSV bulk-imports leads from a CSV with a name,email,company,
// source,estimatedValue header. The duplicate index is built once over the
// existing set and grows as rows are accepted, so rows within the batch
// dedupe against each other too.
func (s *Service) ImportLeadsCSV(ctx context.Context, session Session, r io.Reader, cfg crm.MatchConfig) (ImportReport, error) {
	existing, err := s.store.ListLeads(ctx, "")
	if err != nil {
		return ImportReport{}, err
	}
	index := crm.NewDuplicateIndex(existing, cfg)

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		return ImportReport{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "empty or unreadable csv", nil)
	}
	col := columnIndex(header)
	if _, ok := col["name"]; !ok {
		return ImportReport{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "csv must have a name column", nil)
	}

	report := ImportReport{Duplicates: []map[string]string{}}
	now := time.Now()
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			report.Skipped++
			continue
		}

		lead := store.Lead{
			ID:      util.NewID("lead"),
			Name:    strings.TrimSpace(field(record, col, "name")),
			Email:   strings.TrimSpace(field(record, col, "email")),
			Company: strings.TrimSpace(field(record, col, "company")),
			Source:  strings.TrimSpace(field(record, col, "source")),
			Stage:   "new",
		}
		if lead.Name == "" {
			report.Skipped++
			continue
		}
		if duplicates := index.FindDuplicates(lead); len(duplicates) > 0 {
			report.Skipped++
			report.Duplicates = append(report.Duplicates, map[string]string{
				"name":    lead.Name,
				"matches": duplicates[0].ID,
			})
			continue
		}

		if err := s.store.InsertLead(ctx, lead); err != nil {
			return report, err
		}
		if err := s.store.SaveTimeline(ctx, lead.ID, timeline.Initialize("new", session.UserName, now)); err != nil {
			return report, err
		}
		if err := s.store.InsertStatusChange(ctx, store.StatusChange{
			EntityID:  lead.ID,
			ToState:   "new",
			Actor:     session.UserName,
			CreatedAt: now,
		}); err != nil {
			return report, err
		}
		index.Add(lead)
		s.search.IndexLead(search.LeadRecord{
			ID: lead.ID, Name: lead.Name, Email: lead.Email,
			Company: lead.Company, Stage: lead.Stage, Source: lead.Source,
		})
		report.Imported++
	}

	s.audit(ctx, session, "lead.imported", "lead", "", map[string]any{
		"imported": report.Imported,
		"skipped":  report.Skipped,
	})
	return report, nil
}

// ---- analysis ----

func (s *Service) StartAnalysis(ctx context.Context, session Session, ticketID, url string) (map[string]any, error) {
	if strings.TrimSpace(url) == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "url is required", nil)
	}
	if _, err := s.store.GetTicket(ctx, ticketID); err != nil {
		return nil, err
	}
	run, err := s.analysis.Start(ctx, ticketID, url)
	if err != nil {
		return nil, err
	}
	s.audit(ctx, session, "analysis.started", "ticket", ticketID, map[string]any{"url": url})
	return analysisItem(run), nil
}

func (s *Service) ListAnalysisRuns(ctx context.Context, ticketID string) ([]map[string]any, error) {
	runs, err := s.store.ListAnalysisRuns(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(runs))
	for _, run := range runs {
		items = append(items, analysisItem(run))
	}
	return items, nil
}

func (s *Service) GetAnalysisRun(ctx context.Context, runID string) (map[string]any, error) {
	run, err := s.store.GetAnalysisRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	return analysisItem(run), nil
}

// ---- drafts ----

func (s *Service) SaveTicketDraft(ctx context.Context, session Session, ticketID string, draft drafts.Draft, message string) (map[string]any, error) {
	if _, err := s.store.GetTicket(ctx, ticketID); err != nil {
		return nil, err
	}
	rev, err := s.drafts.SaveDraft(ticketID, draft, session.UserName, message)
	if err != nil {
		return nil, err
	}
	s.audit(ctx, session, "draft.saved", "ticket", ticketID, map[string]any{"revision": rev.Hash})
	return map[string]any{"draft": draft, "revision": rev}, nil
}

func (s *Service) GetTicketDraft(ctx context.Context, ticketID string) (map[string]any, error) {
	if _, err := s.store.GetTicket(ctx, ticketID); err != nil {
		return nil, err
	}
	draft, rev, err := s.drafts.GetDraft(ticketID)
	if errors.Is(err, drafts.ErrNoDraft) {
		return nil, domainError(http.StatusNotFound, "NOT_FOUND", "ticket has no draft", nil)
	}
	if err != nil {
		return nil, err
	}
	return map[string]any{"draft": draft, "revision": rev}, nil
}

func (s *Service) GetTicketDraftRevision(ctx context.Context, ticketID, hash string) (map[string]any, error) {
	if _, err := s.store.GetTicket(ctx, ticketID); err != nil {
		return nil, err
	}
	draft, err := s.drafts.GetDraftByHash(ticketID, hash)
	if errors.Is(err, drafts.ErrNoDraft) {
		return nil, domainError(http.StatusNotFound, "NOT_FOUND", "ticket has no draft", nil)
	}
	if err != nil {
		return nil, domainError(http.StatusNotFound, "NOT_FOUND", "draft revision not found", map[string]any{"hash": hash})
	}
	return map[string]any{"draft": draft, "hash": hash}, nil
}

func (s *Service) TicketDraftHistory(ctx context.Context, ticketID string) ([]drafts.RevisionInfo, error) {
	if _, err := s.store.GetTicket(ctx, ticketID); err != nil {
		return nil, err
	}
	history, err := s.drafts.History(ticketID, 50)
	if errors.Is(err, drafts.ErrNoDraft) {
		return []drafts.RevisionInfo{}, nil
	}
	return history, err
}

// ---- misc ----

func (s *Service) Search(q search.Query) search.Response {
	return s.search.Search(q)
}

func (s *Service) AuditTrail(ctx context.Context, entityID string, limit int) ([]store.AuditEvent, error) {
	return s.store.ListAuditEvents(ctx, entityID, limit)
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// audit is best effort; a failed audit insert never fails the action.
func (s *Service) audit(ctx context.Context, session Session, eventType, entityType, entityID string, payload map[string]any) {
	_ = s.store.InsertAuditEvent(ctx, store.AuditEvent{
		EventType:  eventType,
		ActorName:  session.UserName,
		EntityType: entityType,
		EntityID:   entityID,
		Payload:    payload,
	})
}

// ---- response shaping ----

func ticketItem(ticket store.Ticket) map[string]any {
	return map[string]any{
		"id":         ticket.ID,
		"title":      ticket.Title,
		"type":       ticket.Type,
		"status":     ticket.Status,
		"clientId":   ticket.ClientID,
		"clientName": ticket.ClientName,
		"assignee":   ticket.Assignee,
		"reviewer":   ticket.Reviewer,
		"createdAt":  ticket.CreatedAt.Format(time.RFC3339),
		"updatedAt":  ticket.UpdatedAt.Format(time.RFC3339),
	}
}

func financialsItem(fin store.Financials) map[string]any {
	return map[string]any{
		"actualRevenue": fin.ActualRevenue,
		"assigneeHours": fin.AssigneeHours,
		"assigneeRate":  fin.AssigneeRate,
		"reviewerHours": fin.ReviewerHours,
		"reviewerRate":  fin.ReviewerRate,
		"totalCost":     fin.TotalCost,
	}
}

func clientItem(client store.Client) map[string]any {
	return map[string]any{
		"id":             client.ID,
		"name":           client.Name,
		"contactName":    client.ContactName,
		"contactEmail":   client.ContactEmail,
		"monthlyRevenue": client.MonthlyRevenue,
		"active":         client.Active,
		"compensation":   client.Compensation,
	}
}

func leadItem(lead store.Lead) map[string]any {
	return map[string]any{
		"id":             lead.ID,
		"name":           lead.Name,
		"email":          lead.Email,
		"company":        lead.Company,
		"stage":          lead.Stage,
		"source":         lead.Source,
		"estimatedValue": lead.EstimatedValue,
	}
}

func analysisItem(run store.AnalysisRun) map[string]any {
	item := map[string]any{
		"id":       run.ID,
		"ticketId": run.TicketID,
		"url":      run.URL,
		"status":   run.Status,
	}
	if run.Status == "completed" {
		item["title"] = run.Title
		item["summary"] = run.Summary
		item["wordCount"] = run.WordCount
		item["headingCount"] = run.HeadingCount
		item["costInfo"] = map[string]any{
			"totalCost": run.TotalCost,
			"breakdown": run.CostBreakdown,
		}
	}
	if run.Status == "failed" {
		item["error"] = run.Error
	}
	return item
}

func columnIndex(header []string) map[string]int {
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	return col
}

func field(record []string, col map[string]int, name string) string {
	i, ok := col[name]
	if !ok || i >= len(record) {
		return ""
	}
	return record[i]
}
