package app

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"copydesk/api/internal/billing"
	"copydesk/api/internal/config"
	"copydesk/api/internal/crm"
	"copydesk/api/internal/drafts"
	"copydesk/api/internal/export"
	"copydesk/api/internal/search"
	"copydesk/api/internal/store"
	"copydesk/api/internal/timeline"
)

type fakeStore struct {
	getTicketFn          func(context.Context, string) (store.Ticket, error)
	listTicketsFn        func(context.Context, string) ([]store.Ticket, error)
	updateTicketStatusFn func(context.Context, string, string) error
	getTimelineFn        func(context.Context, string) (timeline.Ledger, error)
	saveTimelineFn       func(context.Context, string, timeline.Ledger) error
	insertStatusChangeFn func(context.Context, store.StatusChange) error
	listStatusChangesFn  func(context.Context, string) ([]store.StatusChange, error)
	listTimelinesFn      func(context.Context, []string) (map[string]timeline.Ledger, error)
	getFinancialsFn      func(context.Context, string) (store.Financials, error)
	upsertFinancialsFn   func(context.Context, store.Financials) error
	listFinancialsFn     func(context.Context, []string) (map[string]store.Financials, error)
	listClientsFn        func(context.Context, bool) ([]store.Client, error)
	getClientFn          func(context.Context, string) (store.Client, error)
	listLeadsFn          func(context.Context, string) ([]store.Lead, error)
	insertLeadFn         func(context.Context, store.Lead) error
	updateLeadStageFn    func(context.Context, string, string) error
	getLeadFn            func(context.Context, string) (store.Lead, error)
}

func (f *fakeStore) Ping(context.Context) error { return nil }

func (f *fakeStore) GetUserByID(context.Context, string) (store.User, error) {
	return store.User{}, sql.ErrNoRows
}
func (f *fakeStore) GetUserByEmail(context.Context, string) (store.User, error) {
	return store.User{}, sql.ErrNoRows
}
func (f *fakeStore) RevokeAccessToken(context.Context, string, time.Time) error { return nil }
func (f *fakeStore) IsAccessTokenRevoked(context.Context, string) (bool, error) { return false, nil }
func (f *fakeStore) InsertAuditEvent(context.Context, store.AuditEvent) error   { return nil }
func (f *fakeStore) ListAuditEvents(context.Context, string, int) ([]store.AuditEvent, error) {
	return nil, nil
}

func (f *fakeStore) ListTickets(ctx context.Context, status string) ([]store.Ticket, error) {
	if f.listTicketsFn != nil {
		return f.listTicketsFn(ctx, status)
	}
	return nil, nil
}
func (f *fakeStore) GetTicket(ctx context.Context, ticketID string) (store.Ticket, error) {
	if f.getTicketFn != nil {
		return f.getTicketFn(ctx, ticketID)
	}
	return store.Ticket{}, sql.ErrNoRows
}
func (f *fakeStore) InsertTicket(context.Context, store.Ticket) error { return nil }
func (f *fakeStore) UpdateTicket(context.Context, store.Ticket) error { return nil }
func (f *fakeStore) UpdateTicketStatus(ctx context.Context, ticketID, status string) error {
	if f.updateTicketStatusFn != nil {
		return f.updateTicketStatusFn(ctx, ticketID, status)
	}
	return nil
}
func (f *fakeStore) DeleteTicket(context.Context, string) error { return nil }

func (f *fakeStore) GetFinancials(ctx context.Context, ticketID string) (store.Financials, error) {
	if f.getFinancialsFn != nil {
		return f.getFinancialsFn(ctx, ticketID)
	}
	return store.Financials{}, sql.ErrNoRows
}
func (f *fakeStore) UpsertFinancials(ctx context.Context, fin store.Financials) error {
	if f.upsertFinancialsFn != nil {
		return f.upsertFinancialsFn(ctx, fin)
	}
	return nil
}
func (f *fakeStore) ListFinancialsByIDs(ctx context.Context, ids []string) (map[string]store.Financials, error) {
	if f.listFinancialsFn != nil {
		return f.listFinancialsFn(ctx, ids)
	}
	return map[string]store.Financials{}, nil
}

func (f *fakeStore) GetTimeline(ctx context.Context, entityID string) (timeline.Ledger, error) {
	if f.getTimelineFn != nil {
		return f.getTimelineFn(ctx, entityID)
	}
	return timeline.Ledger{}, nil
}
func (f *fakeStore) SaveTimeline(ctx context.Context, entityID string, ledger timeline.Ledger) error {
	if f.saveTimelineFn != nil {
		return f.saveTimelineFn(ctx, entityID, ledger)
	}
	return nil
}
func (f *fakeStore) ListTimelinesByIDs(ctx context.Context, ids []string) (map[string]timeline.Ledger, error) {
	if f.listTimelinesFn != nil {
		return f.listTimelinesFn(ctx, ids)
	}
	return map[string]timeline.Ledger{}, nil
}
func (f *fakeStore) InsertStatusChange(ctx context.Context, change store.StatusChange) error {
	if f.insertStatusChangeFn != nil {
		return f.insertStatusChangeFn(ctx, change)
	}
	return nil
}
func (f *fakeStore) ListStatusChanges(ctx context.Context, entityID string) ([]store.StatusChange, error) {
	if f.listStatusChangesFn != nil {
		return f.listStatusChangesFn(ctx, entityID)
	}
	return nil, nil
}

func (f *fakeStore) ListClients(ctx context.Context, activeOnly bool) ([]store.Client, error) {
	if f.listClientsFn != nil {
		return f.listClientsFn(ctx, activeOnly)
	}
	return nil, nil
}
func (f *fakeStore) GetClient(ctx context.Context, clientID string) (store.Client, error) {
	if f.getClientFn != nil {
		return f.getClientFn(ctx, clientID)
	}
	return store.Client{}, sql.ErrNoRows
}
func (f *fakeStore) InsertClient(context.Context, store.Client) error { return nil }
func (f *fakeStore) UpdateClient(context.Context, store.Client) error { return nil }
func (f *fakeStore) DeleteClient(context.Context, string) error       { return nil }

func (f *fakeStore) ListLeads(ctx context.Context, stage string) ([]store.Lead, error) {
	if f.listLeadsFn != nil {
		return f.listLeadsFn(ctx, stage)
	}
	return nil, nil
}
func (f *fakeStore) GetLead(ctx context.Context, leadID string) (store.Lead, error) {
	if f.getLeadFn != nil {
		return f.getLeadFn(ctx, leadID)
	}
	return store.Lead{}, sql.ErrNoRows
}
func (f *fakeStore) InsertLead(ctx context.Context, lead store.Lead) error {
	if f.insertLeadFn != nil {
		return f.insertLeadFn(ctx, lead)
	}
	return nil
}
func (f *fakeStore) UpdateLead(context.Context, store.Lead) error { return nil }
func (f *fakeStore) UpdateLeadStage(ctx context.Context, leadID, stage string) error {
	if f.updateLeadStageFn != nil {
		return f.updateLeadStageFn(ctx, leadID, stage)
	}
	return nil
}
func (f *fakeStore) DeleteLead(context.Context, string) error { return nil }

func (f *fakeStore) GetAnalysisRun(context.Context, string) (store.AnalysisRun, error) {
	return store.AnalysisRun{}, sql.ErrNoRows
}
func (f *fakeStore) ListAnalysisRuns(context.Context, string) ([]store.AnalysisRun, error) {
	return nil, nil
}

type fakeSessions struct{}

func (fakeSessions) SaveRefreshSession(context.Context, string, store.User, time.Time) error {
	return nil
}
func (fakeSessions) LookupRefreshSession(context.Context, string) (store.User, error) {
	return store.User{}, errors.New("not found")
}
func (fakeSessions) RevokeRefreshSession(context.Context, string) error { return nil }

type fakeSearch struct {
	indexedTickets []search.TicketRecord
	indexedLeads   []search.LeadRecord
	deletedTickets []string
}

func (f *fakeSearch) Search(q search.Query) search.Response {
	return search.Response{Results: []search.Result{}, Query: q.Text}
}
func (f *fakeSearch) IndexTicket(t search.TicketRecord) { f.indexedTickets = append(f.indexedTickets, t) }
func (f *fakeSearch) IndexLead(l search.LeadRecord)     { f.indexedLeads = append(f.indexedLeads, l) }
func (f *fakeSearch) IndexClient(search.ClientRecord)   {}
func (f *fakeSearch) DeleteTicket(id string)            { f.deletedTickets = append(f.deletedTickets, id) }
func (f *fakeSearch) DeleteLead(string)                 {}
func (f *fakeSearch) DeleteClient(string)               {}

type fakeRunner struct{}

func (fakeRunner) Start(_ context.Context, ticketID, url string) (store.AnalysisRun, error) {
	return store.AnalysisRun{ID: "run_1", TicketID: ticketID, URL: url, Status: "running"}, nil
}

type fakeDrafts struct {
	getDraftByHashFn func(ticketID, hash string) (drafts.Draft, error)
}

func (fakeDrafts) SaveDraft(string, drafts.Draft, string, string) (drafts.RevisionInfo, error) {
	return drafts.RevisionInfo{Hash: "abc1234"}, nil
}
func (fakeDrafts) GetDraft(string) (drafts.Draft, drafts.RevisionInfo, error) {
	return drafts.Draft{}, drafts.RevisionInfo{}, drafts.ErrNoDraft
}
func (f fakeDrafts) GetDraftByHash(ticketID, hash string) (drafts.Draft, error) {
	if f.getDraftByHashFn != nil {
		return f.getDraftByHashFn(ticketID, hash)
	}
	return drafts.Draft{}, drafts.ErrNoDraft
}
func (fakeDrafts) History(string, int) ([]drafts.RevisionInfo, error) { return nil, drafts.ErrNoDraft }

type fakeExport struct{}

func (fakeExport) ExportMonthly(_ context.Context, stats []billing.MonthlyStat, req export.Request) (*export.Result, error) {
	if req.Format != export.FormatCSV {
		return nil, export.ErrUnsupportedFormat
	}
	return &export.Result{Data: []byte("month\n"), Filename: "r.csv", MimeType: "text/csv"}, nil
}

func newTestService(fs *fakeStore) (*Service, *fakeSearch) {
	idx := &fakeSearch{}
	svc := New(
		config.Config{JWTSecret: "test-secret", AccessTTL: time.Hour, RefreshTTL: 24 * time.Hour},
		fs,
		fakeSessions{},
		nil,
		idx,
		fakeRunner{},
		fakeDrafts{},
		fakeExport{},
	)
	return svc, idx
}

func managerSession() Session {
	return Session{UserID: "usr_1", UserName: "Morgan", Role: "manager"}
}

func TestTransitionTicketUpdatesLedgerAndStatus(t *testing.T) {
	entered := time.Now().Add(-72 * time.Hour)
	var savedLedger *timeline.Ledger
	var savedStatus string
	var loggedChange *store.StatusChange

	fs := &fakeStore{
		getTicketFn: func(_ context.Context, id string) (store.Ticket, error) {
			return store.Ticket{ID: id, Title: "Launch post", Type: "blog", Status: store.StatusTodo}, nil
		},
		getTimelineFn: func(context.Context, string) (timeline.Ledger, error) {
			return timeline.Initialize(store.StatusTodo, "Morgan", entered), nil
		},
		saveTimelineFn: func(_ context.Context, _ string, ledger timeline.Ledger) error {
			savedLedger = &ledger
			return nil
		},
		insertStatusChangeFn: func(_ context.Context, change store.StatusChange) error {
			loggedChange = &change
			return nil
		},
		updateTicketStatusFn: func(_ context.Context, _, status string) error {
			savedStatus = status
			return nil
		},
	}
	svc, idx := newTestService(fs)

	if _, err := svc.TransitionTicket(context.Background(), managerSession(), "tkt_1", TransitionInput{Status: store.StatusInProgress}); err != nil {
		t.Fatalf("TransitionTicket() error = %v", err)
	}

	if savedStatus != store.StatusInProgress {
		t.Errorf("ticket status = %q, want in_progress", savedStatus)
	}
	if savedLedger == nil {
		t.Fatal("expected ledger save")
	}
	if savedLedger.StateDurations[store.StatusTodo] != 3 {
		t.Errorf("todo duration = %d, want 3", savedLedger.StateDurations[store.StatusTodo])
	}
	if _, ok := savedLedger.StateHistory[store.StatusInProgress]; !ok {
		t.Error("expected in_progress entry in state history")
	}
	if loggedChange == nil || loggedChange.FromState != store.StatusTodo || loggedChange.ToState != store.StatusInProgress {
		t.Errorf("unexpected status change row: %+v", loggedChange)
	}
	if len(idx.indexedTickets) != 1 || idx.indexedTickets[0].Status != store.StatusInProgress {
		t.Errorf("expected reindex with new status, got %+v", idx.indexedTickets)
	}
}

func TestTransitionLegacyTicketInitializesLedger(t *testing.T) {
	updated := time.Now().Add(-10 * 24 * time.Hour)
	var savedLedger *timeline.Ledger

	fs := &fakeStore{
		getTicketFn: func(_ context.Context, id string) (store.Ticket, error) {
			return store.Ticket{ID: id, Status: store.StatusInProgress, UpdatedAt: updated}, nil
		},
		saveTimelineFn: func(_ context.Context, _ string, ledger timeline.Ledger) error {
			savedLedger = &ledger
			return nil
		},
	}
	svc, _ := newTestService(fs)

	if _, err := svc.TransitionTicket(context.Background(), managerSession(), "tkt_old", TransitionInput{Status: store.StatusInternalReview}); err != nil {
		t.Fatalf("TransitionTicket() error = %v", err)
	}
	if savedLedger == nil {
		t.Fatal("expected ledger save")
	}
	if got := savedLedger.StateDurations[store.StatusInProgress]; got != 10 {
		t.Errorf("legacy in_progress duration = %d, want 10", got)
	}
}

func TestTransitionToInvoicedRequiresBillingRole(t *testing.T) {
	fs := &fakeStore{
		getTicketFn: func(_ context.Context, id string) (store.Ticket, error) {
			return store.Ticket{ID: id, Status: store.StatusDone}, nil
		},
	}
	svc, _ := newTestService(fs)

	producer := Session{UserName: "Avery", Role: "producer"}
	_, err := svc.TransitionTicket(context.Background(), producer, "tkt_1", TransitionInput{Status: store.StatusInvoiced})
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Status != 403 {
		t.Fatalf("expected 403 for producer invoicing, got %v", err)
	}

	billingUser := Session{UserName: "Blake", Role: "billing"}
	if _, err := svc.TransitionTicket(context.Background(), billingUser, "tkt_1", TransitionInput{Status: store.StatusInvoiced}); err != nil {
		t.Fatalf("billing role should invoice, got %v", err)
	}
}

func TestTransitionRejectsUnknownStatus(t *testing.T) {
	svc, _ := newTestService(&fakeStore{})
	_, err := svc.TransitionTicket(context.Background(), managerSession(), "tkt_1", TransitionInput{Status: "shipped"})
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != "VALIDATION_ERROR" {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSaveFinancialsRecomputesTotalCost(t *testing.T) {
	var saved *store.Financials
	fs := &fakeStore{
		getTicketFn: func(_ context.Context, id string) (store.Ticket, error) {
			return store.Ticket{ID: id, Type: "blog"}, nil
		},
		upsertFinancialsFn: func(_ context.Context, fin store.Financials) error {
			saved = &fin
			return nil
		},
	}
	svc, _ := newTestService(fs)

	item, err := svc.SaveFinancials(context.Background(), managerSession(), "tkt_1", FinancialsInput{
		AssigneeHours: 4,
		AssigneeRate:  50,
		ReviewerHours: 1,
		ReviewerRate:  80,
	})
	if err != nil {
		t.Fatalf("SaveFinancials() error = %v", err)
	}
	if saved == nil || saved.TotalCost != 280 {
		t.Fatalf("expected total cost 280, got %+v", saved)
	}
	if item["totalCost"] != 280.0 {
		t.Errorf("response totalCost = %v, want 280", item["totalCost"])
	}
}

func TestSaveFinancialsRejectsNegatives(t *testing.T) {
	svc, _ := newTestService(&fakeStore{})
	_, err := svc.SaveFinancials(context.Background(), managerSession(), "tkt_1", FinancialsInput{ActualRevenue: -5})
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != "VALIDATION_ERROR" {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreateLeadRejectsDuplicate(t *testing.T) {
	fs := &fakeStore{
		listLeadsFn: func(context.Context, string) ([]store.Lead, error) {
			return []store.Lead{{ID: "lead_1", Name: "Jordan Kim", Email: "JORDAN@acme.com"}}, nil
		},
	}
	svc, _ := newTestService(fs)

	_, err := svc.CreateLead(context.Background(), managerSession(), LeadInput{
		Name:  "jordan kim",
		Email: "jordan@acme.com",
	})
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != "DUPLICATE_LEAD" {
		t.Fatalf("expected duplicate conflict, got %v", err)
	}
}

func TestImportLeadsCSVDedupesWithinBatch(t *testing.T) {
	var inserted []store.Lead
	var changes []store.StatusChange
	fs := &fakeStore{
		listLeadsFn: func(context.Context, string) ([]store.Lead, error) {
			return []store.Lead{{ID: "lead_1", Name: "Jordan Kim", Email: "jordan@acme.com"}}, nil
		},
		insertLeadFn: func(_ context.Context, lead store.Lead) error {
			inserted = append(inserted, lead)
			return nil
		},
		insertStatusChangeFn: func(_ context.Context, change store.StatusChange) error {
			changes = append(changes, change)
			return nil
		},
	}
	svc, _ := newTestService(fs)

	csvBody := strings.Join([]string{
		"name,email,company",
		"Jordan Kim,jordan@acme.com,Acme",
		"Sasha Roy,sasha@beta.io,Beta",
		"sasha roy,SASHA@beta.io,Beta",
		",missing@name.com,Nameless",
	}, "\n")

	report, err := svc.ImportLeadsCSV(context.Background(), managerSession(), strings.NewReader(csvBody), crm.DefaultMatchConfig())
	if err != nil {
		t.Fatalf("ImportLeadsCSV() error = %v", err)
	}
	if report.Imported != 1 {
		t.Errorf("imported = %d, want 1", report.Imported)
	}
	if report.Skipped != 3 {
		t.Errorf("skipped = %d, want 3", report.Skipped)
	}
	if len(inserted) != 1 || inserted[0].Name != "Sasha Roy" {
		t.Fatalf("unexpected inserted leads: %+v", inserted)
	}
	if inserted[0].Stage != "new" {
		t.Errorf("imported lead stage = %q, want new", inserted[0].Stage)
	}
	if len(changes) != 1 || changes[0].ToState != "new" || changes[0].EntityID != inserted[0].ID {
		t.Fatalf("expected one initial status change for the imported lead, got %+v", changes)
	}
}

func TestCheckLeadDuplicatesUsesCustomKeys(t *testing.T) {
	fs := &fakeStore{
		listLeadsFn: func(context.Context, string) ([]store.Lead, error) {
			return []store.Lead{
				{ID: "lead_1", Name: "Jordan Kim", Company: "Acme"},
				{ID: "lead_2", Name: "Jordan Kim", Company: "Beta"},
			}, nil
		},
	}
	svc, _ := newTestService(fs)

	matches, err := svc.CheckLeadDuplicates(context.Background(), LeadInput{Name: "jordan kim", Company: "acme"}, crm.MatchConfig{
		Keys: []string{crm.KeyName, crm.KeyCompany},
	})
	if err != nil {
		t.Fatalf("CheckLeadDuplicates() error = %v", err)
	}
	if len(matches) != 1 || matches[0]["id"] != "lead_1" {
		t.Fatalf("unexpected matches: %+v", matches)
	}
}

func TestMonthlyStatsResolvesRevenueFromRateCard(t *testing.T) {
	now := time.Now()
	lastMonth := now.AddDate(0, -1, 0)
	ledger := timeline.Initialize(store.StatusTodo, "Morgan", lastMonth.Add(-24*time.Hour))
	ledger = ledger.Transition(store.StatusTodo, store.StatusPaid, "Blake", lastMonth, "")

	fs := &fakeStore{
		listTicketsFn: func(context.Context, string) ([]store.Ticket, error) {
			return []store.Ticket{{ID: "tkt_1", Type: "blog", Status: store.StatusPaid, ClientName: "Acme"}}, nil
		},
		listTimelinesFn: func(context.Context, []string) (map[string]timeline.Ledger, error) {
			return map[string]timeline.Ledger{"tkt_1": ledger}, nil
		},
		listClientsFn: func(context.Context, bool) ([]store.Client, error) {
			return []store.Client{{Name: "Acme", Active: true, MonthlyRevenue: 500, Compensation: map[string]float64{"blogRate": 350}}}, nil
		},
	}
	svc, _ := newTestService(fs)

	stats, err := svc.MonthlyStats(context.Background(), 3)
	if err != nil {
		t.Fatalf("MonthlyStats() error = %v", err)
	}
	if len(stats) == 0 {
		t.Fatal("expected at least the current month")
	}

	var found bool
	for _, stat := range stats {
		if stat.ActualRevenue == 350 && stat.CompletedCount == 1 {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a month with rate-card revenue 350, got %+v", stats)
	}
}

func TestClientRevenueTotals(t *testing.T) {
	fs := &fakeStore{
		listTicketsFn: func(context.Context, string) ([]store.Ticket, error) {
			return []store.Ticket{
				{ID: "tkt_1", Type: "blog", ClientName: "Acme"},
				{ID: "tkt_2", Type: "blog", ClientName: "Acme"},
				{ID: "tkt_3", Type: "blog", ClientName: "Beta"},
			}, nil
		},
		listFinancialsFn: func(context.Context, []string) (map[string]store.Financials, error) {
			return map[string]store.Financials{
				"tkt_1": {TicketID: "tkt_1", ActualRevenue: 500},
			}, nil
		},
		listClientsFn: func(context.Context, bool) ([]store.Client, error) {
			return []store.Client{
				{Name: "Acme", Compensation: map[string]float64{"blogRate": 350}},
				{Name: "Beta"},
			}, nil
		},
	}
	svc, _ := newTestService(fs)

	totals, err := svc.ClientRevenueTotals(context.Background(), nil)
	if err != nil {
		t.Fatalf("ClientRevenueTotals() error = %v", err)
	}
	if totals["Acme"] != 850 {
		t.Errorf("Acme total = %v, want 850 (500 actual + 350 rate card)", totals["Acme"])
	}
	if totals["Beta"] != 0 {
		t.Errorf("Beta total = %v, want 0", totals["Beta"])
	}
}

func TestGetTicketFallsBackToLegacyDays(t *testing.T) {
	created := time.Now().Add(-5 * 24 * time.Hour)
	fs := &fakeStore{
		getTicketFn: func(_ context.Context, id string) (store.Ticket, error) {
			return store.Ticket{ID: id, Status: store.StatusTodo, CreatedAt: created, UpdatedAt: created}, nil
		},
	}
	svc, _ := newTestService(fs)

	item, err := svc.GetTicket(context.Background(), "tkt_legacy")
	if err != nil {
		t.Fatalf("GetTicket() error = %v", err)
	}
	if item["daysInStatus"] != 5 {
		t.Errorf("daysInStatus = %v, want 5 from created-at fallback", item["daysInStatus"])
	}
}

func TestGetTicketDraftRevision(t *testing.T) {
	fs := &fakeStore{
		getTicketFn: func(_ context.Context, id string) (store.Ticket, error) {
			return store.Ticket{ID: id}, nil
		},
	}
	svc := New(
		config.Config{JWTSecret: "test-secret", AccessTTL: time.Hour, RefreshTTL: 24 * time.Hour},
		fs,
		fakeSessions{},
		nil,
		&fakeSearch{},
		fakeRunner{},
		fakeDrafts{
			getDraftByHashFn: func(_, hash string) (drafts.Draft, error) {
				if hash != "abc1234" {
					return drafts.Draft{}, errors.New("unknown revision")
				}
				return drafts.Draft{Headline: "Ten Ways", Body: "Original opening."}, nil
			},
		},
		fakeExport{},
	)

	payload, err := svc.GetTicketDraftRevision(context.Background(), "tkt_1", "abc1234")
	if err != nil {
		t.Fatalf("GetTicketDraftRevision() error = %v", err)
	}
	draft, ok := payload["draft"].(drafts.Draft)
	if !ok || draft.Body != "Original opening." {
		t.Fatalf("unexpected revision payload: %+v", payload)
	}

	_, err = svc.GetTicketDraftRevision(context.Background(), "tkt_1", "deadbee")
	var domErr *DomainError
	if !errors.As(err, &domErr) || domErr.Status != 404 {
		t.Fatalf("expected 404 for unknown revision, got %v", err)
	}
}

func TestDeleteTicketRemovesFromIndex(t *testing.T) {
	fs := &fakeStore{
		getTicketFn: func(_ context.Context, id string) (store.Ticket, error) {
			return store.Ticket{ID: id}, nil
		},
	}
	svc, idx := newTestService(fs)

	if err := svc.DeleteTicket(context.Background(), managerSession(), "tkt_1"); err != nil {
		t.Fatalf("DeleteTicket() error = %v", err)
	}
	if len(idx.deletedTickets) != 1 || idx.deletedTickets[0] != "tkt_1" {
		t.Errorf("expected index delete for tkt_1, got %v", idx.deletedTickets)
	}
}
