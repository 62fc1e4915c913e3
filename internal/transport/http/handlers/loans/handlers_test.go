package loanshandler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"rawatib/internal/domain/auth"
	"rawatib/internal/domain/loans"
	"rawatib/internal/platform/metrics"
	"rawatib/internal/transport/http/api"
	"rawatib/internal/transport/http/middleware"
)

type fakeStore struct {
	loans        map[string]loans.Loan
	installments map[string][]loans.Installment
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		loans:        map[string]loans.Loan{},
		installments: map[string][]loans.Installment{},
	}
}

func (f *fakeStore) CreateLoan(_ context.Context, _ string, loan loans.Loan, schedule []loans.ScheduledInstallment) (string, error) {
	loan.ID = fmt.Sprintf("loan-%d", len(f.loans)+1)
	f.loans[loan.ID] = loan
	rows := make([]loans.Installment, 0, len(schedule))
	for i, slot := range schedule {
		rows = append(rows, loans.Installment{
			ID:     fmt.Sprintf("inst-%d", i+1),
			LoanID: loan.ID,
			Year:   slot.Year,
			Month:  slot.Month,
			Amount: slot.Amount,
			Status: loans.InstallmentPending,
		})
	}
	f.installments[loan.ID] = rows
	return loan.ID, nil
}

func (f *fakeStore) GetLoan(_ context.Context, _ string, loanID string) (loans.Loan, error) {
	loan, ok := f.loans[loanID]
	if !ok {
		return loans.Loan{}, loans.ErrLoanNotFound
	}
	return loan, nil
}

func (f *fakeStore) ListLoans(_ context.Context, _ string) ([]loans.Loan, error) {
	result := make([]loans.Loan, 0, len(f.loans))
	for _, loan := range f.loans {
		result = append(result, loan)
	}
	return result, nil
}

func (f *fakeStore) ListInstallments(_ context.Context, _ string, loanID string) ([]loans.Installment, error) {
	return f.installments[loanID], nil
}

func (f *fakeStore) LockedPeriods(_ context.Context, _ string) (map[string]bool, error) {
	return map[string]bool{}, nil
}

func (f *fakeStore) ApplyReschedule(_ context.Context, _ string, _ loans.Loan, _ []loans.InstallmentMove) error {
	return nil
}

func (f *fakeStore) ApplySkip(_ context.Context, _ string, _ loans.Loan, _ string, _ loans.ScheduledInstallment) error {
	return nil
}

func (f *fakeStore) ApplySettle(_ context.Context, _ string, _ loans.Loan, _ loans.SettlePlan) error {
	return nil
}

func (f *fakeStore) CancelLoan(_ context.Context, _ string, _ loans.Loan) error {
	return nil
}

type staticPerms struct {
	allowed bool
}

func (p staticPerms) HasPermission(context.Context, string, string) (bool, error) {
	return p.allowed, nil
}

func newTestRouter(store *fakeStore, perms middleware.PermissionStore) chi.Router {
	h := NewHandler(loans.NewService(store), perms, nil, metrics.New())
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

func authedRequest(method, target string, body io.Reader) *http.Request {
	r := httptest.NewRequest(method, target, body)
	return r.WithContext(middleware.WithUser(r.Context(), auth.UserContext{
		UserID:   "user-1",
		TenantID: "t1",
		RoleID:   "role-1",
		RoleName: "hr_manager",
	}))
}

func seedLoan(t *testing.T, store *fakeStore) string {
	t.Helper()
	id, err := store.CreateLoan(context.Background(), "t1", loans.Loan{
		EmployeeID:        "emp-1",
		Principal:         2000,
		InstallmentAmount: 1000,
		RemainingBalance:  2000,
		StartYear:         2025,
		StartMonth:        9,
		TotalInstallments: 2,
		Status:            loans.StatusDraft,
	}, []loans.ScheduledInstallment{
		{Year: 2025, Month: 9, Amount: 1000},
		{Year: 2025, Month: 10, Amount: 1000},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return id
}

func TestInstallmentsWritesOneEnvelope(t *testing.T) {
	store := newFakeStore()
	loanID := seedLoan(t, store)
	router := newTestRouter(store, staticPerms{allowed: true})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodGet, "/loans/"+loanID+"/installments", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	decoder := json.NewDecoder(rec.Body)
	var envelope api.Envelope
	if err := decoder.Decode(&envelope); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !envelope.Success {
		t.Fatalf("expected success envelope, got %+v", envelope)
	}
	rows, ok := envelope.Data.([]any)
	if !ok || len(rows) != 2 {
		t.Fatalf("expected 2 installments, got %v", envelope.Data)
	}
	// The body must hold exactly one JSON document.
	if err := decoder.Decode(&api.Envelope{}); err != io.EOF {
		t.Fatalf("expected EOF after first envelope, got %v", err)
	}
}

func TestInstallmentsUnknownLoanIsNotFound(t *testing.T) {
	store := newFakeStore()
	router := newTestRouter(store, staticPerms{allowed: true})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodGet, "/loans/missing/installments", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rec.Code)
	}
	var envelope api.Envelope
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if envelope.Success || envelope.Error == nil || envelope.Error.Code != "not_found" {
		t.Fatalf("expected not_found error, got %+v", envelope)
	}
}

func TestCreateRejectsInvalidPayload(t *testing.T) {
	store := newFakeStore()
	router := newTestRouter(store, staticPerms{allowed: true})

	body := strings.NewReader(`{"principal":-5,"installmentAmount":0,"startYear":2025,"startMonth":13,"totalInstallments":0}`)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodPost, "/loans", body))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
	var envelope api.Envelope
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if envelope.Success || envelope.Error == nil || envelope.Error.Code != "validation_error" {
		t.Fatalf("expected validation_error, got %+v", envelope)
	}
	if len(store.loans) != 0 {
		t.Fatalf("expected no loan persisted, got %d", len(store.loans))
	}
}

func TestCreatePersistsLoan(t *testing.T) {
	store := newFakeStore()
	router := newTestRouter(store, staticPerms{allowed: true})

	body := strings.NewReader(`{"employeeId":"emp-1","principal":2000,"installmentAmount":1000,"startYear":2025,"startMonth":9,"totalInstallments":2}`)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodPost, "/loans", body))

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", rec.Code)
	}
	var envelope api.Envelope
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !envelope.Success {
		t.Fatalf("expected success envelope, got %+v", envelope)
	}
	if len(store.loans) != 1 {
		t.Fatalf("expected 1 loan persisted, got %d", len(store.loans))
	}
}

func TestRoutesRequirePermission(t *testing.T) {
	store := newFakeStore()
	loanID := seedLoan(t, store)
	router := newTestRouter(store, staticPerms{allowed: false})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodGet, "/loans/"+loanID+"/installments", nil))

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", rec.Code)
	}
}

func TestRoutesRequireAuthentication(t *testing.T) {
	store := newFakeStore()
	router := newTestRouter(store, staticPerms{allowed: true})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/loans", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rec.Code)
	}
}
