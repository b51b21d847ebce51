package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beampay-service/beampay_service/internal/domain/entities"
	"github.com/beampay-service/beampay_service/internal/infrastructure/config"
	"github.com/beampay-service/beampay_service/pkg/auth"
)

type fakeAuditor struct {
	report *entities.AuditReport
	err    error
	runs   int
}

func (f *fakeAuditor) Run(_ context.Context) (*entities.AuditReport, error) {
	f.runs++
	if f.err != nil {
		return nil, f.err
	}
	return f.report, nil
}

type fakeQueueAdmin struct {
	byID       map[string]*entities.PendingWithdrawal
	listed     map[entities.WithdrawalStatus][]*entities.PendingWithdrawal
	requeueOK  bool
	requeueErr error
	requeued   []string
}

func (f *fakeQueueAdmin) GetByID(_ context.Context, id string) (*entities.PendingWithdrawal, error) {
	if w, ok := f.byID[id]; ok {
		clone := *w
		return &clone, nil
	}
	return nil, entities.ErrNotFound
}

func (f *fakeQueueAdmin) ListByStatus(_ context.Context, status entities.WithdrawalStatus, _, _ int) ([]*entities.PendingWithdrawal, error) {
	return f.listed[status], nil
}

func (f *fakeQueueAdmin) Requeue(_ context.Context, id string) (bool, error) {
	if f.requeueErr != nil {
		return false, f.requeueErr
	}
	if f.requeueOK {
		f.requeued = append(f.requeued, id)
	}
	return f.requeueOK, nil
}

type fakeDeadLetters struct {
	rows []*entities.FailedWebhook
}

func (f *fakeDeadLetters) ListFailed(_ context.Context) ([]*entities.FailedWebhook, error) {
	return f.rows, nil
}

func adminConfig() config.AdminConfig {
	return config.AdminConfig{
		Username:  "admin",
		Password:  "hunter2",
		JWTSecret: "test-secret",
		JWTTTL:    60,
	}
}

func newAdminFixture(cfg config.AdminConfig) (*AdminService, *fakeAuditor, *fakeQueueAdmin, *fakeDeadLetters) {
	auditor := &fakeAuditor{report: &entities.AuditReport{CheckedAt: time.Now(), AssetsChecked: 1}}
	queue := &fakeQueueAdmin{
		byID:      map[string]*entities.PendingWithdrawal{},
		listed:    map[entities.WithdrawalStatus][]*entities.PendingWithdrawal{},
		requeueOK: true,
	}
	deadLetters := &fakeDeadLetters{}
	service := NewAdminService(cfg, auditor, queue, deadLetters, testLogger())
	return service, auditor, queue, deadLetters
}

func TestAdminLoginIssuesToken(t *testing.T) {
	service, _, _, _ := newAdminFixture(adminConfig())

	session, err := service.Login(context.Background(), "admin", "hunter2", "")
	require.NoError(t, err)
	require.NotEmpty(t, session.Token)
	assert.WithinDuration(t, time.Now().Add(time.Minute), session.ExpiresAt, 5*time.Second)

	claims, err := auth.ValidateToken(session.Token, "test-secret")
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Username)
	assert.Equal(t, "admin", claims.Role)
}

func TestAdminLoginRejectsWrongCredentials(t *testing.T) {
	service, _, _, _ := newAdminFixture(adminConfig())

	_, err := service.Login(context.Background(), "admin", "wrong", "")
	assert.ErrorIs(t, err, entities.ErrInvalidCredentials)

	_, err = service.Login(context.Background(), "root", "hunter2", "")
	assert.ErrorIs(t, err, entities.ErrInvalidCredentials)
}

func TestAdminLoginDisabledWithoutPassword(t *testing.T) {
	cfg := adminConfig()
	cfg.Password = ""
	service, _, _, _ := newAdminFixture(cfg)

	_, err := service.Login(context.Background(), "admin", "", "")
	assert.ErrorIs(t, err, entities.ErrInvalidCredentials)
}

func TestAdminLoginEnforcesTotp(t *testing.T) {
	cfg := adminConfig()
	cfg.TOTPSecret = "JBSWY3DPEHPK3PXP"
	service, _, _, _ := newAdminFixture(cfg)

	_, err := service.Login(context.Background(), "admin", "hunter2", "")
	assert.ErrorIs(t, err, entities.ErrInvalidCredentials)

	_, err = service.Login(context.Background(), "admin", "hunter2", "000000")
	assert.ErrorIs(t, err, entities.ErrInvalidCredentials)

	code, err := totp.GenerateCode(cfg.TOTPSecret, time.Now())
	require.NoError(t, err)
	session, err := service.Login(context.Background(), "admin", "hunter2", code)
	require.NoError(t, err)
	assert.NotEmpty(t, session.Token)
}

func TestAdminBalancesRunsAudit(t *testing.T) {
	service, auditor, _, _ := newAdminFixture(adminConfig())
	auditor.report.Discrepancies = []entities.BalanceDiscrepancy{
		{AssetID: 0, Field: entities.BalanceFieldLocked, NodeAmount: 10, LedgerAmount: 12},
	}

	report, err := service.Balances(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, auditor.runs)
	assert.False(t, report.Clean())
}

func TestAdminWithdrawalsDefaultsToParked(t *testing.T) {
	service, _, queue, _ := newAdminFixture(adminConfig())
	queue.listed[entities.WithdrawalStatusAdminCheck] = []*entities.PendingWithdrawal{
		{ID: "w-1", Status: entities.WithdrawalStatusAdminCheck},
	}
	queue.listed[entities.WithdrawalStatusSent] = []*entities.PendingWithdrawal{
		{ID: "w-2", Status: entities.WithdrawalStatusSent},
	}

	parked, err := service.Withdrawals(context.Background(), "", 1, 50)
	require.NoError(t, err)
	require.Len(t, parked, 1)
	assert.Equal(t, "w-1", parked[0].ID)

	sent, err := service.Withdrawals(context.Background(), "sent", 1, 50)
	require.NoError(t, err)
	require.Len(t, sent, 1)
	assert.Equal(t, "w-2", sent[0].ID)

	_, err = service.Withdrawals(context.Background(), "exploded", 1, 50)
	var validationErr *entities.ValidationError
	assert.ErrorAs(t, err, &validationErr)
}

func TestAdminRequeueWithdrawal(t *testing.T) {
	service, _, queue, _ := newAdminFixture(adminConfig())
	queue.byID["w-1"] = &entities.PendingWithdrawal{ID: "w-1", Status: entities.WithdrawalStatusAdminCheck}

	withdrawal, err := service.RequeueWithdrawal(context.Background(), "w-1")
	require.NoError(t, err)
	assert.Equal(t, entities.WithdrawalStatusPending, withdrawal.Status)
	assert.Equal(t, []string{"w-1"}, queue.requeued)
}

func TestAdminRequeueRejectsActiveWithdrawal(t *testing.T) {
	service, _, queue, _ := newAdminFixture(adminConfig())
	queue.byID["w-2"] = &entities.PendingWithdrawal{ID: "w-2", Status: entities.WithdrawalStatusSent}

	_, err := service.RequeueWithdrawal(context.Background(), "w-2")
	var validationErr *entities.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Empty(t, queue.requeued)

	_, err = service.RequeueWithdrawal(context.Background(), "missing")
	assert.ErrorIs(t, err, entities.ErrNotFound)
}

func TestAdminRequeueLostRace(t *testing.T) {
	service, _, queue, _ := newAdminFixture(adminConfig())
	queue.byID["w-3"] = &entities.PendingWithdrawal{ID: "w-3", Status: entities.WithdrawalStatusAdminCheck}
	queue.requeueOK = false

	_, err := service.RequeueWithdrawal(context.Background(), "w-3")
	var validationErr *entities.ValidationError
	assert.ErrorAs(t, err, &validationErr)
}

func TestAdminFailedWebhooks(t *testing.T) {
	service, _, _, deadLetters := newAdminFixture(adminConfig())
	deadLetters.rows = []*entities.FailedWebhook{
		{URL: "https://shop.example/hook", EventType: entities.EventDepositConfirmed, Attempts: 5},
	}

	rows, err := service.FailedWebhooks(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, entities.EventKind("deposit_confirmed"), rows[0].EventType)
}

func TestAdminRequeueQueueError(t *testing.T) {
	service, _, queue, _ := newAdminFixture(adminConfig())
	queue.byID["w-4"] = &entities.PendingWithdrawal{ID: "w-4", Status: entities.WithdrawalStatusAdminCheck}
	queue.requeueErr = errors.New("mongo down")

	_, err := service.RequeueWithdrawal(context.Background(), "w-4")
	assert.ErrorContains(t, err, "requeue withdrawal")
}
