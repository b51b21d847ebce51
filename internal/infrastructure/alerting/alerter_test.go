package alerting

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beampay-service/beampay_service/internal/domain/entities"
	"github.com/beampay-service/beampay_service/pkg/logger"
)

type fakeSink struct {
	name     string
	err      error
	subjects []string
	bodies   []string
}

func (s *fakeSink) Name() string { return s.name }

func (s *fakeSink) Send(ctx context.Context, subject, body string) error {
	s.subjects = append(s.subjects, subject)
	s.bodies = append(s.bodies, body)
	return s.err
}

func TestAlerterFansOutToAllSinks(t *testing.T) {
	first := &fakeSink{name: "first"}
	second := &fakeSink{name: "second"}
	alerter := New(logger.NewNop(), first, second)

	alerter.Sendf(context.Background(), "Node down", "no response for %d passes", 3)

	require.Len(t, first.subjects, 1)
	require.Len(t, second.subjects, 1)
	assert.Equal(t, "Node down", first.subjects[0])
	assert.Equal(t, "no response for 3 passes", first.bodies[0])
}

func TestAlerterSinkFailureDoesNotStopOthers(t *testing.T) {
	broken := &fakeSink{name: "broken", err: errors.New("chat not found")}
	working := &fakeSink{name: "working"}
	alerter := New(logger.NewNop(), broken, working)

	alerter.WebhookDead(context.Background(), "https://consumer.example/hook", "deposit_confirmed", "tx-9")

	require.Len(t, working.subjects, 1)
	assert.Equal(t, "Webhook dead-lettered", working.subjects[0])
	assert.Contains(t, working.bodies[0], "https://consumer.example/hook")
	assert.Contains(t, working.bodies[0], "deposit_confirmed")
}

func TestAlerterWithdrawalFlaggedListsViolations(t *testing.T) {
	sink := &fakeSink{name: "sink"}
	alerter := New(logger.NewNop(), sink)

	withdrawal := &entities.PendingWithdrawal{
		ID:      "wd-1",
		Sender:  "addr-a",
		AssetID: 7,
		Value:   5_000_000,
		Fee:     100_000,
	}
	violations := []entities.ConsistencyViolation{
		{Address: "addr-a", AssetID: 7, Locked: 4_000_000, Expected: 5_000_000},
	}

	alerter.WithdrawalFlagged(context.Background(), withdrawal, violations)

	require.Len(t, sink.bodies, 1)
	assert.Contains(t, sink.bodies[0], "wd-1")
	assert.Contains(t, sink.bodies[0], "locked 4000000, expected 5000000")
}

func TestAlerterBalanceMismatchListsDiscrepancies(t *testing.T) {
	sink := &fakeSink{name: "sink"}
	alerter := New(logger.NewNop(), sink)

	report := &entities.AuditReport{
		AssetsChecked: 2,
		Discrepancies: []entities.BalanceDiscrepancy{
			{AssetID: 0, Field: entities.BalanceFieldAvailable, NodeAmount: 100, LedgerAmount: 90},
		},
	}

	alerter.BalanceMismatch(context.Background(), report)

	require.Len(t, sink.bodies, 1)
	assert.Contains(t, sink.bodies[0], "node 100, ledger 90 (diff 10)")
}

func TestAlerterWithoutSinksOnlyLogs(t *testing.T) {
	alerter := New(logger.NewNop())

	assert.NotPanics(t, func() {
		alerter.WithdrawalSendFailed(context.Background(), &entities.PendingWithdrawal{ID: "wd-2"}, errors.New("no utxo"))
	})
}
