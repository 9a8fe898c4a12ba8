//go:build integration

package approval

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graindesk/wallet_topup/internal/identity"
	"github.com/graindesk/wallet_topup/internal/ledger"
	"github.com/graindesk/wallet_topup/internal/logging"
	"github.com/graindesk/wallet_topup/internal/testutil"
	"github.com/graindesk/wallet_topup/internal/uow"
	"github.com/graindesk/wallet_topup/internal/walletrequest"
)

type pgFixture struct {
	svc      *Service
	users    *identity.PostgresRepository
	ledger   *ledger.PostgresLedger
	requests *walletrequest.PostgresRepository
	adminID  string
	agentID  string
}

func newPostgresFixture(t *testing.T, appBalance int64) *pgFixture {
	t.Helper()
	ctx := context.Background()
	pool := testutil.SetupPostgres(t)

	f := &pgFixture{
		users:    identity.NewPostgresRepository(pool),
		ledger:   ledger.NewPostgresLedger(pool),
		requests: walletrequest.NewPostgresRepository(pool),
		adminID:  uuid.NewString(),
		agentID:  uuid.NewString(),
	}
	require.NoError(t, f.ledger.EnsureWallet(ctx, ledger.Wallet{
		Name: ledger.AppWalletName, Type: ledger.TypeApp, System: true,
		Balance: decimal.NewFromInt(appBalance), Currency: "UGX",
	}))
	require.NoError(t, f.users.Create(ctx, identity.User{ID: f.adminID, Name: "Admin", Roles: []string{identity.RoleAdmin}}))
	require.NoError(t, f.users.Create(ctx, identity.User{ID: f.agentID, Name: "Agent", Roles: []string{identity.RoleFieldAgent}}))

	f.svc = NewService(uow.NewPostgres(pool, logging.Discard()), f.ledger, f.requests, &recorder{}, logging.Discard())
	return f
}

func TestPostgresApprovalMovesFundsOnce(t *testing.T) {
	f := newPostgresFixture(t, 1_000)
	ctx := context.Background()

	req, err := f.requests.Create(ctx, walletrequest.Request{UserID: f.agentID, Amount: decimal.NewFromInt(400)})
	require.NoError(t, err)

	input := ApprovalInput{RequestID: req.ID, BeneficiaryID: f.agentID, Amount: req.Amount, ApproverID: f.adminID}
	first := f.svc.ProcessWalletApproval(ctx, input)
	require.True(t, first.Success(), first.Message())
	assert.Equal(t, OutcomeApproved, first.Outcome)

	again := f.svc.ProcessWalletApproval(ctx, input)
	assert.Equal(t, OutcomeAlreadyApproved, again.Outcome)

	app, err := f.ledger.AppWallet(ctx)
	require.NoError(t, err)
	assert.True(t, app.Balance.Equal(decimal.NewFromInt(600)), app.Balance.String())

	agent, err := f.users.Get(ctx, f.agentID)
	require.NoError(t, err)
	assert.True(t, agent.WalletBalance.Equal(decimal.NewFromInt(400)), agent.WalletBalance.String())

	confirmed := f.svc.ConfirmWalletReceipt(ctx, req.ID, f.agentID)
	require.True(t, confirmed.Success(), confirmed.Message())
	assert.Equal(t, walletrequest.StatusSuccessful, confirmed.Request.Status)
	assert.NotNil(t, confirmed.Request.ConfirmedAt)
}

func TestPostgresRollbackOnInsufficientFunds(t *testing.T) {
	f := newPostgresFixture(t, 500)
	ctx := context.Background()

	req, err := f.requests.Create(ctx, walletrequest.Request{UserID: f.agentID, Amount: decimal.NewFromInt(501)})
	require.NoError(t, err)

	res := f.svc.ProcessWalletApproval(ctx, ApprovalInput{RequestID: req.ID, BeneficiaryID: f.agentID, Amount: req.Amount, ApproverID: f.adminID})
	assert.Equal(t, OutcomeInsufficientFunds, res.Outcome)
	assert.Equal(t, "Insufficient funds in app wallet. Available: 500, Required: 501", res.Message())

	stored, err := f.requests.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, walletrequest.StatusPending, stored.Status)
	assert.Empty(t, stored.ReviewedBy)
}

func TestPostgresConcurrentApprovalsNeverOverdraw(t *testing.T) {
	f := newPostgresFixture(t, 500)
	ctx := context.Background()

	const n = 10
	reqs := make([]walletrequest.Request, n)
	for i := range reqs {
		req, err := f.requests.Create(ctx, walletrequest.Request{UserID: f.agentID, Amount: decimal.NewFromInt(100)})
		require.NoError(t, err)
		reqs[i] = req
	}

	results := make([]Result, n)
	var wg sync.WaitGroup
	for i, req := range reqs {
		wg.Add(1)
		go func(i int, req walletrequest.Request) {
			defer wg.Done()
			results[i] = f.svc.ProcessWalletApproval(ctx, ApprovalInput{
				RequestID: req.ID, BeneficiaryID: f.agentID, Amount: req.Amount, ApproverID: f.adminID,
			})
		}(i, req)
	}
	wg.Wait()

	counts := map[Outcome]int{}
	for _, r := range results {
		counts[r.Outcome]++
	}
	assert.Equal(t, 5, counts[OutcomeApproved])
	assert.Equal(t, 5, counts[OutcomeInsufficientFunds])

	app, err := f.ledger.AppWallet(ctx)
	require.NoError(t, err)
	assert.True(t, app.Balance.IsZero(), app.Balance.String())

	agent, err := f.users.Get(ctx, f.agentID)
	require.NoError(t, err)
	assert.True(t, agent.WalletBalance.Equal(decimal.NewFromInt(500)), agent.WalletBalance.String())

	approved, err := f.requests.List(ctx, walletrequest.Filter{Status: walletrequest.StatusApproved})
	require.NoError(t, err)
	assert.Len(t, approved, 5)
}
