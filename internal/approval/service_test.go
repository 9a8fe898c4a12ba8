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
	"github.com/graindesk/wallet_topup/internal/notification"
	"github.com/graindesk/wallet_topup/internal/uow"
	"github.com/graindesk/wallet_topup/internal/walletrequest"
)

type recorder struct {
	mu   sync.Mutex
	sent []notification.Message
}

func (r *recorder) Send(_ context.Context, m notification.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, m)
	return nil
}

func (r *recorder) kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.sent))
	for _, m := range r.sent {
		out = append(out, m.Kind)
	}
	return out
}

type fixture struct {
	svc      *Service
	users    *identity.MemoryRepository
	ledger   ledger.Ledger
	requests *walletrequest.MemoryRepository
	notes    *recorder
	adminID  string
	agentID  string
}

func newFixture(t *testing.T, appBalance int64) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{
		users:    identity.NewMemoryRepository(),
		requests: walletrequest.NewMemoryRepository(),
		notes:    &recorder{},
		adminID:  uuid.NewString(),
		agentID:  uuid.NewString(),
	}
	f.ledger = ledger.NewInMemory(f.users)
	require.NoError(t, f.ledger.EnsureWallet(ctx, ledger.Wallet{Name: ledger.AppWalletName, Type: ledger.TypeApp, System: true, Currency: "UGX"}))
	ledger.SeedBalance(f.ledger, ledger.AppWalletName, decimal.NewFromInt(appBalance))
	require.NoError(t, f.users.Create(ctx, identity.User{ID: f.adminID, Name: "Admin", Roles: []string{identity.RoleAdmin}}))
	require.NoError(t, f.users.Create(ctx, identity.User{ID: f.agentID, Name: "Agent", Roles: []string{identity.RoleFieldAgent}}))

	f.svc = NewService(uow.NewMemory(), f.ledger, f.requests, f.notes, logging.Discard())
	return f
}

func (f *fixture) pending(t *testing.T, userID string, amount int64) walletrequest.Request {
	t.Helper()
	req, err := f.requests.Create(context.Background(), walletrequest.Request{UserID: userID, Amount: decimal.NewFromInt(amount)})
	require.NoError(t, err)
	return req
}

func (f *fixture) approve(req walletrequest.Request, approver string) Result {
	return f.svc.ProcessWalletApproval(context.Background(), ApprovalInput{
		RequestID:     req.ID,
		BeneficiaryID: req.UserID,
		Amount:        req.Amount,
		ApproverID:    approver,
	})
}

func (f *fixture) appBalance(t *testing.T) decimal.Decimal {
	t.Helper()
	w, err := f.ledger.AppWallet(context.Background())
	require.NoError(t, err)
	return w.Balance
}

func (f *fixture) userBalance(t *testing.T, id string) decimal.Decimal {
	t.Helper()
	u, err := f.users.Get(context.Background(), id)
	require.NoError(t, err)
	return u.WalletBalance
}

func (f *fixture) status(t *testing.T, id string) walletrequest.Status {
	t.Helper()
	req, err := f.requests.Get(context.Background(), id)
	require.NoError(t, err)
	return req.Status
}

func TestApprovalTransfersFunds(t *testing.T) {
	f := newFixture(t, 1_000)
	req := f.pending(t, f.agentID, 250)
	payment := &walletrequest.Payment{Method: walletrequest.MethodBankTransfer, BankName: "Stanbic", BranchName: "Kampala Road"}

	res := f.svc.ProcessWalletApproval(context.Background(), ApprovalInput{
		RequestID:     req.ID,
		BeneficiaryID: f.agentID,
		Amount:        decimal.NewFromInt(250),
		ApproverID:    f.adminID,
		Payment:       payment,
	})

	require.True(t, res.Success(), res.Message())
	assert.Equal(t, OutcomeApproved, res.Outcome)
	assert.Equal(t, req.ID, res.RequestID)
	assert.Equal(t, walletrequest.StatusApproved, res.Request.Status)
	assert.Equal(t, f.adminID, res.Request.ReviewedBy)
	assert.NotNil(t, res.Request.ReviewedAt)
	require.NotNil(t, res.Request.PaymentMethod)
	assert.Equal(t, walletrequest.MethodBankTransfer, *res.Request.PaymentMethod)
	assert.Equal(t, "Stanbic", res.Request.BankName)

	assert.True(t, f.appBalance(t).Equal(decimal.NewFromInt(750)))
	assert.True(t, f.userBalance(t, f.agentID).Equal(decimal.NewFromInt(250)))
	assert.Equal(t, []string{notification.KindRequestApproved}, f.notes.kinds())
}

func TestApprovalIsIdempotent(t *testing.T) {
	f := newFixture(t, 1_000)
	req := f.pending(t, f.agentID, 100)

	first := f.approve(req, f.adminID)
	require.Equal(t, OutcomeApproved, first.Outcome)

	second := f.approve(req, f.adminID)
	assert.True(t, second.Success())
	assert.Equal(t, OutcomeAlreadyApproved, second.Outcome)
	assert.Empty(t, second.Message())

	assert.True(t, f.appBalance(t).Equal(decimal.NewFromInt(900)))
	assert.True(t, f.userBalance(t, f.agentID).Equal(decimal.NewFromInt(100)))
	assert.Len(t, f.notes.kinds(), 1)
}

func TestApprovalOfApprovedRequestWithOtherParametersFails(t *testing.T) {
	f := newFixture(t, 1_000)
	req := f.pending(t, f.agentID, 100)
	require.True(t, f.approve(req, f.adminID).Success())

	res := f.approve(req, uuid.NewString())
	assert.False(t, res.Success())
	assert.Equal(t, OutcomeInvalidState, res.Outcome)
	assert.ErrorIs(t, res.Err, ErrInvalidTransition)
	assert.Equal(t, "Cannot approve request with status approved", res.Message())
	assert.True(t, f.appBalance(t).Equal(decimal.NewFromInt(900)))
}

func TestApprovalBoundary(t *testing.T) {
	t.Run("exact balance drains the app wallet", func(t *testing.T) {
		f := newFixture(t, 500)
		res := f.approve(f.pending(t, f.agentID, 500), f.adminID)
		require.True(t, res.Success(), res.Message())
		assert.True(t, f.appBalance(t).IsZero())
		assert.True(t, f.userBalance(t, f.agentID).Equal(decimal.NewFromInt(500)))
	})

	t.Run("one unit over leaves everything untouched", func(t *testing.T) {
		f := newFixture(t, 500)
		req := f.pending(t, f.agentID, 501)
		res := f.approve(req, f.adminID)

		assert.Equal(t, OutcomeInsufficientFunds, res.Outcome)
		assert.ErrorIs(t, res.Err, ErrInsufficientFunds)
		assert.Equal(t, "Insufficient funds in app wallet. Available: 500, Required: 501", res.Message())
		assert.True(t, f.appBalance(t).Equal(decimal.NewFromInt(500)))
		assert.True(t, f.userBalance(t, f.agentID).IsZero())
		assert.Equal(t, walletrequest.StatusPending, f.status(t, req.ID))
		assert.Empty(t, f.notes.kinds())
	})
}

func TestApprovalRejectsMismatchedTransfer(t *testing.T) {
	f := newFixture(t, 1_000)
	req := f.pending(t, f.agentID, 100)

	res := f.svc.ProcessWalletApproval(context.Background(), ApprovalInput{
		RequestID:     req.ID,
		BeneficiaryID: f.agentID,
		Amount:        decimal.NewFromInt(900),
		ApproverID:    f.adminID,
	})
	assert.Equal(t, OutcomeInvalidState, res.Outcome)
	assert.True(t, f.appBalance(t).Equal(decimal.NewFromInt(1_000)))
	assert.Equal(t, walletrequest.StatusPending, f.status(t, req.ID))
}

func TestApprovalUnknownRequest(t *testing.T) {
	f := newFixture(t, 1_000)
	res := f.svc.ProcessWalletApproval(context.Background(), ApprovalInput{RequestID: uuid.NewString(), Amount: decimal.NewFromInt(1)})
	assert.Equal(t, OutcomeNotFound, res.Outcome)
	assert.ErrorIs(t, res.Err, ErrNotFound)
	assert.Equal(t, "Wallet request not found", res.Message())
}

func TestApprovalRollsBackWhenCreditFails(t *testing.T) {
	f := newFixture(t, 1_000)
	ghost := uuid.NewString()
	req := f.pending(t, ghost, 100)

	res := f.approve(req, f.adminID)

	assert.False(t, res.Success())
	assert.ErrorIs(t, res.Err, identity.ErrUserNotFound)
	assert.True(t, f.appBalance(t).Equal(decimal.NewFromInt(1_000)), "debit must be rolled back")
	assert.Equal(t, walletrequest.StatusPending, f.status(t, req.ID))
}

func TestConcurrentApprovalsNeverOverdraw(t *testing.T) {
	f := newFixture(t, 500)
	reqs := make([]walletrequest.Request, 10)
	for i := range reqs {
		reqs[i] = f.pending(t, f.agentID, 100)
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		outcomes = map[Outcome]int{}
	)
	for _, req := range reqs {
		wg.Add(1)
		go func(req walletrequest.Request) {
			defer wg.Done()
			res := f.approve(req, f.adminID)
			mu.Lock()
			outcomes[res.Outcome]++
			mu.Unlock()
		}(req)
	}
	wg.Wait()

	assert.Equal(t, 5, outcomes[OutcomeApproved])
	assert.Equal(t, 5, outcomes[OutcomeInsufficientFunds])
	assert.True(t, f.appBalance(t).IsZero())
	assert.True(t, f.userBalance(t, f.agentID).Equal(decimal.NewFromInt(500)))
}

func TestDeclinePendingRequest(t *testing.T) {
	f := newFixture(t, 1_000)
	req := f.pending(t, f.agentID, 100)

	res := f.svc.DeclineWalletRequest(context.Background(), req.ID, f.adminID, "Duplicate request")

	require.True(t, res.Success(), res.Message())
	assert.Equal(t, OutcomeDeclined, res.Outcome)
	assert.Equal(t, walletrequest.StatusDeclined, res.Request.Status)
	assert.Equal(t, f.adminID, res.Request.ReviewedBy)
	assert.NotNil(t, res.Request.ReviewedAt)
	assert.Equal(t, "Duplicate request", res.Request.RejectionReason)
	assert.True(t, f.appBalance(t).Equal(decimal.NewFromInt(1_000)))
	assert.Equal(t, []string{notification.KindRequestDeclined}, f.notes.kinds())

	again := f.svc.DeclineWalletRequest(context.Background(), req.ID, f.adminID, "Duplicate request")
	assert.Equal(t, OutcomeInvalidState, again.Outcome)
	assert.Equal(t, "Cannot decline request with status declined", again.Message())

	approve := f.approve(req, f.adminID)
	assert.Equal(t, OutcomeInvalidState, approve.Outcome)
	assert.Equal(t, "Cannot approve request with status declined", approve.Message())
}

func TestDeclineApprovedRequestFails(t *testing.T) {
	f := newFixture(t, 1_000)
	req := f.pending(t, f.agentID, 100)
	require.True(t, f.approve(req, f.adminID).Success())

	res := f.svc.DeclineWalletRequest(context.Background(), req.ID, f.adminID, "changed mind")
	assert.Equal(t, OutcomeInvalidState, res.Outcome)
	assert.Equal(t, walletrequest.StatusApproved, f.status(t, req.ID))
}

func TestConfirmReceipt(t *testing.T) {
	f := newFixture(t, 1_000)
	req := f.pending(t, f.agentID, 100)
	ctx := context.Background()

	early := f.svc.ConfirmWalletReceipt(ctx, req.ID, f.agentID)
	assert.Equal(t, OutcomeInvalidState, early.Outcome)
	assert.Equal(t, "Cannot confirm receipt for request with status pending", early.Message())

	require.True(t, f.approve(req, f.adminID).Success())

	stranger := f.svc.ConfirmWalletReceipt(ctx, req.ID, f.adminID)
	assert.Equal(t, OutcomeUnauthorized, stranger.Outcome)
	assert.ErrorIs(t, stranger.Err, ErrUnauthorized)
	assert.Equal(t, walletrequest.StatusApproved, f.status(t, req.ID))

	res := f.svc.ConfirmWalletReceipt(ctx, req.ID, f.agentID)
	require.True(t, res.Success(), res.Message())
	assert.Equal(t, walletrequest.StatusSuccessful, res.Request.Status)
	assert.NotNil(t, res.Request.ConfirmedAt)

	twice := f.svc.ConfirmWalletReceipt(ctx, req.ID, f.agentID)
	assert.Equal(t, OutcomeInvalidState, twice.Outcome)

	reapprove := f.approve(req, f.adminID)
	assert.Equal(t, OutcomeInvalidState, reapprove.Outcome)
	assert.True(t, f.appBalance(t).Equal(decimal.NewFromInt(900)))
}

func TestConfirmUnknownRequest(t *testing.T) {
	f := newFixture(t, 0)
	res := f.svc.ConfirmWalletReceipt(context.Background(), "nope", f.agentID)
	assert.Equal(t, OutcomeNotFound, res.Outcome)
}

func TestCheckFundsReadsWithoutMutating(t *testing.T) {
	f := newFixture(t, 500)
	ctx := context.Background()

	res, ok := f.svc.CheckFunds(ctx, "req-1", decimal.NewFromInt(500))
	assert.True(t, ok)
	assert.Equal(t, "req-1", res.RequestID)

	res, ok = f.svc.CheckFunds(ctx, "req-1", decimal.NewFromInt(501))
	assert.False(t, ok)
	assert.Equal(t, OutcomeInsufficientFunds, res.Outcome)
	assert.ErrorIs(t, res.Err, ErrInsufficientFunds)
	assert.True(t, f.appBalance(t).Equal(decimal.NewFromInt(500)))
}
