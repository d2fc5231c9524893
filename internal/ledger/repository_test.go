package ledger_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/MrJamesThe3rd/tally/internal/account"
	"github.com/MrJamesThe3rd/tally/internal/ledger"
)

func TestService_Create_StoreFailures(t *testing.T) {
	owner := uuid.New()
	acct := &account.Account{ID: uuid.New(), OwnerID: owner, Currency: "EUR", Balance: decimal.NewFromInt(100)}
	locked := map[uuid.UUID]*account.Account{acct.ID: acct}
	dbErr := errors.New("db error")

	type testCase struct {
		name      string
		setupMock func(repo *ledger.MockRepository, tx *ledger.MockTx)
	}

	tests := []testCase{
		{
			name: "BeginFails",
			setupMock: func(repo *ledger.MockRepository, _ *ledger.MockTx) {
				repo.EXPECT().Begin(gomock.Any()).Return(nil, dbErr)
			},
		},
		{
			name: "LockFails",
			setupMock: func(repo *ledger.MockRepository, tx *ledger.MockTx) {
				repo.EXPECT().Begin(gomock.Any()).Return(tx, nil)
				tx.EXPECT().LockAccounts(gomock.Any(), owner, []uuid.UUID{acct.ID}).Return(nil, dbErr)
				tx.EXPECT().Rollback().Return(nil)
			},
		},
		{
			name: "InsertFails",
			setupMock: func(repo *ledger.MockRepository, tx *ledger.MockTx) {
				repo.EXPECT().Begin(gomock.Any()).Return(tx, nil)
				tx.EXPECT().LockAccounts(gomock.Any(), owner, []uuid.UUID{acct.ID}).Return(locked, nil)
				tx.EXPECT().InsertTransaction(gomock.Any(), gomock.Any()).Return(dbErr)
				tx.EXPECT().Rollback().Return(nil)
			},
		},
		{
			name: "SetBalanceFails",
			setupMock: func(repo *ledger.MockRepository, tx *ledger.MockTx) {
				repo.EXPECT().Begin(gomock.Any()).Return(tx, nil)
				tx.EXPECT().LockAccounts(gomock.Any(), owner, []uuid.UUID{acct.ID}).Return(locked, nil)
				tx.EXPECT().InsertTransaction(gomock.Any(), gomock.Any()).Return(nil)
				tx.EXPECT().SetBalance(gomock.Any(), acct.ID, gomock.Any()).Return(nil, dbErr)
				tx.EXPECT().Rollback().Return(nil)
			},
		},
		{
			name: "AppendEventFails",
			setupMock: func(repo *ledger.MockRepository, tx *ledger.MockTx) {
				repo.EXPECT().Begin(gomock.Any()).Return(tx, nil)
				tx.EXPECT().LockAccounts(gomock.Any(), owner, []uuid.UUID{acct.ID}).Return(locked, nil)
				tx.EXPECT().InsertTransaction(gomock.Any(), gomock.Any()).Return(nil)
				tx.EXPECT().SetBalance(gomock.Any(), acct.ID, gomock.Any()).Return(acct, nil)
				tx.EXPECT().AppendEvent(gomock.Any(), gomock.Any()).Return(dbErr)
				tx.EXPECT().Rollback().Return(nil)
			},
		},
		{
			name: "CommitFails",
			setupMock: func(repo *ledger.MockRepository, tx *ledger.MockTx) {
				repo.EXPECT().Begin(gomock.Any()).Return(tx, nil)
				tx.EXPECT().LockAccounts(gomock.Any(), owner, []uuid.UUID{acct.ID}).Return(locked, nil)
				tx.EXPECT().InsertTransaction(gomock.Any(), gomock.Any()).Return(nil)
				tx.EXPECT().SetBalance(gomock.Any(), acct.ID, gomock.Any()).Return(acct, nil)
				tx.EXPECT().AppendEvent(gomock.Any(), gomock.Any()).Return(nil)
				tx.EXPECT().Commit().Return(dbErr)
				tx.EXPECT().Rollback().Return(nil)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			repo := ledger.NewMockRepository(ctrl)
			tx := ledger.NewMockTx(ctrl)
			tt.setupMock(repo, tx)

			svc := ledger.NewService(repo, ledger.WithClock(func() time.Time { return fixedNow }))
			got, err := svc.Create(context.Background(), owner, expense(acct.ID, "40.00"))

			require.Error(t, err)
			assert.Nil(t, got)
			assert.ErrorIs(t, err, ledger.ErrStore)
			assert.ErrorIs(t, err, dbErr)
		})
	}
}

func TestService_Create_ValidationSkipsWrites(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	owner := uuid.New()
	acct := &account.Account{ID: uuid.New(), OwnerID: owner, Currency: "EUR", Balance: decimal.NewFromInt(10)}

	repo := ledger.NewMockRepository(ctrl)
	tx := ledger.NewMockTx(ctrl)

	repo.EXPECT().Begin(gomock.Any()).Return(tx, nil)
	tx.EXPECT().LockAccounts(gomock.Any(), owner, []uuid.UUID{acct.ID}).
		Return(map[uuid.UUID]*account.Account{acct.ID: acct}, nil)
	tx.EXPECT().Rollback().Return(nil)

	svc := ledger.NewService(repo, ledger.WithClock(func() time.Time { return fixedNow }))
	_, err := svc.Create(context.Background(), owner, expense(acct.ID, "40.00"))

	require.ErrorIs(t, err, ledger.ErrInsufficientBalance)
	assert.NotErrorIs(t, err, ledger.ErrStore)
}

func TestService_Delete_WritesBalancesInIDOrder(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	owner := uuid.New()
	from := &account.Account{ID: uuid.New(), OwnerID: owner, Currency: "EUR", Balance: decimal.NewFromInt(10)}
	to := &account.Account{ID: uuid.New(), OwnerID: owner, Currency: "EUR", Balance: decimal.NewFromInt(50)}

	tr := &ledger.Transaction{
		ID:          uuid.New(),
		OwnerID:     owner,
		Type:        ledger.TypeTransfer,
		Amount:      decimal.NewFromInt(50),
		AccountID:   from.ID,
		ToAccountID: &to.ID,
		Date:        fixedNow,
	}

	repo := ledger.NewMockRepository(ctrl)
	tx := ledger.NewMockTx(ctrl)

	gomock.InOrder(
		repo.EXPECT().Begin(gomock.Any()).Return(tx, nil),
		tx.EXPECT().GetTransaction(gomock.Any(), owner, tr.ID).Return(tr, nil),
		tx.EXPECT().LockAccounts(gomock.Any(), owner, gomock.Any()).
			Return(map[uuid.UUID]*account.Account{from.ID: from, to.ID: to}, nil),
		tx.EXPECT().DeleteTransaction(gomock.Any(), owner, tr.ID).Return(nil),
	)

	var written []uuid.UUID

	tx.EXPECT().SetBalance(gomock.Any(), gomock.Any(), gomock.Any()).Times(2).
		DoAndReturn(func(_ context.Context, id uuid.UUID, bal decimal.Decimal) (*account.Account, error) {
			written = append(written, id)

			switch id {
			case from.ID:
				assert.Equal(t, "60.00", bal.StringFixed(2))
			case to.ID:
				assert.Equal(t, "0.00", bal.StringFixed(2))
			}

			return &account.Account{ID: id, Balance: bal}, nil
		})
	tx.EXPECT().AppendEvent(gomock.Any(), gomock.Any()).Return(nil)
	tx.EXPECT().Commit().Return(nil)
	tx.EXPECT().Rollback().Return(nil)

	svc := ledger.NewService(repo)
	require.NoError(t, svc.Delete(context.Background(), owner, tr.ID))

	require.Len(t, written, 2)
	assert.Negative(t, compareIDs(written[0], written[1]))
}

func TestService_List_StoreFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	owner := uuid.New()
	repo := ledger.NewMockRepository(ctrl)
	repo.EXPECT().ListTransactions(gomock.Any(), owner, ledger.ListFilter{}).Return(nil, errors.New("list error"))

	svc := ledger.NewService(repo)
	got, err := svc.List(context.Background(), owner, ledger.ListFilter{})

	assert.ErrorIs(t, err, ledger.ErrStore)
	assert.Nil(t, got)
}

func compareIDs(a, b uuid.UUID) int {
	for i := range a {
		if a[i] != b[i] {
			return int(a[i]) - int(b[i])
		}
	}

	return 0
}
