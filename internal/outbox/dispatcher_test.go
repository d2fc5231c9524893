package outbox_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/MrJamesThe3rd/tally/internal/outbox"
)

func TestDispatcher_DispatchOnce(t *testing.T) {
	first := &outbox.Event{ID: uuid.New(), Type: outbox.EventTransactionCreated}
	second := &outbox.Event{ID: uuid.New(), Type: outbox.EventTransactionDeleted, Attempts: 2}

	type testCase struct {
		name          string
		setupMock     func(r *outbox.MockRepository, p *outbox.MockPublisher)
		wantPublished int
		wantErr       bool
	}

	tests := []testCase{
		{
			name: "PublishesBatch",
			setupMock: func(r *outbox.MockRepository, p *outbox.MockPublisher) {
				r.EXPECT().Claim(gomock.Any(), 10, time.Minute).Return([]*outbox.Event{first, second}, nil)
				p.EXPECT().Publish(gomock.Any(), first).Return(nil)
				r.EXPECT().MarkPublished(gomock.Any(), first.ID).Return(nil)
				p.EXPECT().Publish(gomock.Any(), second).Return(nil)
				r.EXPECT().MarkPublished(gomock.Any(), second.ID).Return(nil)
			},
			wantPublished: 2,
		},
		{
			name: "PublishErrorMarksFailed",
			setupMock: func(r *outbox.MockRepository, p *outbox.MockPublisher) {
				r.EXPECT().Claim(gomock.Any(), 10, time.Minute).Return([]*outbox.Event{first, second}, nil)
				p.EXPECT().Publish(gomock.Any(), first).Return(errors.New("broker down"))
				r.EXPECT().MarkFailed(gomock.Any(), first.ID, "broker down", 3).Return(nil)
				p.EXPECT().Publish(gomock.Any(), second).Return(nil)
				r.EXPECT().MarkPublished(gomock.Any(), second.ID).Return(nil)
			},
			wantPublished: 1,
		},
		{
			name: "ClaimError",
			setupMock: func(r *outbox.MockRepository, _ *outbox.MockPublisher) {
				r.EXPECT().Claim(gomock.Any(), 10, time.Minute).Return(nil, errors.New("db error"))
			},
			wantErr: true,
		},
		{
			name: "MarkPublishedError",
			setupMock: func(r *outbox.MockRepository, p *outbox.MockPublisher) {
				r.EXPECT().Claim(gomock.Any(), 10, time.Minute).Return([]*outbox.Event{first, second}, nil)
				p.EXPECT().Publish(gomock.Any(), first).Return(nil)
				r.EXPECT().MarkPublished(gomock.Any(), first.ID).Return(errors.New("db error"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			repo := outbox.NewMockRepository(ctrl)
			pub := outbox.NewMockPublisher(ctrl)
			tt.setupMock(repo, pub)

			d := outbox.NewDispatcher(repo, pub, outbox.DispatcherConfig{
				BatchSize:   10,
				MaxAttempts: 3,
				Lease:       time.Minute,
			})

			got, err := d.DispatchOnce(context.Background())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantPublished, got)
		})
	}
}

func TestNewEvent(t *testing.T) {
	owner := uuid.New()
	agg := uuid.New()

	e, err := outbox.NewEvent(owner, outbox.EventAccountReconciled, agg, map[string]string{"drift": "1.00"})
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, e.ID)
	assert.Equal(t, owner, e.OwnerID)
	assert.Equal(t, agg, e.AggregateID)
	assert.Equal(t, outbox.StatusPending, e.Status)
	assert.JSONEq(t, `{"drift":"1.00"}`, string(e.Payload))
}
