package service

import (
	"context"

	"github.com/stretchr/testify/mock"

	"pesapal-proxy/internal/models"
)

type gatewayMock struct{ mock.Mock }

func (m *gatewayMock) RequestToken(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *gatewayMock) SubmitOrder(ctx context.Context, token string, payload *models.OrderPayload) (*models.OrderResponse, error) {
	args := m.Called(ctx, token, payload)
	r, _ := args.Get(0).(*models.OrderResponse)
	return r, args.Error(1)
}

func (m *gatewayMock) GetTransactionStatus(ctx context.Context, token, trackingID string) (*models.TransactionStatus, error) {
	args := m.Called(ctx, token, trackingID)
	r, _ := args.Get(0).(*models.TransactionStatus)
	return r, args.Error(1)
}

func (m *gatewayMock) RegisterIPN(ctx context.Context, token, ipnURL string) (string, error) {
	args := m.Called(ctx, token, ipnURL)
	return args.String(0), args.Error(1)
}

type fetcherMock struct{ mock.Mock }

func (m *fetcherMock) FetchStatus(ctx context.Context, trackingID string) (*models.TransactionStatus, error) {
	args := m.Called(ctx, trackingID)
	r, _ := args.Get(0).(*models.TransactionStatus)
	return r, args.Error(1)
}

type stateStoreMock struct{ mock.Mock }

func (m *stateStoreMock) Get(ctx context.Context, trackingID string) (*models.OrderState, error) {
	args := m.Called(ctx, trackingID)
	s, _ := args.Get(0).(*models.OrderState)
	return s, args.Error(1)
}

func (m *stateStoreMock) Save(ctx context.Context, state *models.OrderState) error {
	args := m.Called(ctx, state)
	return args.Error(0)
}

type notificationStoreMock struct{ mock.Mock }

func (m *notificationStoreMock) Record(ctx context.Context, rec *models.NotificationRecord) (bool, error) {
	args := m.Called(ctx, rec)
	return args.Bool(0), args.Error(1)
}

func (m *notificationStoreMock) UpdateStatus(ctx context.Context, id string, status models.NotificationLogStatus, errMsg string) error {
	args := m.Called(ctx, id, status, errMsg)
	return args.Error(0)
}
