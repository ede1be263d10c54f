// Package mocks provides shared testify mocks for the connector's ports.
package mocks

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kevin07696/tsys-connector/internal/domain/ports"
	"github.com/stretchr/testify/mock"
)

// MockDBPort runs transaction callbacks inline with a nil pgx.Tx.
// Repositories mocked alongside it must accept a nil DBTX.
type MockDBPort struct {
	mock.Mock
}

var _ ports.DBPort = (*MockDBPort)(nil)

func (m *MockDBPort) GetDB() *pgxpool.Pool {
	return nil
}

func (m *MockDBPort) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	m.Called(ctx)
	return fn(ctx, nil)
}
