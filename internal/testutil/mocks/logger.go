package mocks

import (
	"sync"

	"github.com/kevin07696/tsys-connector/internal/domain/ports"
)

// MockLogger records log calls for assertions. Safe for concurrent use.
type MockLogger struct {
	mu         sync.Mutex
	InfoCalls  []LogCall
	ErrorCalls []LogCall
	WarnCalls  []LogCall
	DebugCalls []LogCall
}

// LogCall represents a captured log call
type LogCall struct {
	Message string
	Fields  []ports.Field
}

// Field returns the value of the named field, or nil
func (c LogCall) Field(key string) interface{} {
	for _, f := range c.Fields {
		if f.Key == key {
			return f.Value
		}
	}
	return nil
}

// NewMockLogger creates a new mock logger
func NewMockLogger() *MockLogger {
	return &MockLogger{}
}

func (m *MockLogger) Info(msg string, fields ...ports.Field) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InfoCalls = append(m.InfoCalls, LogCall{Message: msg, Fields: fields})
}

func (m *MockLogger) Error(msg string, fields ...ports.Field) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ErrorCalls = append(m.ErrorCalls, LogCall{Message: msg, Fields: fields})
}

func (m *MockLogger) Warn(msg string, fields ...ports.Field) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.WarnCalls = append(m.WarnCalls, LogCall{Message: msg, Fields: fields})
}

func (m *MockLogger) Debug(msg string, fields ...ports.Field) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DebugCalls = append(m.DebugCalls, LogCall{Message: msg, Fields: fields})
}

// All returns every captured call in level order: debug, info, warn, error.
func (m *MockLogger) All() []LogCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := make([]LogCall, 0, len(m.DebugCalls)+len(m.InfoCalls)+len(m.WarnCalls)+len(m.ErrorCalls))
	all = append(all, m.DebugCalls...)
	all = append(all, m.InfoCalls...)
	all = append(all, m.WarnCalls...)
	return append(all, m.ErrorCalls...)
}
