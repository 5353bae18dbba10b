package llm

import (
	"context"
	"encoding/json"
	"sync"
)

// MockResponse is a canned reply for MockProvider. Delay makes the call
// block until the delay passes or the context ends.
type MockResponse struct {
	Content json.RawMessage
	Usage   Usage
	Err     error
	Delay   func(ctx context.Context) error
}

// MockProvider returns canned responses in FIFO order and records requests.
type MockProvider struct {
	mu        sync.Mutex
	responses []MockResponse
	Calls     []Request
}

func NewMockProvider(responses ...MockResponse) *MockProvider {
	return &MockProvider{responses: responses}
}

func (m *MockProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, req)
	if len(m.responses) == 0 {
		m.mu.Unlock()
		return nil, &ErrProviderUnavailable{}
	}
	resp := m.responses[0]
	m.responses = m.responses[1:]
	m.mu.Unlock()

	if resp.Delay != nil {
		if err := resp.Delay(ctx); err != nil {
			return nil, err
		}
	}
	if resp.Err != nil {
		return nil, resp.Err
	}
	if err := ValidateResponse(req.Schema, resp.Content); err != nil {
		return nil, err
	}

	return &Response{
		Content:    resp.Content,
		Usage:      resp.Usage,
		Model:      "mock",
		StopReason: "end",
	}, nil
}

func (m *MockProvider) ModelID() string {
	return "mock"
}

func (m *MockProvider) AddResponse(resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, resp)
}

func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// WaitForCancel is a MockResponse.Delay that blocks until ctx ends.
func WaitForCancel(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}
