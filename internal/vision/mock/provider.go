package mock

import (
	"context"
	"sync"

	"github.com/kiranshivaraju/pixelrelay/pkg/models"
)

// MockProvider satisfies models.VisionProvider for testing.
type MockProvider struct {
	Name_        string
	NoCreds      bool
	DescribeFunc func(ctx context.Context, req models.VisionRequest) (string, error)

	mu    sync.Mutex
	calls []models.VisionRequest
}

func (m *MockProvider) Name() string { return m.Name_ }

func (m *MockProvider) HasCredentials() bool { return !m.NoCreds }

func (m *MockProvider) Describe(ctx context.Context, req models.VisionRequest) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	m.mu.Unlock()
	if m.DescribeFunc != nil {
		return m.DescribeFunc(ctx, req)
	}
	return "", nil
}

// Calls returns the requests Describe received, in order.
func (m *MockProvider) Calls() []models.VisionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.VisionRequest(nil), m.calls...)
}

// NewMockProvider returns a MockProvider named name that answers with a small JSON scene.
func NewMockProvider(name string) *MockProvider {
	return &MockProvider{
		Name_: name,
		DescribeFunc: func(_ context.Context, req models.VisionRequest) (string, error) {
			if req.JSON {
				return `{"subject_analysis":{"main_subject":{"type":"person"}}}`, nil
			}
			return "a person seated on a sofa, soft studio light", nil
		},
	}
}

var _ models.VisionProvider = (*MockProvider)(nil)
