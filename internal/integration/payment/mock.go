package payment

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// MockGateway 以 "tok_decline" 开头的令牌会被拒绝, 其余扣款成功
type MockGateway struct {
	mu      sync.Mutex
	Charges map[string]ChargeRequest
	Refunds []RefundRequest
}

func NewMockGateway() *MockGateway {
	return &MockGateway{Charges: make(map[string]ChargeRequest)}
}

func (g *MockGateway) Name() string {
	return "mock"
}

func (g *MockGateway) Charge(_ context.Context, req ChargeRequest) (*ChargeResult, error) {
	if strings.HasPrefix(req.Token, "tok_decline") {
		return nil, fmt.Errorf("%w: card declined", ErrDeclined)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	ref := "ch_" + uuid.NewString()
	g.Charges[ref] = req
	return &ChargeResult{TransactionRef: ref}, nil
}

func (g *MockGateway) Refund(_ context.Context, req RefundRequest) (*RefundResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.Charges[req.TransactionRef]; !ok {
		return nil, fmt.Errorf("charge %s 不存在", req.TransactionRef)
	}
	g.Refunds = append(g.Refunds, req)
	return &RefundResult{RefundRef: "re_" + uuid.NewString()}, nil
}
