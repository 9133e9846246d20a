// Package chaintest provides an in-memory chain.Provider for tests.
package chaintest

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"readScope/internal/chain"
	"readScope/internal/model"
)

// Handler answers a decoded call with output values or an error.
type Handler func(args []interface{}, block model.BlockSelector) ([]interface{}, error)

type route struct {
	name    string
	method  abi.Method
	handler Handler
}

// Provider serves eth_call from registered handlers and counts calls per method.
type Provider struct {
	ID    uint64
	Feed  *chain.HeadFeed
	mu    sync.Mutex
	route map[string]route
	calls map[string]int
}

var _ chain.Provider = (*Provider)(nil)

func New(chainID uint64) *Provider {
	return &Provider{
		ID:    chainID,
		Feed:  chain.NewHeadFeed(),
		route: make(map[string]route),
		calls: make(map[string]int),
	}
}

// Handle routes calls of method from parsed to handler.
func (p *Provider) Handle(parsed abi.ABI, method string, handler Handler) {
	m, ok := parsed.Methods[method]
	if !ok {
		panic(fmt.Sprintf("chaintest: unknown method %s", method))
	}
	p.mu.Lock()
	p.route[hexutil.Encode(m.ID)] = route{name: method, method: m, handler: handler}
	p.mu.Unlock()
}

// Calls returns how many times method was called.
func (p *Provider) Calls(method string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[method]
}

// TotalCalls returns the number of calls across all methods.
func (p *Provider) TotalCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	total := 0
	for _, n := range p.calls {
		total += n
	}
	return total
}

func (p *Provider) ChainID() uint64 { return p.ID }

func (p *Provider) Heads() *chain.HeadFeed { return p.Feed }

func (p *Provider) Call(_ context.Context, msg ethereum.CallMsg, block model.BlockSelector) ([]byte, error) {
	if len(msg.Data) < 4 {
		return nil, fmt.Errorf("chaintest: short calldata")
	}
	p.mu.Lock()
	r, ok := p.route[hexutil.Encode(msg.Data[:4])]
	if ok {
		p.calls[r.name]++
	}
	p.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("chaintest: no handler for selector %s", hexutil.Encode(msg.Data[:4]))
	}

	args, err := r.method.Inputs.Unpack(msg.Data[4:])
	if err != nil {
		return nil, fmt.Errorf("chaintest: unpack %s: %w", r.name, err)
	}
	out, err := r.handler(args, block)
	if err != nil {
		return nil, err
	}
	return r.method.Outputs.Pack(out...)
}
