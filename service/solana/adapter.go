package solana

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// realRPCClient adapts the actual solana-go RPC client to our RPCClient interface.
// This adapter allows us to control the interface and makes testing easier.
type realRPCClient struct {
	client *rpc.Client
}

// NewRPCClient creates a new RPCClient that wraps the solana-go RPC client.
// For premium RPC endpoints that require API keys, include the key in the URL:
// - Helius: https://mainnet.helius-rpc.com/?api-key=YOUR-KEY
// - QuickNode: https://YOUR-ENDPOINT.quiknode.pro/YOUR-KEY/
func NewRPCClient(rpcURL string) RPCClient {
	return &realRPCClient{
		client: rpc.New(rpcURL),
	}
}

func (r *realRPCClient) GetAccountInfo(
	ctx context.Context,
	address solana.PublicKey,
) (*rpc.GetAccountInfoResult, error) {
	return r.client.GetAccountInfo(ctx, address)
}

func (r *realRPCClient) GetSignaturesForAddress(
	ctx context.Context,
	address solana.PublicKey,
	opts *rpc.GetSignaturesForAddressOpts,
) ([]*rpc.TransactionSignature, error) {
	out, err := r.client.GetSignaturesForAddressWithOpts(ctx, address, opts)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *realRPCClient) GetTransaction(
	ctx context.Context,
	signature solana.Signature,
	opts *rpc.GetTransactionOpts,
) (*rpc.GetTransactionResult, error) {
	return r.client.GetTransaction(ctx, signature, opts)
}

// SelectRandomEndpoint picks one endpoint uniformly at random.
func SelectRandomEndpoint(endpoints []string) (string, error) {
	if len(endpoints) == 0 {
		return "", fmt.Errorf("no RPC endpoints configured")
	}
	return endpoints[rand.IntN(len(endpoints))], nil
}

// endpointPool spreads calls across several RPC clients, choosing one at
// random per call. Public endpoints throttle per IP and per endpoint, so
// spreading a history fetch over several of them keeps each under its limit.
type endpointPool struct {
	clients map[string]RPCClient
	urls    []string
}

// NewEndpointPool returns an RPCClient backed by one client per URL.
// A single URL yields a plain client.
func NewEndpointPool(urls []string) (RPCClient, error) {
	if len(urls) == 0 {
		return nil, fmt.Errorf("no RPC endpoints configured")
	}
	if len(urls) == 1 {
		return NewRPCClient(urls[0]), nil
	}
	clients := make(map[string]RPCClient, len(urls))
	for _, u := range urls {
		clients[u] = NewRPCClient(u)
	}
	return newEndpointPool(urls, clients), nil
}

func newEndpointPool(urls []string, clients map[string]RPCClient) *endpointPool {
	return &endpointPool{clients: clients, urls: urls}
}

func (p *endpointPool) pick() (RPCClient, error) {
	u, err := SelectRandomEndpoint(p.urls)
	if err != nil {
		return nil, err
	}
	return p.clients[u], nil
}

func (p *endpointPool) GetAccountInfo(ctx context.Context, address solana.PublicKey) (*rpc.GetAccountInfoResult, error) {
	c, err := p.pick()
	if err != nil {
		return nil, err
	}
	return c.GetAccountInfo(ctx, address)
}

func (p *endpointPool) GetSignaturesForAddress(ctx context.Context, address solana.PublicKey, opts *rpc.GetSignaturesForAddressOpts) ([]*rpc.TransactionSignature, error) {
	c, err := p.pick()
	if err != nil {
		return nil, err
	}
	return c.GetSignaturesForAddress(ctx, address, opts)
}

func (p *endpointPool) GetTransaction(ctx context.Context, signature solana.Signature, opts *rpc.GetTransactionOpts) (*rpc.GetTransactionResult, error) {
	c, err := p.pick()
	if err != nil {
		return nil, err
	}
	return c.GetTransaction(ctx, signature, opts)
}
