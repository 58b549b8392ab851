// Package ledger talks to the on-chain consensus ledger that backs the
// distributed storage backend: a JSON-RPC 2.0 client against the ledger
// node's documented RPC surface, a ref table reader, a blob-status
// resolver, lock-based write serialization, and a local transaction
// signer. None of the ledger's transaction-execution or object-model
// logic is reimplemented here; this package only calls its RPC methods
// and signs what they return.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// rpcRequest is a JSON-RPC 2.0 request envelope.
type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

// rpcResponse is a JSON-RPC 2.0 response envelope.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// rpcClient is a thin JSON-RPC 2.0 client over HTTP.
type rpcClient struct {
	url        string
	httpClient *http.Client
}

func newRPCClient(url string) *rpcClient {
	return &rpcClient{url: url, httpClient: http.DefaultClient}
}

// call invokes method with params and decodes the result into out. Pass a
// pointer to out, or nil to discard the result.
func (c *rpcClient) call(ctx context.Context, method string, params []any, out any) error {
	reqBody, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal rpc request for %s: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("failed to build rpc request for %s: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("rpc call %s failed: %w", method, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read rpc response for %s: %w", method, err)
	}

	if resp.StatusCode >= 500 {
		return fmt.Errorf("rpc call %s returned status %d: %s", method, resp.StatusCode, body)
	}

	var parsed rpcResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return fmt.Errorf("failed to parse rpc response for %s: %w", method, err)
	}
	if parsed.Error != nil {
		return parsed.Error
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(parsed.Result, out); err != nil {
		return fmt.Errorf("failed to decode rpc result for %s: %w", method, err)
	}
	return nil
}
