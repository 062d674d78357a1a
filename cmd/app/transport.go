package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

// call names one operation for both transports: the JSON-RPC method with its
// params, and the REST route with its body.
type call struct {
	method string
	params map[string]any

	verb string
	path string
	body any
}

// remoteError is a failure reported by the server rather than by the network.
type remoteError struct {
	Transport string
	Code      int
	Message   string
}

func (e *remoteError) Error() string {
	return fmt.Sprintf("%s error (%d): %s", e.Transport, e.Code, e.Message)
}

// decodeError builds a remoteError from an error payload. Both the REST
// {"error": "..."} body and a JSON-RPC error object are understood; anything
// else is reported verbatim.
func decodeError(transport string, code int, payload []byte) error {
	var body struct {
		Error   json.RawMessage `json:"error"`
		Code    int             `json:"code"`
		Message string          `json:"message"`
	}
	msg := strings.TrimSpace(string(payload))
	if json.Unmarshal(payload, &body) == nil {
		var text string
		switch {
		case len(body.Error) > 0 && json.Unmarshal(body.Error, &text) == nil:
			msg = text
		case len(body.Error) > 0:
			return decodeError(transport, code, body.Error)
		case body.Message != "":
			msg = body.Message
			if body.Code != 0 {
				code = body.Code
			}
		}
	}
	return &remoteError{Transport: transport, Code: code, Message: msg}
}

func decodeResult(raw []byte, out any) error {
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	return json.Unmarshal(raw, out)
}

type transport interface {
	roundTrip(ctx context.Context, c call, out any) error
}

func dial(cfg cliConfig) (transport, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Transport == transportHTTP {
		return &httpTransport{
			client: &http.Client{Timeout: 20 * time.Second},
			base:   strings.TrimRight(cfg.Server, "/"),
		}, nil
	}
	return &socketTransport{path: cfg.Socket}, nil
}

type httpTransport struct {
	client *http.Client
	base   string
}

func (t *httpTransport) roundTrip(ctx context.Context, c call, out any) error {
	var body io.Reader
	if c.body != nil {
		data, err := json.Marshal(c.body)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, c.verb, t.base+c.path, body)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s %s: %w", c.verb, c.path, err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError("api", resp.StatusCode, payload)
	}
	return decodeResult(payload, out)
}

// socketTransport speaks JSON-RPC 2.0 over a fresh unix socket connection per
// call. Request ids increase per transport and must be echoed back.
type socketTransport struct {
	path string
	seq  atomic.Uint64
}

type rpcEnvelope struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method,omitempty"`
	Params  any             `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   json.RawMessage `json:"error,omitempty"`
	ID      json.RawMessage `json:"id"`
}

func (t *socketTransport) roundTrip(ctx context.Context, c call, out any) error {
	dialer := net.Dialer{Timeout: 5 * time.Second}
	conn, err := dialer.DialContext(ctx, "unix", t.path)
	if err != nil {
		return fmt.Errorf("connect %s: %w", t.path, err)
	}
	defer func() { _ = conn.Close() }()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	id := strconv.FormatUint(t.seq.Add(1), 10)
	req := rpcEnvelope{JSONRPC: "2.0", Method: c.method, Params: c.params, ID: json.RawMessage(id)}
	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return fmt.Errorf("send %s: %w", c.method, err)
	}
	var resp rpcEnvelope
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return fmt.Errorf("read %s: %w", c.method, err)
	}
	if len(resp.Error) > 0 && string(resp.Error) != "null" {
		return decodeError("rpc", 0, resp.Error)
	}
	if string(resp.ID) != id {
		return fmt.Errorf("rpc %s: response id %s does not match request %s", c.method, resp.ID, id)
	}
	return decodeResult(resp.Result, out)
}
