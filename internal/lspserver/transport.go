// Package lspserver is the primary Request Surface: a hand-rolled
// stdio JSON-RPC server using the LSP base protocol's Content-Length
// framing. No jsonrpc2/LSP server library appears anywhere in the
// example corpus (the one protocol implementation found,
// jinterlante1206-AleutianLocal/services/trace/lsp/protocol.go, is a
// client-side reader used for driving an external LSP server under test),
// so this transport is adapted from that file's readMessage/writeMessage
// framing, turned around to the server side.
package lspserver

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/standardbeagle/goanalyzer/internal/errorsx"
)

const jsonrpcVersion = "2.0"

// rpcRequest is an incoming JSON-RPC request or notification (ID absent).
type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// rpcResponse is an outgoing JSON-RPC response.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// rpcNotification is an outgoing JSON-RPC notification.
type rpcNotification struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

// Transport reads Content-Length-framed JSON-RPC messages from r and
// writes responses/notifications to w, serializing writes.
type Transport struct {
	reader  *bufio.Reader
	writer  io.Writer
	writeMu sync.Mutex
}

func NewTransport(r io.Reader, w io.Writer) *Transport {
	return &Transport{reader: bufio.NewReader(r), writer: w}
}

// ReadMessage reads one Content-Length-framed JSON body.
func (t *Transport) ReadMessage() (rpcRequest, error) {
	var contentLength int
	for {
		line, err := t.reader.ReadString('\n')
		if err != nil {
			return rpcRequest{}, err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			break
		}
		if strings.HasPrefix(line, "Content-Length:") {
			v := strings.TrimSpace(strings.TrimPrefix(line, "Content-Length:"))
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				return rpcRequest{}, errorsx.NewTransportError(fmt.Errorf("invalid Content-Length %q", v))
			}
			contentLength = n
		}
	}
	if contentLength == 0 {
		return rpcRequest{}, errorsx.NewTransportError(fmt.Errorf("missing Content-Length header"))
	}
	body := make([]byte, contentLength)
	if _, err := io.ReadFull(t.reader, body); err != nil {
		return rpcRequest{}, errorsx.NewTransportError(fmt.Errorf("read body: %w", err))
	}
	var req rpcRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return rpcRequest{}, errorsx.NewTransportError(fmt.Errorf("decode: %w", err))
	}
	return req, nil
}

func (t *Transport) write(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	header := fmt.Sprintf("Content-Length: %d\r\n\r\n", len(data))
	if _, err := io.WriteString(t.writer, header); err != nil {
		return err
	}
	_, err = t.writer.Write(data)
	return err
}

// WriteResult sends a successful response for id.
func (t *Transport) WriteResult(id json.RawMessage, result interface{}) error {
	return t.write(rpcResponse{JSONRPC: jsonrpcVersion, ID: id, Result: result})
}

// WriteError sends an error response for id.
func (t *Transport) WriteError(id json.RawMessage, code int, message string) error {
	return t.write(rpcResponse{JSONRPC: jsonrpcVersion, ID: id, Error: &rpcError{Code: code, Message: message}})
}

// Notify sends a notification (no ID, no response expected).
func (t *Transport) Notify(method string, params interface{}) error {
	return t.write(rpcNotification{JSONRPC: jsonrpcVersion, Method: method, Params: params})
}
