package rpcclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Klingon-tech/klingsol/internal/rpc"
)

func TestNewDefaults(t *testing.T) {
	c := NewWithTimeout("", 0)
	if c.Endpoint() != DefaultEndpoint {
		t.Errorf("Endpoint() = %s, want %s", c.Endpoint(), DefaultEndpoint)
	}
	if c.http.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", c.http.Timeout)
	}
}

func TestCall(t *testing.T) {
	tests := []struct {
		name     string
		reply    string
		status   int
		wantErr  bool
		wantCode int
		wantSlot uint64
	}{
		{
			name:     "result",
			reply:    `{"jsonrpc":"2.0","result":{"slot":42},"id":1}`,
			status:   http.StatusOK,
			wantSlot: 42,
		},
		{
			name:     "rpc error",
			reply:    `{"jsonrpc":"2.0","error":{"code":-32001,"message":"insufficient funds"},"id":1}`,
			status:   http.StatusOK,
			wantErr:  true,
			wantCode: -32001,
		},
		{
			name:    "garbage body",
			reply:   `not json`,
			status:  http.StatusOK,
			wantErr: true,
		},
		{
			name:    "http error",
			reply:   `method not allowed`,
			status:  http.StatusMethodNotAllowed,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got map[string]interface{}
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				body, _ := io.ReadAll(r.Body)
				_ = json.Unmarshal(body, &got)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.reply))
			}))
			defer ts.Close()

			var result struct {
				Slot uint64 `json:"slot"`
			}
			err := New(ts.URL).Call("node_info", map[string]string{"account": "0"}, &result)

			if got["jsonrpc"] != "2.0" || got["method"] != "node_info" {
				t.Errorf("request = %v", got)
			}

			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				if tt.wantCode != 0 {
					var rpcErr *RPCError
					if !errors.As(err, &rpcErr) {
						t.Fatalf("error = %v, want *RPCError", err)
					}
					if rpcErr.Code != tt.wantCode {
						t.Errorf("Code = %d, want %d", rpcErr.Code, tt.wantCode)
					}
				}
				return
			}
			if err != nil {
				t.Fatalf("Call() error = %v", err)
			}
			if result.Slot != tt.wantSlot {
				t.Errorf("Slot = %d, want %d", result.Slot, tt.wantSlot)
			}
		})
	}
}

func TestCallIncrementsID(t *testing.T) {
	var ids []float64
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&req)
		ids = append(ids, req["id"].(float64))
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","result":null,"id":1}`))
	}))
	defer ts.Close()

	c := New(ts.URL)
	for i := 0; i < 3; i++ {
		if err := c.Call("wallet_status", nil, nil); err != nil {
			t.Fatalf("Call() error = %v", err)
		}
	}
	if len(ids) != 3 || ids[0] == ids[1] || ids[1] == ids[2] {
		t.Errorf("ids = %v, want distinct", ids)
	}
}

func TestCallContextCancelled(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := New(ts.URL).CallContext(ctx, "wallet_status", nil, nil); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

func TestCallAgainstServer(t *testing.T) {
	ts := httptest.NewServer(rpc.NewServer(nil).Handler())
	defer ts.Close()

	c := New(ts.URL)

	err := c.Call("wallet_status", nil, nil)
	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) {
		t.Fatalf("Call() error = %v, want *RPCError", err)
	}
	if rpcErr.Code != rpc.InternalError {
		t.Errorf("Code = %d, want %d", rpcErr.Code, rpc.InternalError)
	}

	err = c.Call("no_such_method", nil, nil)
	if !errors.As(err, &rpcErr) || rpcErr.Code != rpc.MethodNotFound {
		t.Errorf("Call(no_such_method) error = %v, want MethodNotFound", err)
	}
}
