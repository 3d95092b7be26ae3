package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Klingon-tech/klingsol/internal/storage"
)

// Version of the daemon
const Version = "0.1.0-dev"

// ========================================
// Node handlers
// ========================================

// NodeInfoResult is the response for node_info.
type NodeInfoResult struct {
	Version     string `json:"version"`
	Network     string `json:"network"`
	Cluster     string `json:"cluster"`
	RPCURL      string `json:"rpc_url"`
	NodeVersion string `json:"node_version,omitempty"`
	Slot        uint64 `json:"slot,omitempty"`
	Connected   bool   `json:"connected"`
	Error       string `json:"error,omitempty"`
}

func (s *Server) nodeInfo(ctx context.Context, params json.RawMessage) (interface{}, error) {
	if s.wallet == nil {
		return nil, fmt.Errorf("wallet service not initialized")
	}

	p := s.wallet.Params()
	result := &NodeInfoResult{
		Version: Version,
		Network: string(p.Network),
		Cluster: p.Name,
		RPCURL:  p.RPCURL,
	}

	// An unreachable cluster is reported, not returned as an error
	info, err := s.wallet.NodeInfo(ctx)
	if err != nil {
		result.Error = err.Error()
		return result, nil
	}
	result.NodeVersion = info.Version
	result.Slot = info.Slot
	result.Connected = true
	return result, nil
}

// NodeStatusResult is the response for node_status.
type NodeStatusResult struct {
	Running      bool                     `json:"running"`
	Uptime       string                   `json:"uptime"`
	WSClients    int                      `json:"ws_clients"`
	Accounts     int                      `json:"accounts"`
	Transactions map[storage.TxStatus]int `json:"transactions"`
}

func (s *Server) nodeStatus(ctx context.Context, params json.RawMessage) (interface{}, error) {
	if s.wallet == nil {
		return nil, fmt.Errorf("wallet service not initialized")
	}

	stats, err := s.wallet.Storage().TransactionStats()
	if err != nil {
		return nil, fmt.Errorf("failed to read transaction stats: %w", err)
	}

	uptime := time.Duration(0)
	if !s.startedAt.IsZero() {
		uptime = time.Since(s.startedAt)
	}

	return &NodeStatusResult{
		Running:      true,
		Uptime:       uptime.Round(time.Second).String(),
		WSClients:    s.wsHub.ClientCount(),
		Accounts:     len(s.wallet.Accounts()),
		Transactions: stats,
	}, nil
}
