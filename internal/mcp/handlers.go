package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/nchat-dev/auditledger/internal/search"
)

// handleSearchEntries runs a filtered query over the committed chain.
func (s *Server) handleSearchEntries(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filter := search.Filter{
		SearchText: request.GetString("query", ""),
		ActorID:    request.GetString("actor", ""),
		ActionGlob: request.GetString("action_glob", ""),
	}
	if v := request.GetString("category", ""); v != "" {
		filter.Categories = []string{v}
	}
	if v := request.GetString("severity", ""); v != "" {
		filter.Severities = []string{v}
	}
	if v := request.GetString("success", ""); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid success value %q", v)), nil
		}
		filter.Success = &b
	}
	filter.Limit = request.GetInt("limit", 0)

	result, err := s.index.Search(ctx, filter)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}

	if result.Total == 0 {
		return mcp.NewToolResultText("No entries match the given filters."), nil
	}
	return jsonResult(result)
}

// handleVerifyChain re-verifies the hash chain and reports the outcome.
func (s *Server) handleVerifyChain(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	upto := int64(request.GetInt("upto", -1))

	rep, err := s.verifier.Verify(ctx, upto)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("verification failed: %v", err)), nil
	}
	return jsonResult(rep)
}

// handleGetChainHead reports the current chain tip.
func (s *Server) handleGetChainHead(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	head := map[string]any{
		"blockNumber": s.writer.Head(),
		"entryHash":   s.writer.HeadHash(),
	}
	if block := s.writer.Head(); block >= 0 {
		entries, err := s.store.ReadRange(ctx, block, block)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("reading head block: %v", err)), nil
		}
		if len(entries) == 1 {
			head["timestamp"] = entries[0].Timestamp
		}
	}
	return jsonResult(head)
}

// handleGetStats summarizes the whole ledger.
func (s *Server) handleGetStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := s.index.Stats(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("collecting stats: %v", err)), nil
	}
	return jsonResult(stats)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encoding result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
