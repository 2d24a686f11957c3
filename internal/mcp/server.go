// Package mcp exposes the ledger to MCP clients over stdio: filtered
// search, chain verification, the chain head and summary statistics.
package mcp

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/nchat-dev/auditledger/internal/chain"
	"github.com/nchat-dev/auditledger/internal/integrity"
	"github.com/nchat-dev/auditledger/internal/search"
	"github.com/nchat-dev/auditledger/internal/store"
)

// Version is set via ldflags at build time.
var Version = "dev"

// Server wraps an MCP server that exposes audit ledger tools.
type Server struct {
	store    store.Store
	writer   *chain.Writer
	index    *search.Index
	verifier *integrity.Verifier
	mcp      *server.MCPServer
}

// NewServer creates a new MCP server over an opened store and writer.
func NewServer(st store.Store, writer *chain.Writer) *Server {
	s := &Server{
		store:    st,
		writer:   writer,
		index:    search.NewIndex(st),
		verifier: integrity.New(st),
	}

	s.mcp = server.NewMCPServer(
		"auditledger",
		Version,
		server.WithToolCapabilities(false),
	)

	s.registerTools()

	return s
}

// registerTools adds all tool definitions and their handlers to the MCP server.
func (s *Server) registerTools() {
	s.mcp.AddTool(searchEntriesTool, s.handleSearchEntries)
	s.mcp.AddTool(verifyChainTool, s.handleVerifyChain)
	s.mcp.AddTool(getChainHeadTool, s.handleGetChainHead)
	s.mcp.AddTool(getStatsTool, s.handleGetStats)
}

// Serve starts the MCP server on stdio. Stdout is used for MCP protocol
// messages; all logging must go to stderr.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcp)
}
