package mcp

import "github.com/mark3labs/mcp-go/mcp"

// searchEntriesTool defines the search_audit_entries MCP tool.
var searchEntriesTool = mcp.NewTool("search_audit_entries",
	mcp.WithDescription("Search the audit ledger. All given filters combine; omitted filters match everything."),
	mcp.WithString("query",
		mcp.Description("Substring to match against entry descriptions and actions"),
	),
	mcp.WithString("category",
		mcp.Description("Filter by entry category"),
		mcp.Enum("user", "message", "channel", "admin", "security", "automation", "other"),
	),
	mcp.WithString("severity",
		mcp.Description("Filter by entry severity"),
		mcp.Enum("info", "warning", "error", "critical"),
	),
	mcp.WithString("actor",
		mcp.Description("Filter by exact actor ID"),
	),
	mcp.WithString("action_glob",
		mcp.Description("Glob pattern matched against the action taxonomy, e.g. user.* or *.deleted"),
	),
	mcp.WithString("success",
		mcp.Description("Filter by action outcome"),
		mcp.Enum("true", "false"),
	),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of entries to return (default 50)"),
	),
)

// verifyChainTool defines the verify_audit_chain MCP tool.
var verifyChainTool = mcp.NewTool("verify_audit_chain",
	mcp.WithDescription("Re-verify the ledger's hash chain and report any compromised blocks."),
	mcp.WithNumber("upto",
		mcp.Description("Highest block number to verify (default: current head)"),
	),
)

// getChainHeadTool defines the get_chain_head MCP tool.
var getChainHeadTool = mcp.NewTool("get_chain_head",
	mcp.WithDescription("Get the latest committed block number and its entry hash."),
)

// getStatsTool defines the get_audit_stats MCP tool.
var getStatsTool = mcp.NewTool("get_audit_stats",
	mcp.WithDescription("Get ledger totals broken down by category, severity and outcome."),
)
