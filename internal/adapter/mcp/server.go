// Package mcp exposes the governance surface as a Model Context Protocol
// server so that agent voters can inspect proposals and cast votes.
package mcp

import (
	"context"
	"encoding/json"
	"net/http"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/Strob0t/GovForge/internal/domain/actor"
	"github.com/Strob0t/GovForge/internal/domain/audit"
	"github.com/Strob0t/GovForge/internal/domain/proposal"
	"github.com/Strob0t/GovForge/internal/domain/vote"
	"github.com/Strob0t/GovForge/internal/service"
)

// Governance is the subset of the governance service the tools call.
type Governance interface {
	List(ctx context.Context, statuses ...proposal.Status) ([]proposal.Proposal, error)
	ListPendingApproval(ctx context.Context) ([]proposal.Proposal, error)
	Get(ctx context.Context, id string) (*service.ProposalView, error)
	Audit(ctx context.Context, id string) ([]audit.Entry, error)
	CastVote(ctx context.Context, a actor.Actor, id string, req vote.CastRequest) (*service.VoteReceipt, error)
}

// ServerConfig names the server in the MCP handshake.
type ServerConfig struct {
	Name    string
	Version string
}

// Server wraps an MCP server bound to the governance service.
type Server struct {
	gov       Governance
	mcpServer *mcpserver.MCPServer
	http      *mcpserver.StreamableHTTPServer
}

// NewServer builds the MCP server and registers its tools and resources.
func NewServer(cfg ServerConfig, gov Governance) *Server {
	s := &Server{
		gov: gov,
		mcpServer: mcpserver.NewMCPServer(cfg.Name, cfg.Version,
			mcpserver.WithToolCapabilities(false),
			mcpserver.WithResourceCapabilities(false, false),
		),
	}
	s.registerTools()
	s.registerResources()
	s.http = mcpserver.NewStreamableHTTPServer(s.mcpServer, mcpserver.WithStateLess(true))
	return s
}

// MCPServer returns the underlying server.
func (s *Server) MCPServer() *mcpserver.MCPServer { return s.mcpServer }

// Handler serves the streamable HTTP transport. The request context must
// already carry the calling actor for cast_vote to succeed.
func (s *Server) Handler() http.Handler { return s.http }

// Shutdown closes open transport sessions.
func (s *Server) Shutdown(ctx context.Context) error { return s.http.Shutdown(ctx) }

func jsonResult(v any) (*mcplib.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal result", err), nil
	}
	return mcplib.NewToolResultText(string(data)), nil
}
