package mcp

import (
	"context"
	"encoding/json"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/Strob0t/GovForge/internal/domain/proposal"
)

const (
	uriOpenProposals    = "govforge://proposals/voting"
	uriPendingApprovals = "govforge://proposals/pending-approval"
)

func (s *Server) registerResources() {
	s.mcpServer.AddResource(
		mcplib.NewResource(
			uriOpenProposals,
			"Open Proposals",
			mcplib.WithResourceDescription("Proposals currently open for voting"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handleOpenProposals,
	)

	s.mcpServer.AddResource(
		mcplib.NewResource(
			uriPendingApprovals,
			"Pending Human Approval",
			mcplib.WithResourceDescription("Passed proposals waiting for an approver's decision"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handlePendingApprovals,
	)
}

func (s *Server) handleOpenProposals(ctx context.Context, req mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	list, err := s.gov.List(ctx, proposal.StatusVoting)
	if err != nil {
		return nil, err
	}
	return jsonContents(req.Params.URI, list)
}

func (s *Server) handlePendingApprovals(ctx context.Context, req mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	list, err := s.gov.ListPendingApproval(ctx)
	if err != nil {
		return nil, err
	}
	return jsonContents(req.Params.URI, list)
}

func jsonContents(uri string, v any) ([]mcplib.ResourceContents, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
