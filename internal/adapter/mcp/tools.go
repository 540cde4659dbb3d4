package mcp

import (
	"context"
	"fmt"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/Strob0t/GovForge/internal/domain/actor"
	"github.com/Strob0t/GovForge/internal/domain/proposal"
	"github.com/Strob0t/GovForge/internal/domain/vote"
)

func (s *Server) registerTools() {
	s.mcpServer.AddTools(
		s.listProposalsTool(),
		s.getProposalTool(),
		s.getAuditTool(),
		s.castVoteTool(),
	)
}

func (s *Server) listProposalsTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("list_proposals",
		mcplib.WithDescription("List governance proposals, newest first"),
		mcplib.WithString("status",
			mcplib.Description("Only return proposals in this status"),
			mcplib.Enum(
				string(proposal.StatusDraft),
				string(proposal.StatusSubmitted),
				string(proposal.StatusVoting),
				string(proposal.StatusPendingHumanApproval),
				string(proposal.StatusExecuted),
				string(proposal.StatusRejected),
			),
		),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleListProposals}
}

func (s *Server) getProposalTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("get_proposal",
		mcplib.WithDescription("Get a proposal with its live tally"),
		mcplib.WithString("proposal_id",
			mcplib.Required(),
			mcplib.Description("The proposal ID to look up"),
		),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleGetProposal}
}

func (s *Server) getAuditTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("get_audit_trail",
		mcplib.WithDescription("Get the audit trail of a proposal in append order"),
		mcplib.WithString("proposal_id",
			mcplib.Required(),
			mcplib.Description("The proposal ID to look up"),
		),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleGetAudit}
}

func (s *Server) castVoteTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("cast_vote",
		mcplib.WithDescription("Cast the caller's vote on a proposal that is open for voting. Returns the vote and the proposal with its updated tally"),
		mcplib.WithString("proposal_id",
			mcplib.Required(),
			mcplib.Description("The proposal to vote on"),
		),
		mcplib.WithString("choice",
			mcplib.Required(),
			mcplib.Enum(string(vote.ChoiceFor), string(vote.ChoiceAgainst), string(vote.ChoiceAbstain)),
		),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleCastVote}
}

func (s *Server) handleListProposals(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	var statuses []proposal.Status
	if st, _ := req.GetArguments()["status"].(string); st != "" {
		statuses = append(statuses, proposal.Status(st))
	}
	list, err := s.gov.List(ctx, statuses...)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to list proposals", err), nil
	}
	return jsonResult(list)
}

func (s *Server) handleGetProposal(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	id, ok := stringArg(req, "proposal_id")
	if !ok {
		return mcplib.NewToolResultError("proposal_id is required"), nil
	}
	v, err := s.gov.Get(ctx, id)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr(fmt.Sprintf("failed to get proposal %s", id), err), nil
	}
	return jsonResult(v)
}

func (s *Server) handleGetAudit(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	id, ok := stringArg(req, "proposal_id")
	if !ok {
		return mcplib.NewToolResultError("proposal_id is required"), nil
	}
	entries, err := s.gov.Audit(ctx, id)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr(fmt.Sprintf("failed to get audit trail of %s", id), err), nil
	}
	return jsonResult(entries)
}

func (s *Server) handleCastVote(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	a, ok := actor.FromContext(ctx)
	if !ok {
		return mcplib.NewToolResultError("authorization required"), nil
	}
	id, ok := stringArg(req, "proposal_id")
	if !ok {
		return mcplib.NewToolResultError("proposal_id is required"), nil
	}
	choice, _ := stringArg(req, "choice")
	receipt, err := s.gov.CastVote(ctx, a, id, vote.CastRequest{Choice: vote.Choice(choice)})
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to cast vote", err), nil
	}
	return jsonResult(receipt)
}

func stringArg(req mcplib.CallToolRequest, key string) (string, bool) { //nolint:gocritic // hugeParam: mcp-go request type
	v, ok := req.GetArguments()[key].(string)
	return v, ok && v != ""
}
