package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/jschreck/saga/internal/models"
)

func registerTools(srv *server.MCPServer, b Backend) {
	srv.AddTool(
		mcp.NewTool("saga_chat",
			mcp.WithDescription("Send one message to Saga and get its reply. The reply reports any detected intent (MEMORY_SAVE, NEW_PROJECT_SUGGESTION) and the active projects."),
			mcp.WithString("message", mcp.Required(), mcp.Description("The user message")),
		),
		handleChat(b),
	)
	srv.AddTool(
		mcp.NewTool("saga_remember",
			mcp.WithDescription("Append an instruction to Saga's long-term memory. It is shown in every future prompt."),
			mcp.WithString("instruction", mcp.Required(), mcp.Description("The instruction to remember")),
		),
		handleRemember(b),
	)
	srv.AddTool(
		mcp.NewTool("saga_memories",
			mcp.WithDescription("List the most recent long-term memories."),
			mcp.WithReadOnlyHintAnnotation(true),
			mcp.WithNumber("limit", mcp.Description("Max entries (default 15)")),
		),
		handleMemories(b),
	)
	srv.AddTool(
		mcp.NewTool("saga_list_projects",
			mcp.WithDescription("List known projects."),
			mcp.WithReadOnlyHintAnnotation(true),
		),
		handleListProjects(b),
	)
	srv.AddTool(
		mcp.NewTool("saga_create_project",
			mcp.WithDescription("Create a project. Names are lowercased and spaces become underscores."),
			mcp.WithString("name", mcp.Required(), mcp.Description("Project name")),
		),
		handleCreateProject(b),
	)
	srv.AddTool(
		mcp.NewTool("saga_add_note",
			mcp.WithDescription("Append a note to a project. Notes are injected while the project is active."),
			mcp.WithString("project", mcp.Required(), mcp.Description("Project name")),
			mcp.WithString("note", mcp.Required(), mcp.Description("Note text")),
		),
		handleAddNote(b),
	)
	srv.AddTool(closeSessionTool(), handleCloseSession(b))
	srv.AddTool(
		mcp.NewTool("saga_list_archives",
			mcp.WithDescription("List archived conversations, newest first."),
			mcp.WithReadOnlyHintAnnotation(true),
		),
		handleListArchives(b),
	)
	srv.AddTool(
		mcp.NewTool("saga_status",
			mcp.WithDescription("Report the health of the Saga server and its dependencies."),
			mcp.WithReadOnlyHintAnnotation(true),
		),
		handleStatus(b),
	)
}

// closeSessionTool is destructive: the live history and project scores are
// cleared once the archive is written.
func closeSessionTool() mcp.Tool {
	return mcp.NewTool("saga_close_session",
		mcp.WithDescription("Archive the current conversation under a generated title and start fresh. Clears the live history and project scores."),
		mcp.WithDestructiveHintAnnotation(true),
		mcp.WithIdempotentHintAnnotation(false),
	)
}

type toolHandler = func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)

func stringArg(req mcp.CallToolRequest, name string) string {
	v, _ := req.GetArguments()[name].(string)
	return strings.TrimSpace(v)
}

func handleChat(b Backend) toolHandler {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		msg := stringArg(req, "message")
		if msg == "" {
			return mcp.NewToolResultError("message is required"), nil
		}
		resp, err := b.Chat(ctx, msg)
		if err != nil {
			return mcp.NewToolResultError("chat failed: " + err.Error()), nil
		}

		var sb strings.Builder
		sb.WriteString(resp.Message.Content)
		switch resp.Intent {
		case models.IntentMemorySave:
			fmt.Fprintf(&sb, "\n\n[intent: MEMORY_SAVE] pending memory: %q", resp.PendingMemory)
		case models.IntentNewProjectSuggestion:
			fmt.Fprintf(&sb, "\n\n[intent: NEW_PROJECT_SUGGESTION] project: %s", resp.SuggestedProject)
		}
		if len(resp.ActiveProjects) > 0 {
			fmt.Fprintf(&sb, "\n[active projects: %s]", strings.Join(resp.ActiveProjects, ", "))
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}

func handleRemember(b Backend) toolHandler {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		instr := stringArg(req, "instruction")
		if instr == "" {
			return mcp.NewToolResultError("instruction is required"), nil
		}
		entry, err := b.SaveConsensus(ctx, instr)
		if err != nil {
			return mcp.NewToolResultError("failed to save: " + err.Error()), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Remembered: %q", entry.Instruction)), nil
	}
}

func handleMemories(b Backend) toolHandler {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		limit := 15
		if v, ok := req.GetArguments()["limit"].(float64); ok && v > 0 {
			limit = int(v)
		}
		entries, err := b.Consensus(ctx, limit)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if len(entries) == 0 {
			return mcp.NewToolResultText("No long-term memories yet."), nil
		}
		var sb strings.Builder
		for _, e := range entries {
			fmt.Fprintf(&sb, "- %s (%s)\n", e.Instruction, e.Timestamp.Format("2006-01-02"))
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}

func handleListProjects(b Backend) toolHandler {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		names, err := b.Projects(ctx)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if len(names) == 0 {
			return mcp.NewToolResultText("No projects yet."), nil
		}
		return mcp.NewToolResultText(strings.Join(names, "\n")), nil
	}
}

func handleCreateProject(b Backend) toolHandler {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		name := stringArg(req, "name")
		if name == "" {
			return mcp.NewToolResultError("name is required"), nil
		}
		created, err := b.CreateProject(ctx, name)
		if err != nil {
			return mcp.NewToolResultError("failed to create project: " + err.Error()), nil
		}
		return mcp.NewToolResultText("Created project " + created), nil
	}
}

func handleAddNote(b Backend) toolHandler {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		project, note := stringArg(req, "project"), stringArg(req, "note")
		if project == "" || note == "" {
			return mcp.NewToolResultError("project and note are required"), nil
		}
		if _, err := b.AddNote(ctx, project, note); err != nil {
			return mcp.NewToolResultError("failed to add note: " + err.Error()), nil
		}
		return mcp.NewToolResultText("Noted in " + project), nil
	}
}

func handleCloseSession(b Backend) toolHandler {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		resp, err := b.CloseSession(ctx)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if !resp.Archived || resp.Archive == nil {
			return mcp.NewToolResultText("Nothing to archive. Session reset."), nil
		}
		return mcp.NewToolResultText("Archived as " + resp.Archive.ID), nil
	}
}

func handleListArchives(b Backend) toolHandler {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		archives, err := b.Archives(ctx)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if len(archives) == 0 {
			return mcp.NewToolResultText("No archives yet."), nil
		}
		var sb strings.Builder
		for _, a := range archives {
			fmt.Fprintf(&sb, "- %s [%s] %s\n", a.ID, a.Label, a.Title)
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}

func handleStatus(b Backend) toolHandler {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		h, err := b.Status(ctx)
		if h == nil {
			return mcp.NewToolResultError("status failed: " + err.Error()), nil
		}
		data, _ := json.MarshalIndent(h, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	}
}
