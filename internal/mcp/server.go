// Package mcp exposes the Saga server to MCP clients over stdio. Every tool
// proxies to the HTTP API so the stdio process holds no state of its own.
package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/server"

	"github.com/jschreck/saga/internal/models"
)

// Backend is the subset of the HTTP client the tools call.
type Backend interface {
	Chat(ctx context.Context, text string) (*models.ChatResponse, error)
	SaveConsensus(ctx context.Context, instruction string) (*models.MemoryEntry, error)
	Consensus(ctx context.Context, limit int) ([]models.MemoryEntry, error)
	Projects(ctx context.Context) ([]string, error)
	CreateProject(ctx context.Context, name string) (string, error)
	AddNote(ctx context.Context, project, note string) (*models.ProjectNote, error)
	CloseSession(ctx context.Context) (*models.CloseSessionResponse, error)
	Archives(ctx context.Context) ([]models.ArchiveInfo, error)
	Status(ctx context.Context) (*models.HealthResponse, error)
}

const serverInstructions = `Saga is a conversational assistant with file-backed long-term memory. ` +
	`Use saga_chat to talk to it. When a reply carries intent MEMORY_SAVE, confirm with the user ` +
	`and call saga_remember. When it suggests a new project, call saga_create_project if the user agrees.`

// NewServer builds an MCP server whose tools call b.
func NewServer(b Backend, version string) *server.MCPServer {
	srv := server.NewMCPServer(
		"saga",
		version,
		server.WithToolCapabilities(true),
		server.WithInstructions(serverInstructions),
	)
	registerTools(srv, b)
	return srv
}

// Run serves srv on stdin/stdout until the client disconnects.
func Run(srv *server.MCPServer) error {
	return server.ServeStdio(srv)
}
