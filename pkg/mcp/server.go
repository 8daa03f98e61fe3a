package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"

	"github.com/denysvitali/filemanager-go/internal/models"
	"github.com/denysvitali/filemanager-go/pkg/storage"
)

// Server exposes the file manager operations as MCP tools
type Server struct {
	logger    *logrus.Logger
	storage   *storage.Manager
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP server using the mcp-go library
func NewServer(logger *logrus.Logger, store *storage.Manager) *Server {
	mcpServer := server.NewMCPServer(
		"filemanager",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	s := &Server{
		logger:    logger,
		storage:   store,
		mcpServer: mcpServer,
	}

	s.registerTools()

	return s
}

// ServeStdio serves MCP over stdin/stdout until the client disconnects
func (s *Server) ServeStdio() error {
	s.logger.Infof("Serving MCP over stdio for %s", s.storage.BaseDir())
	return server.ServeStdio(s.mcpServer)
}

func (s *Server) registerTools() {
	pathArg := mcp.WithString("path",
		mcp.Required(),
		mcp.Description("Path relative to the base directory; empty for the base directory itself"),
	)

	s.mcpServer.AddTool(mcp.NewTool("list_directory",
		mcp.WithDescription("List the folders and files directly inside a directory"),
		pathArg,
	), s.handleListDirectory)

	s.mcpServer.AddTool(mcp.NewTool("create_folder",
		mcp.WithDescription("Create a new folder inside a directory"),
		pathArg,
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Name of the folder to create"),
		),
	), s.handleCreateFolder)

	s.mcpServer.AddTool(mcp.NewTool("delete",
		mcp.WithDescription("Delete a file, or a folder with everything inside it"),
		pathArg,
	), s.handleDelete)

	s.mcpServer.AddTool(mcp.NewTool("server_info",
		mcp.WithDescription("Report uptime and disk usage of the base directory"),
	), s.handleServerInfo)
}

type listResult struct {
	Path        string         `json:"path"`
	Directories []models.Entry `json:"directories"`
	Files       []models.Entry `json:"files"`
}

// ListDirectory lists rel and returns the result as JSON
func (s *Server) ListDirectory(ctx context.Context, rel string) (string, error) {
	dir, err := s.storage.ResolveDecoded(rel)
	if err != nil {
		return "", err
	}
	info, err := s.storage.Stat(dir)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s: %w", dir.Rel, storage.ErrNotDirectory)
	}

	dirs, files, err := s.storage.ListDirectory(ctx, dir)
	if err != nil {
		return "", err
	}

	data, err := json.MarshalIndent(listResult{Path: dir.Rel, Directories: dirs, Files: files}, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// CreateFolder creates name inside rel and returns the new folder's path
func (s *Server) CreateFolder(ctx context.Context, rel, name string) (string, error) {
	parent, err := s.storage.ResolveDecoded(rel)
	if err != nil {
		return "", err
	}
	created, err := s.storage.CreateDirectory(ctx, parent, name)
	if err != nil {
		return "", err
	}
	return created.Rel, nil
}

// Delete removes rel and returns the parent path
func (s *Server) Delete(ctx context.Context, rel string) (string, error) {
	target, err := s.storage.ResolveEntryDecoded(rel)
	if err != nil {
		return "", err
	}
	return s.storage.Delete(ctx, target)
}

func (s *Server) handleListDirectory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rel, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("path parameter error: %v", err)), nil
	}

	out, err := s.ListDirectory(ctx, rel)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list directory: %v", err)), nil
	}
	return mcp.NewToolResultText(out), nil
}

func (s *Server) handleCreateFolder(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rel, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("path parameter error: %v", err)), nil
	}
	name, err := request.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("name parameter error: %v", err)), nil
	}

	created, err := s.CreateFolder(ctx, rel, name)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to create folder: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Created folder /%s", created)), nil
}

func (s *Server) handleDelete(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rel, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("path parameter error: %v", err)), nil
	}

	parent, err := s.Delete(ctx, rel)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to delete: %v", err)), nil
	}
	s.logger.Infof("Deleted %s via MCP", rel)
	return mcp.NewToolResultText(fmt.Sprintf("Deleted %s; parent is /%s", rel, parent)), nil
}

func (s *Server) handleServerInfo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(s.storage.GetServerInfo().Response(time.Now()))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode server info: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
