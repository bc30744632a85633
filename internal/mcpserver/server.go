// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Jotpad tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/jotpad/internal/apperr"
	"github.com/starford/jotpad/internal/models"
	"github.com/starford/jotpad/internal/session"
	"github.com/starford/jotpad/internal/storage"
	"github.com/starford/jotpad/internal/theme"
)

const currentNoteURI = "jotpad://notes/current"

// Server wraps the MCP server with Jotpad tools.
type Server struct {
	mcp      *server.MCPServer
	sess     *session.Session
	panel    *theme.Panel
	exporter storage.Exporter
}

// New creates a new MCP server with all Jotpad tools registered.
// exporter may be nil, in which case exports are returned inline.
func New(sess *session.Session, panel *theme.Panel, exporter storage.Exporter) *Server {
	s := &Server{sess: sess, panel: panel, exporter: exporter}

	s.mcp = server.NewMCPServer(
		"Jotpad",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List all notes, most recent first, with a short preview. The active note is marked."),
	), s.listNotes)

	s.mcp.AddTool(mcp.NewTool("read_current_note",
		mcp.WithDescription("Read the current note with its character and word counts."),
	), s.readCurrentNote)

	s.mcp.AddTool(mcp.NewTool("add_note",
		mcp.WithDescription("Add an empty note at the top of the list and make it current."),
	), s.addNote)

	s.mcp.AddTool(mcp.NewTool("switch_note",
		mcp.WithDescription("Make another note current. Use list_notes to find ids."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Id of the note to open")),
	), s.switchNote)

	s.mcp.AddTool(mcp.NewTool("edit_current_note",
		mcp.WithDescription("Replace the title and content of the current note and save immediately. "+
			"A blank title is stored as \""+models.DefaultTitle+"\"."),
		mcp.WithString("title", mcp.Description("New title; omit to keep the current one")),
		mcp.WithString("content", mcp.Required(), mcp.Description("New plain-text content")),
	), s.editCurrentNote)

	s.mcp.AddTool(mcp.NewTool("delete_current_note",
		mcp.WithDescription("Delete the current note. When it is the only note it is cleared instead. "+
			"Deleting one of several notes requires confirm=true."),
		mcp.WithBoolean("confirm", mcp.Description("Confirm the deletion")),
	), s.deleteCurrentNote)

	s.mcp.AddTool(mcp.NewTool("export_current_note",
		mcp.WithDescription("Export the current note as a plain-text file named after its title."),
	), s.exportCurrentNote)

	s.mcp.AddTool(mcp.NewTool("get_theme",
		mcp.WithDescription("Get the color theme preference."),
	), s.getTheme)

	s.mcp.AddTool(mcp.NewTool("set_theme",
		mcp.WithDescription("Set the color theme preference. Other open instances follow it."),
		mcp.WithString("theme", mcp.Required(), mcp.Description("Theme value"),
			mcp.Enum(string(models.ThemeSystem), string(models.ThemeLight), string(models.ThemeDark))),
	), s.setTheme)

	// Resource: current note body.
	s.mcp.AddResource(
		mcp.NewResource(currentNoteURI, "Current note",
			mcp.WithResourceDescription("Plain-text content of the note open in the editor."),
			mcp.WithMIMEType("text/plain"),
		),
		s.readCurrentNoteResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

type currentNote struct {
	Note   models.Note       `json:"note"`
	Stats  models.Stats      `json:"stats"`
	Status models.SaveStatus `json:"status"`
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

func (s *Server) current() currentNote {
	n, _ := s.sess.CurrentNote()
	return currentNote{Note: n, Stats: s.sess.Stats(), Status: s.sess.Status()}
}

func (s *Server) listNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(map[string]any{
		"currentNoteId": s.sess.CurrentNoteID(),
		"notes":         s.sess.List(),
	}), nil
}

func (s *Server) readCurrentNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.current()), nil
}

func (s *Server) addNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if _, err := s.sess.AddNote(ctx); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(s.current()), nil
}

func (s *Server) switchNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.sess.SwitchNote(ctx, id); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(s.current()), nil
}

func (s *Server) editCurrentNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	// A missing title keeps the one in the editor.
	editorTitle, _ := s.sess.Editor()
	title := req.GetString("title", editorTitle)

	s.sess.Edit(title, content)
	if err := s.sess.Save(ctx); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(s.current()), nil
}

func (s *Server) deleteCurrentNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	confirm := session.Never
	if req.GetBool("confirm", false) {
		confirm = session.Always
	}
	if err := s.sess.DeleteCurrentNote(ctx, confirm); err != nil {
		if errors.Is(err, apperr.ErrNotConfirmed) {
			return mcp.NewToolResultError("deletion not confirmed: call again with confirm=true"), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(s.current()), nil
}

func (s *Server) exportCurrentNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	exp, err := s.sess.ExportCurrentNote()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if s.exporter == nil {
		return jsonResult(map[string]string{
			"filename": exp.Filename,
			"mimeType": exp.MIMEType,
			"content":  string(exp.Content),
		}), nil
	}
	path, err := s.exporter.Export(exp)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("export failed: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("exported: %s", path)), nil
}

func (s *Server) getTheme(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(string(s.panel.Load(ctx))), nil
}

func (s *Server) setTheme(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	value, err := req.RequireString("theme")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	t := models.Theme(value)
	if err := theme.Validate(t); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid theme %q: %v", value, err)), nil
	}
	if err := s.panel.Save(ctx, t); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("theme: %s", t)), nil
}

func (s *Server) readCurrentNoteResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	n, ok := s.sess.CurrentNote()
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      currentNoteURI,
			MIMEType: "text/plain",
			Text:     n.Content,
		},
	}, nil
}
