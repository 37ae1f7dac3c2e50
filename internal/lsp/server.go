// Package lsp serves the manifest diagnostic engine over stdio
// JSON-RPC. The protocol loop dispatches lifecycle notifications into
// the document store and hands updated text to the synthesizer.
package lsp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"

	"go.uber.org/zap"

	"crateslsp/internal/diagnose"
	"crateslsp/internal/document"
)

var (
	// ErrExit signals a graceful shutdown after receiving "exit".
	ErrExit = errors.New("lsp exit")
	// ErrExitWithoutShutdown signals an "exit" without a preceding "shutdown".
	ErrExitWithoutShutdown = errors.New("lsp exit without shutdown")
)

// Server handles stdio JSON-RPC for the manifest diagnostics server.
type Server struct {
	conn   *conn
	docs   *document.Store
	synth  *diagnose.Synthesizer
	logger *zap.Logger

	mu                sync.Mutex
	shutdownRequested bool
	passLocks         map[string]*sync.Mutex

	baseCtx context.Context
}

// NewServer wires the protocol loop to a synthesizer.
func NewServer(in io.Reader, out io.Writer, synth *diagnose.Synthesizer, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		conn:      newConn(in, out),
		docs:      document.NewStore(),
		synth:     synth,
		logger:    logger,
		passLocks: make(map[string]*sync.Mutex),
	}
}

// Run serves requests until shutdown or EOF.
func (s *Server) Run(ctx context.Context) error {
	s.baseCtx = ctx
	for {
		payload, err := s.conn.read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		var msg rpcMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			s.logger.Warn("failed to parse message", zap.Error(err))
			continue
		}
		if msg.Method == "" {
			continue
		}
		if err := s.handleMessage(&msg); err != nil {
			return err
		}
	}
}

func (s *Server) handleMessage(msg *rpcMessage) error {
	switch msg.Method {
	case "initialize":
		return s.handleInitialize(msg)
	case "initialized":
		return nil
	case "shutdown":
		s.mu.Lock()
		s.shutdownRequested = true
		s.mu.Unlock()
		return s.sendResponse(msg.ID, nil)
	case "exit":
		s.mu.Lock()
		requested := s.shutdownRequested
		s.mu.Unlock()
		if requested {
			return ErrExit
		}
		return ErrExitWithoutShutdown
	case "textDocument/didOpen":
		return s.handleDidOpen(msg)
	case "textDocument/didChange":
		return s.handleDidChange(msg)
	case "textDocument/didSave":
		return s.handleDidSave(msg)
	case "textDocument/didClose":
		return s.handleDidClose(msg)
	case "textDocument/hover":
		return s.handleHover(msg)
	case "textDocument/codeAction":
		return s.handleCodeAction(msg)
	default:
		if len(msg.ID) > 0 {
			return s.sendError(msg.ID, -32601, "method not found")
		}
		return nil
	}
}

func (s *Server) handleInitialize(msg *rpcMessage) error {
	result := initializeResult{
		Capabilities: serverCapabilities{
			TextDocumentSync: textDocumentSyncOptions{
				OpenClose: true,
				Change:    2,
				Save:      saveOptions{IncludeText: true},
			},
			HoverProvider:      true,
			CodeActionProvider: true,
		},
	}
	return s.sendResponse(msg.ID, result)
}

func (s *Server) handleDidOpen(msg *rpcMessage) error {
	var params didOpenTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return nil
	}
	uri := params.TextDocument.URI
	if !IsManifest(uri) {
		return nil
	}
	s.logger.Info("didOpen",
		zap.String("uri", uri),
		zap.Int32("version", params.TextDocument.Version))
	s.docs.Open(uri, params.TextDocument.Text, params.TextDocument.Version)
	s.schedulePass(uri)
	return nil
}

func (s *Server) handleDidChange(msg *rpcMessage) error {
	var params didChangeTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return nil
	}
	uri := params.TextDocument.URI
	if !IsManifest(uri) {
		return nil
	}
	changes := make([]document.Change, 0, len(params.ContentChanges))
	for _, change := range params.ContentChanges {
		changes = append(changes, document.Change{Range: change.Range, Text: change.Text})
	}
	if _, err := s.docs.ApplyChanges(uri, changes, params.TextDocument.Version); err != nil {
		s.logger.Warn("failed to apply change",
			zap.String("uri", uri),
			zap.Error(err))
	}
	s.schedulePass(uri)
	return nil
}

func (s *Server) handleDidSave(msg *rpcMessage) error {
	var params didSaveTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return nil
	}
	uri := params.TextDocument.URI
	if !IsManifest(uri) {
		return nil
	}
	if _, _, ok := s.docs.ApplySave(uri, params.Text); !ok {
		return nil
	}
	s.schedulePass(uri)
	return nil
}

func (s *Server) handleDidClose(msg *rpcMessage) error {
	var params didCloseTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return nil
	}
	uri := params.TextDocument.URI
	if !IsManifest(uri) {
		return nil
	}
	s.docs.Close(uri)
	s.mu.Lock()
	delete(s.passLocks, uri)
	s.mu.Unlock()
	// The close clears whatever was published for the document.
	if err := s.sendPublish(uri, nil, nil); err != nil {
		s.logger.Warn("failed to clear diagnostics", zap.Error(err))
	}
	return nil
}

func (s *Server) handleHover(msg *rpcMessage) error {
	var params hoverParams
	if len(msg.Params) > 0 {
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			return s.sendError(msg.ID, -32602, "invalid params")
		}
	}
	text, _, ok := s.docs.Get(params.TextDocument.URI)
	if !ok {
		return s.sendResponse(msg.ID, nil)
	}
	info, err := s.synth.HoverAt(s.baseCtx, text, params.Position)
	if err != nil || info == nil {
		return s.sendResponse(msg.ID, nil)
	}
	rng := info.Range
	return s.sendResponse(msg.ID, hover{
		Contents: markupContent{Kind: "markdown", Value: info.Contents},
		Range:    &rng,
	})
}

func (s *Server) handleCodeAction(msg *rpcMessage) error {
	var params codeActionParams
	if len(msg.Params) > 0 {
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			return s.sendError(msg.ID, -32602, "invalid params")
		}
	}
	uri := params.TextDocument.URI
	text, _, ok := s.docs.Get(uri)
	if !ok {
		return s.sendResponse(msg.ID, []codeAction{})
	}
	updates, err := s.synth.UpdateActions(s.baseCtx, text, params.Range)
	if err != nil {
		s.logger.Warn("code action pass failed", zap.Error(err))
		return s.sendResponse(msg.ID, []codeAction{})
	}
	actions := make([]codeAction, 0, len(updates))
	for _, update := range updates {
		actions = append(actions, codeAction{
			Title: update.Title,
			Kind:  "quickfix",
			Edit: workspaceEdit{
				Changes: map[string][]textEdit{
					uri: {{Range: update.Range, NewText: update.NewText}},
				},
			},
		})
	}
	return s.sendResponse(msg.ID, actions)
}

func (s *Server) sendResponse(id json.RawMessage, result any) error {
	return s.conn.write(map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result":  result,
	})
}

func (s *Server) sendError(id json.RawMessage, code int, message string) error {
	return s.conn.write(map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"error":   rpcError{Code: code, Message: message},
	})
}

func (s *Server) sendPublish(uri string, list []lspDiagnostic, version *int32) error {
	if list == nil {
		list = []lspDiagnostic{}
	}
	return s.conn.write(map[string]any{
		"jsonrpc": "2.0",
		"method":  "textDocument/publishDiagnostics",
		"params": publishDiagnosticsParams{
			URI:         uri,
			Diagnostics: list,
			Version:     version,
		},
	})
}
