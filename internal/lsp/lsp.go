// Package lsp is a language server for Lox. It keeps open documents in
// memory, publishes compile diagnostics on every change, and offers
// keyword and builtin completion plus document symbols.
package lsp

import (
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/caffeineduck/loxpad/internal/lox"
	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	_ "github.com/tliron/commonlog/simple"
)

const lspName = "loxpad-lsp"

// Option configures a Server.
type Option func(*Server)

// WithNatives sets the builtin function names offered for completion.
func WithNatives(names []string) Option {
	return func(s *Server) {
		s.natives = append([]string(nil), names...)
		sort.Strings(s.natives)
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

func WithVersion(v string) Option {
	return func(s *Server) {
		s.version = v
	}
}

// Server bridges LSP editor features to the Lox front end.
type Server struct {
	natives []string
	logger  *slog.Logger
	version string

	mu   sync.Mutex
	docs map[protocol.DocumentUri]string

	handler protocol.Handler
	server  *glspserver.Server
}

// New creates a language server.
func New(opts ...Option) *Server {
	s := &Server{
		logger:  slog.New(slog.DiscardHandler),
		version: "dev",
		docs:    make(map[protocol.DocumentUri]string),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.handler = protocol.Handler{
		Initialize:  s.initialize,
		Initialized: s.initialized,
		Shutdown:    s.shutdown,
		SetTrace:    s.setTrace,

		TextDocumentDidOpen:   s.textDocumentDidOpen,
		TextDocumentDidChange: s.textDocumentDidChange,
		TextDocumentDidClose:  s.textDocumentDidClose,

		TextDocumentCompletion:     s.textDocumentCompletion,
		TextDocumentDocumentSymbol: s.textDocumentDocumentSymbol,
	}
	s.server = glspserver.NewServer(&s.handler, lspName, false)
	return s
}

// RunStdio serves on stdin/stdout until the client disconnects.
func (s *Server) RunStdio() error {
	return s.server.RunStdio()
}

func (s *Server) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	commonlog.NewInfoMessage(0, "loxpad LSP initializing")

	capabilities := s.handler.CreateServerCapabilities()

	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
	}
	capabilities.CompletionProvider = &protocol.CompletionOptions{}
	capabilities.DocumentSymbolProvider = true

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lspName,
			Version: &s.version,
		},
	}, nil
}

func (s *Server) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	s.logger.Info("lsp client initialized")
	return nil
}

func (s *Server) shutdown(ctx *glsp.Context) error {
	protocol.SetTraceValue(protocol.TraceValueOff)
	return nil
}

func (s *Server) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	protocol.SetTraceValue(params.Value)
	return nil
}

func (s *Server) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	uri := params.TextDocument.URI
	s.setDocument(uri, params.TextDocument.Text)
	s.publish(ctx, uri, Diagnose(params.TextDocument.Text))
	return nil
}

func (s *Server) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	if len(params.ContentChanges) == 0 {
		return nil
	}
	// Full sync: the last change holds the whole text.
	whole, ok := params.ContentChanges[len(params.ContentChanges)-1].(protocol.TextDocumentContentChangeEventWhole)
	if !ok {
		return errors.New("incremental changes are not supported")
	}
	uri := params.TextDocument.URI
	s.setDocument(uri, whole.Text)
	s.publish(ctx, uri, Diagnose(whole.Text))
	return nil
}

func (s *Server) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI
	s.mu.Lock()
	delete(s.docs, uri)
	s.mu.Unlock()

	s.publish(ctx, uri, []protocol.Diagnostic{})
	return nil
}

func (s *Server) textDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	text, ok := s.document(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	prefix := extractPrefix(text, params.Position)
	if prefix == "" {
		return nil, nil
	}
	return s.complete(prefix, text), nil
}

func (s *Server) textDocumentDocumentSymbol(ctx *glsp.Context, params *protocol.DocumentSymbolParams) (any, error) {
	text, ok := s.document(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	return Symbols(text), nil
}

func (s *Server) setDocument(uri protocol.DocumentUri, text string) {
	s.mu.Lock()
	s.docs[uri] = text
	s.mu.Unlock()
}

func (s *Server) document(uri protocol.DocumentUri) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	text, ok := s.docs[uri]
	return text, ok
}

func (s *Server) publish(ctx *glsp.Context, uri protocol.DocumentUri, diags []protocol.Diagnostic) {
	s.logger.Debug("publishing diagnostics", slog.String("uri", string(uri)), slog.Int("count", len(diags)))
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diags,
	})
}

// Diagnose compiles text and reports every problem found. A clean file
// yields an empty, non-nil slice so that stale diagnostics are cleared.
func Diagnose(text string) []protocol.Diagnostic {
	diags := []protocol.Diagnostic{}
	_, err := lox.Compile("", text)
	var cerr *lox.CompileError
	if !errors.As(err, &cerr) {
		return diags
	}

	severity := protocol.DiagnosticSeverityError
	source := lspName
	for _, d := range cerr.Diagnostics {
		start := position(d.Pos)
		end := start
		end.Character++
		diags = append(diags, protocol.Diagnostic{
			Range:    protocol.Range{Start: start, End: end},
			Severity: &severity,
			Source:   &source,
			Message:  d.Message,
		})
	}
	return diags
}

// complete offers keywords, natives and names declared in text that start
// with prefix.
func (s *Server) complete(prefix, text string) []protocol.CompletionItem {
	var items []protocol.CompletionItem
	add := func(label string, kind protocol.CompletionItemKind, detail string) {
		if label == prefix || !strings.HasPrefix(label, prefix) {
			return
		}
		items = append(items, protocol.CompletionItem{
			Label:  label,
			Kind:   &kind,
			Detail: &detail,
		})
	}

	keywords := make([]string, 0, len(lox.Keywords))
	for kw := range lox.Keywords {
		keywords = append(keywords, kw)
	}
	sort.Strings(keywords)
	for _, kw := range keywords {
		add(kw, protocol.CompletionItemKindKeyword, "keyword")
	}
	for _, name := range s.natives {
		add(name, protocol.CompletionItemKindFunction, "builtin")
	}

	seen := map[string]bool{}
	for _, sym := range Symbols(text) {
		if seen[sym.Name] {
			continue
		}
		seen[sym.Name] = true
		if sym.Kind == protocol.SymbolKindFunction {
			add(sym.Name, protocol.CompletionItemKindFunction, "fun")
		} else {
			add(sym.Name, protocol.CompletionItemKindVariable, "var")
		}
	}
	return items
}

// Symbols lists the top-level functions and variables of text. It parses
// with error recovery, so a file with syntax errors still has symbols.
func Symbols(text string) []protocol.DocumentSymbol {
	stmts, _ := lox.Parse(text)
	var symbols []protocol.DocumentSymbol
	for _, stmt := range stmts {
		switch st := stmt.(type) {
		case *lox.FunStmt:
			detail := "fun(" + paramList(st.Params) + ")"
			symbols = append(symbols, symbol(st.Name, protocol.SymbolKindFunction, detail))
		case *lox.VarStmt:
			symbols = append(symbols, symbol(st.Name, protocol.SymbolKindVariable, "var"))
		}
	}
	return symbols
}

func symbol(name lox.Token, kind protocol.SymbolKind, detail string) protocol.DocumentSymbol {
	start := position(name.Pos)
	end := start
	end.Character += protocol.UInteger(len([]rune(name.Lexeme)))
	r := protocol.Range{Start: start, End: end}
	return protocol.DocumentSymbol{
		Name:           name.Lexeme,
		Detail:         &detail,
		Kind:           kind,
		Range:          r,
		SelectionRange: r,
	}
}

func paramList(params []lox.Token) string {
	names := make([]string, len(params))
	for i, p := range params {
		names[i] = p.Lexeme
	}
	return strings.Join(names, ", ")
}

// position converts a 1-based source position to a 0-based LSP one.
func position(p lox.Pos) protocol.Position {
	line, col := p.Line-1, p.Column-1
	if line < 0 {
		line = 0
	}
	if col < 0 {
		col = 0
	}
	return protocol.Position{Line: protocol.UInteger(line), Character: protocol.UInteger(col)}
}

// extractPrefix returns the identifier fragment before the cursor.
func extractPrefix(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := []rune(lines[pos.Line])
	col := int(pos.Character)
	if col > len(line) {
		col = len(line)
	}

	start := col
	for start > 0 {
		ch := line[start-1]
		if unicode.IsLetter(ch) || unicode.IsDigit(ch) || ch == '_' {
			start--
		} else {
			break
		}
	}
	return string(line[start:col])
}

func boolPtr(b bool) *bool {
	return &b
}
