package mcp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/boltindex/internal/logger"
)

// Version is the MCP server version.
const Version = "0.1.0"

// Server exposes search, plan execution and index inspection over MCP.
type Server struct {
	ports  *Ports
	server *mcp.Server

	mu     sync.Mutex
	runCtx context.Context // bounds background runs; set by Run and RunHTTP
	runs   sync.WaitGroup
}

// NewServer creates a new MCP server with the given ports.
func NewServer(ports *Ports) (*Server, error) {
	if ports == nil {
		return nil, ErrMissingSearchService
	}
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("validating ports: %w", err)
	}

	impl := &mcp.Implementation{
		Name:    "boltindex",
		Version: Version,
	}

	s := &Server{
		ports:  ports,
		server: mcp.NewServer(impl, nil),
		runCtx: context.Background(),
	}

	s.registerTools()
	s.registerResources()

	return s, nil
}

// Run serves over stdio until ctx is cancelled, then waits for
// background runs to pause.
func (s *Server) Run(ctx context.Context) error {
	s.setRunContext(ctx)
	err := s.server.Run(ctx, &mcp.StdioTransport{})
	s.Wait()
	return err
}

// RunHTTP serves streamable HTTP on addr until ctx is cancelled, then
// waits for background runs to pause.
func (s *Server) RunHTTP(ctx context.Context, addr string) error {
	s.setRunContext(ctx)
	handler := mcp.NewStreamableHTTPHandler(func(_ *http.Request) *mcp.Server {
		return s.server
	}, nil)

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		httpServer.Shutdown(context.Background()) //nolint:errcheck
	}()

	err := httpServer.ListenAndServe()
	s.Wait()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Wait blocks until every run started in the background has returned.
func (s *Server) Wait() {
	s.runs.Wait()
}

func (s *Server) setRunContext(ctx context.Context) {
	s.mu.Lock()
	s.runCtx = ctx
	s.mu.Unlock()
}

// startRun runs an execution in the background. Cancelling the server
// context pauses it at the next checkpoint.
func (s *Server) startRun(id string) {
	s.mu.Lock()
	ctx := s.runCtx
	s.mu.Unlock()

	s.runs.Add(1)
	go func() {
		defer s.runs.Done()
		res, err := s.ports.Engine.Run(ctx, id)
		if err != nil {
			logger.Warn("mcp: execution %s: %v", id, err)
			return
		}
		logger.Info("mcp: execution %s finished %s", id, res.Outcome())
	}()
}
