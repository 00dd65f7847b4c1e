// Package mcp exposes the evaluator to MCP clients as a set of tools.
package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/clinical-risk-scorer/internal/domain"
	"github.com/clinical-risk-scorer/internal/service"
)

// Default server identification.
const (
	DefaultServerName    = "clinical-risk-scorer"
	DefaultServerVersion = "v1.0.0"
)

// Tool names.
const (
	ToolListDomains    = "list_domains"
	ToolDescribeDomain = "describe_domain"
	ToolEvaluateRisk   = "evaluate_risk"
	ToolThyroidReport  = "thyroid_report"
)

// Server is the MCP server of the risk scorer.
type Server struct {
	mcpServer *mcp.Server
	evaluator *service.Evaluator
	logger    *logrus.Logger
}

// NewServer creates a new MCP server instance with every tool registered.
func NewServer(evaluator *service.Evaluator, cfg domain.MCPConfig, logger *logrus.Logger) *Server {
	if logger == nil {
		logger = logrus.New()
	}

	serverInfo := &mcp.Implementation{
		Name:    cfg.ServerName,
		Version: cfg.ServerVersion,
	}
	if serverInfo.Name == "" {
		serverInfo.Name = DefaultServerName
	}
	if serverInfo.Version == "" {
		serverInfo.Version = DefaultServerVersion
	}

	s := &Server{
		mcpServer: mcp.NewServer(serverInfo, nil),
		evaluator: evaluator,
		logger:    logger,
	}
	s.registerTools()

	logger.WithFields(logrus.Fields{
		"server_name":    serverInfo.Name,
		"server_version": serverInfo.Version,
	}).Info("MCP server initialized")
	return s
}

// MCPServer returns the underlying SDK server.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcpServer
}

// Run serves one session over t until the client disconnects or ctx is
// cancelled.
func (s *Server) Run(ctx context.Context, t mcp.Transport) error {
	s.logger.Info("Starting MCP server")
	if err := s.mcpServer.Run(ctx, t); err != nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}

// RunStdio serves over standard input and output.
func (s *Server) RunStdio(ctx context.Context) error {
	return s.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        ToolListDomains,
		Description: "List the clinical domains that can be evaluated, with the verdicts each can produce and the loaded model.",
	}, s.handleListDomains)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name: ToolDescribeDomain,
		Description: "Describe the input fields of one domain in classifier order: key, accepted aliases, label, unit, " +
			"bounds and choice labels. Call this before evaluate_risk.",
	}, s.handleDescribeDomain)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name: ToolEvaluateRisk,
		Description: "Evaluate one submitted form for a domain. Returns the verdict (Positive/Negative, or Low/Moderate/High " +
			"for thyroid), the echoed inputs and the recommendation. This is a screening aid, not a diagnosis.",
	}, s.handleEvaluateRisk)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        ToolThyroidReport,
		Description: "Evaluate a thyroid form and return the plain-text assessment report.",
	}, s.handleThyroidReport)

	s.logger.WithField("tool_count", 4).Debug("Registered MCP tools")
}
