package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/clinical-risk-scorer/internal/domain"
	"github.com/clinical-risk-scorer/internal/service"
)

// DescribeDomainParams defines parameters for describe_domain tool
type DescribeDomainParams struct {
	Domain string `json:"domain" jsonschema:"the domain key: heart, diabetes, parkinsons, lung_cancer or thyroid"`
}

// EvaluateRiskParams defines parameters for evaluate_risk tool
type EvaluateRiskParams struct {
	Domain       string                  `json:"domain" jsonschema:"the domain key: heart, diabetes, parkinsons, lung_cancer or thyroid"`
	Inputs       domain.ClinicalInputSet `json:"inputs" jsonschema:"field key (or alias) to value; choice fields accept the choice label"`
	SymptomScore *int                    `json:"symptom_score,omitempty" jsonschema:"optional thyroid symptom score from 0 to 100"`
}

// ThyroidReportParams defines parameters for thyroid_report tool
type ThyroidReportParams struct {
	Inputs       domain.ClinicalInputSet `json:"inputs" jsonschema:"the seven thyroid fields"`
	SymptomScore *int                    `json:"symptom_score,omitempty" jsonschema:"optional symptom score from 0 to 100"`
	Format       string                  `json:"format,omitempty" jsonschema:"text (default) or lines"`
}

// DomainList is the result of list_domains.
type DomainList struct {
	Domains []service.DomainInfo `json:"domains"`
}

// ReportLines is the result of thyroid_report with format lines.
type ReportLines struct {
	Lines []string `json:"lines"`
}

func (s *Server) handleListDomains(ctx context.Context, req *mcp.CallToolRequest, _ any) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", ToolListDomains).Info("Tool invoked")
	return nil, DomainList{Domains: s.evaluator.Domains()}, nil
}

func (s *Server) handleDescribeDomain(ctx context.Context, req *mcp.CallToolRequest, params DescribeDomainParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithFields(logrus.Fields{
		"tool":   ToolDescribeDomain,
		"domain": params.Domain,
	}).Info("Tool invoked")

	d, err := domain.ParseDomain(params.Domain)
	if err != nil {
		return s.createErrorResult(err), nil, nil
	}
	info, err := s.evaluator.Describe(d)
	if err != nil {
		return s.createErrorResult(err), nil, nil
	}
	return nil, info, nil
}

func (s *Server) handleEvaluateRisk(ctx context.Context, req *mcp.CallToolRequest, params EvaluateRiskParams) (*mcp.CallToolResult, any, error) {
	start := time.Now()
	log := s.logger.WithFields(logrus.Fields{
		"tool":   ToolEvaluateRisk,
		"domain": params.Domain,
	})
	log.Info("Tool invoked")

	d, err := domain.ParseDomain(params.Domain)
	if err != nil {
		return s.createErrorResult(err), nil, nil
	}

	eval, err := s.evaluator.Evaluate(ctx, d, params.Inputs, domain.EvaluationOptions{
		SymptomScore: params.SymptomScore,
		RequestID:    requestID(req),
	})
	if err != nil {
		return s.createErrorResult(err), nil, nil
	}

	log.WithFields(logrus.Fields{
		"verdict":  eval.Verdict,
		"duration": time.Since(start),
	}).Debug("Tool completed")
	return nil, eval, nil
}

func (s *Server) handleThyroidReport(ctx context.Context, req *mcp.CallToolRequest, params ThyroidReportParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", ToolThyroidReport).Info("Tool invoked")

	format := strings.ToLower(params.Format)
	if format != "" && format != "text" && format != "lines" {
		return s.createErrorResult(&domain.ErrorResponse{
			Code:    domain.CodeInvalidRequest,
			Message: fmt.Sprintf("unknown format %q", params.Format),
		}), nil, nil
	}

	report, err := s.evaluator.ThyroidReport(ctx, params.Inputs, domain.EvaluationOptions{
		SymptomScore: params.SymptomScore,
		RequestID:    requestID(req),
	})
	if err != nil {
		return s.createErrorResult(err), nil, nil
	}

	if format == "lines" {
		return nil, ReportLines{Lines: report.PDFLines}, nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: report.Summary}},
	}, nil, nil
}

// requestID ties audit records to the MCP session that produced them.
func requestID(req *mcp.CallToolRequest) string {
	if req == nil || req.Session == nil {
		return ""
	}
	return req.Session.ID()
}

// createErrorResult creates a standardized error result for tool calls. The
// text is the JSON ErrorResponse so clients can read the code and field.
func (s *Server) createErrorResult(err error) *mcp.CallToolResult {
	resp := domain.NewErrorResponse(err, "")
	var wire *domain.ErrorResponse
	if errors.As(err, &wire) {
		resp.Code, resp.Message = wire.Code, wire.Message
	}
	if resp.Code == domain.CodeInternal {
		s.logger.WithError(err).Error("Tool failed")
		resp.Message = "internal error"
	}

	text, mErr := json.Marshal(resp)
	if mErr != nil {
		text = []byte(fmt.Sprintf(`{"code":%q,"message":%q}`, resp.Code, resp.Message))
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(text)}},
		IsError: true,
	}
}
