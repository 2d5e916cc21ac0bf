// Package mcpadapter exposes dataset status, filters and analytics as MCP
// tools so agents can query processed datasets.
package mcpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/dataset-analytics/internal/core/domain"
	"github.com/kirillkom/dataset-analytics/internal/core/ports"
)

const (
	ServerName    = "dataset-analytics"
	ServerVersion = "1.0.0"
)

type Tools struct {
	reader    ports.DatasetReader
	analytics ports.AnalyticsService
	ownerID   string
}

// NewTools binds every call to ownerID; the MCP transport carries no caller
// identity of its own.
func NewTools(reader ports.DatasetReader, analytics ports.AnalyticsService, ownerID string) *Tools {
	return &Tools{reader: reader, analytics: analytics, ownerID: ownerID}
}

func (t *Tools) Server() *server.MCPServer {
	s := server.NewMCPServer(ServerName, ServerVersion,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	datasetID := mcp.WithNumber("dataset_id", mcp.Required(), mcp.Description("Numeric dataset id."))

	s.AddTool(mcp.NewTool("dataset_status",
		mcp.WithDescription("Processing status, error message and data profile of an uploaded dataset."),
		datasetID,
	), t.datasetStatus)

	s.AddTool(mcp.NewTool("dataset_filters",
		mcp.WithDescription("Distinct values of brand, packtype, ppg, channel and year for a completed dataset."),
		datasetID,
	), t.datasetFilters)

	s.AddTool(mcp.NewTool("dataset_analytics",
		mcp.WithDescription("Sales, volume, yearly comparison, monthly trend and market share views of a completed dataset."),
		datasetID,
		mcp.WithString("brand", mcp.Description("Exact brand filter.")),
		mcp.WithString("packType", mcp.Description("Exact pack type filter.")),
		mcp.WithString("ppg", mcp.Description("Exact price-pack group filter.")),
		mcp.WithString("channel", mcp.Description("Exact channel filter.")),
		mcp.WithString("year", mcp.Description("Integer year filter.")),
	), t.datasetAnalytics)

	return s
}

func (t *Tools) datasetStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := datasetIDArg(req)
	if err != nil {
		return toolError(err), nil
	}
	ds, err := t.reader.GetForOwner(ctx, t.ownerID, id)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(ds)
}

func (t *Tools) datasetFilters(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := datasetIDArg(req)
	if err != nil {
		return toolError(err), nil
	}
	opts, err := t.analytics.Filters(ctx, t.ownerID, id)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(opts)
}

func (t *Tools) datasetAnalytics(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := datasetIDArg(req)
	if err != nil {
		return toolError(err), nil
	}
	filters := domain.Filters{
		Brand:    req.GetString("brand", ""),
		PackType: req.GetString("packType", ""),
		PPG:      req.GetString("ppg", ""),
		Channel:  req.GetString("channel", ""),
		Year:     req.GetString("year", ""),
	}
	report, err := t.analytics.Analytics(ctx, t.ownerID, id, filters)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(report)
}

func datasetIDArg(req mcp.CallToolRequest) (int64, error) {
	raw, err := req.RequireFloat("dataset_id")
	if err != nil {
		return 0, domain.WrapError(domain.ErrInvalidInput, "dataset_id", err)
	}
	if raw <= 0 || raw != math.Trunc(raw) || raw > math.MaxInt64 {
		return 0, domain.WrapError(domain.ErrInvalidInput, "dataset_id", fmt.Errorf("%v is not a positive integer", raw))
	}
	return int64(raw), nil
}

// toolError reports domain failures inside the tool result. Only client
// errors keep their message.
func toolError(err error) *mcp.CallToolResult {
	var notReady *domain.NotReadyError
	switch {
	case errors.As(err, &notReady):
		return mcp.NewToolResultError(notReady.Error())
	case domain.IsClientError(err):
		return mcp.NewToolResultError(err.Error())
	case domain.IsKind(err, domain.ErrTemporary):
		slog.Warn("mcp_tool_temporary_failure", "error", err)
		return mcp.NewToolResultError("service temporarily unavailable, retry later")
	default:
		slog.Error("mcp_tool_failed", "error", err)
		return mcp.NewToolResultError("internal error")
	}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode tool result: %w", err)
	}
	return mcp.NewToolResultText(string(raw)), nil
}
