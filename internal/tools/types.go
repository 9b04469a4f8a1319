// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package tools

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/tejzpr/dermtrack/internal/ledger"
	"github.com/tejzpr/dermtrack/internal/progress"
	"github.com/tejzpr/dermtrack/internal/tracker"
	"go.uber.org/zap"
)

// ToolContext holds shared dependencies for all tools
type ToolContext struct {
	Tracker *tracker.Service
	Logger  *zap.Logger
}

// NewToolContext creates a new tool context
func NewToolContext(svc *tracker.Service, logger *zap.Logger) *ToolContext {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ToolContext{
		Tracker: svc,
		Logger:  logger,
	}
}

// domainError renders err for the model. Expected conditions come back as
// guidance, everything else as a generic failure.
func (tc *ToolContext) domainError(op string, err error) *mcp.CallToolResult {
	if tracker.ErrorReason(err) != "internal" {
		return mcp.NewToolResultError(err.Error())
	}
	tc.Logger.Error("tool failed", zap.String("tool", op), zap.Error(err))
	return mcp.NewToolResultError(fmt.Sprintf("%s failed: internal error", op))
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// parseAppendInput reads features, predictions and annotation from the
// tool arguments
func parseAppendInput(request mcp.CallToolRequest) (ledger.AppendInput, error) {
	in := ledger.AppendInput{
		Annotation: strings.TrimSpace(request.GetString("annotation", "")),
	}

	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return in, fmt.Errorf("arguments must be an object")
	}

	raw, ok := args["features"].([]interface{})
	if !ok {
		return in, fmt.Errorf("features must be an array of numbers")
	}
	in.Features = make([]float64, 0, len(raw))
	for i, item := range raw {
		v, ok := item.(float64)
		if !ok {
			return in, fmt.Errorf("features[%d] is not a number", i)
		}
		in.Features = append(in.Features, v)
	}

	if preds, ok := args["predictions"].([]interface{}); ok {
		for _, item := range preds {
			predMap, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			var p progress.Prediction
			if label, ok := predMap["label"].(string); ok {
				p.Label = label
			}
			if conf, ok := predMap["confidence"].(float64); ok {
				p.Confidence = conf
			}
			if p.Label != "" {
				in.Predictions = append(in.Predictions, p)
			}
		}
	}

	return in, nil
}
