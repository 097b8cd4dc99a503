package agent

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// WebSearch returns canned search results for the query in the instruction.
type WebSearch struct {
	Delay time.Duration
}

// Process implements Processor.
func (w WebSearch) Process(ctx context.Context, instruction string, _ map[string]any) (any, error) {
	if err := sleep(ctx, w.Delay); err != nil {
		return nil, err
	}

	query := strings.TrimSpace(strings.NewReplacer("search for", "", "find", "").Replace(instruction))
	results := []map[string]any{
		{
			"title":   fmt.Sprintf("Result 1 for '%s'", query),
			"url":     "https://example.com/result1",
			"snippet": fmt.Sprintf("This is a sample search result for %s.", query),
		},
		{
			"title":   fmt.Sprintf("Result 2 for '%s'", query),
			"url":     "https://example.com/result2",
			"snippet": fmt.Sprintf("Another relevant result for %s.", query),
		},
		{
			"title":   fmt.Sprintf("Result 3 for '%s'", query),
			"url":     "https://example.com/result3",
			"snippet": fmt.Sprintf("Third search result about %s.", query),
		},
	}
	return map[string]any{
		"type":          "search_results",
		"query":         query,
		"results":       results,
		"total_results": len(results),
		"search_time":   w.Delay.Seconds(),
	}, nil
}

// ContentGenerator returns templated content whose shape follows the kind of
// document the instruction asks for.
type ContentGenerator struct {
	Delay time.Duration
}

// Process implements Processor.
func (g ContentGenerator) Process(ctx context.Context, instruction string, _ map[string]any) (any, error) {
	if err := sleep(ctx, g.Delay); err != nil {
		return nil, err
	}

	lower := strings.ToLower(instruction)
	var contentType, content string
	switch {
	case strings.Contains(lower, "summary"):
		contentType = "summary"
		content = "This is a generated summary based on the instruction: " + instruction
	case strings.Contains(lower, "article"):
		contentType = "article"
		content = "# Generated Article\n\nThis is a generated article based on: " + instruction +
			"\n\n## Introduction\n\nContent goes here...\n\n## Conclusion\n\nSummary of key points."
	case strings.Contains(lower, "email"):
		contentType = "email"
		content = "Subject: Generated Email\n\nDear Recipient,\n\nThis email was generated based on: " +
			instruction + "\n\nBest regards,\nContent Generator"
	default:
		contentType = "general"
		content = "Generated content for: " + instruction
	}

	return map[string]any{
		"type":            "general_response",
		"content_type":    contentType,
		"content":         content,
		"word_count":      len(strings.Fields(content)),
		"generation_time": g.Delay.Seconds(),
	}, nil
}

// DataAnalysis summarizes the numeric "value" fields of the records in the
// task context's "data" list, falling back to a built-in sample.
type DataAnalysis struct {
	Delay time.Duration
}

var sampleData = []any{
	map[string]any{"category": "A", "value": 10.0},
	map[string]any{"category": "B", "value": 15.0},
	map[string]any{"category": "C", "value": 8.0},
	map[string]any{"category": "D", "value": 12.0},
}

// Process implements Processor.
func (d DataAnalysis) Process(ctx context.Context, instruction string, taskCtx map[string]any) (any, error) {
	if err := sleep(ctx, d.Delay); err != nil {
		return nil, err
	}

	data, _ := taskCtx["data"].([]any)
	if len(data) == 0 {
		data = sampleData
	}

	var values []float64
	for _, item := range data {
		rec, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if v, ok := number(rec["value"]); ok {
			values = append(values, v)
		}
	}

	analysis := map[string]any{"error": "No numeric data found for analysis"}
	if len(values) > 0 {
		total, lo, hi := 0.0, values[0], values[0]
		for _, v := range values {
			total += v
			lo = min(lo, v)
			hi = max(hi, v)
		}
		analysis = map[string]any{
			"total":   total,
			"average": total / float64(len(values)),
			"min":     lo,
			"max":     hi,
			"count":   len(values),
		}
	}

	return map[string]any{
		"type":            "analysis_results",
		"instruction":     instruction,
		"data_points":     len(data),
		"analysis":        analysis,
		"processing_time": d.Delay.Seconds(),
	}, nil
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
