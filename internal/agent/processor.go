package agent

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// Processor carries out an instruction on behalf of a target.
type Processor interface {
	Process(ctx context.Context, instruction string, taskCtx map[string]any) (any, error)
}

// ProcessorFunc adapts a plain function to Processor.
type ProcessorFunc func(ctx context.Context, instruction string, taskCtx map[string]any) (any, error)

// Process implements Processor.
func (f ProcessorFunc) Process(ctx context.Context, instruction string, taskCtx map[string]any) (any, error) {
	return f(ctx, instruction, taskCtx)
}

// Echo replies with Reply, or with the instruction when Reply is empty.
type Echo struct {
	Reply string
}

// Process implements Processor.
func (e Echo) Process(_ context.Context, instruction string, _ map[string]any) (any, error) {
	if e.Reply != "" {
		return e.Reply, nil
	}
	return instruction, nil
}

// Processor kinds accepted by NewProcessor.
const (
	KindEcho             = "echo"
	KindWebSearch        = "web_search"
	KindContentGenerator = "content_generator"
	KindDataAnalysis     = "data_analysis"
)

// Profile is the identity a built-in processor kind advertises.
type Profile struct {
	Name         string
	Description  string
	Capabilities []string
}

var profiles = map[string]Profile{
	KindEcho: {
		Name:         "echo",
		Description:  "Replies with the instruction it receives",
		Capabilities: []string{"echo"},
	},
	KindWebSearch: {
		Name:         "web_search_agent",
		Description:  "Performs web searches and returns results",
		Capabilities: []string{"web_search", "information_retrieval"},
	},
	KindContentGenerator: {
		Name:         "content_generator_agent",
		Description:  "Generates various types of content",
		Capabilities: []string{"content_generation", "writing", "summarization"},
	},
	KindDataAnalysis: {
		Name:         "data_analysis_agent",
		Description:  "Performs data analysis and processing",
		Capabilities: []string{"data_analysis", "statistics", "visualization"},
	},
}

// Kinds lists the built-in processor kinds.
func Kinds() []string {
	out := make([]string, 0, len(profiles))
	for k := range profiles {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// NewProcessor returns the built-in processor of the given kind along with
// its default profile. delay is the simulated work time of the simulated
// kinds.
func NewProcessor(kind string, delay time.Duration) (Processor, Profile, error) {
	p, ok := profiles[kind]
	if !ok {
		return nil, Profile{}, fmt.Errorf("unknown processor kind %q", kind)
	}
	switch kind {
	case KindWebSearch:
		return WebSearch{Delay: delay}, p, nil
	case KindContentGenerator:
		return ContentGenerator{Delay: delay}, p, nil
	case KindDataAnalysis:
		return DataAnalysis{Delay: delay}, p, nil
	default:
		return Echo{}, p, nil
	}
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
