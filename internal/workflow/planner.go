package workflow

import (
	"errors"
	"strings"

	"github.com/seantiz/dispatch/internal/model"
)

// Planner turns free-form requirements into workflow steps that Run
// consumes unchanged.
type Planner interface {
	Plan(requirements string) ([]model.WorkflowStep, error)
}

// Default target names used by KeywordPlanner.
const (
	DefaultSearchTarget   = "web_search_agent"
	DefaultAnalysisTarget = "data_analysis_agent"
	DefaultContentTarget  = "content_generator_agent"
)

var (
	searchKeywords   = []string{"search", "find", "lookup"}
	analysisKeywords = []string{"analyze", "process", "calculate"}
	contentKeywords  = []string{"generate", "create", "write"}
)

// KeywordPlanner maps requirement text to search, analysis and content
// steps by keyword. Step ids are the target names.
type KeywordPlanner struct {
	SearchTarget   string
	AnalysisTarget string
	ContentTarget  string
}

// NewKeywordPlanner returns a planner using the default target names.
func NewKeywordPlanner() *KeywordPlanner {
	return &KeywordPlanner{
		SearchTarget:   DefaultSearchTarget,
		AnalysisTarget: DefaultAnalysisTarget,
		ContentTarget:  DefaultContentTarget,
	}
}

// Plan implements Planner.
//
// A search step is added for search/find/lookup, an analysis step for
// analyze/process/calculate (after the search step when there is one), and
// a content step for generate/create/write (after every earlier step). When
// no keyword matches, the plan is a research step followed by a response
// step.
func (p *KeywordPlanner) Plan(requirements string) ([]model.WorkflowStep, error) {
	if strings.TrimSpace(requirements) == "" {
		return nil, errors.New("requirements are empty")
	}
	lower := strings.ToLower(requirements)

	var steps []model.WorkflowStep
	if containsAny(lower, searchKeywords) {
		steps = append(steps, model.WorkflowStep{
			ID:          p.SearchTarget,
			TargetName:  p.SearchTarget,
			Instruction: "Search for information about: " + requirements,
			TimeoutS:    60,
		})
	}

	if containsAny(lower, analysisKeywords) {
		var deps []string
		if len(steps) > 0 {
			deps = []string{p.SearchTarget}
		}
		steps = append(steps, model.WorkflowStep{
			ID:          p.AnalysisTarget,
			TargetName:  p.AnalysisTarget,
			Instruction: "Analyze data related to: " + requirements,
			DependsOn:   deps,
			TimeoutS:    120,
		})
	}

	if containsAny(lower, contentKeywords) {
		var deps []string
		for _, s := range steps {
			deps = append(deps, s.StepID())
		}
		steps = append(steps, model.WorkflowStep{
			ID:          p.ContentTarget,
			TargetName:  p.ContentTarget,
			Instruction: "Generate content for: " + requirements,
			DependsOn:   deps,
			TimeoutS:    90,
		})
	}

	if len(steps) == 0 {
		steps = []model.WorkflowStep{
			{
				ID:          p.SearchTarget,
				TargetName:  p.SearchTarget,
				Instruction: "Research: " + requirements,
				TimeoutS:    60,
			},
			{
				ID:          p.ContentTarget,
				TargetName:  p.ContentTarget,
				Instruction: "Provide a comprehensive response for: " + requirements,
				DependsOn:   []string{p.SearchTarget},
				TimeoutS:    90,
			},
		}
	}
	return steps, nil
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
