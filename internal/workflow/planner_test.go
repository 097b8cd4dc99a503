package workflow_test

import (
	"slices"
	"strings"
	"testing"

	"github.com/seantiz/dispatch/internal/workflow"
)

func TestKeywordPlanner(t *testing.T) {
	p := workflow.NewKeywordPlanner()

	tests := []struct {
		name         string
		requirements string
		wantTargets  []string
		wantDeps     map[string][]string
	}{
		{
			name:         "search only",
			requirements: "Find recent papers on consensus",
			wantTargets:  []string{"web_search_agent"},
		},
		{
			name:         "analysis without search",
			requirements: "Calculate the quarterly growth",
			wantTargets:  []string{"data_analysis_agent"},
			wantDeps:     map[string][]string{"data_analysis_agent": nil},
		},
		{
			name:         "search analyze write",
			requirements: "Search for sales data, analyze it and write a summary",
			wantTargets:  []string{"web_search_agent", "data_analysis_agent", "content_generator_agent"},
			wantDeps: map[string][]string{
				"data_analysis_agent":     {"web_search_agent"},
				"content_generator_agent": {"web_search_agent", "data_analysis_agent"},
			},
		},
		{
			name:         "fallback",
			requirements: "Tell me about Go",
			wantTargets:  []string{"web_search_agent", "content_generator_agent"},
			wantDeps:     map[string][]string{"content_generator_agent": {"web_search_agent"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			steps, err := p.Plan(tt.requirements)
			if err != nil {
				t.Fatalf("Plan: %v", err)
			}
			var got []string
			for _, s := range steps {
				got = append(got, s.TargetName)
				if s.StepID() != s.TargetName {
					t.Errorf("step id %q, want target name %q", s.StepID(), s.TargetName)
				}
				if !strings.Contains(s.Instruction, tt.requirements) {
					t.Errorf("instruction %q does not carry the requirements", s.Instruction)
				}
				if want, ok := tt.wantDeps[s.TargetName]; ok && !slices.Equal(s.DependsOn, want) {
					t.Errorf("%s depends on %v, want %v", s.TargetName, s.DependsOn, want)
				}
			}
			if !slices.Equal(got, tt.wantTargets) {
				t.Errorf("targets = %v, want %v", got, tt.wantTargets)
			}
		})
	}
}

func TestKeywordPlannerTimeouts(t *testing.T) {
	steps, err := workflow.NewKeywordPlanner().Plan("lookup, process and create")
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	want := []float64{60, 120, 90}
	for i, s := range steps {
		if s.TimeoutS != want[i] {
			t.Errorf("step %s timeout = %v, want %v", s.StepID(), s.TimeoutS, want[i])
		}
	}
}

func TestKeywordPlannerCustomTargets(t *testing.T) {
	p := &workflow.KeywordPlanner{SearchTarget: "search", AnalysisTarget: "stats", ContentTarget: "writer"}
	steps, err := p.Plan("find and write")
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(steps) != 2 || steps[1].TargetName != "writer" || !slices.Equal(steps[1].DependsOn, []string{"search"}) {
		t.Errorf("steps = %+v", steps)
	}
}

func TestKeywordPlannerEmpty(t *testing.T) {
	if _, err := workflow.NewKeywordPlanner().Plan("   "); err == nil {
		t.Error("expected error for blank requirements")
	}
}
