package prompt

import (
	"strings"
	"testing"

	"github.com/agentkanban/agentkanban/internal/model"
)

func TestBuildIncludesTitleAndDescription(t *testing.T) {
	ticket := &model.Ticket{
		Title:         "Fix the flaky retry logic",
		DescriptionMD: "The **retry** loop sometimes spins forever.",
		Priority:      model.PriorityHigh,
		Labels:        []string{"bug", "backend"},
	}

	out, err := Build(ticket, "Engineering", "agentkanban")
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !strings.Contains(out, "Fix the flaky retry logic") {
		t.Error("expected title in rendered prompt")
	}
	if !strings.Contains(out, "retry") || strings.Contains(out, "**") {
		t.Errorf("expected plain-text description without markdown syntax, got %q", out)
	}
	if !strings.Contains(out, "HIGH") {
		t.Error("expected upper-cased priority")
	}
	if !strings.Contains(out, "bug, backend") {
		t.Error("expected joined labels")
	}
	if !strings.Contains(out, "ahead of medium/low priority") {
		t.Error("expected priority note for high priority")
	}
}

func TestBuildHandlesEmptyDescription(t *testing.T) {
	ticket := &model.Ticket{Title: "Empty", Priority: model.PriorityLow}
	out, err := Build(ticket, "", "")
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !strings.Contains(out, "no description provided") {
		t.Errorf("expected placeholder for empty description, got %q", out)
	}
}
