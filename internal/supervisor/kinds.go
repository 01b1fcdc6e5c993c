package supervisor

import (
	"fmt"
	"os"

	"github.com/agentkanban/agentkanban/internal/model"
)

// KindConfig is the per-agent-kind builder: the supervisor itself only ever
// deals in (command, argv, env); everything kind-specific lives here.
type KindConfig struct {
	BinaryName  string
	ExtraArgs   []string
	YoloFlag    string
	ModelFlag   string
	DefaultModel string
}

// Build composes the argument vector and process environment for one run.
// The environment always carries exactly the five AGENT_KANBAN_* keys the
// control plane relies on, plus whatever the host process already exports
// (PATH, HOME, etc. are required for the CLI itself to run).
func (c KindConfig) Build(req RunRequest) ([]string, []string) {
	modelName := c.DefaultModel
	if req.Model != nil && *req.Model != "" {
		modelName = *req.Model
	}

	argv := append([]string{}, c.ExtraArgs...)
	argv = append(argv, "-p", req.Prompt, "--output-format", "text")
	if c.YoloFlag != "" {
		argv = append(argv, c.YoloFlag)
	}
	if c.ModelFlag != "" && modelName != "" {
		argv = append(argv, c.ModelFlag, modelName)
	}

	env := append(os.Environ(),
		"AGENT_KANBAN_TICKET_ID="+req.TicketID,
		"AGENT_KANBAN_RUN_ID="+req.RunID,
		fmt.Sprintf("AGENT_KANBAN_API_URL=%s", req.APIURL),
		fmt.Sprintf("AGENT_KANBAN_API_TOKEN=%s", req.APIToken),
		"AGENT_KANBAN_REPO_PATH="+req.RepoPath,
	)
	return argv, env
}

// DefaultRegistry returns the built-in cursor/claude agent kind configs.
func DefaultRegistry() map[model.AgentKind]KindConfig {
	return map[model.AgentKind]KindConfig{
		model.AgentCursor: {
			BinaryName:   "cursor",
			ExtraArgs:    []string{"agent"},
			YoloFlag:     "--yolo",
			ModelFlag:    "--model",
			DefaultModel: "",
		},
		model.AgentClaude: {
			BinaryName:   "claude",
			ExtraArgs:    []string{"--print", "--dangerously-skip-permissions"},
			ModelFlag:    "--model",
			DefaultModel: "claude-opus-4-5",
		},
	}
}
