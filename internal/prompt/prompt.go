// Package prompt generates the instruction text handed to an agent CLI on
// spawn, from a ticket's own fields. There is no on-disk template library:
// the template lives in this package and is rendered per invocation.
package prompt

import (
	"bytes"
	"strings"
	"text/template"

	"github.com/agentkanban/agentkanban/internal/markdown"
	"github.com/agentkanban/agentkanban/internal/model"
)

// Data is what gets interpolated into the prompt template.
type Data struct {
	Ticket       *model.Ticket
	BoardName    string
	ProjectName  string
	PriorityNote string
	Labels       []string
}

var templateFuncs = template.FuncMap{
	"upper": strings.ToUpper,
	"lower": strings.ToLower,
	"join":  strings.Join,
}

const promptTemplate = `You are working on ticket "{{.Ticket.Title}}"{{with .ProjectName}} in project {{.}}{{end}}.

Priority: {{.Ticket.Priority | upper}}{{with .PriorityNote}} — {{.}}{{end}}
{{- if .Labels}}
Labels: {{join .Labels ", "}}
{{- end}}

Description:
{{.Description}}

Instructions:
- Work only within the repository checked out at the path provided via AGENT_KANBAN_REPO_PATH.
- Report progress and final status through the hooks configured for this run; do not wait for further input.
- When the ticket's work is complete, stop. Do not start unrelated work.
`

var tmpl = template.Must(template.New("prompt").Funcs(templateFuncs).Parse(promptTemplate))

func priorityNote(p model.Priority) string {
	switch p {
	case model.PriorityUrgent:
		return "drop other work and address this first"
	case model.PriorityHigh:
		return "address ahead of medium/low priority tickets"
	default:
		return ""
	}
}

// Build renders the prompt text for a ticket, ready to hand to a supervisor
// RunRequest.
func Build(ticket *model.Ticket, boardName, projectName string) (string, error) {
	data := struct {
		Data
		Description string
	}{
		Data: Data{
			Ticket:       ticket,
			BoardName:    boardName,
			ProjectName:  projectName,
			PriorityNote: priorityNote(ticket.Priority),
			Labels:       ticket.Labels,
		},
		Description: strings.TrimSpace(markdown.PlainText(ticket.DescriptionMD)),
	}
	if data.Description == "" {
		data.Description = "(no description provided)"
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
