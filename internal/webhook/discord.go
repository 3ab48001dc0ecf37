package webhook

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ev1stensberg/walkoff/internal/db"
)

// Discord handles Discord webhook notifications
type Discord struct {
	client *http.Client
}

// NewDiscord creates a new Discord webhook handler
func NewDiscord() *Discord {
	return &Discord{client: newClient()}
}

// DiscordEmbed represents a Discord embed object
type DiscordEmbed struct {
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color"`
	Fields      []EmbedField `json:"fields,omitempty"`
	Timestamp   string       `json:"timestamp,omitempty"`
	Footer      *EmbedFooter `json:"footer,omitempty"`
}

// EmbedField represents a field in a Discord embed
type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

// EmbedFooter represents the footer of a Discord embed
type EmbedFooter struct {
	Text string `json:"text"`
}

// DiscordPayload represents the webhook payload
type DiscordPayload struct {
	Content string         `json:"content,omitempty"`
	Embeds  []DiscordEmbed `json:"embeds,omitempty"`
}

// SendRunResult posts the outcome of a run to Discord
func (d *Discord) SendRunResult(ctx context.Context, webhookURL string, n Notice) error {
	var (
		color       int
		statusEmoji string
	)
	switch n.Run.Status {
	case db.RunStatusCompleted:
		color, statusEmoji = 0x00FF00, "✅"
	case db.RunStatusFailed:
		color, statusEmoji = 0xFF0000, "❌"
	default:
		color, statusEmoji = 0xFFFF00, "⏳"
	}

	embed := DiscordEmbed{
		Title: fmt.Sprintf("%s Task: %s", statusEmoji, n.TaskName),
		Color: color,
		Fields: []EmbedField{
			{Name: "Status", Value: string(n.Run.Status), Inline: true},
			{Name: "Duration", Value: n.duration(), Inline: true},
			{Name: "Workflow", Value: fmt.Sprintf("`%s`", n.Run.WorkflowID), Inline: false},
		},
		Timestamp: n.Run.StartedAt.Format(time.RFC3339),
		Footer:    &EmbedFooter{Text: fmt.Sprintf("walkoff scheduler · run %d", n.Run.ID)},
	}
	if n.Run.Error != "" {
		embed.Fields = append(embed.Fields, EmbedField{
			Name:  "⚠️ Error",
			Value: fmt.Sprintf("```\n%s\n```", truncate(n.Run.Error, 500)),
		})
	}

	return post(ctx, d.client, webhookURL, DiscordPayload{Embeds: []DiscordEmbed{embed}}, nil)
}
