package webhook

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ev1stensberg/walkoff/internal/db"
)

// Slack handles Slack webhook notifications
type Slack struct {
	client *http.Client
}

// NewSlack creates a new Slack webhook handler
func NewSlack() *Slack {
	return &Slack{client: newClient()}
}

// SlackBlock represents a Slack Block Kit block
type SlackBlock struct {
	Type     string         `json:"type"`
	Text     *SlackTextObj  `json:"text,omitempty"`
	Fields   []SlackTextObj `json:"fields,omitempty"`
	Elements []SlackElement `json:"elements,omitempty"`
}

// SlackTextObj represents a Slack text object
type SlackTextObj struct {
	Type  string `json:"type"`
	Text  string `json:"text"`
	Emoji bool   `json:"emoji,omitempty"`
}

// SlackElement represents a Slack element (for context blocks)
type SlackElement struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// SlackAttachment represents a Slack attachment (for colored sidebar)
type SlackAttachment struct {
	Color  string       `json:"color"`
	Blocks []SlackBlock `json:"blocks"`
}

// SlackPayload represents the webhook payload
type SlackPayload struct {
	Text        string            `json:"text,omitempty"`
	Attachments []SlackAttachment `json:"attachments,omitempty"`
}

// SendRunResult posts the outcome of a run to Slack
func (s *Slack) SendRunResult(ctx context.Context, webhookURL string, n Notice) error {
	var color, statusEmoji string
	switch n.Run.Status {
	case db.RunStatusCompleted:
		color, statusEmoji = "#00FF00", ":white_check_mark:"
	case db.RunStatusFailed:
		color, statusEmoji = "#FF0000", ":x:"
	default:
		color, statusEmoji = "#FFFF00", ":hourglass:"
	}

	blocks := []SlackBlock{
		{
			Type: "header",
			Text: &SlackTextObj{
				Type:  "plain_text",
				Text:  fmt.Sprintf("%s Task: %s", statusEmoji, n.TaskName),
				Emoji: true,
			},
		},
		{
			Type: "section",
			Fields: []SlackTextObj{
				{Type: "mrkdwn", Text: fmt.Sprintf("*Status:*\n%s", n.Run.Status)},
				{Type: "mrkdwn", Text: fmt.Sprintf("*Duration:*\n%s", n.duration())},
				{Type: "mrkdwn", Text: fmt.Sprintf("*Workflow:*\n`%s`", n.Run.WorkflowID)},
				{Type: "mrkdwn", Text: fmt.Sprintf("*Started:*\n<!date^%d^{date_short} {time}|%s>", n.Run.StartedAt.Unix(), n.Run.StartedAt.Format(time.RFC3339))},
			},
		},
	}

	if n.Run.Error != "" {
		blocks = append(blocks, SlackBlock{
			Type: "section",
			Text: &SlackTextObj{
				Type: "mrkdwn",
				Text: fmt.Sprintf(":warning: *Error:*\n```%s```", truncate(n.Run.Error, 500)),
			},
		})
	}

	blocks = append(blocks, SlackBlock{
		Type: "context",
		Elements: []SlackElement{
			{Type: "mrkdwn", Text: fmt.Sprintf("walkoff scheduler · task %d · run %d", n.Run.TaskID, n.Run.ID)},
		},
	})

	payload := SlackPayload{
		Text:        fmt.Sprintf("Task %s: %s", n.TaskName, n.Run.Status),
		Attachments: []SlackAttachment{{Color: color, Blocks: blocks}},
	}
	return post(ctx, s.client, webhookURL, payload, nil)
}
