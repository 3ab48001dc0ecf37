package webhook

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Dispatch asks the workflow engine to execute one workflow
type Dispatch struct {
	RunID      int64     `json:"run_id"`
	TaskID     int64     `json:"task_id"`
	WorkflowID uuid.UUID `json:"workflow_id"`
	FiredAt    time.Time `json:"fired_at"`
}

// Engine posts dispatch requests to the workflow engine
type Engine struct {
	endpoint string
	token    string
	client   *http.Client
}

// NewEngine creates an engine client. token, when set, is sent as a bearer token.
func NewEngine(endpoint, token string) *Engine {
	return &Engine{
		endpoint: endpoint,
		token:    token,
		client:   newClient(),
	}
}

// Dispatch sends d to the engine and waits for it to accept the run
func (e *Engine) Dispatch(ctx context.Context, d Dispatch) error {
	header := http.Header{}
	if e.token != "" {
		header.Set("Authorization", "Bearer "+e.token)
	}
	return post(ctx, e.client, e.endpoint, d, header)
}
