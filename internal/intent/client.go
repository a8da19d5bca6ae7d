package intent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrRetryable marks failures the caller should resubmit with its freshest
// known position: timeouts, transport errors and 5xx responses.
var ErrRetryable = errors.New("intent: retryable failure")

// ErrRejected marks 4xx responses. The caller should revert its optimistic
// update and refetch.
var ErrRejected = errors.New("intent: move rejected")

// HeaderConnectionID names the caller's realtime connection so the server
// can skip echoing the move back to it.
const HeaderConnectionID = "X-Connection-ID"

// MoveRequest is the JSON body of a move call.
type MoveRequest struct {
	SourceListID      uint   `json:"sourceListId"`
	DestinationListID uint   `json:"destinationListId"`
	ItemID            uint   `json:"itemId"`
	ItemTitle         string `json:"itemTitle"`
	ActorName         string `json:"actorName"`
	OldSeqNo          int    `json:"oldSeqNo"`
	NewSeqNo          int    `json:"newSeqNo"`
	BoardID           uint   `json:"boardId"`
	ProjectID         uint   `json:"projectId"`
}

// StatusError is a non-2xx response.
type StatusError struct {
	Code    int
	Message string
	kind    error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("intent: move failed: %d %s", e.Code, e.Message)
}

func (e *StatusError) Unwrap() error { return e.kind }

// MoveClient posts move intents to the server.
type MoveClient struct {
	BaseURL      string
	Token        string
	ConnectionID string
	HTTP         *http.Client
}

// NewMoveClient returns a client whose calls time out after timeout.
func NewMoveClient(baseURL, token string, timeout time.Duration) *MoveClient {
	return &MoveClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTP:    &http.Client{Timeout: timeout},
	}
}

// Execute implements Func.
func (c *MoveClient) Execute(ctx context.Context, in Intent) error {
	kind := in.Kind
	if kind == "" {
		kind = "cards"
	}
	body, err := json.Marshal(in.Move)
	if err != nil {
		return fmt.Errorf("intent: encode move: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/"+kind+"/move", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("intent: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	if c.ConnectionID != "" {
		req.Header.Set(HeaderConnectionID, c.ConnectionID)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return fmt.Errorf("intent: move: %w", err)
		}
		return fmt.Errorf("%w: %w", ErrRetryable, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	var payload struct {
		Error string `json:"error"`
	}
	msg := strings.TrimSpace(string(raw))
	if json.Unmarshal(raw, &payload) == nil && payload.Error != "" {
		msg = payload.Error
	}
	kindErr := ErrRejected
	if resp.StatusCode >= 500 {
		kindErr = ErrRetryable
	}
	return &StatusError{Code: resp.StatusCode, Message: msg, kind: kindErr}
}
