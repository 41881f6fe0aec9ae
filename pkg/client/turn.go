package client

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/sarvesh-official/lumo/internal/chat"
	"github.com/sarvesh-official/lumo/pkg/types"
)

// Turn posts new messages for a session and streams the server's turn
// events to sink until the turn finishes. An empty messages list asks the
// server to respond to the session's persisted transcript.
func (c *Client) Turn(ctx context.Context, sessionID string, messages []types.Message, sink chat.Sink) error {
	body := map[string]any{"messages": messages}
	req, err := c.newRequest(ctx, http.MethodPost, "/session/"+sessionID+"/turn", body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeAPIError(resp)
	}
	return readTurnStream(resp, sink)
}

// readTurnStream parses the SSE frames of a turn response. Comment lines
// (heartbeats) are skipped; an "error" event terminates the stream.
func readTurnStream(resp *http.Response, sink chat.Sink) error {
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	var eventName string
	var data strings.Builder
	flush := func() error {
		defer func() {
			eventName = ""
			data.Reset()
		}()
		if eventName == "" || data.Len() == 0 {
			return nil
		}
		if eventName == "error" {
			var e struct {
				Message string `json:"message"`
			}
			_ = json.Unmarshal([]byte(data.String()), &e)
			if e.Message == "" {
				e.Message = "turn aborted"
			}
			return fmt.Errorf("turn stream: %s", e.Message)
		}
		var ev chat.TurnEvent
		if err := json.Unmarshal([]byte(data.String()), &ev); err != nil {
			return fmt.Errorf("turn stream: decode %s event: %w", eventName, err)
		}
		if sink != nil {
			sink(ev)
		}
		return nil
	}

	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if err := flush(); err != nil {
				return err
			}
		case strings.HasPrefix(line, ":"):
			// heartbeat
		case strings.HasPrefix(line, "event:"):
			eventName = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("turn stream: %w", err)
	}
	return flush()
}
