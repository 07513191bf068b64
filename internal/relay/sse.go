package relay

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"cipherdm/internal/domain"
	"cipherdm/internal/push"
)

// Listen connects to the event stream for username and blocks, forwarding
// decoded "new_message" events. Malformed events are logged and skipped.
// The request uses the client's transport, so pinning applies, but the
// stream itself has no deadline beyond ctx.
func (c *HTTP) Listen(ctx context.Context, username domain.Username, events chan<- domain.Event, subscribed func()) error {
	u := c.Base + c.Endpoints.Events + "?" + url.Values{"username": {username.String()}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	// The configured client timeout would cut the stream.
	client := *c.HTTP
	client.Timeout = 0
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("relay events: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return statusError(req, resp)
	}
	c.log.Info().Str("username", username.String()).Msg("event stream connected")
	// The backend registers the subscriber before it answers.
	if subscribed != nil {
		subscribed()
	}

	err = readSSE(resp.Body, func(event, data string) error {
		if event != "" && event != push.EventName {
			return nil
		}
		ev, err := push.Decode([]byte(data))
		if err != nil {
			c.log.Warn().Err(err).Msg("dropping push event")
			return nil
		}
		select {
		case events <- ev:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// readSSE parses a text/event-stream body and calls fn per dispatched event.
func readSSE(r io.Reader, fn func(event, data string) error) error {
	reader := bufio.NewReader(r)

	var currentEvent string
	var dataLines []string

	flush := func() error {
		defer func() {
			currentEvent = ""
			dataLines = dataLines[:0]
		}()
		if len(dataLines) == 0 {
			return nil
		}
		return fn(currentEvent, strings.Join(dataLines, "\n"))
	}

	for {
		lineBytes, err := reader.ReadBytes('\n')
		if err != nil {
			if err == io.EOF {
				if ferr := flush(); ferr != nil {
					return ferr
				}
			}
			return err
		}

		line := strings.TrimRight(string(lineBytes), "\r\n")
		if line == "" {
			if err := flush(); err != nil {
				return err
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			// comment / keep-alive
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			currentEvent = value
		case "data":
			dataLines = append(dataLines, value)
		}
	}
}

// Compile-time assertion that HTTP implements domain.EventSource.
var _ domain.EventSource = (*HTTP)(nil)
