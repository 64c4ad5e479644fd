package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"chatsync/domain"
	"chatsync/errors"
)

// HistoryClient fetches a room's past messages. Any transport or server
// failure maps to ErrHistoryUnavailable; the caller leaves its stream
// untouched on error.
type HistoryClient struct {
	baseURL  string
	deviceID string
	client   *http.Client
	log      *slog.Logger
}

func NewHistoryClient(baseURL, deviceID string, log *slog.Logger) *HistoryClient {
	return &HistoryClient{
		baseURL:  baseURL,
		deviceID: deviceID,
		client:   &http.Client{Timeout: defaultTimeout},
		log:      log,
	}
}

func (c *HistoryClient) Fetch(ctx context.Context, room, token string) ([]domain.Message, error) {
	endpoint := fmt.Sprintf("%s/api/messages?room=%s", c.baseURL, url.QueryEscape(room))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrHistoryUnavailable, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if c.deviceID != "" {
		req.Header.Set("X-Device-ID", c.deviceID)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrHistoryUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", errors.ErrHistoryUnavailable, resp.StatusCode)
	}

	var messages []domain.Message
	if err := json.NewDecoder(resp.Body).Decode(&messages); err != nil {
		return nil, fmt.Errorf("%w: invalid body: %v", errors.ErrHistoryUnavailable, err)
	}

	c.log.Debug(fmt.Sprintf("Fetched %d messages for room %s in %v", len(messages), room, time.Since(start)))
	return messages, nil
}
