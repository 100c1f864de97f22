package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"qms-sync/internal/config"
	"qms-sync/internal/models"
	"qms-sync/pkg/log"
)

var (
	ErrRecordNotFound = errors.New("remote record not found")
	ErrUnavailable    = errors.New("remote system unavailable")
)

// Client is the transport contract an adapter holds against one external
// system. The core never depends on the wire protocol behind it.
type Client interface {
	Fetch(ctx context.Context, entity models.EntityType, id string) (map[string]interface{}, error)
	Push(ctx context.Context, entity models.EntityType, id string, record map[string]interface{}) error
}

const (
	defaultTimeout  = 30 * time.Second
	defaultMaxTries = 3
)

// HTTPClient talks JSON over HTTP to one external system. Calls run through
// a circuit breaker so a dead system trips fast instead of timing out on
// every record, and transient failures are retried with exponential backoff.
type HTTPClient struct {
	system   string
	baseURL  string
	apiKey   string
	client   *http.Client
	breaker  *gobreaker.CircuitBreaker
	maxTries uint
	logger   zerolog.Logger
}

func NewHTTPClient(system string, cfg config.RemoteSystem) *HTTPClient {
	timeout := defaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}

	logger := log.Logger.With().Str("component", "remote_client").Str("system", system).Logger()

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name: system,
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state changed")
		},
	})

	return &HTTPClient{
		system:   system,
		baseURL:  cfg.BaseURL,
		apiKey:   cfg.APIKey,
		client:   &http.Client{Timeout: timeout},
		breaker:  breaker,
		maxTries: defaultMaxTries,
		logger:   logger,
	}
}

func (c *HTTPClient) Fetch(ctx context.Context, entity models.EntityType, id string) (map[string]interface{}, error) {
	endpoint := c.recordURL(entity, id)

	body, err := c.execute(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	var record map[string]interface{}
	if unmarshalErr := json.Unmarshal(body, &record); unmarshalErr != nil {
		return nil, fmt.Errorf("failed to decode %s record %s from %s: %w", entity, id, c.system, unmarshalErr)
	}
	return record, nil
}

func (c *HTTPClient) Push(ctx context.Context, entity models.EntityType, id string, record map[string]interface{}) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode %s record %s for %s: %w", entity, id, c.system, err)
	}

	_, err = c.execute(ctx, http.MethodPut, c.recordURL(entity, id), payload)
	return err
}

func (c *HTTPClient) recordURL(entity models.EntityType, id string) string {
	return fmt.Sprintf("%s/api/v1/%s/%s", c.baseURL, url.PathEscape(entity.String()), url.PathEscape(id))
}

func (c *HTTPClient) execute(ctx context.Context, method, endpoint string, payload []byte) ([]byte, error) {
	operation := func() ([]byte, error) {
		result, err := c.breaker.Execute(func() (interface{}, error) {
			return c.doRequest(ctx, method, endpoint, payload)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return nil, backoff.Permanent(fmt.Errorf("%w: %v", ErrUnavailable, err))
			}
			return nil, err
		}
		return result.([]byte), nil
	}

	body, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(c.maxTries),
	)
	if err != nil {
		c.logger.Error().Err(err).Str("method", method).Str("endpoint", endpoint).Msg("Remote request failed")
		return nil, err
	}
	return body, nil
}

func (c *HTTPClient) doRequest(ctx context.Context, method, endpoint string, payload []byte) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to build request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", c.system, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response from %s: %w", c.system, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, backoff.Permanent(ErrRecordNotFound)
	case resp.StatusCode >= http.StatusInternalServerError:
		// Retryable; the breaker also counts these as failures.
		return nil, fmt.Errorf("%s returned status %d", c.system, resp.StatusCode)
	case resp.StatusCode >= http.StatusBadRequest:
		return nil, backoff.Permanent(fmt.Errorf("%s rejected request with status %d: %s", c.system, resp.StatusCode, string(body)))
	}

	return body, nil
}
