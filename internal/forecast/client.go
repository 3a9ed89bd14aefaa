package forecast

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

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

var (
	ErrUnavailable     = errors.New("forecast service unavailable")
	ErrInvalidResponse = errors.New("invalid forecast response")
)

// Provider predicts the demand of a product over the next seven days
type Provider interface {
	ForecastDemand(ctx context.Context, productID uuid.UUID) (int, error)
}

// Config configures the HTTP forecast client
type Config struct {
	BaseURL string
	Timeout time.Duration
	// Retries is the number of extra attempts after a failed call
	Retries int
	// FailureThreshold consecutive failures open the breaker
	FailureThreshold uint32
	// OpenTimeout is how long the breaker stays open before probing again
	OpenTimeout time.Duration
}

type forecastRequest struct {
	ProductID string `json:"productId"`
}

type forecastResponse struct {
	TotalForecast *int `json:"total_forecast"`
}

type client struct {
	baseURL    string
	httpClient *http.Client
	retries    uint64
	breaker    *gobreaker.CircuitBreaker[int]
	logger     *zap.Logger
}

// NewClient creates a Provider backed by the prediction service at cfg.BaseURL
func NewClient(cfg Config, logger *zap.Logger) Provider {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}

	threshold := cfg.FailureThreshold
	breaker := gobreaker.NewCircuitBreaker[int](gobreaker.Settings{
		Name:        "forecast",
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		retries:    uint64(cfg.Retries),
		breaker:    breaker,
		logger:     logger,
	}
}

// ForecastDemand calls POST /forecast. Server errors are retried with
// exponential backoff; an open breaker fails fast with ErrUnavailable.
func (c *client) ForecastDemand(ctx context.Context, productID uuid.UUID) (int, error) {
	demand, err := c.breaker.Execute(func() (int, error) {
		var demand int
		backoff := retry.WithMaxRetries(c.retries, retry.NewExponential(100*time.Millisecond))
		err := retry.Do(ctx, backoff, func(ctx context.Context) error {
			d, err := c.call(ctx, productID)
			if err != nil {
				var status *statusError
				if errors.As(err, &status) && status.code < http.StatusInternalServerError {
					return err
				}
				if errors.Is(err, ErrInvalidResponse) {
					return err
				}
				return retry.RetryableError(err)
			}
			demand = d
			return nil
		})
		return demand, err
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return 0, err
	}
	return demand, nil
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("forecast service returned status %d", e.code)
}

func (c *client) call(ctx context.Context, productID uuid.UUID) (int, error) {
	payload, err := json.Marshal(forecastRequest{ProductID: productID.String()})
	if err != nil {
		return 0, fmt.Errorf("failed to encode forecast request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/forecast", bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("failed to build forecast request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to call forecast service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return 0, &statusError{code: resp.StatusCode}
	}

	var body forecastResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if body.TotalForecast == nil || *body.TotalForecast < 0 {
		return 0, fmt.Errorf("%w: missing total_forecast", ErrInvalidResponse)
	}

	c.logger.Debug("Forecast received",
		zap.String("product_id", productID.String()),
		zap.Int("total_forecast", *body.TotalForecast),
	)
	return *body.TotalForecast, nil
}
