package predict

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/example/fare-finder/internal/form"
)

const DefaultEndpoint = "http://127.0.0.1:8000/api/predict/"

const (
	fallbackServiceMessage = "Prediction failed"
	fallbackMessage        = "An error occurred"
)

var (
	// ErrTransport wraps failures where no response was received.
	ErrTransport = errors.New("prediction service unreachable")
	// ErrMalformedResponse is returned for a success status whose body is not a fare.
	ErrMalformedResponse = errors.New("malformed prediction response")
)

// ServiceError is an application-level failure reported by the prediction service.
type ServiceError struct {
	Status  int
	Message string
}

func (e *ServiceError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("prediction service returned status %d", e.Status)
	}
	return fmt.Sprintf("prediction service returned status %d: %s", e.Status, e.Message)
}

// Client posts trip parameters to the fare prediction service.
type Client struct {
	Endpoint string
	HTTP     *http.Client
}

func NewClient(endpoint string) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	// per-attempt deadlines come from the caller's context
	return &Client{Endpoint: endpoint, HTTP: &http.Client{}}
}

type response struct {
	PredictedFare *float64 `json:"predicted_fare"`
	Error         *string  `json:"error"`
}

// Predict sends one request for the given snapshot and returns the predicted fare.
func (c *Client) Predict(ctx context.Context, fields form.Fields) (float64, error) {
	body, err := json.Marshal(fields)
	if err != nil {
		return 0, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, fmt.Errorf("%w: read body: %w", ErrTransport, err)
	}
	var out response
	decodeErr := json.Unmarshal(raw, &out)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		se := &ServiceError{Status: resp.StatusCode}
		if decodeErr == nil && out.Error != nil {
			se.Message = *out.Error
		}
		return 0, se
	}
	if decodeErr != nil {
		return 0, fmt.Errorf("%w: %w", ErrMalformedResponse, decodeErr)
	}
	// an error payload fails the attempt even under a success status
	if out.PredictedFare == nil && out.Error != nil {
		return 0, &ServiceError{Status: resp.StatusCode, Message: *out.Error}
	}
	if out.PredictedFare == nil {
		return 0, fmt.Errorf("%w: missing predicted_fare", ErrMalformedResponse)
	}
	return *out.PredictedFare, nil
}

// SuccessMessage formats a fare for display.
func SuccessMessage(fare float64) string {
	return fmt.Sprintf("Predicted Fare: $%.2f", fare)
}

// FailureMessage derives the text shown for a failed attempt.
func FailureMessage(err error) string {
	var se *ServiceError
	if errors.As(err, &se) {
		if se.Message != "" {
			return se.Message
		}
		return fallbackServiceMessage
	}
	return fallbackMessage
}
