package predict

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/example/fare-finder/internal/form"
)

func serve(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestPredictSendsSnapshot(t *testing.T) {
	var gotMethod, gotType string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotType = r.Header.Get("Content-Type")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = io.WriteString(w, `{"predicted_fare": 12.5}`)
	}))
	defer srv.Close()

	fields := form.Defaults()
	fields.Set(form.PickupDatetime, "2025-05-01T14:30")
	fields.Set(form.Distance, "3.2")

	fare, err := NewClient(srv.URL).Predict(context.Background(), fields)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fare != 12.5 {
		t.Fatalf("expected 12.5, got %v", fare)
	}
	if gotMethod != http.MethodPost || gotType != "application/json" {
		t.Fatalf("unexpected request %s %s", gotMethod, gotType)
	}
	if len(gotBody) != 12 {
		t.Fatalf("expected 12 keys, got %v", gotBody)
	}
	if gotBody["pickup_datetime"] != "2025-05-01 14:30:00" || gotBody["distance"] != 3.2 || gotBody["Weather"] != "sunny" {
		t.Fatalf("unexpected body %v", gotBody)
	}
	if gotBody["passenger_count"] != float64(1) {
		t.Fatalf("unexpected passenger_count %v", gotBody["passenger_count"])
	}
}

func TestPredictServiceError(t *testing.T) {
	srv := serve(t, http.StatusBadRequest, `{"error":"Invalid input"}`)
	_, err := NewClient(srv.URL).Predict(context.Background(), form.Defaults())
	var se *ServiceError
	if !errors.As(err, &se) {
		t.Fatalf("expected ServiceError, got %v", err)
	}
	if se.Status != http.StatusBadRequest {
		t.Fatalf("unexpected status %d", se.Status)
	}
	if got := FailureMessage(err); got != "Invalid input" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestPredictServiceErrorWithoutMessage(t *testing.T) {
	srv := serve(t, http.StatusInternalServerError, `<html>boom</html>`)
	_, err := NewClient(srv.URL).Predict(context.Background(), form.Defaults())
	if got := FailureMessage(err); got != fallbackServiceMessage {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestPredictErrorPayloadUnderSuccessStatus(t *testing.T) {
	srv := serve(t, http.StatusOK, `{"error":"model not loaded"}`)
	_, err := NewClient(srv.URL).Predict(context.Background(), form.Defaults())
	var se *ServiceError
	if !errors.As(err, &se) || se.Status != http.StatusOK {
		t.Fatalf("expected ServiceError with status 200, got %v", err)
	}
	if got := FailureMessage(err); got != "model not loaded" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestPredictMalformedBody(t *testing.T) {
	for _, body := range []string{`not json`, `{}`, `{"predicted_fare":"cheap"}`, ``} {
		srv := serve(t, http.StatusOK, body)
		_, err := NewClient(srv.URL).Predict(context.Background(), form.Defaults())
		if !errors.Is(err, ErrMalformedResponse) {
			t.Fatalf("%q: expected ErrMalformedResponse, got %v", body, err)
		}
		if FailureMessage(err) == "" {
			t.Fatalf("%q: expected a fallback message", body)
		}
	}
}

func TestPredictTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(url).Predict(context.Background(), form.Defaults())
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
	if got := FailureMessage(err); got != fallbackMessage {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestSuccessMessage(t *testing.T) {
	cases := map[float64]string{
		12.5:    "Predicted Fare: $12.50",
		7:       "Predicted Fare: $7.00",
		19.999:  "Predicted Fare: $20.00",
		3.14159: "Predicted Fare: $3.14",
	}
	for fare, want := range cases {
		if got := SuccessMessage(fare); got != want {
			t.Fatalf("%v: expected %q, got %q", fare, want, got)
		}
	}
}
