package token

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// RuntimeInvoker calls the token issuer synchronously through the Restate
// runtime's HTTP ingress: POST {runtime}/{service}/{key}/{handler} with an
// empty payload.
type RuntimeInvoker struct {
	RuntimeURL string
	Service    string
	Key        string
	Handler    string

	HTTP *http.Client
}

func NewRuntimeInvoker(runtimeURL, service, key, handler string) *RuntimeInvoker {
	return &RuntimeInvoker{
		RuntimeURL: runtimeURL,
		Service:    service,
		Key:        key,
		Handler:    handler,
		HTTP:       &http.Client{Timeout: 30 * time.Second},
	}
}

func (i *RuntimeInvoker) Invoke(ctx context.Context) error {
	url := fmt.Sprintf("%s/%s/%s/%s", i.RuntimeURL, i.Service, i.Key, i.Handler)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader([]byte("{}")))
	if err != nil {
		return fmt.Errorf("create issuer request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := i.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("call token issuer: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("token issuer invocation failed: status=%d body=%s", resp.StatusCode, truncate(body, 200))
	}

	// A 2xx with a reported handler error still counts as a failed refresh.
	var probe struct {
		ErrorMessage string `json:"errorMessage"`
	}
	if err := json.Unmarshal(body, &probe); err == nil && probe.ErrorMessage != "" {
		return fmt.Errorf("token issuer error: %s", probe.ErrorMessage)
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
