package api

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/Efrain290493/gft/internal/events"
	"github.com/Efrain290493/gft/internal/faults"
	"github.com/Efrain290493/gft/internal/redeban"
)

// LookupService resolves commerce information for a merchant identifier.
type LookupService interface {
	Lookup(ctx context.Context, merchantID string, includeRaw bool) (redeban.Commerce, error)
}

// ValidateMerchantID enforces the merchant code format: exactly 8 numeric
// digits, no separators.
func ValidateMerchantID(id string) error {
	if id == "" {
		return faults.New(faults.KindValidation, "merchantId is required")
	}
	if len(id) != 8 {
		return faults.New(faults.KindValidation, "merchantId must be exactly 8 digits, got %d characters", len(id))
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return faults.New(faults.KindValidation, "merchantId must contain only digits")
		}
	}
	return nil
}

// RegisterCommerceRoutes wires the commerce lookup endpoint into the mux.
// The producer may be nil; audit publishing is best-effort either way.
func RegisterCommerceRoutes(mux *http.ServeMux, svc LookupService, prod *events.Producer, auditTopic string) {
	mux.Handle("/api/commerce/", otelhttp.NewHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleCommerceLookup(svc, prod, auditTopic, w, r)
	}), "commerce-lookup"))
}

func handleCommerceLookup(svc LookupService, prod *events.Producer, auditTopic string, w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondErrorMessage(w, faults.KindValidation, "method not allowed, expected GET")
		return
	}

	merchantID := strings.TrimPrefix(r.URL.Path, "/api/commerce/")
	if strings.Contains(merchantID, "/") {
		respondErrorMessage(w, faults.KindValidation, "invalid path, expected: /api/commerce/{merchantId}")
		return
	}
	if err := ValidateMerchantID(merchantID); err != nil {
		respondError(w, err)
		return
	}

	includeRaw := parseBoolParam(r.URL.Query().Get("includeRawData"))

	started := time.Now()
	out, err := svc.Lookup(r.Context(), merchantID, includeRaw)
	elapsed := time.Since(started)

	if err != nil {
		log.Printf("[api] lookup failed merchant=%s kind=%s elapsed=%s: %v", merchantID, faults.KindOf(err), elapsed, err)
		publishAudit(prod, auditTopic, merchantID, events.CommerceLookupFailed, map[string]any{
			"merchantId": merchantID,
			"errorCode":  faults.KindOf(err).String(),
			"elapsedMs":  elapsed.Milliseconds(),
		})
		respondError(w, err)
		return
	}

	log.Printf("[api] lookup ok merchant=%s active=%t elapsed=%s", merchantID, out.IsActive, elapsed)
	publishAudit(prod, auditTopic, merchantID, events.CommerceLookupSucceeded, map[string]any{
		"merchantId": merchantID,
		"isActive":   out.IsActive,
		"elapsedMs":  elapsed.Milliseconds(),
	})
	respondSuccess(w, out)
}

// publishAudit emits a lookup audit event. Failures are logged, never
// surfaced to the caller.
func publishAudit(prod *events.Producer, topic, key, eventType string, data map[string]any) {
	if prod == nil || topic == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := prod.Publish(ctx, topic, key, events.Envelope{
		EventType:    eventType,
		EventVersion: "v1",
		AggregateID:  key,
		Data:         data,
	}); err != nil {
		log.Printf("[api] audit publish failed topic=%s merchant=%s: %v", topic, key, err)
	}
}

func parseBoolParam(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "yes", "y":
		return true
	}
	return false
}
