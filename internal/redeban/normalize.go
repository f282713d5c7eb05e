package redeban

import (
	"fmt"
	"strings"
	"time"
)

// Commerce is the normalized KYC record derived from the heterogeneous
// upstream response shapes. Constructed fresh per request, never persisted.
type Commerce struct {
	MerchantID        string         `json:"merchant_id"`
	BusinessName      string         `json:"business_name"`
	Status            string         `json:"status"`
	IsActive          bool           `json:"is_active"`
	RegistrationDate  *string        `json:"registration_date"`
	ContactInfo       map[string]any `json:"contact_info"`
	DocumentNumber    any            `json:"document_number,omitempty"`
	EstablishmentInfo any            `json:"establishment_info,omitempty"`
	EconomicActivity  any            `json:"economic_activity,omitempty"`
	Address           any            `json:"address,omitempty"`
	RawData           any            `json:"raw_data,omitempty"`
	ResponseTimestamp string         `json:"response_timestamp"`
	ProcessingError   string         `json:"processing_error,omitempty"`
}

// extracted is the shape-dependent portion of a Commerce record.
type extracted struct {
	businessName string
	status       string
	isActive     bool
	registration *string
	contact      map[string]any
}

// shape recognizes one possible upstream response layout: a predicate plus an
// extractor, tried in fixed priority order.
type shape struct {
	name    string
	matches func(m map[string]any) bool
	extract func(m map[string]any, merchantID string) extracted
}

// shapes is ordered; the final catch-all always matches. Matchers also accept
// their own snake_case output so re-normalizing a normalized record is a
// no-op for the name and active determination.
var shapes = []shape{
	{
		name: "flat",
		matches: func(m map[string]any) bool {
			return hasAny(m, "businessName", "business_name", "merchant_id")
		},
		extract: func(m map[string]any, merchantID string) extracted {
			return extractCommerceFields(m)
		},
	},
	{
		name: "nested-commerce",
		matches: func(m map[string]any) bool {
			_, ok := m["commerce"].(map[string]any)
			return ok
		},
		extract: func(m map[string]any, merchantID string) extracted {
			return extractCommerceFields(m["commerce"].(map[string]any))
		},
	},
	{
		name: "transaction",
		matches: func(m map[string]any) bool {
			return hasAny(m, "transaction", "application")
		},
		extract: func(m map[string]any, merchantID string) extracted {
			sub, ok := m["commerce"].(map[string]any)
			if !ok {
				sub, _ = m["merchant"].(map[string]any)
			}
			name := firstString(sub, "merchant_id", "merchantId")
			if name == "" {
				name = merchantID
			}
			return extracted{
				businessName: name,
				status:       "ACTIVE",
				isActive:     true,
				contact:      map[string]any{},
			}
		},
	},
	{
		name:    "unrecognized",
		matches: func(m map[string]any) bool { return true },
		extract: func(m map[string]any, merchantID string) extracted {
			name := firstString(m, "name", "id")
			if name == "" {
				name = "Información no disponible"
			}
			return extracted{
				businessName: name,
				status:       "UNKNOWN",
				contact:      map[string]any{},
			}
		},
	},
}

// Normalize maps a decoded 200 response body into the fixed Commerce record.
// It is total: any JSON value yields a record, falling back to a degraded
// shape when the top level is not an object.
func Normalize(raw any, merchantID string, includeRaw bool, now time.Time) Commerce {
	out := Commerce{
		MerchantID:        merchantID,
		ContactInfo:       map[string]any{},
		ResponseTimestamp: now.UTC().Format(time.RFC3339Nano),
	}

	m, ok := raw.(map[string]any)
	if !ok {
		out.BusinessName = fmt.Sprintf("Comercio %s", merchantID)
		out.Status = "UNKNOWN"
		if includeRaw {
			out.RawData = raw
		}
		return out
	}

	for _, s := range shapes {
		if !s.matches(m) {
			continue
		}
		e := s.extract(m, merchantID)
		out.BusinessName = e.businessName
		out.Status = e.status
		out.IsActive = e.isActive
		out.RegistrationDate = e.registration
		if e.contact != nil {
			out.ContactInfo = e.contact
		}
		break
	}

	// optional passthrough fields, re-emitted in snake_case
	out.DocumentNumber = firstValue(m, "documentNumber", "document_number")
	out.EstablishmentInfo = firstValue(m, "establishmentInfo", "establishment_info")
	out.EconomicActivity = firstValue(m, "economicActivity", "economic_activity")
	out.Address = firstValue(m, "address")

	if includeRaw {
		out.RawData = m
	}
	return out
}

func extractCommerceFields(m map[string]any) extracted {
	name := firstString(m, "businessName", "name", "business_name")
	if name == "" {
		name = "N/A"
	}
	status := firstString(m, "status")
	if status == "" {
		status = "UNKNOWN"
	}
	var registration *string
	if raw := firstString(m, "registrationDate", "registration_date"); raw != "" {
		parsed := ParseDate(raw)
		registration = &parsed
	}
	contact, ok := firstValue(m, "contactInfo", "contact_info").(map[string]any)
	if !ok {
		contact = map[string]any{}
	}
	return extracted{
		businessName: name,
		status:       status,
		isActive:     determineActive(m),
		registration: registration,
		contact:      contact,
	}
}

var activeStatuses = map[string]bool{
	"ACTIVE": true, "ACTIVO": true, "ENABLED": true,
	"HABILITADO": true, "APPROVED": true, "SUCCESS": true,
}

var inactiveStatuses = map[string]bool{
	"INACTIVE": true, "INACTIVO": true, "DISABLED": true,
	"DESHABILITADO": true, "CANCELLED": true, "SUSPENDED": true,
}

// determineActive derives the active flag in priority order: explicit
// boolean, status vocabulary, merchant identifier presence, false.
func determineActive(m map[string]any) bool {
	for _, key := range []string{"active", "isActive", "is_active"} {
		if v, ok := m[key]; ok {
			return truthy(v)
		}
	}

	status := strings.ToUpper(firstString(m, "status"))
	if activeStatuses[status] {
		return true
	}
	if inactiveStatuses[status] {
		return false
	}

	if firstValue(m, "merchant_id", "merchantId") != nil {
		return true
	}
	return false
}

func degradedRecord(raw any, merchantID string, includeRaw bool, now time.Time, reason string) Commerce {
	out := Commerce{
		MerchantID:        merchantID,
		BusinessName:      fmt.Sprintf("Comercio %s", merchantID),
		Status:            "PROCESSING_ERROR",
		ContactInfo:       map[string]any{},
		ResponseTimestamp: now.UTC().Format(time.RFC3339Nano),
		ProcessingError:   reason,
	}
	if includeRaw {
		out.RawData = raw
	}
	return out
}

func hasAny(m map[string]any, keys ...string) bool {
	for _, k := range keys {
		if _, ok := m[k]; ok {
			return true
		}
	}
	return false
}

func firstValue(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			return v
		}
	}
	return nil
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t != "" && t != "false" && t != "0"
	case float64:
		return t != 0
	case int:
		return t != 0
	}
	return v != nil
}
