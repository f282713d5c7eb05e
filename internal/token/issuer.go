package token

import (
	"context"
	"crypto/tls"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Efrain290493/gft/internal/secrets"
	"github.com/Efrain290493/gft/internal/tokenstore"
)

// IssuerConfig configures the upstream OAuth token endpoint.
type IssuerConfig struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
	// InsecureSkipVerify disables server certificate verification; only for
	// the sandbox environments that present self-signed chains.
	InsecureSkipVerify bool
}

// Issuer obtains a fresh bearer token via the client-credentials grant over
// mutual TLS and persists the resulting record to the token store.
type Issuer struct {
	cfg   IssuerConfig
	store *tokenstore.Store
	http  *http.Client
	now   func() time.Time
}

func NewIssuer(cfg IssuerConfig, store *tokenstore.Store, bundle secrets.CredentialBundle) (*Issuer, error) {
	cert, err := tls.LoadX509KeyPair(bundle.CertPath, bundle.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("load client certificate pair: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{
			Certificates:       []tls.Certificate{cert},
			InsecureSkipVerify: cfg.InsecureSkipVerify,
		},
	}
	return &Issuer{
		cfg:   cfg,
		store: store,
		http:  &http.Client{Transport: transport, Timeout: cfg.Timeout},
		now:   time.Now,
	}, nil
}

// Issue requests a new token and upserts the singleton record. Idempotent in
// effect: repeated calls simply replace the record with a fresher token.
func (i *Issuer) Issue(ctx context.Context) (tokenstore.Record, error) {
	form := url.Values{"grant_type": {"client_credentials"}}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, i.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return tokenstore.Record{}, fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(i.cfg.ClientID, i.cfg.ClientSecret)

	resp, err := i.http.Do(req)
	if err != nil {
		return tokenstore.Record{}, fmt.Errorf("call token endpoint: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return tokenstore.Record{}, fmt.Errorf("token endpoint returned status %d: %s", resp.StatusCode, truncate(body, 200))
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return tokenstore.Record{}, fmt.Errorf("decode token response: %w", err)
	}
	if payload.AccessToken == "" {
		return tokenstore.Record{}, fmt.Errorf("token response missing access_token")
	}

	rec := tokenstore.Record{
		AccessToken: payload.AccessToken,
		IssuedAt:    sql.NullTime{Time: i.now().UTC(), Valid: true},
	}
	if payload.ExpiresIn > 0 {
		rec.ExpiresIn = sql.NullInt64{Int64: payload.ExpiresIn, Valid: true}
	}

	if err := i.store.Put(ctx, rec); err != nil {
		return tokenstore.Record{}, err
	}
	log.Printf("[issuer] token issued (expires_in=%d)", payload.ExpiresIn)
	return rec, nil
}
