package secrets

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Efrain290493/gft/internal/faults"
)

// Config locates the certificate secret in an OpenBao KV v2 mount.
type Config struct {
	Addr       string
	Token      string
	Mount      string
	SecretPath string
	Namespace  string
	// CertDir is the local directory the decoded material is written to.
	// Defaults to the OS temp dir.
	CertDir string
}

// CredentialBundle points at the decoded client certificate and private key
// used for mutual TLS against the upstream API.
type CredentialBundle struct {
	CertPath string
	KeyPath  string
}

const (
	certFieldName = "redeban_crt"
	keyFieldName  = "redeban_key"
)

// CertificateProvider fetches the client certificate pair from the secret
// store and materializes it as owner-only local files. The bundle is fetched
// once per process and reused across requests; Invalidate forces a refetch.
type CertificateProvider struct {
	cfg  Config
	http *http.Client

	mu     sync.Mutex
	bundle *CredentialBundle
}

func NewCertificateProvider(cfg Config) *CertificateProvider {
	if cfg.CertDir == "" {
		cfg.CertDir = os.TempDir()
	}
	cfg.Addr = strings.TrimRight(strings.TrimSpace(cfg.Addr), "/")
	cfg.Mount = strings.Trim(strings.TrimSpace(cfg.Mount), "/")
	cfg.SecretPath = strings.Trim(strings.TrimSpace(cfg.SecretPath), "/")
	return &CertificateProvider{
		cfg:  cfg,
		http: &http.Client{Timeout: 5 * time.Second},
	}
}

// GetCertificates returns the materialized credential bundle, fetching and
// decoding the secret on first use. Safe to call repeatedly.
func (p *CertificateProvider) GetCertificates(ctx context.Context) (CredentialBundle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.bundle != nil {
		return *p.bundle, nil
	}

	fields, err := p.readSecret(ctx)
	if err != nil {
		return CredentialBundle{}, err
	}

	certPath := filepath.Join(p.cfg.CertDir, "redeban.crt")
	keyPath := filepath.Join(p.cfg.CertDir, "redeban.key")

	if err := writeDecoded(certPath, certFieldName, fields[certFieldName]); err != nil {
		return CredentialBundle{}, err
	}
	if err := writeDecoded(keyPath, keyFieldName, fields[keyFieldName]); err != nil {
		return CredentialBundle{}, err
	}

	log.Printf("[secrets] certificates materialized under %s", p.cfg.CertDir)
	p.bundle = &CredentialBundle{CertPath: certPath, KeyPath: keyPath}
	return *p.bundle, nil
}

// Invalidate drops the cached bundle so the next call refetches the secret.
// Used after the upstream reports a credential-related failure.
func (p *CertificateProvider) Invalidate() {
	p.mu.Lock()
	p.bundle = nil
	p.mu.Unlock()
}

// Check verifies the secret store is reachable and the secret exists,
// without touching the local files. Backs the health endpoint.
func (p *CertificateProvider) Check(ctx context.Context) error {
	_, err := p.readSecret(ctx)
	return err
}

func (p *CertificateProvider) readSecret(ctx context.Context) (map[string]string, error) {
	url := fmt.Sprintf("%s/v1/%s/data/%s", p.cfg.Addr, p.cfg.Mount, p.cfg.SecretPath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, faults.Wrap(faults.KindSecretUnavailable, err, "create secret store request")
	}

	req.Header.Set("X-Vault-Token", p.cfg.Token)
	if p.cfg.Namespace != "" {
		req.Header.Set("X-Vault-Namespace", p.cfg.Namespace)
	}

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, faults.Wrap(faults.KindSecretUnavailable, err, "call secret store")
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		// continue
	case http.StatusNotFound:
		return nil, faults.New(faults.KindSecretUnavailable, "secret not found: %s", p.cfg.SecretPath)
	case http.StatusForbidden:
		return nil, faults.New(faults.KindSecretUnavailable, "access denied to secret: %s", p.cfg.SecretPath)
	default:
		return nil, faults.New(faults.KindSecretUnavailable, "secret store request failed: status=%d", resp.StatusCode)
	}

	var payload struct {
		Data struct {
			Data map[string]string `json:"data"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, faults.Wrap(faults.KindSecretMalformed, err, "decode secret store response")
	}

	fields := payload.Data.Data
	for _, key := range []string{certFieldName, keyFieldName} {
		if fields[key] == "" {
			return nil, faults.New(faults.KindSecretMalformed, "secret missing required field: %s", key)
		}
	}
	return fields, nil
}

func writeDecoded(path, field, encoded string) error {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return faults.Wrap(faults.KindSecretMalformed, err, "decode base64 field %s", field)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return faults.Wrap(faults.KindFilesystem, err, "write %s", path)
	}
	st, err := os.Stat(path)
	if err != nil {
		return faults.Wrap(faults.KindFilesystem, err, "stat %s", path)
	}
	if st.Size() == 0 {
		return faults.New(faults.KindFilesystem, "file empty after write: %s", path)
	}
	return nil
}
