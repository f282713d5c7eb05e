package kyc

import (
	"context"
	"log"
	"sync"

	"github.com/Efrain290493/gft/internal/faults"
	"github.com/Efrain290493/gft/internal/redeban"
	"github.com/Efrain290493/gft/internal/secrets"
)

// CertificateSource yields the mutual-TLS credential bundle.
type CertificateSource interface {
	GetCertificates(ctx context.Context) (secrets.CredentialBundle, error)
	Invalidate()
}

// TokenSource yields a bearer token valid for at least the safety margin.
type TokenSource interface {
	GetValidToken(ctx context.Context) (string, error)
}

type commerceClient interface {
	GetCommerceInfo(ctx context.Context, merchantID, token string, includeRaw bool) (redeban.Commerce, error)
}

// Service is the per-process execution context for commerce lookups: built
// once at startup, it holds the warm state (credential bundle, upstream
// connection pool) reused across sequential requests.
type Service struct {
	cfg    redeban.Config
	certs  CertificateSource
	tokens TokenSource

	newClient func(redeban.Config, *secrets.CredentialBundle) (commerceClient, error)

	mu     sync.Mutex
	bundle secrets.CredentialBundle
	client commerceClient
}

func NewService(cfg redeban.Config, certs CertificateSource, tokens TokenSource) *Service {
	return &Service{
		cfg:    cfg,
		certs:  certs,
		tokens: tokens,
		newClient: func(cfg redeban.Config, b *secrets.CredentialBundle) (commerceClient, error) {
			return redeban.NewClient(cfg, b)
		},
	}
}

// Lookup resolves certificates and a valid token, then queries the upstream
// API. The returned error is always classified (see faults).
func (s *Service) Lookup(ctx context.Context, merchantID string, includeRaw bool) (redeban.Commerce, error) {
	bundle, err := s.certs.GetCertificates(ctx)
	if err != nil {
		return redeban.Commerce{}, err
	}

	tok, err := s.tokens.GetValidToken(ctx)
	if err != nil {
		return redeban.Commerce{}, err
	}

	cli, err := s.clientFor(bundle)
	if err != nil {
		return redeban.Commerce{}, err
	}

	out, err := cli.GetCommerceInfo(ctx, merchantID, tok, includeRaw)
	if faults.IsKind(err, faults.KindAuthentication) {
		// A 401 may mean revoked client credentials, not just a stale token.
		// Drop the cached material so the next request refetches both.
		log.Printf("[kyc] upstream rejected credentials for merchant %s, invalidating cached bundle", merchantID)
		s.certs.Invalidate()
		s.dropClient()
	}
	return out, err
}

func (s *Service) clientFor(bundle secrets.CredentialBundle) (commerceClient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil && s.bundle == bundle {
		return s.client, nil
	}

	cli, err := s.newClient(s.cfg, &bundle)
	if err != nil {
		return nil, err
	}
	s.client = cli
	s.bundle = bundle
	return cli, nil
}

func (s *Service) dropClient() {
	s.mu.Lock()
	s.client = nil
	s.mu.Unlock()
}
