package kyc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Efrain290493/gft/internal/faults"
	"github.com/Efrain290493/gft/internal/redeban"
	"github.com/Efrain290493/gft/internal/secrets"
)

type fakeCerts struct {
	bundle      secrets.CredentialBundle
	err         error
	invalidated int
}

func (f *fakeCerts) GetCertificates(ctx context.Context) (secrets.CredentialBundle, error) {
	return f.bundle, f.err
}
func (f *fakeCerts) Invalidate() { f.invalidated++ }

type fakeTokens struct {
	token string
	err   error
}

func (f *fakeTokens) GetValidToken(ctx context.Context) (string, error) { return f.token, f.err }

type fakeCommerceClient struct {
	out      redeban.Commerce
	err      error
	gotToken string
	gotID    string
	gotRaw   bool
}

func (f *fakeCommerceClient) GetCommerceInfo(ctx context.Context, merchantID, token string, includeRaw bool) (redeban.Commerce, error) {
	f.gotID, f.gotToken, f.gotRaw = merchantID, token, includeRaw
	return f.out, f.err
}

func newTestService(certs *fakeCerts, tokens *fakeTokens, cli *fakeCommerceClient) (*Service, *int) {
	svc := NewService(redeban.Config{}, certs, tokens)
	built := 0
	svc.newClient = func(cfg redeban.Config, b *secrets.CredentialBundle) (commerceClient, error) {
		built++
		return cli, nil
	}
	return svc, &built
}

func TestLookupHappyPath(t *testing.T) {
	certs := &fakeCerts{bundle: secrets.CredentialBundle{CertPath: "/tmp/c", KeyPath: "/tmp/k"}}
	tokens := &fakeTokens{token: "tok-1"}
	cli := &fakeCommerceClient{out: redeban.Commerce{BusinessName: "Acme", IsActive: true}}
	svc, built := newTestService(certs, tokens, cli)

	out, err := svc.Lookup(context.Background(), "10203040", true)
	require.NoError(t, err)
	assert.Equal(t, "Acme", out.BusinessName)
	assert.Equal(t, "tok-1", cli.gotToken)
	assert.Equal(t, "10203040", cli.gotID)
	assert.True(t, cli.gotRaw)
	assert.Equal(t, 1, *built)

	// warm reuse: same bundle, client built once
	_, err = svc.Lookup(context.Background(), "10203040", false)
	require.NoError(t, err)
	assert.Equal(t, 1, *built)
}

func TestLookupCertificateFailurePropagates(t *testing.T) {
	certs := &fakeCerts{err: faults.New(faults.KindSecretUnavailable, "secret not found")}
	svc, _ := newTestService(certs, &fakeTokens{token: "t"}, &fakeCommerceClient{})

	_, err := svc.Lookup(context.Background(), "10203040", false)
	require.Error(t, err)
	assert.Equal(t, faults.KindSecretUnavailable, faults.KindOf(err))
}

func TestLookupTokenFailurePropagates(t *testing.T) {
	certs := &fakeCerts{}
	tokens := &fakeTokens{err: faults.New(faults.KindTokenRefresh, "token not found after invocation and retries")}
	svc, _ := newTestService(certs, tokens, &fakeCommerceClient{})

	_, err := svc.Lookup(context.Background(), "10203040", false)
	require.Error(t, err)
	assert.Equal(t, faults.KindTokenRefresh, faults.KindOf(err))
}

func TestLookupAuthFailureInvalidatesBundle(t *testing.T) {
	certs := &fakeCerts{}
	cli := &fakeCommerceClient{err: faults.New(faults.KindAuthentication, "authentication token invalid or expired")}
	svc, built := newTestService(certs, &fakeTokens{token: "t"}, cli)

	_, err := svc.Lookup(context.Background(), "10203040", false)
	require.Error(t, err)
	assert.Equal(t, 1, certs.invalidated)

	// the cached client was dropped; the next lookup rebuilds it
	cli.err = nil
	_, err = svc.Lookup(context.Background(), "10203040", false)
	require.NoError(t, err)
	assert.Equal(t, 2, *built)
}
