package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	restate "github.com/restatedev/sdk-go"
	"github.com/restatedev/sdk-go/server"

	appconfig "github.com/Efrain290493/gft/internal/config"
	"github.com/Efrain290493/gft/internal/secrets"
	"github.com/Efrain290493/gft/internal/token"
	"github.com/Efrain290493/gft/internal/tokenstore"
)

type IssueTokenRequest struct{}

type IssueTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// newIssueTokenHandler builds the virtual object handler. Keying the object
// on the singleton token key serializes concurrent refresh requests: the
// runtime queues invocations per key, so only one OAuth call runs at a time.
func newIssueTokenHandler(issuer *token.Issuer) func(restate.ObjectContext, *IssueTokenRequest) (*IssueTokenResponse, error) {
	return func(ctx restate.ObjectContext, req *IssueTokenRequest) (*IssueTokenResponse, error) {
		key := restate.Key(ctx)
		log.Printf("[TokenService %s] issuing token", key)

		rec, err := restate.Run(ctx, func(ctx restate.RunContext) (tokenstore.Record, error) {
			return issuer.Issue(ctx)
		})
		if err != nil {
			return nil, err
		}

		resp := &IssueTokenResponse{AccessToken: rec.AccessToken}
		if rec.ExpiresIn.Valid {
			resp.ExpiresIn = rec.ExpiresIn.Int64
		}
		return resp, nil
	}
}

func main() {
	_ = godotenv.Load()

	cfg, err := appconfig.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	log.SetPrefix("[token-issuer] ")
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	db, err := tokenstore.Open(cfg.Database)
	if err != nil {
		log.Fatalf("connect token store database: %v", err)
	}
	defer db.Close()

	store := tokenstore.NewStore(db)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := store.EnsureSchema(ctx); err != nil {
		log.Fatalf("ensure token schema: %v", err)
	}

	// Fetch client certificates up front; the issuer cannot operate without them.
	certs := secrets.NewCertificateProvider(cfg.Secrets)
	fetchCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	bundle, err := certs.GetCertificates(fetchCtx)
	cancel()
	if err != nil {
		log.Fatalf("fetch client certificates: %v", err)
	}

	issuer, err := token.NewIssuer(token.IssuerConfig{
		TokenURL:           cfg.Token.TokenURL,
		ClientID:           cfg.Token.ClientID,
		ClientSecret:       cfg.Token.ClientSecret,
		InsecureSkipVerify: cfg.Redeban.InsecureSkipVerify,
	}, store, bundle)
	if err != nil {
		log.Fatalf("build token issuer: %v", err)
	}

	srv := server.NewRestate().
		Bind(restate.NewObject(cfg.Token.Service).
			Handler(cfg.Token.Handler, restate.NewObjectHandler(newIssueTokenHandler(issuer))))

	displayAddr := cfg.Token.ListenAddr
	if strings.HasPrefix(displayAddr, ":") {
		displayAddr = "localhost" + displayAddr
	}
	log.Printf("Token issuer listening on %s", cfg.Token.ListenAddr)
	log.Printf("Register with Restate:")
	log.Printf("  restate deployments register http://%s", displayAddr)

	if err := srv.Start(ctx, cfg.Token.ListenAddr); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("server error: %v", err)
	}
}
