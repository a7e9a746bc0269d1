package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"quantapay/internal/config"
	"quantapay/internal/crypto/ibe"
	"quantapay/internal/crypto/mldsa"
	"quantapay/internal/domain"
	"quantapay/internal/infra/cachemem"
	"quantapay/internal/infra/db"
	"quantapay/internal/infra/memstore"
	"quantapay/internal/infra/metrics"
	"quantapay/internal/infra/policyopa"
	"quantapay/internal/infra/ratelimit"
	"quantapay/internal/infra/vaultclient"
	"quantapay/internal/usecase"
	"quantapay/internal/vault"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Server struct {
	cfg config.Config
	r   *gin.Engine

	record       *usecase.RecordTransaction
	verify       *usecase.VerifyTransaction
	authorize    *usecase.AuthorizePayment
	keyAdmin     *usecase.KeyAdmin
	identity     *ibe.Service
	identityKeys *cachemem.Cache

	registry *prometheus.Registry

	adminAPIKey string
	initErr     error

	rateLimiter         domain.RateLimiter
	rateLimitRequests   int
	rateLimitWindow     time.Duration
	rateLimitFailClosed bool
}

func NewServer(cfg config.Config) *Server {
	r := gin.New()
	r.Use(gin.Recovery())

	s := &Server{cfg: cfg, r: r, identityKeys: cachemem.New()}
	s.initDeps()
	s.routes()
	return s
}

type ServerDeps struct {
	Record      *usecase.RecordTransaction
	Verify      *usecase.VerifyTransaction
	Authorize   *usecase.AuthorizePayment
	KeyAdmin    *usecase.KeyAdmin
	Identity    *ibe.Service
	Registry    *prometheus.Registry
	AdminAPIKey string
	RateLimiter domain.RateLimiter
}

func NewServerWithDeps(cfg config.Config, deps ServerDeps) *Server {
	r := gin.New()
	r.Use(gin.Recovery())

	s := &Server{
		cfg:          cfg,
		r:            r,
		record:       deps.Record,
		verify:       deps.Verify,
		authorize:    deps.Authorize,
		keyAdmin:     deps.KeyAdmin,
		identity:     deps.Identity,
		identityKeys: cachemem.New(),
		registry:     deps.Registry,
		adminAPIKey:  deps.AdminAPIKey,
	}
	s.initRateLimit(deps.RateLimiter)
	s.routes()
	return s
}

func (s *Server) initDeps() {
	s.adminAPIKey = s.cfg.AdminAPIKey

	signer, err := signerFromConfig(s.cfg)
	if err != nil {
		s.initErr = err
		return
	}

	var (
		keyStore domain.KeyStore
		txStore  domain.TransactionStore
	)
	if s.cfg.PostgresDSN != "" {
		store, err := db.NewStore(s.cfg.PostgresDSN)
		if err != nil {
			s.initErr = err
			return
		}
		keyStore = store.Keys
		txStore = store.Transactions
	} else {
		keyStore = memstore.NewKeyStore()
		txStore = memstore.NewTransactionStore()
	}

	passphrase := s.cfg.VaultPassphrase
	identity := ibe.New()
	if s.cfg.VaultAddr != "" && s.cfg.VaultToken != "" {
		client := vaultclient.New(s.cfg.VaultAddr, s.cfg.VaultToken)
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		secrets, err := vaultclient.LoadOrInitBootstrap(ctx, client, s.cfg.VaultBootstrapPath, ibe.MasterSecretSize)
		if err != nil {
			s.initErr = err
			return
		}
		passphrase = secrets.VaultPassphrase
		master, err := secrets.MasterSecret()
		if err != nil {
			s.initErr = err
			return
		}
		identity, err = ibe.NewFromMasterSecret(master, secrets.IBEGeneration)
		if err != nil {
			s.initErr = err
			return
		}
	} else if _, err := identity.Setup(); err != nil {
		s.initErr = err
		return
	}
	if passphrase == "" {
		s.initErr = errors.New("VAULT_PASSPHRASE or a vault address and token are required")
		return
	}

	kv, err := vault.New(keyStore, signer, passphrase, nil)
	if err != nil {
		s.initErr = err
		return
	}

	s.registry = prometheus.NewRegistry()
	sink := metrics.NewPrometheusSink(s.registry)

	s.identity = identity
	s.record = &usecase.RecordTransaction{
		Vault:    kv,
		Store:    txStore,
		Receipts: identity,
		Metrics:  sink,
	}
	s.verify = &usecase.VerifyTransaction{
		Store:        txStore,
		Vault:        kv,
		Metrics:      sink,
		MaxClockSkew: s.cfg.ClockSkew(),
	}
	s.keyAdmin = &usecase.KeyAdmin{Vault: kv}

	if s.cfg.PolicyBundlePath != "" {
		engine, err := policyopa.NewEngineFromBundlePath(context.Background(), s.cfg.PolicyBundlePath, s.cfg.PolicyBundleID)
		if err != nil {
			s.initErr = err
			return
		}
		s.authorize = &usecase.AuthorizePayment{Verifier: s.verify, Policy: engine}
	}

	s.initRateLimit(nil)
}

func signerFromConfig(cfg config.Config) (mldsa.Signer, error) {
	switch cfg.SignerLevel {
	case "test":
		return mldsa.NewTestSigner(), nil
	case "2", "":
		return mldsa.NewSigner(mldsa.Level2)
	case "3":
		return mldsa.NewSigner(mldsa.Level3)
	case "5":
		return mldsa.NewSigner(mldsa.Level5)
	default:
		return nil, errors.New("SIGNER_LEVEL must be 2, 3, 5, or test")
	}
}

func (s *Server) initRateLimit(override domain.RateLimiter) {
	if override != nil {
		s.rateLimiter = override
	}
	if s.rateLimiter == nil && s.cfg.RateLimitRequests > 0 {
		if s.cfg.RedisAddr != "" {
			if limiter, err := ratelimit.NewRedisLimiter(s.cfg.RedisAddr, s.cfg.RedisPassword, s.cfg.RedisDB, nil); err == nil {
				s.rateLimiter = limiter
			}
		}
		if s.rateLimiter == nil {
			s.rateLimiter = ratelimit.NewMemoryLimiter(ratelimit.MemoryLimiterConfig{
				MaxKeys: s.cfg.RateLimitMaxKeys,
			})
		}
	}
	s.rateLimitRequests = s.cfg.RateLimitRequests
	s.rateLimitWindow = s.cfg.RateLimitWindow()
	s.rateLimitFailClosed = s.cfg.RateLimitFailClosed
}

func (s *Server) routes() {
	s.r.GET("/healthz", func(c *gin.Context) {
		mode := "memory"
		if s.cfg.PostgresDSN != "" {
			mode = "postgres"
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "store": mode})
	})
	if s.registry != nil {
		s.r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))
	}

	v1 := s.r.Group("/v1")
	{
		v1.POST("/transactions", s.handleRecordTransaction)
		v1.GET("/transactions/:transaction_id", s.handleGetTransaction)
		v1.POST("/transactions/:transaction_id/verify", s.handleVerifyTransaction)
		v1.POST("/transactions/:transaction_id/authorize", s.handleAuthorizeTransaction)

		v1.GET("/ibe/params", s.handleIBEParams)
		v1.POST("/ibe/keys", s.handleDeriveIdentityKey)

		v1.GET("/keys", s.handleListActiveKeys)
		v1.POST("/admin/keys/rotate", s.handleRotateKey)
		v1.POST("/admin/keys/rotate-expired", s.handleRotateExpiredKeys)
		v1.POST("/admin/keys/:key_id/revoke", s.handleRevokeKey)
	}

	s.r.NoRoute(func(c *gin.Context) {
		writeErrorCode(c, http.StatusNotFound, "NOT_FOUND", "route not found")
	})
}

func (s *Server) Run() error {
	if s.initErr != nil {
		return s.initErr
	}
	return s.r.Run(s.cfg.HTTPAddr)
}
