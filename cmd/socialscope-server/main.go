package main

import (
	"context"
	"flag"
	"net/http"
	"time"

	"socialscope-backend/lib/configutil"
	"socialscope-backend/lib/platforms"
	"socialscope-backend/lib/ratelimit"
	"socialscope-backend/lib/scrapers/instagram"
	"socialscope-backend/lib/util/serviceutil"
	"socialscope-backend/services/acquisition"
	"socialscope-backend/services/keychain"
	"socialscope-backend/services/keychain/db"

	"github.com/joho/godotenv"
)

type RateLimitConfig struct {
	Capacity      int `json:"capacity"`
	WindowSeconds int `json:"window_seconds"`
}

type AcquisitionConfig struct {
	CacheSize            int                        `json:"cache_size"`
	CompleteTtlSeconds   int                        `json:"complete_ttl_seconds"`
	DegradedTtlSeconds   int                        `json:"degraded_ttl_seconds"`
	NegativeTtlSeconds   int                        `json:"negative_ttl_seconds"`
	AdmissionWaitSeconds int                        `json:"admission_wait_seconds"`
	RateLimits           map[string]RateLimitConfig `json:"rate_limits"`
}

type InstagramConfig struct {
	GraphBaseUrl  string `json:"graph_base_url"`
	BasicBaseUrl  string `json:"basic_base_url"`
	PublicBaseUrl string `json:"public_base_url"`
	RefreshUrl    string `json:"refresh_url"`
}

type Config struct {
	Port        int               `json:"port"`
	Keychain    configutil.DB     `json:"keychain"`
	Acquisition AcquisitionConfig `json:"acquisition"`
	Instagram   InstagramConfig   `json:"instagram"`
}

// acquisitionConfig overlays the file's values onto the built-in
// defaults, a zero field keeps the default.
func acquisitionConfig(cfg AcquisitionConfig) acquisition.Config {
	out := acquisition.DefaultConfig()
	if cfg.CacheSize > 0 {
		out.CacheSize = cfg.CacheSize
	}
	if cfg.CompleteTtlSeconds > 0 {
		out.CompleteTtl = time.Second * time.Duration(cfg.CompleteTtlSeconds)
	}
	if cfg.DegradedTtlSeconds > 0 {
		out.DegradedTtl = time.Second * time.Duration(cfg.DegradedTtlSeconds)
	}
	if cfg.NegativeTtlSeconds > 0 {
		out.NegativeTtl = time.Second * time.Duration(cfg.NegativeTtlSeconds)
	}
	if cfg.AdmissionWaitSeconds > 0 {
		out.AdmissionWait = time.Second * time.Duration(cfg.AdmissionWaitSeconds)
	}
	for name, limit := range cfg.RateLimits {
		platform, err := platforms.Parse(name)
		if err != nil {
			serviceutil.Fatal("parse rate limit platform", err)
		}
		out.RateLimits[platform] = ratelimit.Config{
			Capacity: limit.Capacity,
			Window:   time.Second * time.Duration(limit.WindowSeconds),
		}
	}
	return out
}

func initKeychain(ctx context.Context, cfg configutil.DB) (*keychain.Service, error) {
	database, err := cfg.OpenDB()
	if err != nil {
		return nil, err
	}
	_, err = database.ExecContext(ctx, db.Schema)
	if err != nil {
		return nil, err
	}

	service, err := keychain.NewService(ctx, database)
	if err != nil {
		return nil, err
	}
	err = service.Seed(ctx, seedFromEnv())
	if err != nil {
		return nil, err
	}
	return service, nil
}

func main() {
	verbose := flag.Bool("v", false, "Enable verbose logging/instrumentation.")
	flag.Parse()

	// missing .env is fine, production configures the environment itself
	godotenv.Load()

	ctx := serviceutil.SignalContext()

	InitTelemetry(ctx, *verbose)

	cfg, err := configutil.ReadConfig[Config]("config.json5")
	if err != nil {
		serviceutil.Fatal("read config", err)
	}
	if cfg.Port == 0 {
		cfg.Port = 8000
	}

	keychainService, err := initKeychain(ctx, cfg.Keychain)
	if err != nil {
		serviceutil.Fatal("init keychain", err)
	}

	instagramChain, instagramRefresher, err := instagram.NewChain(instagram.Options{
		GraphBaseUrl:  cfg.Instagram.GraphBaseUrl,
		BasicBaseUrl:  cfg.Instagram.BasicBaseUrl,
		PublicBaseUrl: cfg.Instagram.PublicBaseUrl,
		RefreshUrl:    cfg.Instagram.RefreshUrl,
	})
	if err != nil {
		serviceutil.Fatal("init instagram chain", err)
	}
	keychainService.RegisterRefresher(platforms.Instagram, instagramRefresher)

	chains := map[platforms.Platform]*acquisition.Chain{
		platforms.Instagram: instagramChain,
	}
	acquisitionService, err := acquisition.NewService(
		ctx,
		acquisitionConfig(cfg.Acquisition),
		keychainService,
		chains,
	)
	if err != nil {
		serviceutil.Fatal("init acquisition", err)
	}

	mux := http.NewServeMux()
	RegisterApi(mux, acquisitionService)

	go serviceutil.StartHttpServer(cfg.Port, mux)
	<-ctx.Done()
}
