// Package config reads the daemon settings from environment variables.
package config

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/bitrise-io/go-chunkstore/chunkstore"
	"github.com/bitrise-io/go-utils/v2/env"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/bitrise-io/go-utils/v2/pathutil"
	"github.com/docker/go-units"
)

// Environment variable names.
const (
	RootKey            = "CHUNKSTORE_ROOT"
	AddrKey            = "CHUNKSTORE_ADDR"
	BackendKey         = "CHUNKSTORE_BACKEND"
	LedgerKey          = "CHUNKSTORE_LEDGER"
	MaxChunkSizeKey    = "CHUNKSTORE_MAX_CHUNK_SIZE"
	StaleAfterKey      = "CHUNKSTORE_STALE_AFTER"
	ReapIntervalKey    = "CHUNKSTORE_REAP_INTERVAL"
	VerboseKey         = "CHUNKSTORE_VERBOSE"
	S3BucketKey        = "CHUNKSTORE_S3_BUCKET"
	S3RegionKey        = "CHUNKSTORE_S3_REGION"
	S3PrefixKey        = "CHUNKSTORE_S3_PREFIX"
	AccessKeyIDKey     = "AWS_ACCESS_KEY_ID"
	SecretAccessKeyKey = "AWS_SECRET_ACCESS_KEY"
)

const (
	defaultRoot         = "."
	defaultAddr         = ":3000"
	defaultMaxChunkSize = "64MB"
	defaultReapInterval = 10 * time.Minute
	ledgerFileName      = ".ledger.db"
)

// Backend selects where chunks and artifacts live.
type Backend string

const (
	BackendFS Backend = "fs"
	BackendS3 Backend = "s3"
)

// Secret is a string that does not print its value.
type Secret string

func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return "*****"
}

// S3 ...
type S3 struct {
	Bucket          string
	Region          string
	Prefix          string
	AccessKeyID     string
	SecretAccessKey Secret
}

// Config ...
type Config struct {
	Root         string
	Addr         string
	Backend      Backend
	LedgerPath   string
	MaxChunkSize int64
	// StaleAfter is the age after which an unfinished upload is abandoned. 0 disables reaping.
	StaleAfter   time.Duration
	ReapInterval time.Duration
	Verbose      bool
	S3           S3
}

// Load ...
func Load(envRepo env.Repository, pathModifier pathutil.PathModifier) (Config, error) {
	root := valueOr(envRepo.Get(RootKey), defaultRoot)
	absRoot, err := pathModifier.AbsPath(root)
	if err != nil {
		return Config{}, fmt.Errorf("failed to expand %s (%s): %w", RootKey, root, err)
	}

	cfg := Config{
		Root:         absRoot,
		Addr:         valueOr(envRepo.Get(AddrKey), defaultAddr),
		Backend:      Backend(strings.ToLower(valueOr(envRepo.Get(BackendKey), string(BackendFS)))),
		ReapInterval: defaultReapInterval,
	}

	switch cfg.Backend {
	case BackendFS, BackendS3:
	default:
		return Config{}, fmt.Errorf("%s must be one of [%s, %s], got %q", BackendKey, BackendFS, BackendS3, cfg.Backend)
	}

	cfg.LedgerPath = filepath.Join(absRoot, ledgerFileName)
	if ledgerPath := envRepo.Get(LedgerKey); ledgerPath != "" {
		if cfg.LedgerPath, err = pathModifier.AbsPath(ledgerPath); err != nil {
			return Config{}, fmt.Errorf("failed to expand %s (%s): %w", LedgerKey, ledgerPath, err)
		}
	}

	maxChunkSize := valueOr(envRepo.Get(MaxChunkSizeKey), defaultMaxChunkSize)
	if cfg.MaxChunkSize, err = units.RAMInBytes(maxChunkSize); err != nil {
		return Config{}, fmt.Errorf("invalid %s (%s): %w", MaxChunkSizeKey, maxChunkSize, err)
	}
	if cfg.MaxChunkSize <= 0 {
		return Config{}, fmt.Errorf("%s must be positive, got %s", MaxChunkSizeKey, maxChunkSize)
	}

	if cfg.StaleAfter, err = parseDuration(envRepo, StaleAfterKey, 0); err != nil {
		return Config{}, err
	}
	if cfg.ReapInterval, err = parseDuration(envRepo, ReapIntervalKey, defaultReapInterval); err != nil {
		return Config{}, err
	}
	if cfg.StaleAfter > 0 && cfg.ReapInterval <= 0 {
		return Config{}, fmt.Errorf("%s must be positive when %s is set", ReapIntervalKey, StaleAfterKey)
	}

	if verbose := envRepo.Get(VerboseKey); verbose != "" {
		if cfg.Verbose, err = strconv.ParseBool(verbose); err != nil {
			return Config{}, fmt.Errorf("invalid %s (%s): %w", VerboseKey, verbose, err)
		}
	}

	if cfg.Backend == BackendS3 {
		cfg.S3 = S3{
			Bucket:          envRepo.Get(S3BucketKey),
			Region:          envRepo.Get(S3RegionKey),
			Prefix:          envRepo.Get(S3PrefixKey),
			AccessKeyID:     envRepo.Get(AccessKeyIDKey),
			SecretAccessKey: Secret(envRepo.Get(SecretAccessKeyKey)),
		}
		if cfg.S3.Bucket == "" {
			return Config{}, fmt.Errorf("%s is required for the s3 backend", S3BucketKey)
		}
		if cfg.S3.Region == "" {
			return Config{}, fmt.Errorf("%s is required for the s3 backend", S3RegionKey)
		}
		if cfg.S3.Prefix != "" && !strings.HasSuffix(cfg.S3.Prefix, "/") {
			cfg.S3.Prefix += "/"
		}
	}

	return cfg, nil
}

// Layout is the on-disk layout under Root.
func (c Config) Layout() chunkstore.Layout {
	return chunkstore.NewLayout(c.Root)
}

// Print ...
func (c Config) Print(logger log.Logger) {
	logger.Infof("Configuration:")
	logger.Printf("- Root: %s", c.Root)
	logger.Printf("- Address: %s", c.Addr)
	logger.Printf("- Backend: %s", c.Backend)
	logger.Printf("- Ledger: %s", c.LedgerPath)
	logger.Printf("- Max chunk size: %s", units.BytesSize(float64(c.MaxChunkSize)))
	if c.StaleAfter > 0 {
		logger.Printf("- Abandon uploads after: %s (checked every %s)", c.StaleAfter, c.ReapInterval)
	} else {
		logger.Printf("- Abandon uploads after: never")
	}
	logger.Printf("- Verbose: %t", c.Verbose)
	if c.Backend == BackendS3 {
		logger.Printf("- S3 bucket: %s (%s)", c.S3.Bucket, c.S3.Region)
		logger.Printf("- S3 prefix: %s", c.S3.Prefix)
		logger.Printf("- AWS access key ID: %s", c.S3.AccessKeyID)
		logger.Printf("- AWS secret access key: %s", c.S3.SecretAccessKey)
	}
}

func parseDuration(envRepo env.Repository, key string, fallback time.Duration) (time.Duration, error) {
	value := envRepo.Get(key)
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s (%s): %w", key, value, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must not be negative, got %s", key, value)
	}
	return d, nil
}

func valueOr(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return strings.TrimSpace(value)
}
