package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Layr-Labs/eigenx-merkle-go/pkg/persistence"
)

// Key prefixes for namespacing in Redis
const (
	keyPrefixRoot        = "merkle:root:"
	keyPrefixProof       = "merkle:proof:"
	keySchemaVersion     = "merkle:metadata:schema_version"
	currentSchemaVersion = "v1"

	// Key sets for listing operations (Redis doesn't support prefix iteration natively)
	keySetRoots             = "merkle:roots:index"
	keyPrefixProofsByRootIx = "merkle:proofs:index:"
)

const operationTimeout = 5 * time.Second

// RedisPersistence is a persistence implementation using Redis.
// Lets several machines publish and verify against the same roots.
type RedisPersistence struct {
	client    *redis.Client
	logger    *zap.Logger
	keyPrefix string // Custom prefix for all keys
	mu        sync.RWMutex
	closed    bool
}

// RedisConfig holds the configuration for connecting to Redis
type RedisConfig struct {
	// Address is the Redis server address (host:port)
	Address string
	// Password is the optional Redis password
	Password string
	// DB is the Redis database number (0-15)
	DB int
	// KeyPrefix is an optional custom prefix for all keys (for multi-tenant setups).
	// If set, this prefix is prepended to all keys, e.g., "myapp:" would result in
	// keys like "myapp:merkle:root:release-1".
	KeyPrefix string
}

// NewRedisPersistence creates a new Redis-backed persistence layer.
func NewRedisPersistence(cfg *RedisConfig, logger *zap.Logger) (*RedisPersistence, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}

	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address cannot be empty")
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Address, err)
	}

	rp := &RedisPersistence{
		client:    client,
		logger:    logger,
		keyPrefix: cfg.KeyPrefix,
	}

	if err := rp.initSchema(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Sugar().Debugw("Redis persistence initialized",
		"address", cfg.Address,
		"db", cfg.DB,
		"key_prefix", cfg.KeyPrefix,
	)

	return rp, nil
}

// prefixKey adds the custom key prefix (if configured) to a key
func (r *RedisPersistence) prefixKey(key string) string {
	if r.keyPrefix == "" {
		return key
	}
	return r.keyPrefix + key
}

func (r *RedisPersistence) rootKey(name string) string {
	return r.prefixKey(keyPrefixRoot + name)
}

func (r *RedisPersistence) proofKey(id string) string {
	return r.prefixKey(keyPrefixProof + id)
}

func (r *RedisPersistence) proofIndexKey(rootName string) string {
	return r.prefixKey(keyPrefixProofsByRootIx + rootName)
}

// initSchema initializes or validates the schema version
func (r *RedisPersistence) initSchema(ctx context.Context) error {
	schemaKey := r.prefixKey(keySchemaVersion)

	existingVersion, err := r.client.Get(ctx, schemaKey).Result()
	if errors.Is(err, redis.Nil) {
		return r.client.Set(ctx, schemaKey, currentSchemaVersion, 0).Err()
	}
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	if existingVersion != currentSchemaVersion {
		return fmt.Errorf("unsupported schema version: %s (expected: %s)", existingVersion, currentSchemaVersion)
	}

	return nil
}

func (r *RedisPersistence) checkOpen() error {
	if r.closed {
		return fmt.Errorf("persistence layer is closed")
	}
	return nil
}

// SaveRoot persists a root record
func (r *RedisPersistence) SaveRoot(record *persistence.RootRecord) error {
	if err := record.Validate(); err != nil {
		return fmt.Errorf("cannot save root: %w", err)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if err := r.checkOpen(); err != nil {
		return err
	}

	data, err := persistence.MarshalRootRecord(record)
	if err != nil {
		return fmt.Errorf("failed to marshal RootRecord: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.rootKey(record.Name), data, 0)
	pipe.SAdd(ctx, r.prefixKey(keySetRoots), record.Name)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save RootRecord: %w", err)
	}

	return nil
}

// LoadRoot retrieves a root record by name
func (r *RedisPersistence) LoadRoot(name string) (*persistence.RootRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if err := r.checkOpen(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	data, err := r.client.Get(ctx, r.rootKey(name)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil // Not found is not an error
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load RootRecord: %w", err)
	}

	record, err := persistence.UnmarshalRootRecord(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal RootRecord: %w", err)
	}

	return record, nil
}

// ListRoots returns all root records sorted by name
func (r *RedisPersistence) ListRoots() ([]*persistence.RootRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if err := r.checkOpen(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	indexKey := r.prefixKey(keySetRoots)

	names, err := r.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list root names: %w", err)
	}

	keys := make([]string, len(names))
	for i, name := range names {
		keys[i] = r.rootKey(name)
	}

	values, err := r.fetchAll(ctx, indexKey, names, keys)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch RootRecords: %w", err)
	}

	roots := make([]*persistence.RootRecord, 0, len(values))
	for i, data := range values {
		if data == nil {
			continue
		}
		record, err := persistence.UnmarshalRootRecord(data)
		if err != nil {
			r.logger.Sugar().Warnw("Failed to unmarshal RootRecord, skipping",
				"key", keys[i], "error", err)
			continue
		}
		roots = append(roots, record)
	}

	persistence.SortRootRecords(roots)

	return roots, nil
}

// DeleteRoot removes a root record
func (r *RedisPersistence) DeleteRoot(name string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if err := r.checkOpen(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, r.rootKey(name))
	pipe.SRem(ctx, r.prefixKey(keySetRoots), name)

	_, err := pipe.Exec(ctx)
	return err
}

// SaveProof persists a proof record and indexes it under its root name
func (r *RedisPersistence) SaveProof(record *persistence.ProofRecord) error {
	if err := record.Validate(); err != nil {
		return fmt.Errorf("cannot save proof: %w", err)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if err := r.checkOpen(); err != nil {
		return err
	}

	data, err := persistence.MarshalProofRecord(record)
	if err != nil {
		return fmt.Errorf("failed to marshal ProofRecord: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	id := record.ID.String()
	prev, err := r.loadProof(ctx, id)
	if err != nil {
		return err
	}

	pipe := r.client.TxPipeline()
	if prev != nil && prev.RootName != record.RootName {
		pipe.SRem(ctx, r.proofIndexKey(prev.RootName), id)
	}
	pipe.Set(ctx, r.proofKey(id), data, 0)
	pipe.SAdd(ctx, r.proofIndexKey(record.RootName), id)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save ProofRecord: %w", err)
	}

	return nil
}

// LoadProof retrieves a proof record by ID
func (r *RedisPersistence) LoadProof(id uuid.UUID) (*persistence.ProofRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if err := r.checkOpen(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	return r.loadProof(ctx, id.String())
}

func (r *RedisPersistence) loadProof(ctx context.Context, id string) (*persistence.ProofRecord, error) {
	data, err := r.client.Get(ctx, r.proofKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load ProofRecord: %w", err)
	}

	record, err := persistence.UnmarshalProofRecord(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal ProofRecord: %w", err)
	}

	return record, nil
}

// ListProofs returns the proofs issued against rootName sorted by index
func (r *RedisPersistence) ListProofs(rootName string) ([]*persistence.ProofRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if err := r.checkOpen(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	indexKey := r.proofIndexKey(rootName)

	ids, err := r.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list proof IDs: %w", err)
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.proofKey(id)
	}

	values, err := r.fetchAll(ctx, indexKey, ids, keys)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch ProofRecords: %w", err)
	}

	proofs := make([]*persistence.ProofRecord, 0, len(values))
	for i, data := range values {
		if data == nil {
			continue
		}
		record, err := persistence.UnmarshalProofRecord(data)
		if err != nil {
			r.logger.Sugar().Warnw("Failed to unmarshal ProofRecord, skipping",
				"key", keys[i], "error", err)
			continue
		}
		proofs = append(proofs, record)
	}

	persistence.SortProofRecords(proofs)

	return proofs, nil
}

// DeleteProof removes a proof record and its index entry
func (r *RedisPersistence) DeleteProof(id uuid.UUID) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if err := r.checkOpen(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	prev, err := r.loadProof(ctx, id.String())
	if err != nil {
		return err
	}
	if prev == nil {
		return nil
	}

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, r.proofKey(id.String()))
	pipe.SRem(ctx, r.proofIndexKey(prev.RootName), id.String())

	_, err = pipe.Exec(ctx)
	return err
}

// fetchAll reads keys with a single MGET. Members whose key has disappeared are
// removed from the index set and reported as nil.
func (r *RedisPersistence) fetchAll(ctx context.Context, indexKey string, members []string, keys []string) ([][]byte, error) {
	if len(keys) == 0 {
		return [][]byte{}, nil
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	out := make([][]byte, len(values))
	for i, val := range values {
		if val == nil {
			// Key was in index but doesn't exist - clean up index
			r.client.SRem(ctx, indexKey, members[i])
			continue
		}

		data, ok := val.(string)
		if !ok {
			r.logger.Sugar().Warnw("Unexpected value type", "key", keys[i])
			continue
		}
		out[i] = []byte(data)
	}

	return out, nil
}

// Close shuts down the persistence layer
func (r *RedisPersistence) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil // Already closed, idempotent
	}
	r.closed = true
	r.mu.Unlock()

	if err := r.client.Close(); err != nil {
		return fmt.Errorf("failed to close Redis client: %w", err)
	}

	r.logger.Sugar().Debug("Redis persistence closed")
	return nil
}

// HealthCheck verifies the persistence layer is operational
func (r *RedisPersistence) HealthCheck() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if err := r.checkOpen(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}

	_, err := r.client.Get(ctx, r.prefixKey(keySchemaVersion)).Result()
	if errors.Is(err, redis.Nil) {
		return fmt.Errorf("schema version not found - database may not be properly initialized")
	}
	if err != nil {
		return fmt.Errorf("failed to verify schema version: %w", err)
	}

	return nil
}
