package config

import (
	"fmt"
	"strings"

	"k8s.io/apimachinery/pkg/util/validation/field"

	"github.com/Layr-Labs/eigenx-merkle-go/pkg/merkle"
)

// Environment variable names for merkle CLI configuration
const (
	EnvMerkleVerbose        = "MERKLE_VERBOSE"
	EnvMerkleHash           = "MERKLE_HASH"
	EnvMerklePersistence    = "MERKLE_PERSISTENCE"
	EnvMerkleDataPath       = "MERKLE_DATA_PATH"
	EnvMerkleRedisAddress   = "MERKLE_REDIS_ADDRESS"
	EnvMerkleRedisPassword  = "MERKLE_REDIS_PASSWORD"
	EnvMerkleRedisDB        = "MERKLE_REDIS_DB"
	EnvMerkleRedisKeyPrefix = "MERKLE_REDIS_KEY_PREFIX"
)

type PersistenceType string

func (p PersistenceType) String() string {
	return string(p)
}

const (
	PersistenceTypeMemory PersistenceType = "memory"
	PersistenceTypeBadger PersistenceType = "badger"
	PersistenceTypeRedis  PersistenceType = "redis"
)

// DefaultDataPath is where the badger backend stores data when no path is given.
const DefaultDataPath = "./merkle-data"

// ParsePersistenceType resolves a persistence type name, case-insensitively
func ParsePersistenceType(s string) (PersistenceType, error) {
	switch PersistenceType(strings.ToLower(strings.TrimSpace(s))) {
	case "", PersistenceTypeMemory:
		return PersistenceTypeMemory, nil
	case PersistenceTypeBadger:
		return PersistenceTypeBadger, nil
	case PersistenceTypeRedis:
		return PersistenceTypeRedis, nil
	default:
		return "", fmt.Errorf("unsupported persistence type: %s", s)
	}
}

// GetSupportedPersistenceTypesString returns supported persistence types for CLI help
func GetSupportedPersistenceTypesString() string {
	return fmt.Sprintf("%s, %s, %s", PersistenceTypeMemory, PersistenceTypeBadger, PersistenceTypeRedis)
}

type RedisConfig struct {
	Address   string `json:"address"`
	Password  string `json:"password"`
	DB        int    `json:"db"`
	KeyPrefix string `json:"key_prefix"`
}

// MerkleConfig represents the complete configuration for the merkle CLI
type MerkleConfig struct {
	// Hash function used for leaves and parents
	Hasher string `json:"hasher"`

	// Storage for published roots and proofs
	Persistence PersistenceType `json:"persistence"`
	DataPath    string          `json:"data_path"`
	Redis       RedisConfig     `json:"redis"`

	Verbose bool `json:"verbose"`
}

// Validate validates the merkle configuration and fills in defaults
func (c *MerkleConfig) Validate() error {
	var allErrors field.ErrorList

	if _, err := merkle.HasherByName(c.Hasher); err != nil {
		allErrors = append(allErrors, field.NotSupported(field.NewPath("hasher"), c.Hasher, merkle.SupportedHashers()))
	} else if c.Hasher == "" {
		c.Hasher = merkle.HasherNameSHA256
	}

	persistenceType, err := ParsePersistenceType(string(c.Persistence))
	if err != nil {
		allErrors = append(allErrors, field.NotSupported(field.NewPath("persistence"), string(c.Persistence), []string{
			PersistenceTypeMemory.String(),
			PersistenceTypeBadger.String(),
			PersistenceTypeRedis.String(),
		}))
	} else {
		c.Persistence = persistenceType
	}

	switch c.Persistence {
	case PersistenceTypeBadger:
		if c.DataPath == "" {
			c.DataPath = DefaultDataPath
		}
	case PersistenceTypeRedis:
		redisPath := field.NewPath("redis")
		if c.Redis.Address == "" {
			allErrors = append(allErrors, field.Required(redisPath.Child("address"), "address is required for redis persistence"))
		}
		if c.Redis.DB < 0 || c.Redis.DB > 15 {
			allErrors = append(allErrors, field.Invalid(redisPath.Child("db"), c.Redis.DB, "db must be between 0-15"))
		}
	}

	if len(allErrors) > 0 {
		return allErrors.ToAggregate()
	}
	return nil
}

// GetHasher returns the configured hasher
func (c *MerkleConfig) GetHasher() (merkle.Hasher, error) {
	return merkle.HasherByName(c.Hasher)
}
