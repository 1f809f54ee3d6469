// Package config loads and holds the application configuration.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Conf holds all settings loaded from the config file.
var Conf Config

// Config mirrors the structure of configs/config.yaml.
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	JWT           JWTConfig           `mapstructure:"jwt"`
	Log           LogConfig           `mapstructure:"log"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	MinIO         MinIOConfig         `mapstructure:"minio"`
	Embedding     EmbeddingConfig     `mapstructure:"embedding"`
	Extraction    ExtractionConfig    `mapstructure:"extraction"`
	LLM           LLMConfig           `mapstructure:"llm"`
	Ingestion     IngestionConfig     `mapstructure:"ingestion"`
	Tracker       TrackerConfig       `mapstructure:"tracker"`
	Search        SearchConfig        `mapstructure:"search"`
}

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// DatabaseConfig groups all datastore connections.
type DatabaseConfig struct {
	MySQL MySQLConfig `mapstructure:"mysql"`
	Redis RedisConfig `mapstructure:"redis"`
}

// MySQLConfig holds the MySQL connection settings.
type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

// RedisConfig holds the Redis connection settings.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// JWTConfig holds operator-token settings. APIKey is the shared secret
// exchanged for a signed token at /auth/token.
type JWTConfig struct {
	Secret           string `mapstructure:"secret"`
	APIKey           string `mapstructure:"api_key"`
	TokenExpireHours int    `mapstructure:"token_expire_hours"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// KafkaConfig holds the async-ingestion topic settings.
type KafkaConfig struct {
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
	GroupID string `mapstructure:"group_id"`
}

// ElasticsearchConfig holds the vector store settings. TimeoutSeconds
// bounds every storage call.
type ElasticsearchConfig struct {
	Addresses      string `mapstructure:"addresses"`
	Username       string `mapstructure:"username"`
	Password       string `mapstructure:"password"`
	IndexName      string `mapstructure:"index_name"`
	VectorDims     int    `mapstructure:"vector_dims"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// MinIOConfig holds the object-storage document source settings.
type MinIOConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"`
}

// EmbeddingConfig holds the embedding model settings.
type EmbeddingConfig struct {
	APIKey          string `mapstructure:"api_key"`
	BaseURL         string `mapstructure:"base_url"`
	Model           string `mapstructure:"model"`
	Dimensions      int    `mapstructure:"dimensions"`
	TimeoutSeconds  int    `mapstructure:"timeout_seconds"`
	CacheTTLMinutes int    `mapstructure:"cache_ttl_minutes"`
}

// ExtractionConfig selects the text-extraction engine.
// Engine is "pdf" (in-process) or "tika" (remote Tika server).
type ExtractionConfig struct {
	Engine        string `mapstructure:"engine"`
	TikaServerURL string `mapstructure:"tika_server_url"`
}

// LLMConfig holds the answer-generation model settings.
type LLMConfig struct {
	APIKey         string  `mapstructure:"api_key"`
	BaseURL        string  `mapstructure:"base_url"`
	Model          string  `mapstructure:"model"`
	Temperature    float64 `mapstructure:"temperature"`
	MaxTokens      int     `mapstructure:"max_tokens"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
}

// IngestionConfig holds the ingestion pipeline settings.
type IngestionConfig struct {
	RawFilesPath string `mapstructure:"raw_files_path"`
	Extension    string `mapstructure:"extension"`
	ChunkSize    int    `mapstructure:"chunk_size"`
}

// TrackerConfig selects the processed-file tracker backend.
// Driver is "mysql" or "file"; Path is used by the file driver.
type TrackerConfig struct {
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
}

// SearchConfig holds the hybrid retrieval settings.
type SearchConfig struct {
	CandidateMultiplier int     `mapstructure:"candidate_multiplier"`
	RRFK                int     `mapstructure:"rrf_k"`
	DenseWeight         float64 `mapstructure:"dense_weight"`
	SparseWeight        float64 `mapstructure:"sparse_weight"`
}

// Init reads the YAML file at configPath and unmarshals it into Conf.
func Init(configPath string) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		panic(fmt.Errorf("failed to read config file: %w", err))
	}

	if err := viper.Unmarshal(&Conf); err != nil {
		panic(fmt.Errorf("failed to unmarshal config: %w", err))
	}
}
