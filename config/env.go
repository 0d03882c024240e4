package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Service ServiceConfig
	Gateway GatewayConfig
	GRPC    GRPCConfig
	Redis   RedisConfig
	DB      DBConfig
	Auth    AuthConfig
	Kafka   KafkaConfig
	Floor   FloorConfig
}

type ServiceConfig struct {
	Name      string
	LogFormat string
	LogFile   string
}

type GatewayConfig struct {
	Port           string
	RateLimit      string
	GlobalRPS      float64
	RequestTimeout time.Duration
	FloorAddr      string
}

type GRPCConfig struct {
	Port string
}

type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// DSN is empty when no database host is configured; the archive is then
// disabled.
func (c DBConfig) DSN() string {
	if c.Host == "" {
		return ""
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

type AuthConfig struct {
	JWTSecret string
	DeviceKey string
	TokenTTL  time.Duration
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
	Mock    bool
}

type FloorConfig struct {
	UnmergePolicy string
	LockBackend   string
	LockTTL       time.Duration
	Notifiers     []string
	SeedLayout    bool
}

func LoadConfig() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	redisPool, _ := strconv.Atoi(getEnv("REDIS_POOL_SIZE", "10"))
	kafkaMock, _ := strconv.ParseBool(getEnv("KAFKA_MOCK", "true"))
	seed, _ := strconv.ParseBool(getEnv("FLOOR_SEED_LAYOUT", "false"))

	return Config{
		Service: ServiceConfig{
			Name:      getEnv("SERVICE_NAME", "floor"),
			LogFormat: getEnv("LOG_FORMAT", "json"),
			LogFile:   getEnv("LOG_FILE", ""),
		},
		Gateway: GatewayConfig{
			Port:           getEnv("GATEWAY_PORT", "8080"),
			RateLimit:      getEnv("RATE_LIMIT", "100-M"),
			GlobalRPS:      getFloat("GLOBAL_RPS", 200),
			RequestTimeout: getDuration("REQUEST_TIMEOUT", 5*time.Second),
			FloorAddr:      getEnv("FLOOR_SERVICE_URL", "localhost:50061"),
		},
		GRPC: GRPCConfig{
			Port: getEnv("GRPC_PORT", "50061"),
		},
		Redis: RedisConfig{
			Host:         getEnv("REDIS_HOST", "localhost"),
			Port:         getEnv("REDIS_PORT", "6379"),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           redisDB,
			PoolSize:     redisPool,
			ClusterAddrs: getList("REDIS_CLUSTER_ADDRS"),
		},
		DB: DBConfig{
			Host:     getEnv("DB_HOST", ""),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Name:     getEnv("DB_NAME", "syntra_floor"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
			DeviceKey: getEnv("DEVICE_KEY", ""),
			TokenTTL:  getDuration("JWT_TTL", 12*time.Hour),
		},
		Kafka: KafkaConfig{
			Brokers: getList("KAFKA_BROKERS"),
			Topic:   getEnv("KAFKA_TOPIC", "floor-events"),
			Mock:    kafkaMock,
		},
		Floor: FloorConfig{
			UnmergePolicy: getEnv("FLOOR_UNMERGE_POLICY", "dissolve"),
			LockBackend:   getEnv("FLOOR_LOCK_BACKEND", "memory"),
			LockTTL:       getDuration("FLOOR_LOCK_TTL", 10*time.Second),
			Notifiers:     getList("FLOOR_NOTIFIERS"),
			SeedLayout:    seed,
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	d, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return d
}

func getFloat(key string, defaultValue float64) float64 {
	f, err := strconv.ParseFloat(getEnv(key, ""), 64)
	if err != nil {
		return defaultValue
	}
	return f
}

func getList(key string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, ""), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
