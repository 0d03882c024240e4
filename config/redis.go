package config

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
)

const redisPingTimeout = 5 * time.Second

type RedisConfig struct {
	Host         string
	Port         string
	Password     string
	DB           int
	PoolSize     int
	ClusterAddrs []string
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// NewRedis returns a cluster client when cluster addresses are configured and
// a single-node client otherwise. The client has answered a PING.
func NewRedis(config RedisConfig) (redis.UniversalClient, error) {
	if len(config.ClusterAddrs) > 0 {
		rdb, err := NewRedisCluster(config)
		if err != nil {
			return nil, err
		}
		return rdb, nil
	}
	rdb, err := NewRedisClient(config)
	if err != nil {
		return nil, err
	}
	return rdb, nil
}

func NewRedisClient(config RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         config.Addr(),
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.PoolSize / 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	if err := ping(rdb, config.Addr()); err != nil {
		rdb.Close()
		return nil, err
	}
	return rdb, nil
}

func NewRedisCluster(config RedisConfig) (*redis.ClusterClient, error) {
	rdb := redis.NewClusterClient(&redis.ClusterOptions{
		Addrs:    config.ClusterAddrs,
		Password: config.Password,
		PoolSize: config.PoolSize,
	})
	if err := ping(rdb, fmt.Sprint(config.ClusterAddrs)); err != nil {
		rdb.Close()
		return nil, err
	}
	return rdb, nil
}

func ping(rdb redis.UniversalClient, target string) error {
	ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
	defer cancel()

	pong, err := rdb.Ping(ctx).Result()
	if err != nil {
		return fmt.Errorf("failed to connect to Redis at %s: %w", target, err)
	}
	log.Printf("Redis connected (%s): %s", target, pong)
	return nil
}
