package backends

import (
	"context"
	"crypto/tls"
	"fmt"
	"kvguard/internal/backends/ddb"
	"kvguard/internal/backends/memory"
	"kvguard/internal/ports"
	"os"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	redisbackend "kvguard/internal/backends/redis"
)

const (
	ConfigBackendEnvKey = "CONFIG_BACKEND"
	BackendDDB          = "ddb"
	BackendRedis        = "redis"
	BackendFile         = "file"

	DDBEndpointKey = "DDB_ENDPOINT"
	DDBTableKey    = "DDB_TABLE"

	ConfigFileKey = "CONFIG_FILE"

	RedisHost  = "CONFIG_REDIS_HOST"
	RedisPort  = "CONFIG_REDIS_PORT"
	RedisUser  = "CONFIG_REDIS_USER"
	RedisPass  = "CONFIG_REDIS_PASS"
	RedisTLS   = "CONFIG_REDIS_SSL"
	RedisDBNum = "CONFIG_REDIS_DB_NUM"
)

// ConfigSourceFromEnv constructs the configuration source selected by the
// "CONFIG_BACKEND" env var. Supported backends are "file" (a YAML seed file
// held in memory), "redis" and "ddb" (DynamoDB). Defaults to "file".
func ConfigSourceFromEnv(ctx context.Context) (source ports.ConfigSource, err error) {
	backend := os.Getenv(ConfigBackendEnvKey)
	switch backend {
	case BackendRedis:
		var redisClient *redis.Client
		redisClient, err = redisClientFromEnv(ctx)
		if err != nil {
			return nil, err
		}
		source = redisbackend.NewConfigSource(redisClient)

	case BackendDDB:
		var ddbClient *dynamodb.Client
		ddbClient, err = ddbClientFromEnv(ctx)
		if err != nil {
			return nil, err
		}
		var ddbSource *ddb.ConfigSource
		ddbSource, err = ddb.NewConfigSource(getenv(DDBTableKey, "kvguard_config"), ddbClient)
		if err != nil {
			return nil, err
		}
		source = ddbSource

	case BackendFile:
		fallthrough
	case "":
		fallthrough
	default:
		mem := memory.NewConfigSource()
		path := getenv(ConfigFileKey, "kvguard.yml")
		entries, loadErr := memory.LoadYAML(path)
		if loadErr != nil {
			if !os.IsNotExist(loadErr) {
				return nil, loadErr
			}
			log.WithField("path", path).Info("config file not found, starting with an empty source")
		}
		for _, e := range entries {
			if err = mem.PutConfig(ctx, e); err != nil {
				return nil, err
			}
		}
		source = mem
	}
	return
}

// ddbClientFromEnv creates a DynamoDB client from environment variables, if any.
func ddbClientFromEnv(ctx context.Context) (*dynamodb.Client, error) {
	var ddbEndpoint *string
	de := os.Getenv(DDBEndpointKey)
	if de != "" {
		ddbEndpoint = aws.String(de)
	}

	awsCfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}

	ddbClient := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if ddbEndpoint != nil {
			// Local DynamoDB / moto only.
			o.BaseEndpoint = ddbEndpoint
			o.Region = getenv("AWS_REGION", "us-east-1")
			o.Credentials = credentials.NewStaticCredentialsProvider(
				getenv("AWS_ACCESS_KEY_ID", "x"),
				getenv("AWS_SECRET_ACCESS_KEY", "x"),
				"",
			)
		}
	})
	return ddbClient, nil
}

// redisClientFromEnv creates the client for the Redis instance that holds configuration.
// It is distinct from the store the topology resolver connects to.
func redisClientFromEnv(ctx context.Context) (*redis.Client, error) {
	host := getenv(RedisHost, "localhost")
	port := getenv(RedisPort, "6379")
	dbNum, err := strconv.Atoi(getenv(RedisDBNum, "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid Redis DB number: %w", err)
	}

	var tlsConfig *tls.Config
	if parseBoolean(getenv(RedisTLS, "false")) {
		tlsConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:      fmt.Sprintf("%s:%s", host, port),
		Username:  os.Getenv(RedisUser),
		Password:  os.Getenv(RedisPass),
		DB:        dbNum,
		TLSConfig: tlsConfig,
	})
	if _, err = redisClient.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}
	return redisClient, nil
}

// getenv retrieves the value of the environment variable named by the key.
func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func parseBoolean(s string) bool {
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false
	}
	return b
}
