package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config 应用配置，来自环境变量（可经 .env 注入）与默认值
type Config struct {
	// 平台侧身份
	UserID string // 宿主应用在聊天平台上的用户 id
	Shards int

	// 节点
	NodesFile      string // 节点静态配置文件（JSON），支持热加载
	SearchPrefix   string // 非 URL 查询的默认搜索源
	RequestTimeout int    // 节点请求/响应调用超时（秒）

	// 控制网关
	GatewayAddr string
	JWTSecret   string

	// Redis 配置
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// MySQL（播放历史，可选；DBHost 为空时禁用）
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// 日志
	LogLevel string
	LogPath  string
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

// Load loads configuration from environment variables (via .env file) or defaults.
func Load() *Config {
	// godotenv 不会覆盖已存在的环境变量
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found or error loading .env, relying on existing environment variables and defaults.")
	}

	return &Config{
		UserID:         os.Getenv("APP_USER_ID"),
		Shards:         getEnvInt("APP_SHARDS", 1),
		NodesFile:      getEnv("NODES_FILE", "nodes.json"),
		SearchPrefix:   getEnv("SEARCH_PREFIX", "yt"),
		RequestTimeout: getEnvInt("REQUEST_TIMEOUT", 10),
		GatewayAddr:    getEnv("GATEWAY_ADDR", ":8080"),
		JWTSecret:      os.Getenv("JWT_SECRET"), // 为空时网关不启用鉴权
		RedisHost:      getEnv("REDIS_HOST", "127.0.0.1"),
		RedisPort:      getEnv("REDIS_PORT", "6379"),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RedisDB:        getEnvInt("REDIS_DB", 0),
		DBHost:         os.Getenv("DB_HOST"),
		DBPort:         getEnv("DB_PORT", "3306"),
		DBUser:         getEnv("DB_USER", "root"),
		DBPassword:     os.Getenv("DB_PASSWORD"),
		DBName:         getEnv("DB_NAME", "springlink"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogPath:        getEnv("LOG_PATH", ""),
	}
}
