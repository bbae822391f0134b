package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultAudioFiles is the list of episodes shipped in the audio directory.
var DefaultAudioFiles = []string{
	"Shivcharitra by Ninad Bedekar Sir Ep_01.mp3",
	"Panipat by Ninad Bedekar Sir Ep_01.mp3",
	"Panipat by Ninad Bedekar Sir Ep_02.mp3",
	"Panipat by Ninad Bedekar Sir Ep_03.mp3",
}

// Config stores the application configuration.
type Config struct {
	ListenAddr string
	AppURL     string // public origin used in the miniapp manifest

	// Miniapp account association, generated by the Base Build tool.
	AccountAssociationHeader    string
	AccountAssociationPayload   string
	AccountAssociationSignature string
	WebhookURL                  string

	// Snapshot persistence: memory, file, redis, mysql or minio.
	StorageBackend string
	DataDir        string
	KeyPrefix      string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioRegion    string
	MinioUseSSL    bool

	// Audio catalog
	AudioSource   string // file or minio
	AudioDir      string
	AudioBaseURL  string
	AudioFiles    []string
	AudioArtist   string
	AlbumArt      string
	ProbeTimeout  time.Duration
	WatchAudioDir bool

	FlushInterval time.Duration

	JWTSecret string
	TokenTTL  time.Duration

	LogLevel      string
	LogPath       string
	LogMaxSize    int
	LogMaxBackups int
	LogMaxAge     int
	LogCompress   bool
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

func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

// getEnvDuration accepts Go duration strings ("5s") or a plain number of seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}

// getEnvList splits a comma separated variable, dropping blank items.
func getEnvList(key string, fallback []string) []string {
	value, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(value) == "" {
		return append([]string(nil), fallback...)
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Load loads configuration from environment variables (via .env file) or defaults.
func Load() *Config {
	// godotenv.Load() does not override variables that are already set.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on existing environment variables and defaults.")
	}
	return FromEnv()
}

// FromEnv builds a Config from the current environment without touching .env files.
func FromEnv() *Config {
	dataDir := getEnv("DATA_DIR", "data")
	audioDir := getEnv("AUDIO_DIR", filepath.Join("public", "audio"))

	return &Config{
		ListenAddr: getEnv("LISTEN_ADDR", ":8080"),
		AppURL:     strings.TrimRight(getEnv("NEXT_PUBLIC_URL", "https://your-domain.com"), "/"),

		AccountAssociationHeader:    getEnv("FARCASTER_ACCOUNT_ASSOCIATION_HEADER", ""),
		AccountAssociationPayload:   getEnv("FARCASTER_ACCOUNT_ASSOCIATION_PAYLOAD", ""),
		AccountAssociationSignature: getEnv("FARCASTER_ACCOUNT_ASSOCIATION_SIGNATURE", ""),
		WebhookURL:                  getEnv("FARCASTER_WEBHOOK_URL", ""),

		StorageBackend: strings.ToLower(getEnv("STORAGE_BACKEND", "file")),
		DataDir:        dataDir,
		KeyPrefix:      getEnv("STORAGE_KEY_PREFIX", ""),

		DBHost:     getEnv("DB_HOST", "127.0.0.1"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "root"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     getEnv("DB_NAME", "basemusic"),

		RedisHost:     getEnv("REDIS_HOST", "127.0.0.1"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		MinioEndpoint:  getEnv("MINIO_ENDPOINT", "127.0.0.1:9000"),
		MinioAccessKey: getEnv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: getEnv("MINIO_SECRET_KEY", ""),
		MinioBucket:    getEnv("MINIO_BUCKET", "basemusic"),
		MinioRegion:    getEnv("MINIO_REGION", "us-east-1"),
		MinioUseSSL:    getEnvBool("MINIO_USE_SSL", false),

		AudioSource:   strings.ToLower(getEnv("AUDIO_SOURCE", "file")),
		AudioDir:      audioDir,
		AudioBaseURL:  strings.TrimRight(getEnv("AUDIO_BASE_URL", "/audio"), "/"),
		AudioFiles:    getEnvList("AUDIO_FILES", DefaultAudioFiles),
		AudioArtist:   getEnv("AUDIO_ARTIST", "Ninad Bedekar Sir"),
		AlbumArt:      getEnv("ALBUM_ART", "/images/Ninad%20Bedekar%20Sir.png"),
		ProbeTimeout:  getEnvDuration("PROBE_TIMEOUT", 5*time.Second),
		WatchAudioDir: getEnvBool("WATCH_AUDIO_DIR", true),

		FlushInterval: getEnvDuration("FLUSH_INTERVAL", 5*time.Second),

		JWTSecret: getEnv("JWT_SECRET", "basemusic-dev-secret"),
		TokenTTL:  getEnvDuration("TOKEN_TTL", 24*time.Hour),

		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogPath:       getEnv("LOG_PATH", ""),
		LogMaxSize:    getEnvInt("LOG_MAX_SIZE", 100),
		LogMaxBackups: getEnvInt("LOG_MAX_BACKUPS", 3),
		LogMaxAge:     getEnvInt("LOG_MAX_AGE", 28),
		LogCompress:   getEnvBool("LOG_COMPRESS", true),
	}
}
