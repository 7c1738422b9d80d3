package providers

import (
	"clarity/internal/structures"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const DefaultApiBaseURL = "http://localhost:3001"

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.baseUrl", DefaultApiBaseURL)
	v.SetDefault("api.timeout", 15*time.Second)
	v.SetDefault("api.rateLimit", 20.0)
	v.SetDefault("api.burst", 10)

	v.SetDefault("storage.driver", "bolt")
	v.SetDefault("storage.filePath", "clarity.db")

	v.SetDefault("query.institutionTTL", 30*time.Minute)
	v.SetDefault("query.statsTTL", 5*time.Minute)
	v.SetDefault("query.studentsTTL", 10*time.Minute)
	v.SetDefault("query.chartsTTL", 30*time.Minute)
	v.SetDefault("query.programsTTL", 5*time.Minute)
	v.SetDefault("query.statsRefresh", 5*time.Minute)
	v.SetDefault("query.studentsRefresh", 10*time.Minute)
	v.SetDefault("query.chartsRefresh", 30*time.Minute)
	v.SetDefault("query.retry", 2)
	v.SetDefault("query.retryDelay", time.Second)

	v.SetDefault("leads.recentLimit", 10)
	v.SetDefault("leads.pageSize", 20)

	v.SetDefault("payment.pollInterval", 3*time.Second)
	v.SetDefault("payment.timeout", 2*time.Minute)

	v.SetDefault("persistence.saveInterval", time.Minute)
	v.SetDefault("persistence.sweepInterval", 10*time.Minute)
	v.SetDefault("persistence.stateTTL", 24*time.Hour)

	v.SetDefault("cache.ttl", time.Minute)
}

func NewConfigProvider(flags *structures.CliFlags) (*structures.Config, error) {
	var conf structures.Config

	// A .env next to the config file is optional; real environment variables win.
	envFile := filepath.Join(filepath.Dir(flags.ConfigPath), ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("unable to load %s: %w", envFile, err)
	}

	v := viper.New()
	filename := filepath.Base(flags.ConfigPath)
	v.AddConfigPath(filepath.Dir(flags.ConfigPath))
	v.SetConfigName(strings.TrimSuffix(filename, filepath.Ext(filename)))
	v.SetConfigType("yaml")
	setDefaults(v)

	v.BindEnv("api.baseUrl", "CLARITY_API_URL")
	v.BindEnv("api.realtimeUrl", "CLARITY_REALTIME_URL")
	v.BindEnv("api.sessionCookie", "CLARITY_SESSION_COOKIE")
	v.BindEnv("logger.level", "CLARITY_LOG_LEVEL")
	v.BindEnv("storage.driver", "CLARITY_STORAGE_DRIVER")
	v.BindEnv("storage.postgresUrl", "CLARITY_POSTGRES_URL")
	v.BindEnv("cache.enabled", "CLARITY_CACHE_ENABLED")
	v.BindEnv("cache.size", "CLARITY_CACHE_SIZE")

	err := v.ReadInConfig()
	if err != nil {
		return nil, err
	}

	err = v.Unmarshal(&conf)
	if err != nil {
		return nil, fmt.Errorf("unable to decode into config struct: %w", err)
	}

	cnfValidator := NewCnfValidator(&conf)
	err = cnfValidator.Validate()
	if err != nil {
		return nil, err
	}

	conf.AppName = "ClaritySync"
	conf.Path = flags.ConfigPath
	conf.Debug = flags.DebugMode

	return &conf, nil
}
