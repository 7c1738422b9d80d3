package structures

import "time"

type Server struct {
	Host string `yaml:"host" validate:"required"`
	Port int    `yaml:"port" validate:"required|uint|min:1"`
}

type ApiConfig struct {
	BaseURL       string        `yaml:"baseUrl" validate:"required|fullUrl"`
	RealtimeURL   string        `yaml:"realtimeUrl"`
	SessionCookie string        `yaml:"sessionCookie"`
	Timeout       time.Duration `yaml:"timeout" validate:"required|min:1"`
	RateLimit     float64       `yaml:"rateLimit"`
	Burst         int           `yaml:"burst"`
}

type StorageConfig struct {
	Driver      string `yaml:"driver" validate:"required|in:bolt,postgres,none"`
	FilePath    string `yaml:"filePath"`
	PostgresURL string `yaml:"postgresUrl"`
	TablePrefix string `yaml:"tablePrefix"`
}

// QueryConfig holds freshness windows (TTL) and background refresh cadence per entity.
type QueryConfig struct {
	InstitutionTTL  time.Duration `yaml:"institutionTTL"`
	StatsTTL        time.Duration `yaml:"statsTTL"`
	StudentsTTL     time.Duration `yaml:"studentsTTL"`
	ChartsTTL       time.Duration `yaml:"chartsTTL"`
	ProgramsTTL     time.Duration `yaml:"programsTTL"`
	StatsRefresh    time.Duration `yaml:"statsRefresh"`
	StudentsRefresh time.Duration `yaml:"studentsRefresh"`
	ChartsRefresh   time.Duration `yaml:"chartsRefresh"`
	Retry           int           `yaml:"retry"`
	RetryDelay      time.Duration `yaml:"retryDelay"`
}

type LeadsConfig struct {
	RecentLimit int `yaml:"recentLimit" validate:"required|min:1"`
	PageSize    int `yaml:"pageSize" validate:"required|min:1"`
}

type PaymentConfig struct {
	PollInterval time.Duration `yaml:"pollInterval"`
	Timeout      time.Duration `yaml:"timeout"`
}

// Persistence controls how often the query state is saved. FilePath, when set,
// mirrors the saved state to a file so it survives a storage backend outage.
type Persistence struct {
	SaveInterval  time.Duration `yaml:"saveInterval" validate:"required|min:1"`
	SweepInterval time.Duration `yaml:"sweepInterval"`
	StateTTL      time.Duration `yaml:"stateTTL"`
	FilePath      string        `yaml:"filePath"`
}

type LoggerConfig struct {
	Level string `yaml:"level" validate:"required|in:trace,debug,info,warn,error,fatal,panic"`
	Mode  uint32 `yaml:"mode" validate:"required|uint"`
	Dir   string `yaml:"dir" validate:"required|unixPath"`
}

type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	Size    int           `yaml:"size"`
	TTL     time.Duration `yaml:"ttl"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

type Config struct {
	AppName     string
	Debug       bool
	Path        string
	Api         ApiConfig     `yaml:"api"`
	Storage     StorageConfig `yaml:"storage"`
	Query       QueryConfig   `yaml:"query"`
	Leads       LeadsConfig   `yaml:"leads"`
	Payment     PaymentConfig `yaml:"payment"`
	WebServer   Server        `yaml:"webServer"`
	Persistence Persistence   `yaml:"persistence"`
	Logger      LoggerConfig  `yaml:"logger"`
	Cache       CacheConfig   `yaml:"cache"`
	Metrics     MetricsConfig `yaml:"metrics"`
}
