package domain

// Config holds the complete Heron configuration.
type Config struct {
	// Server settings
	Server ServerConfig `json:"server"`

	// Tier determines which cache and event bus backends are used
	Tier Tier `json:"tier"`

	// Engine holds the scoring and classification constants
	Engine EngineConfig `json:"engine"`

	// Component configurations
	Cache    CacheConfig    `json:"cache"`
	EventBus EventBusConfig `json:"eventBus"`

	// Observability
	Logging LoggingConfig `json:"logging"`
	Tracing TracingConfig `json:"tracing"`
}

// EngineConfig holds the tunable constants of the scoring engine. The two
// inversion constants are deliberately independent: one scales edge weights,
// the other scales risk scores.
type EngineConfig struct {
	// SuspicionK is the numerator of the inverse edge weighting:
	// weight = SuspicionK / (amount * frequency).
	SuspicionK float64 `json:"suspicionK"`

	// RiskK is the numerator of the inverse risk score:
	// riskScore = RiskK / distance-to-nearest-high-risk-account.
	RiskK float64 `json:"riskK"`

	// Threshold classifies an account as fraud when its risk distance is
	// strictly below it. The comparison is on distance, not risk score.
	Threshold float64 `json:"threshold"`

	// SuspicionExpr optionally replaces the default amount*frequency
	// suspicion score with a CEL expression over `amount` and `frequency`.
	// Empty means the built-in product.
	SuspicionExpr string `json:"suspicionExpr,omitempty"`

	// DuplicatePolicy selects last-wins or aggregate handling of repeated
	// (origin, destination) pairs.
	DuplicatePolicy DuplicatePolicy `json:"duplicatePolicy"`

	// AutoCreateAccounts registers unknown transaction endpoints on the
	// fly instead of rejecting them.
	AutoCreateAccounts bool `json:"autoCreateAccounts"`

	// RiskWorkers bounds the concurrency of the risk-distance fan-out.
	RiskWorkers int `json:"riskWorkers"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	ReadTimeout  int    `json:"readTimeout"`  // seconds
	WriteTimeout int    `json:"writeTimeout"` // seconds
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled     bool   `json:"enabled"`
	ServiceName string `json:"serviceName"`
}

// Tier represents the deployment tier.
type Tier string

const (
	// TierCommunity runs fully in-process: LRU cache + channel bus.
	TierCommunity Tier = "community"

	// TierPro uses Redis for the result cache and NATS for events.
	TierPro Tier = "pro"
)

// Default engine constants, taken from the reference AML tracing model.
const (
	DefaultSuspicionK = 1000.0
	DefaultRiskK      = 1000.0
	DefaultThreshold  = 0.05
)

// DefaultConfig returns a default configuration for the Community tier.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Tier: TierCommunity,
		Engine: EngineConfig{
			SuspicionK:         DefaultSuspicionK,
			RiskK:              DefaultRiskK,
			Threshold:          DefaultThreshold,
			DuplicatePolicy:    DuplicateLastWins,
			AutoCreateAccounts: false,
			RiskWorkers:        4,
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 1000,
			LocalTTL:     3600, // 1 hour
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "heron",
		},
	}
}

// ProConfig returns a configuration for the Pro tier.
func ProConfig() *Config {
	cfg := DefaultConfig()
	cfg.Tier = TierPro
	cfg.Cache = CacheConfig{
		Type:           "redis",
		RedisAddr:      "localhost:6379",
		EnableTwoPhase: true,
		LocalMaxSize:   1000,
	}
	cfg.EventBus = EventBusConfig{
		Type:              "nats",
		NATSUrl:           "nats://localhost:4222",
		NATSMaxReconnects: 10,
		NATSReconnectWait: 5,
	}
	cfg.Tracing.Enabled = true
	return cfg
}
