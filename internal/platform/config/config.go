package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Addr              string
	DatabaseURL       string
	JWTSecret         string
	DataEncryptionKey string
	Environment       string

	SeedTenantName    string
	SeedAdminEmail    string
	SeedAdminPassword string
	RunMigrations     bool
	RunSeed           bool

	MaxBodyBytes   int64
	MetricsEnabled bool

	DocumentPollInterval time.Duration
	DocumentStorageDir   string

	GOSI     GOSIRates
	Findings FindingThresholds
}

// GOSIRates are the contribution fractions applied to the GOSI wage base.
type GOSIRates struct {
	EmployeeSaudi    float64
	EmployerSaudi    float64
	EmployerNonSaudi float64
}

// FindingThresholds are policy constants for the pre-approval finding
// engine. They are configurable on purpose: the defaults carry no stated
// business justification beyond current policy.
type FindingThresholds struct {
	DeductionRatioWarnPct float64
	DeductionRatioCritPct float64
	OvertimeWarnHours     float64
	OvertimeCritHours     float64
	NetDeviationWarnPct   float64
	NetDeviationCritPct   float64
	OvertimeSpikePct      float64
	OvertimeSpikeMinHours float64
	NewHighOvertimeHours  float64
}

func Load() Config {
	return Config{
		Addr:              getEnv("APP_ADDR", ":8080"),
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		JWTSecret:         getEnv("JWT_SECRET", ""),
		DataEncryptionKey: getEnv("DATA_ENCRYPTION_KEY", ""),
		Environment:       getEnv("APP_ENV", "development"),

		SeedTenantName:    getEnv("SEED_TENANT_NAME", "Default Tenant"),
		SeedAdminEmail:    getEnv("SEED_ADMIN_EMAIL", ""),
		SeedAdminPassword: getEnv("SEED_ADMIN_PASSWORD", ""),
		RunMigrations:     getEnvBool("RUN_MIGRATIONS", true),
		RunSeed:           getEnvBool("RUN_SEED", true),

		MaxBodyBytes:   int64(getEnvInt("MAX_BODY_BYTES", 1048576)),
		MetricsEnabled: getEnvBool("METRICS_ENABLED", true),

		DocumentPollInterval: getEnvDuration("DOCUMENT_POLL_INTERVAL", 5*time.Second),
		DocumentStorageDir:   getEnv("DOCUMENT_STORAGE_DIR", "storage/payslips"),

		GOSI: GOSIRates{
			EmployeeSaudi:    getEnvFloat("GOSI_EMPLOYEE_SAUDI_PCT", 9) / 100,
			EmployerSaudi:    getEnvFloat("GOSI_EMPLOYER_SAUDI_PCT", 11) / 100,
			EmployerNonSaudi: getEnvFloat("GOSI_EMPLOYER_NON_SAUDI_PCT", 2) / 100,
		},
		Findings: FindingThresholds{
			DeductionRatioWarnPct: getEnvFloat("FINDING_DEDUCTION_WARN_PCT", 35),
			DeductionRatioCritPct: getEnvFloat("FINDING_DEDUCTION_CRIT_PCT", 60),
			OvertimeWarnHours:     getEnvFloat("FINDING_OVERTIME_WARN_HOURS", 35),
			OvertimeCritHours:     getEnvFloat("FINDING_OVERTIME_CRIT_HOURS", 60),
			NetDeviationWarnPct:   getEnvFloat("FINDING_NET_DEVIATION_WARN_PCT", 20),
			NetDeviationCritPct:   getEnvFloat("FINDING_NET_DEVIATION_CRIT_PCT", 35),
			OvertimeSpikePct:      getEnvFloat("FINDING_OVERTIME_SPIKE_PCT", 100),
			OvertimeSpikeMinHours: getEnvFloat("FINDING_OVERTIME_SPIKE_MIN_HOURS", 8),
			NewHighOvertimeHours:  getEnvFloat("FINDING_NEW_HIGH_OVERTIME_HOURS", 20),
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.Environment == "production" && strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("JWT_SECRET is required in production")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}
