package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultLeadFields is the field list requested for every lead page.
const DefaultLeadFields = "ad_id,ad_name,adset_id,adset_name,campaign_id,campaign_name,created_time," +
	"custom_disclaimer_responses,field_data,form_id,id,home_listing,is_organic,partner_name," +
	"platform,post,retailer_item_id,vehicle"

// DefaultFormFields is the field list requested when discovering a page's lead forms.
const DefaultFormFields = "name,id,created_time,leads_count,page,page_id,questions"

// Config holds all configuration for the service
type Config struct {
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"logLevel"`
	Server      struct {
		Port int `mapstructure:"port"`
	} `mapstructure:"server"`
	NATS struct {
		URL      string             `mapstructure:"url"`
		Triggers ConsumerNatsConfig `mapstructure:"triggers"`
	} `mapstructure:"nats"`
	Database struct {
		PostgresDSN         string `mapstructure:"postgresDSN"`
		PostgresAutoMigrate bool   `mapstructure:"postgresAutoMigrate"`
	} `mapstructure:"database"`
	Graph   GraphConfig `mapstructure:"graph"`
	Sync    SyncConfig  `mapstructure:"sync"`
	Metrics struct {
		Enabled bool `mapstructure:"enabled"`
	} `mapstructure:"metrics"`
	WorkerPools struct {
		Sync WorkerPoolConfig `mapstructure:"sync"`
	} `mapstructure:"workerPools"`
}

// GraphConfig describes how the Graph API is reached.
type GraphConfig struct {
	BaseURL        string        `mapstructure:"baseURL"`
	Version        string        `mapstructure:"version"`
	AppAccessToken string        `mapstructure:"appAccessToken"`
	Timeout        time.Duration `mapstructure:"timeout"`
	RateLimit      float64       `mapstructure:"rateLimit"` // requests per second, 0 disables throttling
	RateBurst      int           `mapstructure:"rateBurst"`
	MaxBodyBytes   int64         `mapstructure:"maxBodyBytes"`
	LeadFields     string        `mapstructure:"leadFields"`
	FormFields     string        `mapstructure:"formFields"`
}

// SyncConfig holds the knobs of the ingestion and dispatch pipeline.
type SyncConfig struct {
	PhoneField        string         `mapstructure:"phoneField"` // mobile_no or phone
	DefaultRecordType string         `mapstructure:"defaultRecordType"`
	RecordTypes       []string       `mapstructure:"recordTypes"` // record types watched by the status trigger
	DefaultStatus     string         `mapstructure:"defaultStatus"`
	SchedulerEnabled  bool           `mapstructure:"schedulerEnabled"`
	Dispatch          DispatchConfig `mapstructure:"dispatch"`
}

// DispatchConfig controls the pixel event dispatcher.
type DispatchConfig struct {
	MaxAttempts     int           `mapstructure:"maxAttempts"`
	BackoffStep     time.Duration `mapstructure:"backoffStep"`
	ActionSource    string        `mapstructure:"actionSource"`
	EventSource     string        `mapstructure:"eventSource"`
	LeadEventSource string        `mapstructure:"leadEventSource"`
}

// WorkerPoolConfig holds configuration for the sync run worker pool
type WorkerPoolConfig struct {
	PoolSize   int           `mapstructure:"poolSize"`   // Number of concurrent runs
	QueueSize  int           `mapstructure:"queueSize"`  // Max runs waiting for a worker
	MaxBlock   time.Duration `mapstructure:"maxBlock"`   // Max time to block when submitting if queue full
	ExpiryTime time.Duration `mapstructure:"expiryTime"` // Idle worker expiry time
}

// ConsumerNatsConfig holds configuration specific to a NATS consumer
type ConsumerNatsConfig struct {
	MaxAge       int64         `mapstructure:"maxAge"` // max age of messages in day
	Stream       string        `mapstructure:"stream"`
	Consumer     string        `mapstructure:"consumer"` // durable name
	QueueGroup   string        `mapstructure:"group"`
	SubjectList  []string      `mapstructure:"subjectList"`
	MaxDeliver   int           `mapstructure:"maxDeliver"`
	NakBaseDelay time.Duration `mapstructure:"nakBaseDelay"`
	NakMaxDelay  time.Duration `mapstructure:"nakMaxDelay"`
	AckWait      time.Duration `mapstructure:"ackWait"`
}

// LoadConfig reads configuration from file or environment variables
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("environment", "development")
	v.SetDefault("logLevel", "info")
	v.SetDefault("server.port", 8080)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("database.postgresAutoMigrate", true)

	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.triggers.stream", "lead_sync_triggers")
	v.SetDefault("nats.triggers.consumer", "lead_sync_worker")
	v.SetDefault("nats.triggers.group", "lead_sync")
	v.SetDefault("nats.triggers.subjectList", []string{"v1.sync.run", "v1.sync.setting", "v1.leads.status", "v1.forms.refresh"})
	v.SetDefault("nats.triggers.maxAge", 7)
	v.SetDefault("nats.triggers.maxDeliver", 5)
	v.SetDefault("nats.triggers.nakBaseDelay", 2*time.Second)
	v.SetDefault("nats.triggers.nakMaxDelay", time.Minute)
	v.SetDefault("nats.triggers.ackWait", 30*time.Second)

	v.SetDefault("graph.baseURL", "https://graph.facebook.com")
	v.SetDefault("graph.version", "v21.0")
	v.SetDefault("graph.timeout", 30*time.Second)
	v.SetDefault("graph.rateLimit", 20.0)
	v.SetDefault("graph.rateBurst", 5)
	v.SetDefault("graph.maxBodyBytes", 10*1024*1024)
	v.SetDefault("graph.leadFields", DefaultLeadFields)
	v.SetDefault("graph.formFields", DefaultFormFields)

	v.SetDefault("sync.phoneField", "mobile_no")
	v.SetDefault("sync.defaultRecordType", "Lead")
	v.SetDefault("sync.recordTypes", []string{"Lead", "CRM Lead"})
	v.SetDefault("sync.defaultStatus", "Lead")
	v.SetDefault("sync.schedulerEnabled", true)
	v.SetDefault("sync.dispatch.maxAttempts", 3)
	v.SetDefault("sync.dispatch.backoffStep", 5*time.Second)
	v.SetDefault("sync.dispatch.actionSource", "system_generated")
	v.SetDefault("sync.dispatch.eventSource", "crm")
	v.SetDefault("sync.dispatch.leadEventSource", "ERP Next")

	v.SetDefault("workerPools.sync.poolSize", 1)
	v.SetDefault("workerPools.sync.queueSize", 100)
	v.SetDefault("workerPools.sync.maxBlock", time.Second)
	v.SetDefault("workerPools.sync.expiryTime", 5*time.Minute)

	v.SetConfigName("default")
	v.SetConfigType("yaml")

	if path != "" {
		v.AddConfigPath(path)
	}
	v.AddConfigPath(".")
	v.AddConfigPath("./internal/config")
	v.AddConfigPath("$HOME/.meta-lead-sync")
	v.AddConfigPath("/etc/meta-lead-sync")

	if err := v.ReadInConfig(); err != nil {
		// It's ok if config file is not found, we'll use env vars
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindEnvs(v, Config{})

	// Read directly from ENV for critical values
	if dsn := os.Getenv("POSTGRES_DSN"); dsn != "" {
		v.Set("database.postgresDSN", dsn)
	}
	if lgLevel := os.Getenv("LOG_LEVEL"); lgLevel != "" {
		v.Set("logLevel", lgLevel)
	}
	if url := os.Getenv("NATS_URL"); url != "" {
		v.Set("nats.url", url)
	}
	if token := os.Getenv("META_APP_ACCESS_TOKEN"); token != "" {
		v.Set("graph.appAccessToken", token)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) validate() error {
	switch c.Sync.PhoneField {
	case "mobile_no", "phone":
	default:
		return fmt.Errorf("sync.phoneField must be mobile_no or phone, got %q", c.Sync.PhoneField)
	}
	if c.Sync.Dispatch.MaxAttempts < 1 {
		return fmt.Errorf("sync.dispatch.maxAttempts must be at least 1")
	}
	if c.Graph.Timeout <= 0 {
		return fmt.Errorf("graph.timeout must be positive")
	}
	return nil
}

// bindEnvs recursively binds environment variables to config struct fields
func bindEnvs(v *viper.Viper, cfg interface{}, parts ...string) {
	ifv := reflect.ValueOf(cfg)
	ift := reflect.TypeOf(cfg)
	for i := 0; i < ift.NumField(); i++ {
		fieldVal := ifv.Field(i)
		fieldType := ift.Field(i)

		tag := fieldType.Tag.Get("mapstructure")
		if tag == "" || tag == "-" {
			continue
		}

		path := append(append([]string{}, parts...), tag)
		key := strings.Join(path, ".")

		if fieldType.Type.Kind() == reflect.Struct {
			bindEnvs(v, fieldVal.Interface(), path...)
			continue
		}

		_ = v.BindEnv(key)
	}
}
