// Package config provides configuration loading with layered overrides.
// Load order: defaults -> YAML/JSON file -> environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"time"

	configloader "github.com/GabrielNunesIT/go-libs/config-loader"
)

// Sender types accepted in SenderConfig.Type.
const (
	SenderStdout        = "stdout"
	SenderFile          = "file"
	SenderLoki          = "loki"
	SenderVictoriaLogs  = "victorialogs"
	SenderElasticsearch = "elasticsearch"
	SenderKafka         = "kafka"
)

// DefaultChannel is the channel ingestors write to when none is configured.
const DefaultChannel = "logs"

// Config is the root configuration structure for the log shipper.
type Config struct {
	LogLevel  string                   `koanf:"loglevel" yaml:"log_level" json:"log_level"`
	Pipeline  PipelineConfig           `koanf:"pipeline"`
	Storage   StorageConfig            `koanf:"storage"`
	Channels  map[string]ChannelConfig `koanf:"channels"`
	Sender    SenderConfig             `koanf:"sender"`
	Ingestors IngestorConfig           `koanf:"ingestors"`
}

// PipelineConfig controls the pipeline behavior.
type PipelineConfig struct {
	ShutdownTimeout time.Duration `koanf:"shutdowntimeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

// StorageConfig configures the durable event buffer.
type StorageConfig struct {
	Path string `koanf:"path"`
	// MaxEvents bounds the number of stored events across all channels. 0 disables the bound.
	MaxEvents int `koanf:"maxevents" yaml:"max_events" json:"max_events"`
}

// ChannelConfig configures one channel. The map key in Config.Channels is the group id.
type ChannelConfig struct {
	Enabled        bool          `koanf:"enabled"`
	Priority       string        `koanf:"priority"` // "backup", "default" or "high"
	BatchSize      int           `koanf:"batchsize" yaml:"batch_size" json:"batch_size"`
	FlushInterval  time.Duration `koanf:"flushinterval" yaml:"flush_interval" json:"flush_interval"`
	PendingBatches int           `koanf:"pendingbatches" yaml:"pending_batches" json:"pending_batches"`
}

// SenderConfig selects and configures the transport shared by all channels.
type SenderConfig struct {
	Type          string                    `koanf:"type"`
	Stdout        StdoutSenderConfig        `koanf:"stdout"`
	File          FileSenderConfig          `koanf:"file"`
	Loki          LokiSenderConfig          `koanf:"loki"`
	VictoriaLogs  VictoriaLogsSenderConfig  `koanf:"victorialogs"`
	Elasticsearch ElasticsearchSenderConfig `koanf:"elasticsearch"`
	Kafka         KafkaSenderConfig         `koanf:"kafka"`
}

// StdoutSenderConfig configures the stdout sender.
type StdoutSenderConfig struct {
	Format string `koanf:"format"` // "json" or "text"
}

// FileSenderConfig configures the rotating file sender.
type FileSenderConfig struct {
	Path       string `koanf:"path"`
	MaxSizeMB  int    `koanf:"maxsizemb" yaml:"max_size_mb" json:"max_size_mb"`
	MaxBackups int    `koanf:"maxbackups" yaml:"max_backups" json:"max_backups"`
	MaxAgeDays int    `koanf:"maxagedays" yaml:"max_age_days" json:"max_age_days"`
	Compress   bool   `koanf:"compress"`
}

// LokiSenderConfig configures the Loki sender.
type LokiSenderConfig struct {
	URL      string            `koanf:"url"`
	TenantID string            `koanf:"tenantid" yaml:"tenant_id" json:"tenant_id"`
	Labels   map[string]string `koanf:"labels"`
	Compress bool              `koanf:"compress"`
	Timeout  time.Duration     `koanf:"timeout"`
}

// VictoriaLogsSenderConfig configures the VictoriaLogs sender.
type VictoriaLogsSenderConfig struct {
	URL      string        `koanf:"url"`
	Compress bool          `koanf:"compress"`
	Timeout  time.Duration `koanf:"timeout"`
}

// ElasticsearchSenderConfig configures the Elasticsearch sender.
type ElasticsearchSenderConfig struct {
	Addresses     []string      `koanf:"addresses"`
	Index         string        `koanf:"index"`
	Username      string        `koanf:"username"`
	Password      string        `koanf:"password"`
	FlushInterval time.Duration `koanf:"flushinterval" yaml:"flush_interval" json:"flush_interval"`
}

// KafkaSenderConfig configures the Kafka sender.
type KafkaSenderConfig struct {
	Brokers []string `koanf:"brokers"`
	Topic   string   `koanf:"topic"`
}

// IngestorConfig holds configuration for all ingestors.
type IngestorConfig struct {
	File    FileIngestorConfig    `koanf:"file"`
	Syslog  SyslogIngestorConfig  `koanf:"syslog"`
	Journal JournalIngestorConfig `koanf:"journal"`
	Stdin   StdinIngestorConfig   `koanf:"stdin"`
}

// FileIngestorConfig configures the file tailing ingestor.
type FileIngestorConfig struct {
	Enabled   bool            `koanf:"enabled"`
	Channel   string          `koanf:"channel"`
	Paths     []string        `koanf:"paths"`
	Exclude   []string        `koanf:"exclude"`
	Processor ProcessorConfig `koanf:"processor"`
}

// SyslogIngestorConfig configures the syslog ingestor.
type SyslogIngestorConfig struct {
	Enabled   bool            `koanf:"enabled"`
	Channel   string          `koanf:"channel"`
	Protocol  string          `koanf:"protocol"` // "udp" or "tcp"
	Address   string          `koanf:"address"`
	Processor ProcessorConfig `koanf:"processor"`
}

// JournalIngestorConfig configures the systemd journal ingestor.
type JournalIngestorConfig struct {
	Enabled   bool            `koanf:"enabled"`
	Channel   string          `koanf:"channel"`
	Units     []string        `koanf:"units"`
	Processor ProcessorConfig `koanf:"processor"`
}

// StdinIngestorConfig configures the stdin ingestor.
type StdinIngestorConfig struct {
	Enabled   bool            `koanf:"enabled"`
	Channel   string          `koanf:"channel"`
	Processor ProcessorConfig `koanf:"processor"`
}

// ProcessorConfig configures the transformations an ingestor applies
// before its entries reach the channel.
type ProcessorConfig struct {
	Parser   ParserConfig   `koanf:"parser"`
	Enricher EnricherConfig `koanf:"enricher"`
}

// ParserConfig configures the parsing processor.
type ParserConfig struct {
	Enabled        bool     `koanf:"enabled"`
	JSONAutoDetect bool     `koanf:"jsonautodetect" yaml:"json_auto_detect" json:"json_auto_detect"`
	Patterns       []string `koanf:"patterns"` // Regex patterns with named groups
}

// EnricherConfig configures the enrichment processor.
type EnricherConfig struct {
	Enabled      bool              `koanf:"enabled"`
	AddHostname  bool              `koanf:"addhostname" yaml:"add_hostname" json:"add_hostname"`
	AddTimestamp bool              `koanf:"addtimestamp" yaml:"add_timestamp" json:"add_timestamp"`
	StaticLabels map[string]string `koanf:"staticlabels" yaml:"static_labels" json:"static_labels"`
}

// defaults returns the default configuration values.
func defaults() Config {
	return Config{
		LogLevel: "info",
		Pipeline: PipelineConfig{
			ShutdownTimeout: 30 * time.Second,
		},
		Storage: StorageConfig{
			Path:      "log-shipper.db",
			MaxEvents: 100000,
		},
		Channels: map[string]ChannelConfig{
			DefaultChannel: {
				Enabled:        true,
				Priority:       "default",
				BatchSize:      50,
				FlushInterval:  3 * time.Second,
				PendingBatches: 3,
			},
		},
		Sender: SenderConfig{
			Type: SenderStdout,
			Stdout: StdoutSenderConfig{
				Format: "json",
			},
			File: FileSenderConfig{
				MaxSizeMB:  100,
				MaxBackups: 3,
				MaxAgeDays: 7,
				Compress:   true,
			},
			Loki: LokiSenderConfig{
				Timeout: 10 * time.Second,
			},
			VictoriaLogs: VictoriaLogsSenderConfig{
				Timeout: 10 * time.Second,
			},
			Elasticsearch: ElasticsearchSenderConfig{
				Index:         "logs",
				FlushInterval: time.Second,
			},
		},
		Ingestors: IngestorConfig{
			File: FileIngestorConfig{
				Channel: DefaultChannel,
				Processor: ProcessorConfig{
					Parser: ParserConfig{
						Enabled:        true,
						JSONAutoDetect: true,
					},
					Enricher: EnricherConfig{
						Enabled:      true,
						AddHostname:  true,
						AddTimestamp: true,
					},
				},
			},
			Syslog: SyslogIngestorConfig{
				Channel:  DefaultChannel,
				Protocol: "udp",
				Address:  ":514",
				Processor: ProcessorConfig{
					Parser:   ParserConfig{Enabled: true},
					Enricher: EnricherConfig{Enabled: true},
				},
			},
			Journal: JournalIngestorConfig{
				Channel: DefaultChannel,
				Processor: ProcessorConfig{
					Parser:   ParserConfig{Enabled: true},
					Enricher: EnricherConfig{Enabled: true},
				},
			},
			Stdin: StdinIngestorConfig{
				Channel: DefaultChannel,
				Processor: ProcessorConfig{
					Parser: ParserConfig{
						Enabled:        true,
						JSONAutoDetect: true,
					},
					Enricher: EnricherConfig{Enabled: true},
				},
			},
		},
	}
}

// Load reads configuration from all sources with proper override order.
// Order: defaults -> config file -> environment variables.
func Load(configPath string) (*Config, error) {
	opts := []configloader.Option[Config]{
		configloader.WithDefaults[Config](defaults()),
	}

	if configPath != "" {
		opts = append(opts, configloader.WithFile[Config](configPath))
	} else {
		for _, path := range []string{"./config.yaml", "/etc/log-shipper/config.yaml"} {
			if _, err := os.Stat(path); err == nil {
				opts = append(opts, configloader.WithFile[Config](path))
				break
			}
		}
	}

	opts = append(opts, configloader.WithEnv[Config]("LOG_SHIPPER_"))

	loader := configloader.NewConfigLoader[Config](opts...)
	cfg, err := loader.Load()
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}

// ChannelNames returns the configured group ids in sorted order.
func (c *Config) ChannelNames() []string {
	names := make([]string, 0, len(c.Channels))
	for name := range c.Channels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks the configuration for values the pipeline cannot run with.
// All problems are reported together.
func (c *Config) Validate() error {
	var errs []error

	if c.Storage.Path == "" {
		errs = append(errs, errors.New("storage.path must be set"))
	}
	if c.Storage.MaxEvents < 0 {
		errs = append(errs, fmt.Errorf("storage.maxevents must not be negative, got %d", c.Storage.MaxEvents))
	}

	if len(c.Channels) == 0 {
		errs = append(errs, errors.New("at least one channel must be configured"))
	}
	for _, name := range c.ChannelNames() {
		ch := c.Channels[name]
		if strings.TrimSpace(name) == "" {
			errs = append(errs, errors.New("channel name must not be empty"))
		}
		if ch.BatchSize <= 0 {
			errs = append(errs, fmt.Errorf("channels.%s.batchsize must be positive, got %d", name, ch.BatchSize))
		}
		if ch.FlushInterval < 0 {
			errs = append(errs, fmt.Errorf("channels.%s.flushinterval must not be negative, got %s", name, ch.FlushInterval))
		}
		if ch.PendingBatches <= 0 {
			errs = append(errs, fmt.Errorf("channels.%s.pendingbatches must be positive, got %d", name, ch.PendingBatches))
		}
		switch strings.ToLower(ch.Priority) {
		case "", "backup", "default", "high":
		default:
			errs = append(errs, fmt.Errorf("channels.%s.priority: unknown priority %q", name, ch.Priority))
		}
	}

	switch c.Sender.Type {
	case SenderStdout, SenderFile, SenderLoki, SenderVictoriaLogs, SenderElasticsearch, SenderKafka:
	default:
		errs = append(errs, fmt.Errorf("sender.type: unknown sender %q", c.Sender.Type))
	}

	targets := map[string]struct {
		enabled   bool
		channel   string
		processor ProcessorConfig
	}{
		"file":    {c.Ingestors.File.Enabled, c.Ingestors.File.Channel, c.Ingestors.File.Processor},
		"syslog":  {c.Ingestors.Syslog.Enabled, c.Ingestors.Syslog.Channel, c.Ingestors.Syslog.Processor},
		"journal": {c.Ingestors.Journal.Enabled, c.Ingestors.Journal.Channel, c.Ingestors.Journal.Processor},
		"stdin":   {c.Ingestors.Stdin.Enabled, c.Ingestors.Stdin.Channel, c.Ingestors.Stdin.Processor},
	}
	for _, name := range []string{"file", "syslog", "journal", "stdin"} {
		t := targets[name]
		if !t.enabled {
			continue
		}
		if _, ok := c.Channels[t.channel]; !ok {
			errs = append(errs, fmt.Errorf("ingestors.%s.channel: unknown channel %q", name, t.channel))
		}
		for _, pattern := range t.processor.Parser.Patterns {
			if _, err := regexp.Compile(pattern); err != nil {
				errs = append(errs, fmt.Errorf("ingestors.%s.processor.parser.patterns: %w", name, err))
			}
		}
	}

	return errors.Join(errs...)
}
