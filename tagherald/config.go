//nolint:lll // struct tags can't be split
package tagherald

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/go-playground/validator/v10"
)

const (
	EnvvarSetEnvPrefix = "TAGHERALD_ENV_PREFIX"
	DefaultEnvPrefix   = "TH"

	DefaultDatabaseType          = "sqlite"
	DefaultDatabase              = "tagherald.sqlite3"
	DefaultDatabaseSlowThreshold = 200 * time.Millisecond
	DefaultDatabaseLogLevel      = slog.LevelInfo

	DefaultLogLevel        = slog.LevelInfo
	DefaultStartupTimeout  = 30 * time.Second
	DefaultShutdownTimeout = 60 * time.Second

	// DefaultTagSyncInterval is how often the forum tag vocabulary is
	// re-synced to the subscription store. 0 disables the periodic sync
	// (the /sync command still works).
	DefaultTagSyncInterval = time.Hour

	DiscordSlashCommandListTags    = "list_tags"
	DiscordSlashCommandMention     = "mention"
	DiscordSlashCommandSubscribe   = "subscribe"
	DiscordSlashCommandUnsubscribe = "unsubscribe"
	DiscordSlashCommandSync        = "sync"

	DefaultDiscordLogLevel      = slog.LevelWarn
	DefaultDiscordgoLogLevel    = slog.LevelWarn
	DefaultDiscordGatewayIntent = discordgo.IntentsAllWithoutPrivileged

	DefaultDiscordErrorMessage = "sorry, something went wrong!"

	// DefaultThreadNotifyPerMinute limits how many thread-create
	// notifications the bot will send per minute.
	DefaultThreadNotifyPerMinute = 10

	discordMaxSelectMenuOptions = 25
	discordMaxComponentRows     = 5
)

var structValidator = validator.New()

// Config is the top-level tagherald configuration.
type Config struct {
	// Database connection string, or SQLite file path
	Database string `yaml:"database" mapstructure:"database" json:"database"`

	// DatabaseType specifies the type of database, either 'sqlite' or 'postgres'
	DatabaseType string `yaml:"database_type" mapstructure:"database_type" json:"database_type" validate:"oneof=sqlite postgres"`

	// DatabaseLogLevel sets the log level for database operations
	DatabaseLogLevel *slog.LevelVar `yaml:"database_log_level" mapstructure:"database_log_level" json:"database_log_level"`

	// DatabaseSlowThreshold is the duration threshold for identifying slow database queries
	DatabaseSlowThreshold time.Duration `yaml:"database_slow_threshold" mapstructure:"database_slow_threshold" json:"database_slow_threshold"`

	// Discord configures the discord bot itself
	Discord *DiscordConfig `yaml:"discord" mapstructure:"discord" json:"discord"`

	// LogLevel is the base log level, for the default logger
	LogLevel *slog.LevelVar `yaml:"log_level" mapstructure:"log_level" json:"log_level"`

	// StartupTimeout sets a limit on the amount of time the bot has to
	// initialize. If this is passed, the bot will abort startup.
	StartupTimeout time.Duration `yaml:"startup_timeout" mapstructure:"startup_timeout" json:"startup_timeout"`

	// ShutdownTimeout is the time to allow for a graceful shutdown. After this
	// elapses, the bot will force close all connections and exit.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout" json:"shutdown_timeout"`

	// TagSyncInterval is how often the forum tag vocabulary is pushed to
	// the subscription store. 0 disables the periodic sync.
	TagSyncInterval time.Duration `yaml:"tag_sync_interval" mapstructure:"tag_sync_interval" json:"tag_sync_interval"`

	HTTPClient *http.Client `log:"[redacted]"`
}

func (c Config) LogValue() slog.Value {
	return structToSlogValue(c)
}

// DiscordConfig configures the discord bot itself.
//
//nolint:lll // can't break tags
type DiscordConfig struct {
	// Discord bot token (from the 'Bot' tab in the discord dev portal)
	Token string `yaml:"token" mapstructure:"token" json:"token" log:"[redacted]" validate:"required"`

	// Discord application ID (from the 'General Information' tab in the discord dev portal)
	ApplicationID string `yaml:"application_id" mapstructure:"application_id" json:"application_id" validate:"required"`

	// GuildName is the name of the discord server the forum channel
	// belongs to
	GuildName string `yaml:"guild_name" mapstructure:"guild_name" json:"guild_name" validate:"required"`

	// ChannelName is the name of the forum channel whose tags are
	// offered for subscription
	ChannelName string `yaml:"channel_name" mapstructure:"channel_name" json:"channel_name" validate:"required"`

	// GuildID specifies the guild ID used when registering slash commands.
	// Leave empty for commands to be registered as global.
	GuildID string `yaml:"guild_id" mapstructure:"guild_id" json:"guild_id"`

	// ThreadNotifyPerMinute caps the number of thread-create
	// notification messages sent per minute
	ThreadNotifyPerMinute int `yaml:"thread_notify_per_minute" mapstructure:"thread_notify_per_minute" json:"thread_notify_per_minute" validate:"min=0"`

	// Base discord logging level
	LogLevel *slog.LevelVar `yaml:"log_level" mapstructure:"log_level" json:"log_level"`

	// Log level for the `discordgo` library's logger
	DiscordGoLogLevel *slog.LevelVar `yaml:"discordgo_log_level" mapstructure:"discordgo_log_level" json:"discordgo_log_level"`

	// Discord gateway intents. See: https://discord.com/developers/docs/topics/gateway#gateway-intents
	GatewayIntents discordgo.Intent `yaml:"gateway_intents" mapstructure:"gateway_intents" json:"gateway_intents"`

	httpClient *http.Client
}

// DefaultConfig returns a Config with all default settings populated
func DefaultConfig() *Config {
	mainLogLevel := &slog.LevelVar{}
	discordLogLevel := &slog.LevelVar{}
	discordgoLogLevel := &slog.LevelVar{}
	dbLogLevel := &slog.LevelVar{}

	mainLogLevel.Set(DefaultLogLevel)
	discordLogLevel.Set(DefaultDiscordLogLevel)
	discordgoLogLevel.Set(DefaultDiscordgoLogLevel)
	dbLogLevel.Set(DefaultDatabaseLogLevel)

	return &Config{
		Database:              DefaultDatabase,
		DatabaseType:          DefaultDatabaseType,
		DatabaseLogLevel:      dbLogLevel,
		DatabaseSlowThreshold: DefaultDatabaseSlowThreshold,
		LogLevel:              mainLogLevel,
		StartupTimeout:        DefaultStartupTimeout,
		ShutdownTimeout:       DefaultShutdownTimeout,
		TagSyncInterval:       DefaultTagSyncInterval,
		Discord: &DiscordConfig{
			LogLevel:              discordLogLevel,
			DiscordGoLogLevel:     discordgoLogLevel,
			GatewayIntents:        DefaultDiscordGatewayIntent,
			ThreadNotifyPerMinute: DefaultThreadNotifyPerMinute,
		},
	}
}
