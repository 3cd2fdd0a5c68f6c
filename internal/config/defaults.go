package config

import (
	"time"

	"github.com/spf13/viper"
)

// Default values for configuration
const (
	// Log defaults
	DefaultLogLevel = "info"
	DefaultLogJSON  = false

	// Server defaults
	DefaultServerAddr            = ":8080"
	DefaultServerShutdownTimeout = 10 * time.Second
	DefaultServerMaxAvatarBytes  = 2 << 20

	// Store defaults
	DefaultDBPath      = "aiphone.db"
	DefaultStoreDriver = "sqlite"
	DefaultStoreKey    = "aiPhoneConfig"

	// Reply defaults
	DefaultReplyProvider         = "openai"
	DefaultReplyModel            = "doubao-3-pro"
	DefaultReplyTemperature      = 0.8
	DefaultReplyWelcomeMaxTokens = 50
	DefaultReplyMaxTokens        = 200
	DefaultReplyWelcomePrompt    = "Greet me with one short welcome line in your persona's voice."
	DefaultReplyWelcomeFallback  = "Hi there! I'm your personal AI!"
	DefaultReplyFallback         = "Sorry, I can't reply right now. Please try again later."

	// Status defaults
	DefaultStatusPowerSupplyPath = "/sys/class/power_supply"
	DefaultStatusNetClassPath    = "/sys/class/net"

	// Session defaults
	DefaultSessionIdleTimeout = 2 * time.Hour
)

// Default scheduler tasks. Schedules use the six-field cron format.
var DefaultSchedulerTasks = map[string]TaskConfig{
	"status_refresh":  {Enabled: true, Schedule: "0 * * * * *"},
	"battery_poll":    {Enabled: true, Schedule: "*/30 * * * * *"},
	"session_sweep":   {Enabled: true, Schedule: "0 */5 * * * *"},
	"sql_maintenance": {Enabled: true, Schedule: "0 0 4 * * *"},
}

// setDefaults registers default values for every configuration key so that
// AIPHONE_* environment variables can override any of them.
func setDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", DefaultLogLevel)
	v.SetDefault("logger.json", DefaultLogJSON)

	v.SetDefault("server.addr", DefaultServerAddr)
	v.SetDefault("server.shutdown_timeout", DefaultServerShutdownTimeout)
	v.SetDefault("server.max_avatar_bytes", DefaultServerMaxAvatarBytes)

	v.SetDefault("database.path", DefaultDBPath)

	v.SetDefault("store.driver", DefaultStoreDriver)
	v.SetDefault("store.key", DefaultStoreKey)
	v.SetDefault("store.redis.addr", "")
	v.SetDefault("store.redis.password", "")
	v.SetDefault("store.redis.db", 0)

	v.SetDefault("reply.provider", DefaultReplyProvider)
	v.SetDefault("reply.model", DefaultReplyModel)
	v.SetDefault("reply.temperature", DefaultReplyTemperature)
	v.SetDefault("reply.welcome_max_tokens", DefaultReplyWelcomeMaxTokens)
	v.SetDefault("reply.reply_max_tokens", DefaultReplyMaxTokens)
	v.SetDefault("reply.welcome_prompt", DefaultReplyWelcomePrompt)
	v.SetDefault("reply.welcome_fallback", DefaultReplyWelcomeFallback)
	v.SetDefault("reply.reply_fallback", DefaultReplyFallback)
	v.SetDefault("reply.timeout", time.Duration(0))

	v.SetDefault("status.time_zone", "")
	v.SetDefault("status.power_supply_path", DefaultStatusPowerSupplyPath)
	v.SetDefault("status.net_class_path", DefaultStatusNetClassPath)

	v.SetDefault("session.idle_timeout", DefaultSessionIdleTimeout)

	for name, task := range DefaultSchedulerTasks {
		v.SetDefault("scheduler.tasks."+name+".enabled", task.Enabled)
		v.SetDefault("scheduler.tasks."+name+".schedule", task.Schedule)
	}

	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.token", "")
}
