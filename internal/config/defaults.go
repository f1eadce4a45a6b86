package config

const (
	defaultDataDir                = "~/.local/share/doramabot"
	defaultLogDir                 = "~/.local/share/doramabot/logs"
	defaultAPIBaseURL             = "https://api.telegram.org"
	defaultPollTimeout            = 30
	defaultRequestTimeout         = 15
	defaultPacingMode             = PacingModeInterval
	defaultEpisodeIntervalMillis  = 1000
	defaultBroadcastIntervalMilli = 100
	defaultBroadcastBurst         = 1
	defaultProgressEvery          = 10
	defaultSearchLimit            = 20
	defaultPageSize               = 10
	defaultEpisodesPageSize       = 20
	defaultNotifyRequestTimeout   = 10
	defaultWebhookBind            = "127.0.0.1:8443"
	defaultRedisCacheTTLSeconds   = 300
	defaultTracingServiceName     = "doramabot"
	defaultLogFormat              = "auto"
	defaultLogLevel               = "info"
	defaultLogRetentionDays       = 30
	defaultMaxConcurrentUpdates   = 16
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Telegram: Telegram{
			APIBaseURL:           defaultAPIBaseURL,
			PollTimeout:          defaultPollTimeout,
			RequestTimeout:       defaultRequestTimeout,
			MaxConcurrentUpdates: defaultMaxConcurrentUpdates,
		},
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Pacing: Pacing{
			Mode:                defaultPacingMode,
			EpisodeIntervalMS:   defaultEpisodeIntervalMillis,
			BroadcastIntervalMS: defaultBroadcastIntervalMilli,
			BroadcastBurst:      defaultBroadcastBurst,
			ProgressEvery:       defaultProgressEvery,
		},
		Catalog: Catalog{
			SearchLimit:      defaultSearchLimit,
			PageSize:         defaultPageSize,
			EpisodesPageSize: defaultEpisodesPageSize,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			JoinRequests:   true,
			Broadcasts:     true,
			Errors:         true,
		},
		Webhook: Webhook{
			Bind: defaultWebhookBind,
		},
		Redis: Redis{
			CacheTTLSeconds: defaultRedisCacheTTLSeconds,
		},
		Tracing: Tracing{
			ServiceName: defaultTracingServiceName,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
