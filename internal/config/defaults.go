package config

const (
	defaultLogDir                   = "~/.local/share/sheetmill/logs"
	defaultLogFormat                = "console"
	defaultLogLevel                 = "info"
	defaultLogRetentionDays         = 60
	defaultBusyTimeoutMS            = 8000
	defaultJournalMode              = "WAL"
	defaultPollIntervalSeconds      = 5
	defaultBackoffMaxSeconds        = 30
	defaultConversionTimeoutSeconds = 3600
	defaultSheetIndex               = 1
	defaultNotifyRequestTimeout     = 10

	dataDirName    = "storage"
	dbRelPath      = "db/dev.sqlite3"
	ingestsDirName = "ingests"
	uploadsDirName = "uploads"
)

func defaultLegacyRoots() []string {
	return []string{"/home/app", "/home/app/apps/api", "/home/app/apps"}
}

// Default returns a Config populated with repository defaults. Path fields
// that derive from the repository root stay empty until normalize fills them.
func Default() Config {
	return Config{
		Paths: Paths{
			LogDir: defaultLogDir,
		},
		Database: Database{
			BusyTimeoutMS: defaultBusyTimeoutMS,
			JournalMode:   defaultJournalMode,
		},
		Workers: Workers{
			PollIntervalSeconds:      defaultPollIntervalSeconds,
			BackoffMaxSeconds:        defaultBackoffMaxSeconds,
			ConversionTimeoutSeconds: defaultConversionTimeoutSeconds,
			DefaultSheet:             defaultSheetIndex,
		},
		Resolver: Resolver{
			LegacyRoots: defaultLegacyRoots(),
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Conversions:    true,
			Errors:         true,
		},
	}
}
