package config

const (
	defaultConfigDir            = "~/.config/webtoondl"
	defaultBind                 = "127.0.0.1:3000"
	defaultMaxConcurrent        = 1
	defaultProgressIntervalMS   = 500
	defaultProgressIdleSeconds  = 60
	defaultTaskRetentionSeconds = 300
	defaultUserAgent            = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	defaultAcceptLanguage       = "en-US,en;q=0.9"
	defaultNavigationTimeout    = 30
	defaultWaitTimeout          = 5
	defaultSiteName             = "webtoons"
	defaultSiteBaseURL          = "https://www.webtoons.com/en"
	defaultSearchMode           = SearchModeBrowser
	defaultFetchTimeout         = 30
	defaultFetchWorkers         = 1
	defaultOutputDir            = "~/.local/share/webtoondl/out"
	defaultOutputFormat         = "pdf"
	defaultMaxPageWidth         = 800
	defaultJPEGQuality          = 90
	defaultLogFile              = "webtoondl.log"
	defaultLogMaxSizeMB         = 10
	defaultLogMaxBackups        = 3
)

// Search modes for locating a title on the catalog.
const (
	SearchModeBrowser = "browser"
	SearchModeHTTP    = "http"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Server: Server{
			Bind:                 defaultBind,
			MaxConcurrent:        defaultMaxConcurrent,
			ProgressIntervalMS:   defaultProgressIntervalMS,
			ProgressIdleSeconds:  defaultProgressIdleSeconds,
			TaskRetentionSeconds: defaultTaskRetentionSeconds,
			CORSOrigins:          []string{"*"},
		},
		Browser: Browser{
			Headless:                 true,
			NoSandbox:                true,
			UserAgent:                defaultUserAgent,
			AcceptLanguage:           defaultAcceptLanguage,
			NavigationTimeoutSeconds: defaultNavigationTimeout,
			WaitTimeoutSeconds:       defaultWaitTimeout,
		},
		Site: Site{
			Name:       defaultSiteName,
			BaseURL:    defaultSiteBaseURL,
			SearchMode: defaultSearchMode,
		},
		Fetch: Fetch{
			UserAgent:      defaultUserAgent,
			TimeoutSeconds: defaultFetchTimeout,
			Workers:        defaultFetchWorkers,
		},
		Output: Output{
			Dir:          defaultOutputDir,
			Format:       defaultOutputFormat,
			MaxPageWidth: defaultMaxPageWidth,
			JPEGQuality:  defaultJPEGQuality,
		},
		Logging: Logging{
			Dir:        defaultConfigDir,
			File:       defaultLogFile,
			MaxSizeMB:  defaultLogMaxSizeMB,
			MaxBackups: defaultLogMaxBackups,
		},
	}
}
