package config

const (
	defaultDownloadDir     = "~/.local/share/fieldprep/downloads"
	defaultStatsDir        = "~/.local/share/fieldprep/stats"
	defaultLogDir          = "~/.local/share/fieldprep/logs"
	defaultQueryBaseURL    = "https://catalogue.dataspace.copernicus.eu/odata/v1/Products"
	defaultCollection      = "SENTINEL-1"
	defaultSatellite       = "BOTH"
	defaultMode            = "IW"
	defaultLevel           = "SLC"
	defaultOrderBy         = "ContentDate/Start"
	defaultTop             = 1000
	defaultDownloadBaseURL = "https://zipper.dataspace.copernicus.eu/odata/v1/Products(%s)/$value"
	defaultTokenURL        = "https://identity.dataspace.copernicus.eu/auth/realms/CDSE/protocol/openid-connect/token"
	defaultDownloadTimeout = 3600
	defaultLogFormat       = "console"
	defaultLogLevel        = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DownloadDir: defaultDownloadDir,
			StatsDir:    defaultStatsDir,
			LogDir:      defaultLogDir,
		},
		Query: Query{
			BaseURL:    defaultQueryBaseURL,
			Collection: defaultCollection,
			Satellite:  defaultSatellite,
			Mode:       defaultMode,
			Level:      defaultLevel,
			OrderBy:    defaultOrderBy,
			Top:        defaultTop,
		},
		Download: Download{
			BaseURL:        defaultDownloadBaseURL,
			TokenURL:       defaultTokenURL,
			TimeoutSeconds: defaultDownloadTimeout,
		},
		Workflow: Workflow{
			Discover:     true,
			Fetch:        true,
			Transform:    true,
			Subset:       true,
			Extract:      true,
			SkipExisting: true,
		},
		Tools: Tools{
			GPT: "gpt",
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
