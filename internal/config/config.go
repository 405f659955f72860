package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration. All entries are normalized to
// absolute paths during Load; relative entries resolve against the directory
// containing the config file.
type Paths struct {
	DownloadDir string `toml:"download_dir"`
	AOITotal    string `toml:"aoi_total"`
	FieldsDir   string `toml:"fields_dir"`
	StatsDir    string `toml:"stats_dir"`
	LogDir      string `toml:"log_dir"`
}

// Query contains the catalog discovery parameters.
type Query struct {
	BaseURL       string `toml:"base_url"`
	Collection    string `toml:"collection"`
	Satellite     string `toml:"satellite"`
	Mode          string `toml:"mode"`
	Level         string `toml:"level"`
	Polarisation  string `toml:"polarisation"`
	RelativeOrbit int    `toml:"relative_orbit"`
	StartDate     string `toml:"start_date"`
	EndDate       string `toml:"end_date"`
	OrderBy       string `toml:"order_by"`
	Top           int    `toml:"top"`
}

// Download contains the product download endpoint and credentials.
type Download struct {
	BaseURL        string `toml:"base_url"`
	TokenURL       string `toml:"token_url"`
	Username       string `toml:"username"`
	Password       string `toml:"password"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Workflow contains phase toggles and the idempotency switch.
type Workflow struct {
	Discover     bool `toml:"discover"`
	Fetch        bool `toml:"fetch"`
	Transform    bool `toml:"transform"`
	Subset       bool `toml:"subset"`
	Extract      bool `toml:"extract"`
	SkipExisting bool `toml:"skip_existing"`
	CleanupAfter bool `toml:"cleanup_intermediate"`
}

// Tools contains external tool locations shared by the transformation chain.
type Tools struct {
	GPT           string `toml:"gpt"`
	BurstAnalyzer string `toml:"burst_analyzer"`
	Subsetter     string `toml:"subsetter"`
	StatsTool     string `toml:"stats_tool"`
	DEMPath       string `toml:"dem_path"`
}

// Stage describes a single transformation step in declared order.
type Stage struct {
	Name         string `toml:"name"`
	Graph        string `toml:"graph"`
	OutputSuffix string `toml:"output_suffix"`
	Class        string `toml:"class"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Stage output classes: final outputs are pipeline deliverables, intermediates
// are working artifacts eligible for cleanup.
const (
	ClassIntermediate = "intermediate"
	ClassFinal        = "final"
)

// Config encapsulates all configuration values for fieldprep. It is loaded
// exactly once per run and passed by reference into every component.
type Config struct {
	Paths    Paths    `toml:"paths"`
	Query    Query    `toml:"query"`
	Download Download `toml:"download"`
	Workflow Workflow `toml:"workflow"`
	Tools    Tools    `toml:"tools"`
	Logging  Logging  `toml:"logging"`
	Stages   []Stage  `toml:"stages"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/fieldprep/config.toml")
}

// Load locates, parses, normalizes, and validates a configuration file.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(filepath.Dir(resolvedPath)); err != nil {
		return nil, "", false, err
	}

	// Defaults alone are not runnable (no credentials, no stages); callers
	// surface the missing file instead of a validation error.
	if exists {
		if err := cfg.Validate(); err != nil {
			return nil, "", false, err
		}
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("fieldprep.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// normalize expands and absolutizes all path fields. Relative paths resolve
// against baseDir, the directory containing the config file.
func (c *Config) normalize(baseDir string) error {
	fields := []*string{
		&c.Paths.DownloadDir,
		&c.Paths.AOITotal,
		&c.Paths.FieldsDir,
		&c.Paths.StatsDir,
		&c.Paths.LogDir,
		&c.Tools.DEMPath,
	}
	for _, field := range fields {
		normalized, err := resolveAgainst(*field, baseDir)
		if err != nil {
			return err
		}
		*field = normalized
	}
	c.Query.Satellite = strings.ToUpper(strings.TrimSpace(c.Query.Satellite))
	c.Query.Mode = strings.ToUpper(strings.TrimSpace(c.Query.Mode))
	c.Query.Level = strings.ToUpper(strings.TrimSpace(c.Query.Level))
	c.Query.Polarisation = strings.ToUpper(strings.TrimSpace(c.Query.Polarisation))
	for i := range c.Stages {
		c.Stages[i].Name = strings.TrimSpace(c.Stages[i].Name)
		c.Stages[i].Class = strings.ToLower(strings.TrimSpace(c.Stages[i].Class))
	}
	return nil
}

func resolveAgainst(pathValue, baseDir string) (string, error) {
	if strings.TrimSpace(pathValue) == "" {
		return "", nil
	}
	if strings.HasPrefix(pathValue, "~") {
		return expandPath(pathValue)
	}
	if filepath.IsAbs(pathValue) {
		return filepath.Clean(pathValue), nil
	}
	return filepath.Abs(filepath.Join(baseDir, pathValue))
}

// EnsureDirectories creates the directories a run writes into.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Paths.DownloadDir,
		c.IntermediateDir(),
		c.FinalDir(),
		c.Paths.StatsDir,
		c.Paths.LogDir,
	}
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// IntermediateDir is where intermediate-class chain outputs live. These are
// the only artifacts eligible for space-reclaiming deletion.
func (c *Config) IntermediateDir() string {
	if c.Paths.DownloadDir == "" {
		return ""
	}
	return filepath.Join(c.Paths.DownloadDir, "intermediate")
}

// FinalDir is where final-class chain outputs live.
func (c *Config) FinalDir() string {
	if c.Paths.DownloadDir == "" {
		return ""
	}
	return filepath.Join(c.Paths.DownloadDir, "final")
}

// SubsetsDir is the root of the per-field clipped rasters.
func (c *Config) SubsetsDir() string {
	return filepath.Join(c.FinalDir(), "subsets")
}

// FieldSubsetDir is the output directory for one field's clipped rasters.
func (c *Config) FieldSubsetDir(fieldID string) string {
	return filepath.Join(c.SubsetsDir(), fieldID)
}

// ArchivePath is the location of a scene's raw downloaded artifact.
func (c *Config) ArchivePath(scene string) string {
	return filepath.Join(c.Paths.DownloadDir, scene+".zip")
}

// ExpandedPath is the location of a scene's unpacked artifact directory.
func (c *Config) ExpandedPath(scene string) string {
	return filepath.Join(c.Paths.DownloadDir, scene+".SAFE")
}

// StageOutputPath places a stage output under the final or intermediate
// location per the stage's class.
func (c *Config) StageOutputPath(scene string, stage Stage) string {
	base := c.IntermediateDir()
	if stage.Class == ClassFinal {
		base = c.FinalDir()
	}
	return filepath.Join(base, scene+stage.OutputSuffix)
}

// CatalogPath is the catalog CSV written by discovery and read by fetch.
func (c *Config) CatalogPath() string {
	return filepath.Join(c.Paths.DownloadDir, "catalog.csv")
}

// StatsTablePath is the append-only statistics CSV for one metric family.
func (c *Config) StatsTablePath(family string) string {
	return filepath.Join(c.Paths.StatsDir, "stats_s1_"+family+".csv")
}

// ProcessLogPath is the append-only process log shared by every phase.
func (c *Config) ProcessLogPath() string {
	if c.Paths.LogDir == "" {
		return ""
	}
	return filepath.Join(c.Paths.LogDir, "fieldprep.log")
}

// ErrorLogPath is the append-only error log receiving WARN and above.
func (c *Config) ErrorLogPath() string {
	if c.Paths.LogDir == "" {
		return ""
	}
	return filepath.Join(c.Paths.LogDir, "error_scenes.log")
}

// JournalPath is the SQLite run journal location.
func (c *Config) JournalPath() string {
	return filepath.Join(c.Paths.LogDir, "journal.db")
}

// LockPath guards the download directory against concurrent runs.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.LogDir, "fieldprep.lock")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
