package config

import (
	"errors"
	"fmt"
	"time"
)

var validSatellites = map[string]struct{}{
	"S1A":  {},
	"S1B":  {},
	"BOTH": {},
}

// Validate ensures the configuration is usable. Any failure here is a fatal
// configuration error: the run never starts.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateQuery(); err != nil {
		return err
	}
	if err := c.validateDownload(); err != nil {
		return err
	}
	if err := c.validateStages(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.DownloadDir == "" {
		return errors.New("paths.download_dir must be set")
	}
	if c.Paths.StatsDir == "" {
		return errors.New("paths.stats_dir must be set")
	}
	if (c.Workflow.Discover || c.Workflow.Transform) && c.Paths.AOITotal == "" {
		return errors.New("paths.aoi_total must be set when discover or transform is enabled")
	}
	if (c.Workflow.Subset || c.Workflow.Extract) && c.Paths.FieldsDir == "" {
		return errors.New("paths.fields_dir must be set when subset or extract is enabled")
	}
	return nil
}

func (c *Config) validateQuery() error {
	if !c.Workflow.Discover {
		return nil
	}
	if c.Query.BaseURL == "" {
		return errors.New("query.base_url must be set")
	}
	if _, ok := validSatellites[c.Query.Satellite]; !ok {
		return fmt.Errorf("query.satellite must be S1A, S1B, or BOTH, got %q", c.Query.Satellite)
	}
	for name, value := range map[string]string{
		"query.start_date": c.Query.StartDate,
		"query.end_date":   c.Query.EndDate,
	} {
		if value == "" {
			return fmt.Errorf("%s must be set", name)
		}
		if _, err := time.Parse("2006-01-02", value); err != nil {
			return fmt.Errorf("%s must be YYYY-MM-DD, got %q", name, value)
		}
	}
	if c.Query.Top <= 0 {
		return errors.New("query.top must be positive")
	}
	return nil
}

func (c *Config) validateDownload() error {
	if !c.Workflow.Fetch {
		return nil
	}
	if c.Download.BaseURL == "" {
		return errors.New("download.base_url must be set")
	}
	if c.Download.TokenURL == "" {
		return errors.New("download.token_url must be set")
	}
	if c.Download.Username == "" || c.Download.Password == "" {
		return errors.New("download.username and download.password must be set when fetch is enabled")
	}
	if c.Download.TimeoutSeconds <= 0 {
		return errors.New("download.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateStages() error {
	if !c.Workflow.Transform {
		return nil
	}
	if len(c.Stages) == 0 {
		return errors.New("at least one [[stages]] entry is required when transform is enabled")
	}
	if c.Tools.GPT == "" {
		return errors.New("tools.gpt must be set when transform is enabled")
	}
	seen := make(map[string]struct{}, len(c.Stages))
	for i, stage := range c.Stages {
		if stage.Name == "" {
			return fmt.Errorf("stages[%d].name must be set", i)
		}
		if _, dup := seen[stage.Name]; dup {
			return fmt.Errorf("duplicate stage name %q", stage.Name)
		}
		seen[stage.Name] = struct{}{}
		if stage.Graph == "" {
			return fmt.Errorf("stages[%d].graph must be set", i)
		}
		if stage.OutputSuffix == "" {
			return fmt.Errorf("stages[%d].output_suffix must be set", i)
		}
		if stage.Class != ClassIntermediate && stage.Class != ClassFinal {
			return fmt.Errorf("stages[%d].class must be %q or %q, got %q", i, ClassIntermediate, ClassFinal, stage.Class)
		}
	}
	return nil
}
