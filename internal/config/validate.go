package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return err
	}
	if c.Paths.ScratchDir, err = expandPath(c.Paths.ScratchDir); err != nil {
		return err
	}

	normalizeRole(&c.Providers.OCR)
	normalizeRole(&c.Providers.Transcription)
	normalizeRole(&c.Providers.Textgen)

	c.ImageSearch.BaseURL = strings.TrimSpace(c.ImageSearch.BaseURL)
	c.ImageSearch.APIKey = strings.TrimSpace(c.ImageSearch.APIKey)
	c.YouTube.BaseURL = strings.TrimSpace(c.YouTube.BaseURL)
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	return nil
}

func normalizeRole(role *Role) {
	normalizeEndpoint(&role.Primary)
	normalizeEndpoint(&role.Fallback)
}

func normalizeEndpoint(ep *Endpoint) {
	ep.Name = strings.ToLower(strings.TrimSpace(ep.Name))
	ep.APIKey = strings.TrimSpace(ep.APIKey)
	ep.BaseURL = strings.TrimSpace(ep.BaseURL)
	ep.Model = strings.TrimSpace(ep.Model)
}

// Validate checks configuration invariants that would otherwise surface
// as confusing runtime failures.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return fmt.Errorf("config: paths.data_dir is required")
	}
	if strings.TrimSpace(c.Paths.ScratchDir) == "" {
		return fmt.Errorf("config: paths.scratch_dir is required")
	}
	if c.Workflow.WorkerConcurrency < 1 {
		return fmt.Errorf("config: workflow.worker_concurrency must be at least 1, got %d", c.Workflow.WorkerConcurrency)
	}
	if c.Workflow.RateLimitMax < 1 {
		return fmt.Errorf("config: workflow.rate_limit_max must be at least 1, got %d", c.Workflow.RateLimitMax)
	}
	if c.Workflow.RateLimitWindowSeconds < 1 {
		return fmt.Errorf("config: workflow.rate_limit_window_seconds must be at least 1, got %d", c.Workflow.RateLimitWindowSeconds)
	}
	if c.Workflow.MaxJobAttempts < 1 {
		return fmt.Errorf("config: workflow.max_job_attempts must be at least 1, got %d", c.Workflow.MaxJobAttempts)
	}
	if c.Workflow.HeartbeatTimeout > 0 && c.Workflow.HeartbeatInterval > 0 &&
		c.Workflow.HeartbeatTimeout <= c.Workflow.HeartbeatInterval {
		return fmt.Errorf("config: workflow.heartbeat_timeout (%d) must exceed heartbeat_interval (%d)",
			c.Workflow.HeartbeatTimeout, c.Workflow.HeartbeatInterval)
	}
	if c.Chunking.SegmentSeconds < 60 {
		return fmt.Errorf("config: chunking.segment_seconds must be at least 60, got %d", c.Chunking.SegmentSeconds)
	}
	if c.Chunking.MaxConcurrentChunks < 1 {
		return fmt.Errorf("config: chunking.max_concurrent_chunks must be at least 1, got %d", c.Chunking.MaxConcurrentChunks)
	}
	if c.Chunking.SingleCallLimitSeconds < c.Chunking.SegmentSeconds {
		return fmt.Errorf("config: chunking.single_call_limit_seconds (%d) must not be smaller than segment_seconds (%d)",
			c.Chunking.SingleCallLimitSeconds, c.Chunking.SegmentSeconds)
	}

	if err := validateRole("providers.ocr", c.Providers.OCR); err != nil {
		return err
	}
	if err := validateRole("providers.transcription", c.Providers.Transcription); err != nil {
		return err
	}
	if err := validateRole("providers.textgen", c.Providers.Textgen); err != nil {
		return err
	}

	switch c.Logging.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("config: logging.format must be console or json, got %q", c.Logging.Format)
	}
	return nil
}

// validateRole accepts an unconfigured primary (the fallback selector
// treats it as an immediate primary failure) but rejects half-configured
// endpoints.
func validateRole(section string, role Role) error {
	if err := validateEndpoint(section+".primary", role.Primary); err != nil {
		return err
	}
	return validateEndpoint(section+".fallback", role.Fallback)
}

func validateEndpoint(section string, ep Endpoint) error {
	if !ep.Configured() {
		return nil
	}
	if ep.BaseURL == "" {
		return fmt.Errorf("config: %s.base_url is required when a provider is named", section)
	}
	if ep.Model == "" {
		return fmt.Errorf("config: %s.model is required when a provider is named", section)
	}
	if ep.TimeoutSeconds < 0 {
		return fmt.Errorf("config: %s.timeout_seconds must not be negative", section)
	}
	return nil
}
