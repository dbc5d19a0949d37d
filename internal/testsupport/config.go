package testsupport

import (
	"path/filepath"
	"testing"

	"scribe/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.ScratchDir = filepath.Join(base, "scratch")
	cfgVal.Workflow.QueuePollInterval = 1
	cfgVal.Workflow.HeartbeatInterval = 1
	cfgVal.Workflow.HeartbeatTimeout = 2
	cfgVal.Providers.Transcription.Primary = config.Endpoint{Name: "whisper", APIKey: "test", BaseURL: "http://127.0.0.1:0", Model: "whisper-1"}
	cfgVal.Providers.OCR.Primary = config.Endpoint{Name: "mistral", APIKey: "test", BaseURL: "http://127.0.0.1:0", Model: "mistral-ocr-latest"}
	cfgVal.Providers.Textgen.Primary = config.Endpoint{Name: "openrouter", APIKey: "test", BaseURL: "http://127.0.0.1:0", Model: "test-model"}

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithWorkerConcurrency overrides the dispatcher pool size.
func WithWorkerConcurrency(workers int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Workflow.WorkerConcurrency = workers
	}
}

// WithChunking overrides segment sizing for audio splitting tests.
func WithChunking(segmentSeconds, singleCallLimit int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Chunking.SegmentSeconds = segmentSeconds
		b.cfg.Chunking.SingleCallLimitSeconds = singleCallLimit
	}
}

// WithFallback sets a fallback endpoint on the named provider role.
func WithFallback(role string, endpoint config.Endpoint) ConfigOption {
	return func(b *configBuilder) {
		switch role {
		case "ocr":
			b.cfg.Providers.OCR.Fallback = endpoint
		case "transcription":
			b.cfg.Providers.Transcription.Fallback = endpoint
		case "textgen":
			b.cfg.Providers.Textgen.Fallback = endpoint
		default:
			b.t.Fatalf("unknown provider role %q", role)
		}
	}
}
