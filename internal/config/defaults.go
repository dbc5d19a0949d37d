package config

const (
	defaultDataDir    = "~/.local/share/scribe"
	defaultScratchDir = "~/.local/share/scribe/scratch"

	defaultWorkerConcurrency      = 2
	defaultRateLimitMax           = 10
	defaultRateLimitWindowSeconds = 60
	defaultQueuePollInterval      = 5
	defaultErrorRetryInterval     = 10
	defaultHeartbeatInterval      = 15
	defaultHeartbeatTimeout       = 120
	defaultMaxJobAttempts         = 3
	defaultRetryBackoffSeconds    = 30

	defaultSegmentSeconds         = 600
	defaultMaxConcurrentChunks    = 3
	defaultSingleCallLimitSeconds = 900

	defaultOCRProvider           = "mistral"
	defaultOCRBaseURL            = "https://api.mistral.ai/v1"
	defaultOCRModel              = "mistral-ocr-latest"
	defaultOCRTimeoutSeconds     = 180
	defaultTranscriptionProvider = "whisper"
	defaultTranscriptionBaseURL  = "https://api.openai.com/v1"
	defaultTranscriptionModel    = "whisper-1"
	defaultTranscriptionTimeout  = 300
	defaultTextgenProvider       = "openrouter"
	defaultTextgenBaseURL        = "https://openrouter.ai/api/v1/chat/completions"
	defaultTextgenModel          = "google/gemini-3-flash-preview"
	defaultTextgenTimeout        = 120

	defaultImageSearchBaseURL = "https://google.serper.dev/images"
	defaultImageSearchTimeout = 20
	defaultYouTubeTimeout = 60

	defaultNotifyRequestTimeout = 10

	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:    defaultDataDir,
			ScratchDir: defaultScratchDir,
		},
		Workflow: Workflow{
			WorkerConcurrency:      defaultWorkerConcurrency,
			RateLimitMax:           defaultRateLimitMax,
			RateLimitWindowSeconds: defaultRateLimitWindowSeconds,
			QueuePollInterval:      defaultQueuePollInterval,
			ErrorRetryInterval:     defaultErrorRetryInterval,
			HeartbeatInterval:      defaultHeartbeatInterval,
			HeartbeatTimeout:       defaultHeartbeatTimeout,
			MaxJobAttempts:         defaultMaxJobAttempts,
			RetryBackoffSeconds:    defaultRetryBackoffSeconds,
		},
		Chunking: Chunking{
			SegmentSeconds:         defaultSegmentSeconds,
			MaxConcurrentChunks:    defaultMaxConcurrentChunks,
			SingleCallLimitSeconds: defaultSingleCallLimitSeconds,
		},
		Providers: Providers{
			OCR: Role{
				Primary: Endpoint{
					Name:           defaultOCRProvider,
					BaseURL:        defaultOCRBaseURL,
					Model:          defaultOCRModel,
					TimeoutSeconds: defaultOCRTimeoutSeconds,
				},
			},
			Transcription: Role{
				Primary: Endpoint{
					Name:           defaultTranscriptionProvider,
					BaseURL:        defaultTranscriptionBaseURL,
					Model:          defaultTranscriptionModel,
					TimeoutSeconds: defaultTranscriptionTimeout,
				},
			},
			Textgen: Role{
				Primary: Endpoint{
					Name:           defaultTextgenProvider,
					BaseURL:        defaultTextgenBaseURL,
					Model:          defaultTextgenModel,
					TimeoutSeconds: defaultTextgenTimeout,
				},
			},
		},
		ImageSearch: ImageSearch{
			BaseURL:        defaultImageSearchBaseURL,
			TimeoutSeconds: defaultImageSearchTimeout,
		},
		YouTube: YouTube{
			// No usable default: the field must point at a transcript
			// scraping service, which youtube.com itself is not.
			TimeoutSeconds: defaultYouTubeTimeout,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Completion:     true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
