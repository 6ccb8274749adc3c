package common

// Shared constants to enforce DRY and avoid magic strings/numbers.

// HTTP headers and content types
const (
	HeaderAPIKey    = "X-API-Key" // #nosec G101 - header name constant, not a credential
	ContentTypeJSON = "application/json"
	ContentTypeMP3  = "audio/mpeg"
)

// API paths
const (
	PathHealthz = "/healthz"
	PathClips   = "/v1/clips"
	PathAudio   = "/audio"
)

// Defaults and limits
const (
	DefaultPendingBatch  = 5
	DefaultListLimit     = 50
	MaxListLimit         = 100
	MaxInputContentChars = 10000
	MaxContextChars      = 500
	SQLiteBusyTimeoutMS  = 5000
)

// WordsPerMinute is the speaking rate used to size scripts and to estimate
// durations when audio frames cannot be parsed.
const WordsPerMinute = 150

// Subdirectory names
const (
	AudioDirName = "audio"
)

// AudioFileExt is the extension of every persisted clip artifact.
const AudioFileExt = ".mp3"
