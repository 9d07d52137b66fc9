package judge0

import "time"

// PythonLanguageID is Judge0's id for Python 3.
const PythonLanguageID = 71

// Config holds the configuration for the remote execution service.
type Config struct {
	// BaseURL is the Judge0 API root, e.g. http://localhost:2358.
	BaseURL string
	// LanguageID is used when a request does not name one.
	LanguageID int
	// AuthToken is sent as X-Auth-Token (self-hosted Judge0 authentication).
	AuthToken string
	// BearerToken is sent as an OAuth2 bearer token, for gateways in front of Judge0.
	BearerToken string
	// HTTPSlack is added to the lesson timeout to bound the whole HTTP round trip.
	HTTPSlack time.Duration
	// ProbeTimeout bounds health checks and language listing.
	ProbeTimeout time.Duration
}

// DefaultConfig targets a local Judge0 instance running Python.
func DefaultConfig() Config {
	return Config{
		BaseURL:      "http://localhost:2358",
		LanguageID:   PythonLanguageID,
		HTTPSlack:    10 * time.Second,
		ProbeTimeout: 5 * time.Second,
	}
}
