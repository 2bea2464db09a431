package credentials

import (
	"os"
	"strings"
)

// normalizeSourceName converts a provider scheme/source name to the format
// used in environment variables. Example: "gcal-work" becomes "GCAL_WORK".
func normalizeSourceName(source string) string {
	normalized := strings.ToUpper(source)
	return strings.ReplaceAll(normalized, "-", "_")
}

// tokenEnvVarName returns the environment variable holding the API token
// for a source: TASKBRIDGE_{SOURCE}_TOKEN.
func tokenEnvVarName(source string) string {
	return "TASKBRIDGE_" + normalizeSourceName(source) + "_TOKEN"
}

// TokenFromEnv retrieves the API token from the environment.
func TokenFromEnv(source string) string {
	if source == "" {
		return ""
	}
	return os.Getenv(tokenEnvVarName(source))
}
