package credentials

import "fmt"

// Source indicates where a token was found
type Source string

const (
	SourceKeyring Source = "keyring"
	SourceEnv     Source = "env"
	SourceConfig  Source = "config"
)

// Token is a resolved provider API token.
type Token struct {
	Value  string
	Source Source
}

// Resolve finds the API token for a provider source using the priority
// order keyring > environment variable > config literal.
func Resolve(sourceName, configToken string) (*Token, error) {
	if sourceName == "" {
		return nil, fmt.Errorf("source name is required for token resolution")
	}

	if token, err := TokenFromKeyring(sourceName); err == nil && token != "" {
		return &Token{Value: token, Source: SourceKeyring}, nil
	}

	if token := TokenFromEnv(sourceName); token != "" {
		return &Token{Value: token, Source: SourceEnv}, nil
	}

	if configToken != "" {
		return &Token{Value: configToken, Source: SourceConfig}, nil
	}

	return nil, fmt.Errorf("no token found for source %q (tried: keyring, %s, config)",
		sourceName, tokenEnvVarName(sourceName))
}
