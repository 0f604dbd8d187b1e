package executor

import (
	"errors"
	"fmt"
	"os"
	"regexp"
)

// ErrUnresolvedSecret is returned when a ${ENV:NAME} token has no value.
var ErrUnresolvedSecret = errors.New("unresolved secret")

var secretToken = regexp.MustCompile(`\$\{ENV:([A-Za-z_][A-Za-z0-9_]*)\}`)

// SecretStore expands secret references in step values. Scripts only ever
// hold references, so credentials never reach the store.
type SecretStore interface {
	Resolve(value string) (string, error)
}

// EnvSecrets resolves ${ENV:NAME} tokens from the process environment. With
// a Prefix set, ${ENV:PASSWORD} reads <Prefix>PASSWORD.
type EnvSecrets struct {
	Prefix string
	// Lookup defaults to os.LookupEnv.
	Lookup func(name string) (string, bool)
}

// NewEnvSecrets creates a resolver reading prefixed environment variables.
func NewEnvSecrets(prefix string) *EnvSecrets {
	return &EnvSecrets{Prefix: prefix, Lookup: os.LookupEnv}
}

// Resolve replaces every token in value. The first missing variable fails
// the whole value so a literal token is never typed into a page.
func (e *EnvSecrets) Resolve(value string) (string, error) {
	lookup := e.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	var missing string
	out := secretToken.ReplaceAllStringFunc(value, func(tok string) string {
		name := e.Prefix + secretToken.FindStringSubmatch(tok)[1]
		v, ok := lookup(name)
		if !ok && missing == "" {
			missing = name
		}
		return v
	})
	if missing != "" {
		return "", fmt.Errorf("%w: %s", ErrUnresolvedSecret, missing)
	}
	return out, nil
}

// HasSecrets reports whether value contains a secret reference.
func HasSecrets(value string) bool {
	return secretToken.MatchString(value)
}
