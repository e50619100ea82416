package client

import "net/url"

// CredentialSource supplies key/value pairs merged into every request's
// query parameters. Credentials are assumed static for the process lifetime.
type CredentialSource interface {
	Credentials() map[string]string
}

// StaticCredentials is a fixed set of credential parameters.
type StaticCredentials map[string]string

// Credentials implements CredentialSource.
func (s StaticCredentials) Credentials() map[string]string {
	return s
}

// withCredentials returns a copy of params with the source's pairs merged
// in. The caller's values are never mutated; credential keys overwrite
// same-named caller parameters.
func withCredentials(params url.Values, src CredentialSource) url.Values {
	merged := cloneValues(params)
	if src == nil {
		return merged
	}
	for key, value := range src.Credentials() {
		merged.Set(key, value)
	}
	return merged
}
