package logging

import "regexp"

// Secrets that may show up in URLs, headers or wrapped errors
var redactions = []struct {
	pattern *regexp.Regexp
	repl    string
}{
	{regexp.MustCompile(`Bearer\s+[A-Za-z0-9\-._~+/]+=*`), "Bearer [REDACTED]"},
	// GitHub "token <value>" authorization scheme
	{regexp.MustCompile(`(?i)\btoken\s+(gh[pousr]_[A-Za-z0-9]+|[a-f0-9]{40})`), "token [REDACTED]"},
	{regexp.MustCompile(`\b(gh[pousr]_[A-Za-z0-9]{20,}|github_pat_[A-Za-z0-9_]{20,})`), "[REDACTED]"},
	{regexp.MustCompile(`(access_token|refresh_token|id_token)["']?\s*[:=]\s*["']?[A-Za-z0-9\-._~+/]+=*`), "$1=[REDACTED]"},
	// S3 credentials for the minio backend, including presigned URL params
	{regexp.MustCompile(`(?i)(secret[_-]?key|secretkey)["']?\s*[:=]\s*["']?[A-Za-z0-9\-._~+/]+=*`), "$1=[REDACTED]"},
	{regexp.MustCompile(`(X-Amz-Signature|X-Amz-Credential)=[^&\s]+`), "$1=[REDACTED]"},
	{regexp.MustCompile(`(?i)authorization["']?\s*[:=]\s*["']?[^\s"']+`), "Authorization: [REDACTED]"},
}

// redactSensitiveData masks tokens and keys in s
func redactSensitiveData(s string) string {
	for _, r := range redactions {
		s = r.pattern.ReplaceAllString(s, r.repl)
	}
	return s
}
