package redis

import "strings"

const keyNamespace = "cs"

const (
	idempotencyPrefix = "idempotency"
	rateLimitPrefix   = "rate_limit"
	lockPrefix        = "lock"
)

// key joins the namespace and non-blank parts with colons: key("lock", "cron", "") is
// "cs:lock:cron".
func key(parts ...string) string {
	var b strings.Builder
	b.WriteString(keyNamespace)
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		b.WriteByte(':')
		b.WriteString(part)
	}
	return b.String()
}

func (c *Client) IdempotencyKey(scope, id string) string {
	return key(idempotencyPrefix, scope, id)
}

func (c *Client) RateLimitKey(scope string) string {
	return key(rateLimitPrefix, scope)
}

func (c *Client) LockKey(scope, name string) string {
	return key(lockPrefix, scope, name)
}
