package redis

import "strings"

const namespace = "gc"

// Key families. Every key the backend writes lives under one of these.
const (
	familyIdempotency = "idempotency"
	familyRateLimit   = "rate_limit"
	familyCounter     = "counter"
	familyLock        = "lock"
)

func key(family string, parts ...string) string {
	var b strings.Builder
	b.WriteString(namespace)
	b.WriteByte(':')
	b.WriteString(family)
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

// IdempotencyKey namespaces a replay or processed-event marker.
func (c *Client) IdempotencyKey(scope, id string) string {
	return key(familyIdempotency, scope, id)
}

// RateLimitKey namespaces a fixed-window counter.
func (c *Client) RateLimitKey(scope string) string {
	return key(familyRateLimit, scope)
}

// CounterKey namespaces a monotonic counter such as the delivery partner cursor.
func (c *Client) CounterKey(name string) string {
	return key(familyCounter, name)
}

// LockKey namespaces a lease used by singleton workers.
func (c *Client) LockKey(name string) string {
	return key(familyLock, name)
}
