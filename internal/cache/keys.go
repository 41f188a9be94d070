package cache

import "fmt"

// RateLimitKey is the counter key for one client in the current window.
func RateLimitKey(client string) string {
	return fmt.Sprintf("ratelimit:%s", client)
}
