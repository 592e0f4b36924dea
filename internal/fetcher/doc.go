// Package fetcher retrieves page bodies over HTTP under a shared rate budget.
//
// A Fetcher waits on its RateLimiter before each call, then makes up to three attempts,
// rotating the User-Agent on every attempt and backing off (2^attempt + jitter) time units
// between them. Network errors, timeouts, 408, 425, 429 and 5xx responses are retried;
// other non-2xx statuses fail immediately. When attempts are exhausted the caller receives
// a *FetchError and must not retry automatically.
//
// Pass one RateLimiter to several Fetchers with WithRateLimiter to cap the aggregate
// request rate across concurrent workers.
package fetcher
