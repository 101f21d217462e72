// Package deps builds the clients for the backing services the API depends
// on (MySQL, Redis, S3-compatible object storage and SMTP) and exposes each
// one as a probe.Pinger for the health endpoint.
//
// Construction never dials: every client connects lazily, so a dependency
// that is down at boot shows up as a failed probe rather than a crash.
package deps
