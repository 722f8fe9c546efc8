// Package port checks host listen addresses before the updater binds its
// metrics endpoint, so a busy port is reported as a clear CLI error
// instead of a failure deep inside the HTTP server.
package port
