// Package logging provides the structured logger shared by every imagestream
// component: zap cores tee'd to console and a rotated JSON file, with API keys
// redacted and inline image payloads elided before they reach any output.
package logging
