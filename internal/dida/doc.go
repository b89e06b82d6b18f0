// Package dida is a small client for the Dida365 (TickTick China) task API.
//
// The client sends the stored DIDA365_TOKEN value verbatim as the
// Authorization header and returns response bodies as json.RawMessage, so
// tools can republish exactly what the API answered. Non-2xx responses become
// *APIError values whose message is taken from the JSON error body.
//
// There is no retry and no caching: every call is one HTTP request.
package dida
