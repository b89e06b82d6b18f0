// Package authflow obtains a Dida365 access token through the OAuth2
// authorization-code flow and stores it as DIDA365_TOKEN.
//
// A Flow prints the authorization URL, listens on the redirect URI's port for
// the provider callback, exchanges the code for a token with HTTP Basic client
// authentication and writes "Bearer <access_token>" into a credentials.Store.
// After a successful callback the listener is shut down after a short delay;
// failed callbacks are rendered to the browser and the listener stays up so the
// operator can retry.
//
// The same flow serves the initial bootstrap and the later refresh, selected by
// Mode. InspectToken decodes a stored token for the token command.
package authflow
