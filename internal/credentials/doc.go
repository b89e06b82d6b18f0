// Package credentials provides the key/value store that holds the Dida365 OAuth
// client settings and the issued bearer token.
//
// The production store is a dotenv-style text file (one KEY=value per line).
// Reads are parsed with godotenv; writes replace a single key's line in place
// (or append it) and leave every other line untouched, so comments and ordering
// chosen by the operator survive a token refresh.
//
// When the file does not exist, reads fall back to the process environment.
package credentials
