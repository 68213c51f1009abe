// Package creds manages the credential bundle that authenticates agentrelay
// against the hosted agent runtime.
//
// The bundle lives under a single Secrets Manager key and carries the Cognito
// app client id, the service user's username and password, and the current
// short-lived bearer token. Only the bearer token is ever rewritten after the
// bundle is created; every other field (including fields this package does
// not model, such as pool_id and discovery_url written by provisioning) is
// preserved byte for byte across refreshes.
//
// Manager orchestrates a refresh: load the bundle, exchange the stored
// username/password for a new access token, and persist the updated bundle
// wholesale. Concurrent refreshes of the same key are not coordinated; the
// caller bounds refresh frequency, and the last writer wins.
package creds
