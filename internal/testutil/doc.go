// Package testutil provides testing utilities for the sfdc-oauth library:
// a configurable mock identity provider server, RSA signing key generation
// and token response signature helpers.
package testutil
