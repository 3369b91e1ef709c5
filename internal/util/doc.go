// Package util provides small shared helpers used across the sfdc-oauth
// library: safe string truncation for logging sensitive values and URL
// normalization for issuer comparison.
package util
