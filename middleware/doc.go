// Package middleware provides HTTP request-processing stages built on the
// sfdc-oauth protocol client: authorization-code callback exchange, bearer
// token validation, grant availability checking, identity retrieval and
// token revocation.
//
// Stages are standard net/http middleware. Each reads its input from the
// request, calls the cached protocol client, and merges its result into a
// shared per-request AuthContext without clobbering fields written by
// earlier stages. Every failure converges on a single shared failure path
// that logs a client-IP-qualified message, emits one access_denied event and
// hands the error to the configured error handler; stages after a failure
// never run.
//
//	mw, err := middleware.New(middleware.Config{Env: env, Registry: registry})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	handler := mw.TokenValidation(nil)(mw.GrantCheck()(protected))
package middleware
