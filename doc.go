// Package auth provides a single session token authentication core: signed
// credentials, a bun backed account store and fiber HTTP helpers.
//
// Sessions:
//   - Every successful login, local or federated, ends in SessionIssuer. It
//     mints a JWT carrying the account id and a fresh token id, then records
//     that token id and the expiry on the account row. An account holds one
//     live session at a time; issuing a new one supersedes the previous
//     credential.
//   - SessionVerifier accepts a credential only if its signature verifies,
//     its embedded expiry has not elapsed, the persisted expiry is in the
//     future and its token id matches the one on file. Logout writes the
//     epoch sentinel as the expiry, which rejects every outstanding
//     credential.
//
// Errors:
//   - Failures are *Error values carrying a category, an HTTP status and a
//     stable text code. A missing, expired or superseded session is
//     ErrUnauthorized (401); a credential that fails cryptographic checks is
//     ErrForbidden (403). Store failures surface as ErrStore without driver
//     details.
//
// Activity sinks:
//   - ActivitySink is a light-weight audit emitter used by Auther to describe
//     login, signup, federated login, logout and rejected session events.
//     Sinks run best-effort (errors are logged) so you can forward to metrics
//     or a queue without blocking authentication.
//
// Federated login lives in the social package; it resolves a provider
// profile through Auther.FederatedLogin and issues the same session shape.
package auth
