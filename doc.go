// Package gatekeeper authenticates users and manages the lifecycle of the
// security-sensitive credentials issued to them: short-lived signed access
// tokens, long-lived rotating refresh tokens, single-use account-activation
// and password-reset tokens, and a TOTP-based two-factor subsystem with
// one-time recovery codes.
//
// The Service type is the single entry point. It orchestrates a stateless
// JWT signer, a PostgreSQL-backed token store, and the two-factor engine,
// while user records, password hashing, mail delivery, and QR rendering stay
// behind collaborator interfaces supplied by the embedding application.
package gatekeeper
