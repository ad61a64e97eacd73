// Package tasks reconciles each enrolled account's Discover Weekly playlist
// into its per-year archive playlist.
//
// # Reconciliation
//
// [Saver.SyncAccount] runs the single-account state machine:
//
//  1. Decrypt the stored refresh token and exchange it for an access token.
//     A revoked grant deletes the account; any other failure just ends the
//     run for this account.
//  2. If the exchange rotated the refresh token, re-encrypt and persist it
//     before anything else so a later failure cannot lose it.
//  3. Resolve the source playlist by name; absent means nothing to sync.
//  4. Resolve the year playlist by name, creating it if absent.
//  5. Diff: source tracks not yet in the target.
//  6. Append the difference in batches; nothing to do is not an error.
//
// Failures are logged and swallowed per account. The only cross-component
// side effect is the revocation deletion.
//
// # Batch runs
//
// [Saver.RunBatch] fans all accounts out over a bounded worker pool paced by
// a [rate.Limiter] and waits for every account to settle. One account's
// failure never cancels or delays the others.
package tasks
