// Package gate implements the request authorization gateway for the
// otakulist catalog: a route classifier, an access decision engine, a signed
// session token codec, and the OAuth identity bootstrap flow that bridges a
// provider-verified email to a provisioned local account.
//
// The gateway path is stateless: every request is checked against the rate
// limiter, classified by longest matching route prefix, and resolved by
// Decide into an allow, redirect, or deny verdict. The bootstrap path is the
// only stateful piece; its pending identities live in a store that enforces
// at most one unexpired record per email and single-use claim tokens.
//
// Collaborators (token codec, rate limiter, repositories) are injected; the
// package holds no mutable module-level state.
package gate
