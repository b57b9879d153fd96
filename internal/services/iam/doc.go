// Package iam turns a bearer credential into a profile-backed caller.
//
//   - SessionValidator: validates credentials through an auth.IdentityProvider
//     and recovers stale ones with a bounded exponential backoff.
//   - ProfileService: loads the profile of an identity, creating it on first
//     sight, and applies administrative changes to profiles.
//
// Request flow:
//
//	credential → SessionValidator.Validate → VALID
//	                                        → INVALID (expired) → RefreshWithBackoff → VALID | FAILED
//	identity   → ProfileService.Fetch → ProfileResult
//
// Refresh sequences are keyed by SequenceKey, derived from the credential
// fingerprint, so every request carrying the same stale credential counts
// against one attempt budget.
package iam
