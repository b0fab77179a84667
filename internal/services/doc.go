// Package services implements HTTP clients for the two upstream platforms.
//
// # HubSpot
//
// [HubSpotClient] reads CRM contacts from the v3 objects API. Authentication uses a private
// app access token presented as a bearer token through an [oauth2.StaticTokenSource].
// Pagination follows the paging.next.after cursor.
//
// # MailerLite
//
// [MailerLiteClient] lists, creates and updates subscribers on the MailerLite API. Listing is
// cursor based (meta.next_cursor). Creating a subscriber whose email already exists updates it
// server side, which is what keeps repeated creates for one email from producing duplicates.
//
// # Pacing
//
// Both clients can be given a requests-per-second budget. Each request waits on a
// [rate.Limiter] before it is sent so a run stays under the platform's documented limits; this
// is client-side smoothing only, and a 429 still surfaces to the caller.
//
// # Error Handling
//
// Non-success responses become an [*APIError] that unwraps to a sentinel from the shared
// package:
//   - [shared.ErrUnauthorized] : 401
//   - [shared.ErrRateLimited] : 429
//   - [shared.ErrAPIRequest] : any other failure
package services
