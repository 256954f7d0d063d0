// Package notify is a client for the Notify REST API.
//
// A Client signs every request with a short-lived HS256 token derived from the
// service API key, sends it, and maps the response to a typed result or one of
// the typed errors in this package:
//
//   - [CredentialFormatError]: the API key could not be parsed (no request made).
//   - [ValidationError]: a request failed local validation (no request made).
//   - [DocumentUploadError]: a document passed to [PrepareUpload] was rejected.
//   - [HTTPError]: the API answered with a status of 400 or above.
//   - [NotFoundError]: the API answered 404. Unwraps to its [HTTPError].
//   - [RequestError]: the API could not be reached.
//   - [InvalidResponseError]: a successful response body could not be decoded.
//
// The client never retries. Each call makes at most one request and retry
// policy is left to the caller.
//
// A Client is safe for concurrent use.
package notify

// Version is the client version reported in the User-Agent header.
//
// Version numbering follows semantic versioning.
const Version = "5.3.0"

// DefaultBaseURL is the production API endpoint.
const DefaultBaseURL = "https://api.notifications.service.gov.uk"

const defaultUserAgent = "NOTIFY-API-GO-CLIENT/" + Version
