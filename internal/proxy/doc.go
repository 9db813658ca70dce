// Package proxy implements the guarded URL fetch pipeline.
//
// A single fetch runs as a strictly sequential chain:
//   - validate: parse the candidate URL, enforce scheme and length policy,
//     resolve both address families and reject private/reserved targets
//   - fetch: manual redirect loop with a hop limit, per-GET deadline and an
//     incremental response byte cap; every hop is re-validated before it is
//     fetched
//   - sanitize: extract the head block (executable scripts removed, JSON-LD
//     preserved) and a small body snippet
//
// Failures are expressed as a closed taxonomy of error codes; raw upstream
// causes are logged server-side and never cross the caller boundary.
//
// Built on:
//   - resty: outbound HTTP with auto-redirects disabled
//   - mimetype: content-type sniffing when upstream omits the header
//   - x/net/html/charset: decoding non-UTF-8 payloads before sanitization
package proxy
