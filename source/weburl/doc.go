// Package weburl classifies dataset locations and validates remote URLs.
//
// # Locations
//
// A location is an http(s) URL, a file:// URL or a bare filesystem path.
// Classify resolves it to a Kind and, for local files, the path to open.
//
// # URL Validation
//
// ValidateURL blocks requests that could reach internal infrastructure:
//
//   - Requires HTTPS scheme (ValidateURLAllowHTTP relaxes this)
//   - Blocks localhost variants (localhost, 127.0.0.1, ::1)
//   - Blocks local domains (.local, .internal)
//   - Blocks private IP ranges (RFC 1918, CGNAT, link-local)
//
// # Staging Names
//
// FileName turns a location into a safe base name:
//
//	https://www.orphadata.com/data/xml/en_product1.xml → en_product1.xml
package weburl
