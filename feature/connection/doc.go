// Package connection stores the hotel to provider links.
//
// There is at most one connection per (hotel, provider). Linking again
// re-activates and repoints the row instead of creating a second one; unlinking
// only deactivates it. The row never holds credentials, only a reference to a
// sealed secret record (core/secret).
package connection
