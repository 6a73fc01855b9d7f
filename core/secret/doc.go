// Package secret keeps provider credentials out of connection rows.
//
// A Secret record holds the OAuth client id, the sealed client secret and one
// sealed refresh token per token type. Connections reference it by Ref only.
// Values are sealed with AES-256-GCM (Sealer); the same sealer is used by the
// token store for access token values.
package secret
