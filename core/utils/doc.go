// Package utils provides small helpers shared across the channel manager:
// calendar date arithmetic on YYYY-MM-DD strings and lenient conversion of
// loosely typed provider values (numbers sent as strings, flags sent as 0/1).
package utils
