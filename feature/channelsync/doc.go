// Package channelsync runs the recurring reservation pull and rate push.
//
// # Pull
//
// PullReservations lists provider bookings arriving in a window (explicit,
// else from the reservation cursor, else the trailing 30 days; the default
// window ends tomorrow) and imports the ones not seen before. A booking is a
// duplicate when its id has a booking mapping. Each new booking:
//
//   - resolves its room type through the mapping store, falling back to the
//     first room type of the hotel (counted and logged),
//   - maps its status through provider.BookingStatus; unknown statuses import
//     as confirmed and are counted,
//   - is checked against the inventory engine; provider bookings may be
//     accepted as overbooking when configured,
//   - writes guest, reservation and booking mapping in one transaction.
//
// A booking that fails is logged and skipped. Scheduled pulls of a hotel whose
// sync is disabled are skipped and audited as such.
//
// # Push
//
// PushRates sends a partial calendar change for one room type, translated to
// the provider room through the reverse mapping, using the write token.
//
// # HTTP Endpoints
//
//   - POST /sync/pull
//   - POST /sync/push
package channelsync
