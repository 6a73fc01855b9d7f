package channelsync

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"channel-manager/core/provider"
	"channel-manager/core/provider/providertest"
	"channel-manager/core/secret"
	"channel-manager/core/utils"
	"channel-manager/feature/connection"
	"channel-manager/feature/inventory"
	"channel-manager/feature/ledger"
	"channel-manager/feature/mapping"
	"channel-manager/feature/pms/models"
	"channel-manager/feature/token"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var now = time.Date(2024, 6, 15, 8, 0, 0, 0, time.UTC)

type env struct {
	db       *gorm.DB
	srv      *providertest.Server
	svc      *Service
	mappings *mapping.Store
	states   *ledger.States
	ledger   *ledger.Ledger
	conns    *connection.Store
	conn     *connection.Connection
	double   models.RoomType
	suite    models.RoomType
}

func setup(t *testing.T, cfg Config) *env {
	srv := providertest.New()
	t.Cleanup(srv.Close)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(append(models.All(),
		&token.Token{}, &secret.Secret{}, &connection.Connection{},
		&mapping.ExternalMapping{}, &ledger.AuditRecord{}, &ledger.SyncState{})...))

	ctx := context.Background()
	log := zap.NewNop()
	sealer, err := secret.NewSealer("k")
	require.NoError(t, err)
	secrets := secret.NewStore(db, sealer)
	conns := connection.NewStore(db)
	sec, err := secrets.Create(ctx, "client", "secret", map[string]string{"read": "r", "write": "w"})
	require.NoError(t, err)
	conn, err := conns.Link(ctx, 1, "channel", "P-1", nil, sec.Ref)
	require.NoError(t, err)

	e := &env{
		db:       db,
		srv:      srv,
		mappings: mapping.NewStore(db, log),
		states:   ledger.NewStates(db),
		ledger:   ledger.NewLedger(db, log),
		conns:    conns,
		conn:     conn,
	}

	require.NoError(t, db.Create(&models.Hotel{ID: 1, Name: "Seaside"}).Error)
	e.double = models.RoomType{HotelID: 1, Name: "Double"}
	e.suite = models.RoomType{HotelID: 1, Name: "Suite"}
	require.NoError(t, db.Create(&e.double).Error)
	require.NoError(t, db.Create(&e.suite).Error)
	for i := 0; i < 2; i++ {
		require.NoError(t, db.Create(&models.Room{HotelID: 1, RoomTypeID: e.double.ID}).Error)
	}
	require.NoError(t, db.Create(&models.Room{HotelID: 1, RoomTypeID: e.suite.ID}).Error)
	_, err = e.mappings.UpsertBidirectional(ctx, "channel", mapping.EntityRoomType, "R-1", e.double.ID, nil)
	require.NoError(t, err)
	_, err = e.mappings.UpsertBidirectional(ctx, "channel", mapping.EntityRoomType, "R-2", e.suite.ID, nil)
	require.NoError(t, err)

	tokens := token.NewManager(token.NewStore(db, sealer), secrets, conns,
		&token.OAuthRefresher{TokenURL: srv.Config().TokenURL}, log)
	e.svc = NewService(Deps{
		DB:       db,
		Client:   provider.NewClient(srv.Config()),
		Tokens:   tokens,
		Conns:    conns,
		Mappings: e.mappings,
		Engine:   inventory.NewEngine(db, log),
		Ledger:   e.ledger,
		States:   e.states,
		Logger:   log,
	}, cfg)
	e.svc.now = func() time.Time { return now }
	return e
}

func booking(id, room, status, in, out, email string) provider.Booking {
	return provider.Booking{
		ID: provider.ID(id), PropertyID: "P-1", RoomID: provider.ID(room), Status: status,
		Arrival: in, Departure: out, FirstName: "Ana", LastName: "Silva", Email: email,
		NumAdult: 2, Price: 240, Currency: "EUR", Channel: "Booking.com",
	}
}

var june = &DateRange{From: "2024-06-01", To: "2024-06-30"}

func (e *env) pull(t *testing.T, req PullRequest) *PullResult {
	if req.ConnectionID == 0 {
		req.ConnectionID = e.conn.ID
	}
	res, err := e.svc.PullReservations(context.Background(), req)
	require.NoError(t, err)
	return res
}

func (e *env) count(t *testing.T, model any) int64 {
	var n int64
	require.NoError(t, e.db.Model(model).Count(&n).Error)
	return n
}

func TestPull_ImportsBookings(t *testing.T) {
	e := setup(t, Config{AllowOverbookingOnPull: true})
	e.srv.CostPerCall = 2
	e.srv.Credits = 40
	e.srv.Bookings["P-1"] = []provider.Booking{
		booking("B-1", "R-1", "confirmed", "2024-06-16", "2024-06-18", "ana@example.com"),
		booking("B-2", "R-9", "mystery", "2024-06-20", "2024-06-21", ""),
		booking("B-3", "R-1", "confirmed", "2024-06-22", "2024-06-20", "bad@example.com"),
		booking("B-4", "R-2", "request", "2024-06-16", "2024-06-17", "ANA@example.com "),
	}

	res := e.pull(t, PullRequest{DateRange: june})
	assert.True(t, res.Success)
	assert.Equal(t, 4, res.TotalFound)
	assert.Equal(t, 3, res.TotalImported)
	assert.Len(t, res.Data, 3)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 1, res.Unknown)
	assert.Equal(t, 1, res.Fallbacks)
	assert.Equal(t, 2, res.CreditsUsed)
	assert.Equal(t, 38, res.CreditsRemaining)

	var b1 models.Reservation
	require.NoError(t, e.db.Where("external_booking_id = ?", "B-1").First(&b1).Error)
	assert.Equal(t, e.double.ID, b1.RoomTypeID)
	assert.Equal(t, models.StatusConfirmed, b1.Status)
	assert.Equal(t, "channel:booking.com", b1.Source)
	require.NotNil(t, b1.GuestID)

	var b2 models.Reservation
	require.NoError(t, e.db.Where("external_booking_id = ?", "B-2").First(&b2).Error)
	assert.Equal(t, e.double.ID, b2.RoomTypeID, "unmapped room falls back to the first room type")
	assert.Equal(t, models.StatusConfirmed, b2.Status, "unknown status imports as confirmed")

	var b4 models.Reservation
	require.NoError(t, e.db.Where("external_booking_id = ?", "B-4").First(&b4).Error)
	assert.Equal(t, models.StatusPending, b4.Status)
	assert.Equal(t, *b1.GuestID, *b4.GuestID, "same email reuses the guest")

	assert.Equal(t, int64(2), e.count(t, &models.Guest{}))

	guest, err := e.mappings.FindByInternalID(context.Background(), "channel", mapping.EntityGuest, *b1.GuestID)
	require.NoError(t, err)
	require.NotNil(t, guest)
	assert.Equal(t, "email:ana@example.com", guest.ExternalID)

	recs, err := e.ledger.Trace(context.Background(), res.TraceID)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, ledger.StatusPartial, recs[1].Status)
	assert.Contains(t, recs[1].Error, "B-3")
	assert.Equal(t, 2, recs[1].Cost)

	conn, err := e.conns.Get(context.Background(), e.conn.ID)
	require.NoError(t, err)
	assert.NotNil(t, conn.LastSyncAt)
	require.NotNil(t, conn.CreditsRemaining)
	assert.Equal(t, 38, *conn.CreditsRemaining)
}

func TestPull_IsIdempotent(t *testing.T) {
	e := setup(t, Config{})
	e.srv.Bookings["P-1"] = []provider.Booking{
		booking("B-1", "R-1", "confirmed", "2024-06-16", "2024-06-18", "ana@example.com"),
	}

	first := e.pull(t, PullRequest{DateRange: june})
	assert.Equal(t, 1, first.TotalImported)

	second := e.pull(t, PullRequest{DateRange: june})
	assert.Equal(t, 0, second.TotalImported)
	assert.Equal(t, 1, second.Duplicates)
	assert.Equal(t, int64(1), e.count(t, &models.Reservation{}))

	recs, err := e.ledger.Trace(context.Background(), second.TraceID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusSuccess, recs[1].Status)
}

func TestPull_RacedImportIsDuplicate(t *testing.T) {
	e := setup(t, Config{})
	ctx := context.Background()
	e.srv.Bookings["P-1"] = []provider.Booking{
		booking("B-1", "R-1", "confirmed", "2024-06-16", "2024-06-18", "ana@example.com"),
	}

	// Another pull committed the reservation but its mapping is not visible yet.
	id := "B-1"
	winner := models.Reservation{HotelID: 1, RoomTypeID: e.double.ID, CheckIn: "2024-06-16", CheckOut: "2024-06-18",
		Status: models.StatusConfirmed, ExternalBookingID: &id}
	require.NoError(t, e.db.Create(&winner).Error)

	res := e.pull(t, PullRequest{DateRange: june})
	assert.Zero(t, res.TotalImported)
	assert.Equal(t, 1, res.Duplicates)
	assert.Zero(t, res.Failed)
	assert.Equal(t, int64(1), e.count(t, &models.Reservation{}))

	t.Run("Unique Index", func(t *testing.T) {
		loser := models.Reservation{HotelID: 1, RoomTypeID: e.double.ID, CheckIn: "2024-06-16", CheckOut: "2024-06-18",
			Status: models.StatusConfirmed, ExternalBookingID: &id}
		err := e.db.Create(&loser).Error
		assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)
		assert.True(t, isDuplicate(fmt.Errorf("failed to create reservation: %w", err)))

		other := models.Reservation{HotelID: 2, RoomTypeID: e.double.ID, CheckIn: "2024-06-16", CheckOut: "2024-06-18",
			Status: models.StatusConfirmed, ExternalBookingID: &id}
		assert.NoError(t, e.db.Create(&other).Error, "booking ids are unique per hotel")
	})

	t.Run("Booking Mapping Is Insert Only", func(t *testing.T) {
		_, err := e.mappings.Insert(ctx, "channel", mapping.EntityBooking, "B-7", winner.ID, nil)
		require.NoError(t, err)
		_, err = e.mappings.Insert(ctx, "channel", mapping.EntityBooking, "B-7", winner.ID+1, nil)
		assert.True(t, isDuplicate(err))
	})
}

func TestPull_CancellationReleasesReservation(t *testing.T) {
	e := setup(t, Config{})
	e.srv.Bookings["P-1"] = []provider.Booking{
		booking("B-1", "R-1", "confirmed", "2024-06-16", "2024-06-18", "ana@example.com"),
	}
	e.pull(t, PullRequest{DateRange: june})

	e.srv.Bookings["P-1"][0].Status = "cancelled"
	res := e.pull(t, PullRequest{DateRange: june})
	assert.Equal(t, 1, res.Cancelled)
	assert.Equal(t, 1, res.Duplicates)

	var r models.Reservation
	require.NoError(t, e.db.Where("external_booking_id = ?", "B-1").First(&r).Error)
	assert.Equal(t, models.StatusCancelled, r.Status)
}

func TestPull_Capacity(t *testing.T) {
	bookings := []provider.Booking{
		booking("B-1", "R-2", "confirmed", "2024-06-16", "2024-06-18", "a@example.com"),
		booking("B-2", "R-2", "confirmed", "2024-06-17", "2024-06-19", "b@example.com"),
	}

	t.Run("Rejected", func(t *testing.T) {
		e := setup(t, Config{AllowOverbookingOnPull: false})
		e.srv.Bookings["P-1"] = bookings

		res := e.pull(t, PullRequest{DateRange: june})
		assert.Equal(t, 1, res.TotalImported)
		assert.Equal(t, 1, res.Rejected)
		require.Len(t, res.Errors, 1)
		assert.Contains(t, res.Errors[0], "B-2")

		m, err := e.mappings.FindByExternalID(context.Background(), "channel", mapping.EntityBooking, "B-2")
		require.NoError(t, err)
		assert.Nil(t, m, "a rejected booking leaves no mapping behind")
		assert.Equal(t, int64(1), e.count(t, &models.Guest{}), "guest creation rolled back")

		st, err := e.states.Get(context.Background(), 1, "channel")
		require.NoError(t, err)
		assert.NotNil(t, st.LastSuccessAt)
		assert.Contains(t, st.LastError, "B-2", "a partial run keeps its item errors")
	})

	t.Run("Overbooked", func(t *testing.T) {
		e := setup(t, Config{AllowOverbookingOnPull: true})
		e.srv.Bookings["P-1"] = bookings

		res := e.pull(t, PullRequest{DateRange: june})
		assert.Equal(t, 2, res.TotalImported)
		assert.Equal(t, 1, res.Overbooked)
		assert.Zero(t, res.Rejected)
	})

	t.Run("Cancelled Bookings Skip The Check", func(t *testing.T) {
		e := setup(t, Config{AllowOverbookingOnPull: false})
		e.srv.Bookings["P-1"] = []provider.Booking{
			bookings[0],
			booking("B-3", "R-2", "cancelled", "2024-06-16", "2024-06-18", "c@example.com"),
		}
		res := e.pull(t, PullRequest{DateRange: june})
		assert.Equal(t, 2, res.TotalImported)
	})
}

func TestPull_NoRoomTypes(t *testing.T) {
	e := setup(t, Config{})
	require.NoError(t, e.db.Where("hotel_id = ?", 1).Delete(&models.RoomType{}).Error)
	e.srv.Bookings["P-1"] = []provider.Booking{
		booking("B-1", "R-9", "confirmed", "2024-06-16", "2024-06-18", "a@example.com"),
	}

	res := e.pull(t, PullRequest{DateRange: june})
	assert.Equal(t, 1, res.Failed)
	assert.Contains(t, res.Errors[0], mapping.ErrNotFound.Error())
}

func TestPull_ScheduledSkippedWhenDisabled(t *testing.T) {
	e := setup(t, Config{})
	_, err := e.states.SetEnabled(context.Background(), 1, "channel", false)
	require.NoError(t, err)

	res := e.pull(t, PullRequest{SyncType: SyncScheduled})
	assert.True(t, res.SkippedRun)
	assert.Zero(t, e.srv.CallCount("GET /bookings"))

	recs, err := e.ledger.Trace(context.Background(), res.TraceID)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, ledger.StatusSkipped, recs[0].Status)

	res = e.pull(t, PullRequest{SyncType: SyncManual})
	assert.False(t, res.SkippedRun, "manual pulls ignore the switch")
	assert.Equal(t, 1, e.srv.CallCount("GET /bookings"))
}

func TestPull_DefaultWindowAndCursor(t *testing.T) {
	e := setup(t, Config{})

	res := e.pull(t, PullRequest{})
	assert.Equal(t, DateRange{From: "2024-05-16", To: "2024-06-16"}, res.Window)

	cursor, ok, err := e.states.Cursor(context.Background(), 1, "channel", ledger.CursorReservations)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "2024-06-15", cursor)

	res = e.pull(t, PullRequest{})
	assert.Equal(t, DateRange{From: "2024-06-15", To: "2024-06-16"}, res.Window)

	st, err := e.states.Get(context.Background(), 1, "channel")
	require.NoError(t, err)
	assert.NotNil(t, st.LastSuccessAt)
}

func TestPull_CallLevelFailures(t *testing.T) {
	t.Run("Booking List", func(t *testing.T) {
		e := setup(t, Config{})
		e.srv.Fail("GET /bookings", http.StatusServiceUnavailable)

		_, err := e.svc.PullReservations(context.Background(), PullRequest{ConnectionID: e.conn.ID, DateRange: june})
		var pe *provider.Error
		require.True(t, errors.As(err, &pe))
		assert.True(t, provider.IsRetryable(err))

		recs, err := e.ledger.Recent(context.Background(), 1, 10)
		require.NoError(t, err)
		require.Len(t, recs, 2)
		assert.Equal(t, ledger.StatusFailed, recs[0].Status)

		st, err := e.states.Get(context.Background(), 1, "channel")
		require.NoError(t, err)
		assert.Contains(t, st.LastError, "503")
		assert.Nil(t, st.LastSuccessAt)
	})

	t.Run("Token", func(t *testing.T) {
		e := setup(t, Config{})
		e.srv.RejectRefresh = true

		_, err := e.svc.PullReservations(context.Background(), PullRequest{ConnectionID: e.conn.ID})
		assert.True(t, token.IsAuthFailure(err))
		assert.Zero(t, e.srv.CallCount("GET /bookings"))
	})

	t.Run("Unknown Connection", func(t *testing.T) {
		e := setup(t, Config{})
		_, err := e.svc.PullReservations(context.Background(), PullRequest{ConnectionID: 99, TraceID: "ray-unknown"})
		assert.ErrorIs(t, err, connection.ErrNotFound)

		recs, err := e.ledger.Trace(context.Background(), "ray-unknown")
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.Equal(t, ledger.StatusFailed, recs[0].Status)
		assert.Equal(t, ledger.OpPullReservations, recs[0].Operation)
		require.NotNil(t, recs[0].ConnectionID)
		assert.Equal(t, uint(99), *recs[0].ConnectionID)
	})

	t.Run("Bad Range", func(t *testing.T) {
		e := setup(t, Config{})
		_, err := e.svc.PullReservations(context.Background(), PullRequest{
			ConnectionID: e.conn.ID,
			DateRange:    &DateRange{From: "2024-06-30", To: "2024-06-01"},
			TraceID:      "ray-range",
		})
		assert.True(t, utils.IsDateError(err))
		assert.Zero(t, e.srv.CallCount("GET /bookings"))

		recs, err := e.ledger.Trace(context.Background(), "ray-range")
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.Equal(t, ledger.StatusFailed, recs[0].Status)
		assert.Equal(t, uint(1), recs[0].HotelID)
		assert.Contains(t, recs[0].Error, "before it starts")
	})
}

func TestPushRates(t *testing.T) {
	e := setup(t, Config{})
	e.srv.CostPerCall = 1
	e.srv.Credits = 10
	ctx := context.Background()
	rate := 99.5
	stop := true

	res, err := e.svc.PushRates(ctx, PushRequest{
		HotelID:    1,
		RoomTypeID: e.suite.ID,
		Start:      "2024-07-01",
		End:        "2024-07-07",
		Changes:    Changes{Rate: &rate, StopSell: &stop},
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 1, res.CreditsUsed)

	require.Len(t, e.srv.Pushed, 1)
	change := e.srv.Pushed[0][0]
	assert.Equal(t, "R-2", change.RoomID)
	assert.Equal(t, "2024-07-01", change.From)
	assert.Equal(t, "2024-07-07", change.To)
	require.NotNil(t, change.Price)
	assert.Equal(t, 99.5, *change.Price)
	assert.Nil(t, change.NumAvail)
	assert.Nil(t, change.MinStay)
	assert.Equal(t, []string{"w"}, e.srv.RefreshSeen, "pushes use the write token")

	recs, err := e.ledger.Trace(ctx, res.TraceID)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, ledger.OpPushRates, recs[1].Operation)
	assert.Equal(t, ledger.StatusSuccess, recs[1].Status)
}

func TestPushRates_Errors(t *testing.T) {
	e := setup(t, Config{})
	ctx := context.Background()
	avail := 3

	rejected := []struct {
		name string
		req  PushRequest
		want error
	}{
		{"No Changes", PushRequest{HotelID: 1, RoomTypeID: e.suite.ID, Start: "2024-07-01", End: "2024-07-02"}, ErrNoChanges},
		{"Unmapped Room Type", PushRequest{HotelID: 1, RoomTypeID: 999, Start: "2024-07-01", End: "2024-07-02", Changes: Changes{NumAvail: &avail}}, mapping.ErrNotFound},
		{"Bad Range", PushRequest{HotelID: 1, RoomTypeID: e.suite.ID, Start: "2024-07-05", End: "2024-07-02", Changes: Changes{NumAvail: &avail}}, utils.ErrInvalidDate},
		{"Unlinked Hotel", PushRequest{HotelID: 5, RoomTypeID: e.suite.ID, Start: "2024-07-01", End: "2024-07-02", Changes: Changes{NumAvail: &avail}}, connection.ErrNotFound},
	}
	for i, tt := range rejected {
		t.Run(tt.name, func(t *testing.T) {
			tt.req.TraceID = fmt.Sprintf("ray-push-%d", i)
			_, err := e.svc.PushRates(ctx, tt.req)
			assert.ErrorIs(t, err, tt.want)

			recs, err := e.ledger.Trace(ctx, tt.req.TraceID)
			require.NoError(t, err)
			require.Len(t, recs, 1)
			assert.Equal(t, ledger.StatusFailed, recs[0].Status)
			assert.Equal(t, ledger.OpPushRates, recs[0].Operation)
			assert.Equal(t, tt.req.HotelID, recs[0].HotelID)
		})
	}
	assert.Zero(t, e.srv.CallCount("POST /inventory/calendar"))

	e.srv.Fail("POST /inventory/calendar", http.StatusUnprocessableEntity)
	_, err = e.svc.PushRates(ctx, PushRequest{HotelID: 1, RoomTypeID: e.suite.ID, Start: "2024-07-01", End: "2024-07-02", Changes: Changes{NumAvail: &avail}})
	var pe *provider.Error
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, http.StatusUnprocessableEntity, pe.StatusCode)

	recs, err := e.ledger.Recent(ctx, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusFailed, recs[0].Status)
}
