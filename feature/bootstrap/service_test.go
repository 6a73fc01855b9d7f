package bootstrap

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"channel-manager/core/provider"
	"channel-manager/core/provider/providertest"
	"channel-manager/core/secret"
	"channel-manager/core/storage"
	"channel-manager/core/storage/mocks"
	"channel-manager/feature/connection"
	"channel-manager/feature/inventory"
	"channel-manager/feature/ledger"
	"channel-manager/feature/mapping"
	"channel-manager/feature/pms/models"
	"channel-manager/feature/token"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var today = time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)

type env struct {
	db       *gorm.DB
	srv      *providertest.Server
	svc      *Service
	mappings *mapping.Store
	states   *ledger.States
	ledger   *ledger.Ledger
	conn     *connection.Connection
}

func setup(t *testing.T, archiver *storage.Archiver) *env {
	srv := providertest.New()
	t.Cleanup(srv.Close)
	srv.CostPerCall = 1
	srv.Credits = 50
	srv.Properties["P-1"] = provider.Property{
		ID:       "P-1",
		Name:     "Seaside",
		City:     "Porto",
		Country:  "PT",
		Currency: "EUR",
		Rooms: []provider.RoomType{
			{ID: "R-1", Name: "Double", Qty: 3, MaxPeople: 2, MinPrice: 80},
			{ID: "R-2", Name: "Suite", Qty: 1, MaxPeople: 4, MinPrice: 200},
		},
	}
	price := provider.Number(95)
	srv.Calendar["P-1"] = []provider.CalendarEntry{
		{RoomID: "R-1", Date: "2024-06-01", NumAvail: 3, Price: &price, MinStay: 2},
		{RoomID: "R-1", Date: "2024-06-02", NumAvail: 2, ClosedArrival: true},
		{RoomID: "R-2", Date: "2024-06-01", NumAvail: 1, StopSell: true},
		{RoomID: "R-9", Date: "2024-06-01", NumAvail: 5},
		{RoomID: "R-1", Date: "2024-10-01", NumAvail: 3},
	}

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(append(models.All(),
		&token.Token{}, &secret.Secret{}, &connection.Connection{},
		&mapping.ExternalMapping{}, &ledger.AuditRecord{}, &ledger.SyncState{})...))

	ctx := context.Background()
	sealer, err := secret.NewSealer("k")
	require.NoError(t, err)
	secrets := secret.NewStore(db, sealer)
	conns := connection.NewStore(db)
	sec, err := secrets.Create(ctx, "client", "secret", map[string]string{"read": "r", "write": "w"})
	require.NoError(t, err)
	conn, err := conns.Link(ctx, 1, "channel", "P-1", nil, sec.Ref)
	require.NoError(t, err)

	log := zap.NewNop()
	tokens := token.NewManager(token.NewStore(db, sealer), secrets, conns,
		&token.OAuthRefresher{TokenURL: srv.Config().TokenURL}, log)

	e := &env{
		db:       db,
		srv:      srv,
		mappings: mapping.NewStore(db, log),
		states:   ledger.NewStates(db),
		ledger:   ledger.NewLedger(db, log),
		conn:     conn,
	}
	e.svc = NewService(Deps{
		DB:       db,
		Client:   provider.NewClient(srv.Config()),
		Tokens:   tokens,
		Conns:    conns,
		Mappings: e.mappings,
		Engine:   inventory.NewEngine(db, log),
		Ledger:   e.ledger,
		States:   e.states,
		Archiver: archiver,
		Logger:   log,
	}, 0)
	e.svc.now = func() time.Time { return today }
	return e
}

func (e *env) count(t *testing.T, model any) int64 {
	var n int64
	require.NoError(t, e.db.Model(model).Count(&n).Error)
	return n
}

func TestBootstrap_ImportsAllPhases(t *testing.T) {
	e := setup(t, nil)
	ctx := context.Background()

	res, err := e.svc.Bootstrap(ctx, Request{HotelID: 1, PropertyID: "P-1"})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Hotel.Created)
	assert.Equal(t, 2, res.RoomTypes.Created)
	assert.Equal(t, 3, res.Calendar.Created)
	assert.Equal(t, []string{"R-9"}, res.Calendar.Skipped)
	assert.Empty(t, res.Calendar.Errors)
	assert.Equal(t, 6, res.TotalImported)
	assert.Equal(t, "2024-06-01", res.CalendarFrom)
	assert.Equal(t, "2024-08-29", res.CalendarTo)
	assert.Equal(t, 2, res.CreditsUsed)

	var hotel models.Hotel
	require.NoError(t, e.db.First(&hotel, 1).Error)
	assert.Equal(t, "Seaside", hotel.Name)
	assert.Equal(t, "EUR", hotel.Currency)

	assert.Equal(t, int64(2), e.count(t, &models.RoomType{}))
	assert.Equal(t, int64(4), e.count(t, &models.Room{}))
	assert.Equal(t, int64(3), e.count(t, &models.InventoryDay{}))

	roomTypeID, err := e.mappings.Resolve(ctx, "channel", mapping.EntityRoomType, "R-1")
	require.NoError(t, err)
	rev, err := e.mappings.FindByInternalID(ctx, "channel", mapping.EntityRoomType, roomTypeID)
	require.NoError(t, err)
	assert.Equal(t, "R-1", rev.ExternalID)

	var day models.InventoryDay
	require.NoError(t, e.db.Where("room_type_id = ? AND date = ?", roomTypeID, "2024-06-01").First(&day).Error)
	assert.Equal(t, 3, day.Allotment)
	require.NotNil(t, day.Rate)
	assert.Equal(t, 95.0, *day.Rate)
	require.NotNil(t, day.MinStay)
	assert.Equal(t, 2, *day.MinStay)
	assert.Nil(t, day.MaxStay)

	st, err := e.states.Get(ctx, 1, "channel")
	require.NoError(t, err)
	require.NotNil(t, st.BootstrapCompletedAt)
	assert.Equal(t, "2024-06-01", st.CalendarFrom)
	assert.Equal(t, "2024-08-29", st.CalendarTo)
	assert.NotNil(t, st.LastSuccessAt)

	recs, err := e.ledger.Trace(ctx, res.TraceID)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, ledger.StatusSuccess, recs[1].Status)
	assert.Equal(t, 2, recs[1].Cost)

	conn, err := connection.NewStore(e.db).Get(ctx, e.conn.ID)
	require.NoError(t, err)
	require.NotNil(t, conn.CreditsRemaining)
	assert.Equal(t, 48, *conn.CreditsRemaining)
}

func TestBootstrap_IsIdempotent(t *testing.T) {
	e := setup(t, nil)
	ctx := context.Background()

	_, err := e.svc.Bootstrap(ctx, Request{HotelID: 1, PropertyID: "P-1"})
	require.NoError(t, err)

	e.srv.Properties["P-1"] = provider.Property{
		ID:    "P-1",
		Name:  "Seaside Renamed",
		Rooms: []provider.RoomType{{ID: "R-1", Name: "Double Deluxe", Qty: 4}, {ID: "R-2", Name: "Suite", Qty: 1}},
	}
	res, err := e.svc.Bootstrap(ctx, Request{HotelID: 1})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Hotel.Updated)
	assert.Equal(t, 2, res.RoomTypes.Updated)
	assert.Equal(t, 3, res.Calendar.Updated)
	assert.Zero(t, res.Hotel.Created+res.RoomTypes.Created+res.Calendar.Created)
	assert.Equal(t, 6, res.TotalImported)

	assert.Equal(t, int64(1), e.count(t, &models.Hotel{}))
	assert.Equal(t, int64(2), e.count(t, &models.RoomType{}))
	assert.Equal(t, int64(5), e.count(t, &models.Room{}), "rooms are topped up to the new quantity")
	assert.Equal(t, int64(3), e.count(t, &models.InventoryDay{}))

	var rt models.RoomType
	require.NoError(t, e.db.Where("name = ?", "Double Deluxe").First(&rt).Error)
}

func TestBootstrap_CalendarFailureKeepsEarlierPhases(t *testing.T) {
	e := setup(t, nil)
	e.srv.Fail("GET /inventory/calendar", http.StatusBadGateway)
	ctx := context.Background()

	res, err := e.svc.Bootstrap(ctx, Request{HotelID: 1, PropertyID: "P-1"})
	require.Error(t, err)
	require.NotNil(t, res)

	var pe *PartialImportError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, []string{"calendar"}, pe.Phases)
	assert.False(t, IsCallLevel(err))

	var provErr *provider.Error
	assert.True(t, errors.As(err, &provErr), "phase errors stay inspectable")

	assert.Equal(t, 1, res.Hotel.Created)
	assert.Equal(t, 2, res.RoomTypes.Created)
	assert.Zero(t, res.Calendar.Created)
	require.Len(t, res.Calendar.Errors, 1)
	assert.Equal(t, 3, res.TotalImported)
	assert.Equal(t, int64(2), e.count(t, &models.RoomType{}))

	recs, err := e.ledger.Trace(ctx, res.TraceID)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, ledger.StatusPartial, recs[1].Status)
	assert.Contains(t, recs[1].Error, "calendar")

	st, err := e.states.Get(ctx, 1, "channel")
	require.NoError(t, err)
	assert.NotNil(t, st.BootstrapCompletedAt)
	assert.Empty(t, st.CalendarFrom, "no window was imported")
	assert.NotNil(t, st.LastSuccessAt)
	assert.Contains(t, st.LastError, "calendar", "a partial run keeps its phase errors")
}

type panickingCalendar struct {
	*provider.Client
}

func (panickingCalendar) GetCalendar(ctx context.Context, token, propertyID, from, to string) ([]provider.CalendarEntry, *provider.Meta, error) {
	panic("calendar decoder exploded")
}

func TestBootstrap_PanicIsAuditedAndRethrown(t *testing.T) {
	e := setup(t, nil)
	e.svc.client = panickingCalendar{provider.NewClient(e.srv.Config())}
	ctx := context.Background()

	require.PanicsWithValue(t, "calendar decoder exploded", func() {
		_, _ = e.svc.Bootstrap(ctx, Request{HotelID: 1, TraceID: "ray-panic"})
	})

	recs, err := e.ledger.Trace(ctx, "ray-panic")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, ledger.StatusRunning, recs[0].Status)
	assert.Equal(t, ledger.StatusFailed, recs[1].Status)
	assert.Contains(t, recs[1].Error, "calendar decoder exploded")

	assert.Equal(t, int64(2), e.count(t, &models.RoomType{}), "earlier phases are kept")

	st, err := e.states.Get(ctx, 1, "channel")
	require.NoError(t, err)
	assert.Nil(t, st.BootstrapCompletedAt)
	assert.Contains(t, st.LastError, "panicked")
}

func TestBootstrap_PropertyFailureAborts(t *testing.T) {
	e := setup(t, nil)
	e.srv.Fail("GET /properties", http.StatusInternalServerError)
	ctx := context.Background()

	res, err := e.svc.Bootstrap(ctx, Request{HotelID: 1, PropertyID: "P-1"})
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, IsCallLevel(err))
	assert.True(t, provider.IsRetryable(err))

	assert.Equal(t, int64(0), e.count(t, &models.Hotel{}))
	assert.Zero(t, e.srv.CallCount("GET /inventory/calendar"))

	recs, err := e.ledger.Recent(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, ledger.StatusFailed, recs[0].Status)
	assert.NotEmpty(t, recs[0].TraceID)
	assert.Equal(t, recs[0].TraceID, recs[1].TraceID)

	st, err := e.states.Get(ctx, 1, "channel")
	require.NoError(t, err)
	assert.Nil(t, st.BootstrapCompletedAt)
	assert.NotEmpty(t, st.LastError)
}

func TestBootstrap_TokenFailureAborts(t *testing.T) {
	e := setup(t, nil)
	e.srv.RejectRefresh = true

	_, err := e.svc.Bootstrap(context.Background(), Request{HotelID: 1})
	require.Error(t, err)
	assert.True(t, token.IsAuthFailure(err))
	assert.Zero(t, e.srv.CallCount("GET /properties"))
}

func TestBootstrap_Validation(t *testing.T) {
	e := setup(t, nil)
	ctx := context.Background()

	_, err := e.svc.Bootstrap(ctx, Request{HotelID: 2, TraceID: "ray-unlinked"})
	assert.ErrorIs(t, err, connection.ErrNotFound)
	assert.True(t, IsCallLevel(err))

	recs, err := e.ledger.Trace(ctx, "ray-unlinked")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, ledger.StatusFailed, recs[0].Status)
	assert.Equal(t, uint(2), recs[0].HotelID)
	assert.Nil(t, recs[0].ConnectionID)

	_, err = e.svc.Bootstrap(ctx, Request{HotelID: 1, PropertyID: "P-OTHER", TraceID: "ray-mismatch"})
	assert.ErrorIs(t, err, ErrPropertyMismatch)
	assert.ErrorContains(t, err, "linked to P-1, not P-OTHER")

	recs, err = e.ledger.Trace(ctx, "ray-mismatch")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, ledger.StatusFailed, recs[0].Status)
	require.NotNil(t, recs[0].ConnectionID)
	assert.Equal(t, e.conn.ID, *recs[0].ConnectionID)
	assert.Zero(t, e.srv.CallCount("GET /properties"))

	_, err = e.svc.Bootstrap(ctx, Request{})
	assert.Error(t, err)
}

func TestBootstrap_ArchivesPayloads(t *testing.T) {
	client := new(mocks.Client)
	client.On("BucketExists", mock.Anything, "archive").Return(true, nil)
	client.On("PutObject", mock.Anything, "archive", mock.MatchedBy(func(key string) bool {
		return strings.HasPrefix(key, "hotels/1/bootstrap/")
	}), mock.Anything, mock.Anything, mock.Anything).Return(minio.UploadInfo{}, nil)

	e := setup(t, storage.NewArchiver(client, "archive", ""))
	_, err := e.svc.Bootstrap(context.Background(), Request{HotelID: 1})
	require.NoError(t, err)

	client.AssertNumberOfCalls(t, "PutObject", 3)
}

func TestBootstrap_ArchiveFailureIsNotFatal(t *testing.T) {
	client := new(mocks.Client)
	client.On("BucketExists", mock.Anything, "archive").Return(false, errors.New("minio down"))

	e := setup(t, storage.NewArchiver(client, "archive", ""))
	res, err := e.svc.Bootstrap(context.Background(), Request{HotelID: 1})
	require.NoError(t, err)
	assert.Equal(t, 6, res.TotalImported)
}
