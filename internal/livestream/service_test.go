package livestream_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"livesignal/backend/internal/analytics"
	"livesignal/backend/internal/janus"
	"livesignal/backend/internal/livehub"
	"livesignal/backend/internal/livestream"
	"livesignal/backend/internal/models"
	"livesignal/backend/internal/registry"
	"livesignal/backend/internal/storage"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	hostUserID = "11111111-1111-1111-1111-111111111111"
	clinicID   = "22222222-2222-2222-2222-222222222222"
)

type fixture struct {
	svc   *livestream.Service
	gw    *fakeGateway
	store *MockStorage
	rooms *registry.Registry
	hub   *livehub.Manager
	host  *fakeClient
	// guid of the room opened by createRoom
	guid string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gw := newFakeGateway()
	store := new(MockStorage)
	rooms := registry.New()
	hub := livehub.NewManager(nil, zap.NewNop())
	activity := analytics.New(nil, 0, zap.NewNop())

	store.On("SetViewerCount", mock.Anything, mock.Anything).Return(nil).Maybe()
	store.On("SetRoomLive", mock.Anything, mock.Anything).Return(nil).Maybe()
	store.On("ClearRoomLive", mock.Anything).Return(nil).Maybe()

	svc := livestream.NewService(gw, rooms, hub, activity, store, livestream.Options{ViewerBoost: 10}, zap.NewNop())
	return &fixture{
		svc:   svc,
		gw:    gw,
		store: store,
		rooms: rooms,
		hub:   hub,
		host:  newFakeClient("host-conn", hostUserID, clinicID),
	}
}

func (f *fixture) allowHost(quota int) {
	f.store.On("GetClinicByID", clinicID).Return(&models.Clinic{ID: clinicID, AdditionLivestreams: quota}, nil)
	f.store.On("GetStaffRole", hostUserID, clinicID).Return("Clinic Admin", nil)
}

func (f *fixture) expectCreatePersistence() {
	f.store.On("CreateLivestreamRoom", mock.MatchedBy(func(r *models.LivestreamRoom) bool {
		return uuid.Validate(r.ID) == nil && r.Status == models.RoomStatusLive && r.Type == "Selling" && r.ClinicID == clinicID
	})).Return(nil).Once()
	f.store.On("DecrementLivestreamQuota", clinicID).Return(nil).Once()
}

func (f *fixture) expectEndPersistence(bookings int) *models.LiveStreamDetail {
	saved := &models.LiveStreamDetail{}
	f.store.On("CountCompletedBookings", f.guid).Return(bookings, nil).Once()
	f.store.On("EndLivestreamRoom", f.guid, mock.Anything, mock.Anything).Return(nil).Once()
	f.store.On("DeactivateRoomPromotions", f.guid).Return(nil).Once()
	f.store.On("SaveLivestreamDetail", mock.Anything).Run(func(args mock.Arguments) {
		*saved = *args.Get(0).(*models.LiveStreamDetail)
	}).Return(nil).Once()
	return saved
}

func (f *fixture) dispatch(c *fakeClient, method string, payload any) {
	raw, _ := json.Marshal(payload)
	f.svc.Dispatch(c, models.ClientRequest{Method: method, Payload: raw})
}

func (f *fixture) createRoom(t *testing.T) {
	t.Helper()
	f.allowHost(3)
	f.expectCreatePersistence()
	f.dispatch(f.host, models.MethodHostCreateRoom, models.HostCreateRoomPayload{Name: "Spring glow"})
	require.Equal(t, models.EventRoomCreatedAndJoined, f.host.Last().Name, "events: %+v", f.host.Events())
	f.guid = f.host.Last().Data.(models.RoomCreatedData).RoomGUID
}

func TestLivestreamScenario_CreateJoinLeaveEnd(t *testing.T) {
	f := newFixture(t)
	f.createRoom(t)

	created := f.host.Last().Data.(models.RoomCreatedData)
	assert.NoError(t, uuid.Validate(created.RoomGUID))
	assert.True(t, f.rooms.IsHost(created.RoomGUID, f.host.ID()))
	assert.GreaterOrEqual(t, created.JanusRoomID, int64(100000))
	assert.LessOrEqual(t, created.JanusRoomID, int64(999999))
	assert.Equal(t, []string{"create", "attach", "message:create", "message:join"}, f.gw.Calls())

	l1 := newFakeClient("l1", "viewer-1", "")
	l2 := newFakeClient("l2", "viewer-2", "")
	f.dispatch(l1, models.MethodJoinAsListener, models.RoomPayload{RoomGUID: f.guid})
	f.dispatch(l2, models.MethodJoinAsListener, models.RoomPayload{RoomGUID: f.guid})

	joined := l1.Named(models.EventJoinRoomResponse)
	require.Len(t, joined, 1)
	data := joined[0].Data.(models.JoinRoomData)
	assert.Equal(t, created.JanusRoomID, data.RoomID)
	require.NotNil(t, data.JSEP)
	assert.Equal(t, "subscriber-offer-77", data.JSEP.SDP)

	assert.Equal(t, []int{1, 2}, f.host.counts())
	assert.Equal(t, []int{11, 12}, l1.counts())
	assert.Equal(t, []int{12}, l2.counts())

	f.svc.Disconnect(l1)

	assert.Equal(t, []int{1, 2, 1}, f.host.counts())
	assert.Equal(t, []int{12, 11}, l2.counts())
	assert.Equal(t, 1, f.rooms.ListenerCount(f.guid))
	assert.Empty(t, f.rooms.ConnectionRooms("l1"))

	saved := f.expectEndPersistence(1)
	f.dispatch(f.host, models.MethodEndLivestream, models.RoomPayload{RoomGUID: f.guid})

	ended := f.host.Named(models.EventLivestreamEnded)
	require.Len(t, ended, 1)
	settlement := ended[0].Data.(models.LivestreamEndedData).Settlement
	assert.GreaterOrEqual(t, settlement.JoinCount, 2)
	assert.Equal(t, settlement.JoinCount+settlement.MessageCount+settlement.ReactionCount, settlement.TotalActivities)
	assert.Equal(t, 1, settlement.TotalBooking)
	assert.Equal(t, *settlement, *saved)

	bare := l2.Named(models.EventLivestreamEnded)
	require.Len(t, bare, 1)
	assert.Nil(t, bare[0].Data)

	_, live := f.rooms.Get(f.guid)
	assert.False(t, live)
	assert.Equal(t, 0, f.rooms.Len())
	f.store.AssertNumberOfCalls(t, "DecrementLivestreamQuota", 1)
	f.store.AssertExpectations(t)
}

func TestEndLivestream_SecondCallIsRoomNotFound(t *testing.T) {
	f := newFixture(t)
	f.createRoom(t)
	f.expectEndPersistence(0)

	require.NoError(t, f.svc.EndLivestream(context.Background(), f.host, f.guid))
	err := f.svc.EndLivestream(context.Background(), f.host, f.guid)

	assert.ErrorIs(t, err, livestream.ErrRoomNotFound)
	f.store.AssertNumberOfCalls(t, "SaveLivestreamDetail", 1)
}

func TestCreateRoom_GatewayCreateErrorLeavesNoState(t *testing.T) {
	f := newFixture(t)
	f.allowHost(3)
	f.gw.failOn("message:create", &janus.ProtocolError{Code: 427, Reason: "Room already exists"})

	err := f.svc.CreateRoom(context.Background(), f.host, models.HostCreateRoomPayload{})

	var perr *janus.ProtocolError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 0, f.rooms.Len())
	assert.Empty(t, f.rooms.ConnectionRooms(f.host.ID()))
	f.store.AssertNotCalled(t, "DecrementLivestreamQuota", mock.Anything)
	f.store.AssertNotCalled(t, "CreateLivestreamRoom", mock.Anything)
	assert.Equal(t, 1, f.gw.count("destroy"), "the half-open gateway session is released")
	assert.Zero(t, f.gw.count("message:join"))
}

func TestCreateRoom_GatewayErrorIsReportedAsJanusError(t *testing.T) {
	f := newFixture(t)
	f.allowHost(3)
	f.gw.failOn("message:create", &janus.ProtocolError{Code: 427, Reason: "Room already exists"})

	f.dispatch(f.host, models.MethodHostCreateRoom, models.HostCreateRoomPayload{})

	last := f.host.Last()
	assert.Equal(t, models.EventJanusError, last.Name)
	assert.Equal(t, "Room already exists", last.Data.(models.ErrorData).Message)
	assert.False(t, f.host.isClosed(), "gateway failures do not abort the connection")
}

func TestCreateRoom_PublisherJoinFailureDestroysGatewayRoom(t *testing.T) {
	f := newFixture(t)
	f.allowHost(3)
	f.gw.failOn("message:join", janus.ErrGatewayTimeout)

	err := f.svc.CreateRoom(context.Background(), f.host, models.HostCreateRoomPayload{})

	assert.ErrorIs(t, err, janus.ErrGatewayTimeout)
	assert.Equal(t, 1, f.gw.count("message:destroy"))
	assert.Equal(t, 0, f.rooms.Len())
	f.store.AssertNotCalled(t, "DecrementLivestreamQuota", mock.Anything)
}

func TestCreateRoom_UnauthorizedStaffMakesNoGatewayCalls(t *testing.T) {
	f := newFixture(t)
	f.store.On("GetClinicByID", clinicID).Return(&models.Clinic{ID: clinicID, AdditionLivestreams: 3}, nil)
	f.store.On("GetStaffRole", hostUserID, clinicID).Return("Doctor", nil)

	f.dispatch(f.host, models.MethodHostCreateRoom, models.HostCreateRoomPayload{})

	assert.Empty(t, f.gw.Calls())
	assert.Equal(t, models.EventSystemError, f.host.Last().Name)
	assert.True(t, f.host.isClosed())
	assert.Equal(t, 0, f.rooms.Len())
}

func TestCreateRoom_StaffNotAtClinic(t *testing.T) {
	f := newFixture(t)
	f.store.On("GetClinicByID", clinicID).Return(&models.Clinic{ID: clinicID, AdditionLivestreams: 3}, nil)
	f.store.On("GetStaffRole", hostUserID, clinicID).Return("", storage.ErrNotFound)

	err := f.svc.CreateRoom(context.Background(), f.host, models.HostCreateRoomPayload{})

	assert.ErrorIs(t, err, livestream.ErrUnauthorized)
	assert.Empty(t, f.gw.Calls())
}

func TestCreateRoom_QuotaExceeded(t *testing.T) {
	f := newFixture(t)
	f.allowHost(0)

	f.dispatch(f.host, models.MethodHostCreateRoom, models.HostCreateRoomPayload{})

	assert.Empty(t, f.gw.Calls())
	last := f.host.Last()
	assert.Equal(t, models.EventSystemError, last.Name)
	assert.Equal(t, livestream.ErrQuotaExceeded.Error(), last.Data.(models.ErrorData).Message)
	assert.True(t, f.host.isClosed())
}

func TestCreateRoom_MissingIdentityAbortsConnection(t *testing.T) {
	f := newFixture(t)
	anonymous := newFakeClient("anon", "", "")

	f.dispatch(anonymous, models.MethodHostCreateRoom, models.HostCreateRoomPayload{})

	assert.True(t, anonymous.isClosed())
	assert.Empty(t, f.gw.Calls())
}

func TestCreateRoom_EveryShowGetsAFreshGUID(t *testing.T) {
	f := newFixture(t)
	f.allowHost(2)
	f.store.On("CreateLivestreamRoom", mock.Anything).Return(nil)
	f.store.On("DecrementLivestreamQuota", clinicID).Return(nil)

	require.NoError(t, f.svc.CreateRoom(context.Background(), f.host, models.HostCreateRoomPayload{Name: "first"}))
	first := f.host.Last().Data.(models.RoomCreatedData).RoomGUID
	require.NoError(t, f.svc.CreateRoom(context.Background(), f.host, models.HostCreateRoomPayload{Name: "second"}))
	second := f.host.Last().Data.(models.RoomCreatedData).RoomGUID

	assert.NoError(t, uuid.Validate(first))
	assert.NoError(t, uuid.Validate(second))
	assert.NotEqual(t, first, second)
	assert.Equal(t, 2, f.rooms.Len())
}

func TestCreateRoom_IgnoresClientRoomGUID(t *testing.T) {
	f := newFixture(t)
	f.createRoom(t)
	ended := f.guid
	f.store.On("CreateLivestreamRoom", mock.Anything).Return(nil)
	f.store.On("DecrementLivestreamQuota", clinicID).Return(nil)
	f.expectEndPersistence(0)
	require.NoError(t, f.svc.EndLivestream(context.Background(), f.host, ended))

	for _, sent := range []string{ended, "not-a-uuid"} {
		f.svc.Dispatch(f.host, models.ClientRequest{
			Method:  models.MethodHostCreateRoom,
			Payload: json.RawMessage(`{"roomGuid":"` + sent + `","name":"again"}`),
		})

		last := f.host.Last()
		require.Equal(t, models.EventRoomCreatedAndJoined, last.Name)
		guid := last.Data.(models.RoomCreatedData).RoomGUID
		assert.NotEqual(t, sent, guid)
		assert.NoError(t, uuid.Validate(guid))
	}
	_, live := f.rooms.Get(ended)
	assert.False(t, live)
	f.store.AssertNotCalled(t, "CreateLivestreamRoom", mock.MatchedBy(func(r *models.LivestreamRoom) bool {
		return r.ID == ended || r.ID == "not-a-uuid"
	}))
}

func TestCreateRoom_PersistenceFailureKeepsRoomLive(t *testing.T) {
	f := newFixture(t)
	f.allowHost(3)
	f.store.On("CreateLivestreamRoom", mock.Anything).Return(errors.New("db down"))
	f.store.On("DecrementLivestreamQuota", clinicID).Return(nil)

	err := f.svc.CreateRoom(context.Background(), f.host, models.HostCreateRoomPayload{})

	require.NoError(t, err)
	_, live := f.rooms.Get(f.host.Last().Data.(models.RoomCreatedData).RoomGUID)
	assert.True(t, live)
}

func TestJoinAsListener_UnknownRoom(t *testing.T) {
	f := newFixture(t)
	viewer := newFakeClient("v", "viewer", "")

	err := f.svc.JoinAsListener(context.Background(), viewer, "missing")

	assert.ErrorIs(t, err, livestream.ErrRoomNotFound)
	assert.Empty(t, f.gw.Calls())
}

func TestJoinAsListener_GatewayFailureDoesNotAddListener(t *testing.T) {
	f := newFixture(t)
	f.createRoom(t)
	f.gw.failOn("message:join", &janus.ProtocolError{Code: 428, Reason: "No such feed"})
	viewer := newFakeClient("v", "viewer", "")

	f.dispatch(viewer, models.MethodJoinAsListener, models.RoomPayload{RoomGUID: f.guid})

	assert.Equal(t, models.EventJanusError, viewer.Last().Name)
	assert.Equal(t, 0, f.rooms.ListenerCount(f.guid))
	assert.Empty(t, f.rooms.ConnectionRooms("v"))
	assert.Equal(t, 1, f.gw.count("destroy"), "the listener's gateway session is released")
	assert.Empty(t, f.host.counts(), "no viewer count broadcast without a join")
}

func TestJoinAsListener_NoPublisher(t *testing.T) {
	f := newFixture(t)
	f.createRoom(t)
	f.gw.noPublisher = true
	viewer := newFakeClient("v", "viewer", "")

	err := f.svc.JoinAsListener(context.Background(), viewer, f.guid)

	assert.ErrorIs(t, err, livestream.ErrNoPublisher)
	assert.Equal(t, 0, f.rooms.ListenerCount(f.guid))
}

func TestJoinAsListener_SecondJoinFromSameConnectionIsRejected(t *testing.T) {
	f := newFixture(t)
	f.createRoom(t)
	viewer := newFakeClient("v", "viewer", "")
	f.dispatch(viewer, models.MethodJoinAsListener, models.RoomPayload{RoomGUID: f.guid})
	sessions := f.gw.count("create")

	f.dispatch(viewer, models.MethodJoinAsListener, models.RoomPayload{RoomGUID: f.guid})

	assert.Equal(t, models.EventSystemError, viewer.Last().Name)
	assert.False(t, viewer.isClosed())
	assert.Equal(t, sessions, f.gw.count("create"), "no second gateway session")
	assert.Zero(t, f.gw.count("destroy"))
	assert.Len(t, viewer.Named(models.EventJoinRoomResponse), 1)
	assert.Equal(t, []int{1}, f.host.counts())

	saved := f.expectEndPersistence(0)
	require.NoError(t, f.svc.EndLivestream(context.Background(), f.host, f.guid))
	assert.Equal(t, 1, saved.JoinCount)
}

func TestJoinAsListener_RoomEndedDuringHandshake(t *testing.T) {
	f := newFixture(t)
	f.createRoom(t)
	f.expectEndPersistence(0)
	viewer := newFakeClient("v", "viewer", "")
	f.gw.beforeSubscribed = func() {
		require.NoError(t, f.svc.EndLivestream(context.Background(), f.host, f.guid))
	}

	err := f.svc.JoinAsListener(context.Background(), viewer, f.guid)

	assert.ErrorIs(t, err, livestream.ErrRoomNotFound)
	assert.Empty(t, viewer.Named(models.EventJoinRoomResponse))
	assert.Empty(t, f.hub.Members(livehub.ListenerGroup(f.guid)), "no stale audience left behind")
	assert.Empty(t, f.rooms.ConnectionRooms(viewer.ID()))
	assert.Equal(t, 2, f.gw.count("destroy"), "host and listener gateway sessions released")
	assert.Empty(t, f.host.counts())
}

func TestStartPublishAndAnswer(t *testing.T) {
	f := newFixture(t)
	f.createRoom(t)

	f.dispatch(f.host, models.MethodStartPublish, models.StartPublishPayload{RoomGUID: f.guid, JSEP: models.JSEP{Type: "offer", SDP: "host-offer"}})

	started := f.host.Last()
	require.Equal(t, models.EventPublishStarted, started.Name)
	assert.Equal(t, "answer-for-host-offer", started.Data.(models.PublishStartedData).JSEP.SDP)

	viewer := newFakeClient("v", "viewer", "")
	f.dispatch(viewer, models.MethodSendAnswerToJanus, models.SendAnswerPayload{JanusRoomID: 1, SessionID: 2, HandleID: 3, SDP: "answer"})
	assert.Equal(t, models.EventAnswerAccepted, viewer.Last().Name)
	assert.Equal(t, 1, f.gw.count("message:start"))
}

func TestStartPublish_UnknownRoom(t *testing.T) {
	f := newFixture(t)

	err := f.svc.StartPublish(context.Background(), f.host, "missing", models.JSEP{SDP: "x"})

	assert.ErrorIs(t, err, livestream.ErrRoomNotFound)
}

func TestKeepAlive_FailureIsSwallowed(t *testing.T) {
	f := newFixture(t)
	f.gw.failOn("keepalive", janus.ErrGatewayUnreachable)
	c := newFakeClient("c", "u", "")

	f.dispatch(c, models.MethodKeepAlive, models.KeepAlivePayload{SessionID: 5})

	assert.Empty(t, c.Events())
	assert.Equal(t, 1, f.gw.count("keepalive"))
}

func TestEndLivestream_OnlyHost(t *testing.T) {
	f := newFixture(t)
	f.createRoom(t)
	viewer := newFakeClient("v", "viewer", "")
	f.dispatch(viewer, models.MethodJoinAsListener, models.RoomPayload{RoomGUID: f.guid})

	err := f.svc.EndLivestream(context.Background(), viewer, f.guid)

	assert.ErrorIs(t, err, livestream.ErrUnauthorized)
	_, live := f.rooms.Get(f.guid)
	assert.True(t, live)
	assert.Zero(t, f.gw.count("message:destroy"))
}

func TestEndLivestream_GatewayFailureKeepsStateForRetry(t *testing.T) {
	f := newFixture(t)
	f.createRoom(t)
	f.gw.failOn("message:destroy", &janus.ProtocolError{Code: 500, Reason: "boom"})

	f.dispatch(f.host, models.MethodEndLivestream, models.RoomPayload{RoomGUID: f.guid})

	assert.Equal(t, models.EventJanusError, f.host.Last().Name)
	_, live := f.rooms.Get(f.guid)
	assert.True(t, live)
	f.store.AssertNotCalled(t, "SaveLivestreamDetail", mock.Anything)

	f.gw.clearFailures()
	f.expectEndPersistence(0)
	require.NoError(t, f.svc.EndLivestream(context.Background(), f.host, f.guid))
	f.store.AssertNumberOfCalls(t, "SaveLivestreamDetail", 1)
}

func TestDisconnect_HostDoesNotEndRoom(t *testing.T) {
	f := newFixture(t)
	f.createRoom(t)

	f.svc.Disconnect(f.host)

	_, live := f.rooms.Get(f.guid)
	assert.True(t, live)
	assert.Zero(t, f.gw.count("message:destroy"))
	f.store.AssertNotCalled(t, "SaveLivestreamDetail", mock.Anything)
}

func TestSendMessageAndReaction_ReachBothAudiences(t *testing.T) {
	f := newFixture(t)
	f.createRoom(t)
	viewer := newFakeClient("v", "viewer", "")
	f.dispatch(viewer, models.MethodJoinAsListener, models.RoomPayload{RoomGUID: f.guid})

	f.dispatch(viewer, models.MethodSendMessage, models.SendMessagePayload{RoomGUID: f.guid, Message: " hello "})
	f.dispatch(viewer, models.MethodSendReaction, models.SendReactionPayload{RoomGUID: f.guid, ReactionID: 2})

	for _, c := range []*fakeClient{f.host, viewer} {
		msgs := c.Named(models.EventReceiveMessage)
		require.Len(t, msgs, 1)
		assert.Equal(t, "hello", msgs[0].Data.(models.ChatMessageData).Message)
		assert.Equal(t, "viewer", msgs[0].Data.(models.ChatMessageData).UserID)

		reactions := c.Named(models.EventReceiveReaction)
		require.Len(t, reactions, 1)
		assert.Equal(t, 2, reactions[0].Data.(models.ReactionData).ReactionID)
		assert.Equal(t, "viewer", reactions[0].Data.(models.ReactionData).UserID)
	}

	saved := f.expectEndPersistence(0)
	require.NoError(t, f.svc.EndLivestream(context.Background(), f.host, f.guid))
	assert.Equal(t, 1, saved.JoinCount)
	assert.Equal(t, 1, saved.MessageCount)
	assert.Equal(t, 1, saved.ReactionCount)
	assert.Equal(t, 3, saved.TotalActivities)
}

func TestSendReaction_Validation(t *testing.T) {
	f := newFixture(t)
	f.createRoom(t)
	viewer := newFakeClient("v", "viewer", "")

	assert.ErrorIs(t, f.svc.SendReaction(viewer, f.guid, 9), livestream.ErrInvalidRequest)
	assert.ErrorIs(t, f.svc.SendReaction(viewer, "missing", 1), livestream.ErrRoomNotFound)

	anonymous := newFakeClient("anon", "", "")
	f.dispatch(anonymous, models.MethodSendReaction, models.SendReactionPayload{RoomGUID: f.guid, ReactionID: 1})
	assert.True(t, anonymous.isClosed())
}

func TestSendMessage_AfterEndIsRejected(t *testing.T) {
	f := newFixture(t)
	f.createRoom(t)
	f.expectEndPersistence(0)
	require.NoError(t, f.svc.EndLivestream(context.Background(), f.host, f.guid))

	err := f.svc.SendMessage(newFakeClient("v", "viewer", ""), f.guid, "hi")

	assert.ErrorIs(t, err, livestream.ErrRoomNotFound)
}

func TestDisplayService(t *testing.T) {
	f := newFixture(t)
	f.createRoom(t)
	viewer := newFakeClient("v", "viewer", "")
	f.dispatch(viewer, models.MethodJoinAsListener, models.RoomPayload{RoomGUID: f.guid})

	f.store.On("GetServiceByID", "svc-1").Return(&models.Service{
		ID:       "svc-1",
		Name:     "Peel",
		MinPrice: 10,
		MaxPrice: 20,
		Category: &models.Category{Name: "Skin"},
		Medias:   []models.ServiceMedia{{ImageURL: "a.png"}, {ImageURL: "b.png"}},
	}, nil)
	f.store.On("GetActivePromotion", "svc-1", f.guid).Return(&models.Promotion{DiscountPercent: 15}, nil)

	f.dispatch(f.host, models.MethodDisplayService, models.DisplayServicePayload{ServiceID: "svc-1", RoomGUID: f.guid, IsDisplay: true})

	for _, c := range []*fakeClient{f.host, viewer} {
		shown := c.Named(models.EventDisplayService)
		require.Len(t, shown, 1)
		data := shown[0].Data.(models.ServiceDisplayData)
		assert.True(t, data.IsDisplay)
		require.NotNil(t, data.Service)
		assert.Equal(t, []string{"a.png", "b.png"}, data.Service.Images)
		assert.Equal(t, 15.0, data.Service.DiscountPercent)
		assert.Equal(t, "Skin", data.Service.Category.Name)
	}

	f.dispatch(f.host, models.MethodDisplayService, models.DisplayServicePayload{ServiceID: "svc-1", RoomGUID: f.guid, IsDisplay: false})
	hidden := viewer.Named(models.EventDisplayService)
	require.Len(t, hidden, 2)
	assert.Nil(t, hidden[1].Data.(models.ServiceDisplayData).Service)
}

func TestDisplayService_UnknownService(t *testing.T) {
	f := newFixture(t)
	f.createRoom(t)
	f.store.On("GetServiceByID", "nope").Return(nil, storage.ErrNotFound)

	f.dispatch(f.host, models.MethodDisplayService, models.DisplayServicePayload{ServiceID: "nope", RoomGUID: f.guid, IsDisplay: true})

	last := f.host.Last()
	assert.Equal(t, models.EventSystemError, last.Name)
	assert.Equal(t, livestream.ErrServiceNotFound.Error(), last.Data.(models.ErrorData).Message)
}

func TestSetPromotionService(t *testing.T) {
	f := newFixture(t)
	f.createRoom(t)
	f.store.On("GetServiceByID", "svc-1").Return(&models.Service{ID: "svc-1", Name: "Peel"}, nil)
	f.store.On("ReplaceActivePromotion", mock.MatchedBy(func(p *models.Promotion) bool {
		return p.ServiceID == "svc-1" && p.LivestreamRoomID == f.guid && p.DiscountPercent == 30
	})).Return(nil).Once()

	f.dispatch(f.host, models.MethodSetPromotionService, models.SetPromotionPayload{ServiceID: "svc-1", RoomGUID: f.guid, DiscountPercent: 30})

	updates := f.host.Named(models.EventUpdateServicePromotion)
	require.Len(t, updates, 1)
	assert.Equal(t, 30.0, updates[0].Data.(models.PromotionData).DiscountLivePercent)
	f.store.AssertExpectations(t)

	assert.ErrorIs(t, f.svc.SetPromotionService(f.host, "svc-1", f.guid, 0), livestream.ErrInvalidRequest)
}

func TestDispatch_RecoversFromPanic(t *testing.T) {
	f := newFixture(t)
	f.allowHost(3)
	f.gw.panicOn = "create"

	f.dispatch(f.host, models.MethodHostCreateRoom, models.HostCreateRoomPayload{})

	last := f.host.Last()
	assert.Equal(t, models.EventJanusError, last.Name)
	assert.Equal(t, "Internal server error", last.Data.(models.ErrorData).Message)
	assert.False(t, f.host.isClosed())
}

func TestDispatch_UnknownMethodAndBadPayload(t *testing.T) {
	f := newFixture(t)
	c := newFakeClient("c", "u", "")

	f.svc.Dispatch(c, models.ClientRequest{Method: "Teleport"})
	assert.Equal(t, models.EventSystemError, c.Last().Name)

	f.svc.Dispatch(c, models.ClientRequest{Method: models.MethodSendReaction, Payload: json.RawMessage(`{"reactionId":"many"}`)})
	assert.Equal(t, models.EventSystemError, c.Last().Name)
	assert.False(t, c.isClosed())
}
