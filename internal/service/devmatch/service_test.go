package devmatch_test

import (
	"context"
	"fmt"
	"io"
	"net"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/oggyb/devmatch/internal/app"
	"github.com/oggyb/devmatch/internal/cache"
	"github.com/oggyb/devmatch/internal/config"
	"github.com/oggyb/devmatch/internal/db"
	"github.com/oggyb/devmatch/internal/events"
	"github.com/oggyb/devmatch/internal/logger"
	"github.com/oggyb/devmatch/internal/notify"
	"github.com/oggyb/devmatch/internal/server"
	"github.com/oggyb/devmatch/internal/service/devmatch"
)

const me = db.CurrentUserID

//
// Test helpers
//

type harness struct {
	client *devmatch.Client
	conn   *grpc.ClientConn
	appCtx *app.AppContext
	events *events.Recorder
	srv    *grpc.Server
	reg    *devmatch.Registrar
}

// setup seeds the demo catalog into an in-memory SQLite DB, starts a
// miniredis and serves DevMatch over bufconn.
func setup(t *testing.T, requireAuth bool) *harness {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	database, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		NowFunc: func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	})
	require.NoError(t, err)
	sqlDB, err := database.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.Migrate(database))
	require.NoError(t, db.SeedTestData(database))

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	cfg := config.New()
	cfg.Redis.Addr = mr.Addr()
	cfg.Auth.Required = requireAuth
	cfg.Latency.Privacy, cfg.Latency.Report, cfg.Latency.Login = 0, 0, 0
	cfg.Notify.InfoDuration = time.Hour
	cfg.Notify.SuccessDuration = time.Hour
	cfg.Notify.WarningDuration = time.Hour
	cfg.Notify.ErrorDuration = time.Hour
	cfg.Notify.Gap = time.Millisecond

	rec := &events.Recorder{}
	appCtx := app.New(cfg, database, cache.NewRedisCache(cfg), rec, logger.Discard())
	t.Cleanup(appCtx.Close)

	lis := bufconn.Listen(1 << 20)
	reg := devmatch.NewRegistrar(appCtx)
	srv := server.NewGRPCServer(logger.Discard(), reg)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return &harness{client: devmatch.NewClient(conn), conn: conn, appCtx: appCtx, events: rec, srv: srv, reg: reg}
}

func (h *harness) call(t *testing.T, method string, in map[string]any) map[string]any {
	t.Helper()
	out, err := h.client.Call(context.Background(), method, in)
	require.NoError(t, err, method)
	return out
}

func currentID(resp map[string]any) string {
	cur, ok := resp["current"].(map[string]any)
	if !ok {
		return ""
	}
	return cur["id"].(string)
}

//
// Tests
//

func TestHealth(t *testing.T) {
	h := setup(t, false)
	resp, err := healthpb.NewHealthClient(h.conn).Check(context.Background(), &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}

// Like the two seeded likers, pass everyone else, until the deck runs out.
func TestSwipeThroughDeck(t *testing.T) {
	h := setup(t, false)

	deck := h.call(t, "LoadDeck", map[string]any{"user_id": me})
	assert.Equal(t, "ready", deck["state"])
	assert.Len(t, deck["deck"], 7)
	assert.Equal(t, float64(7), deck["added"])

	likers := map[string]bool{"2": true, "4": true}
	cur := currentID(deck)
	for steps := 0; cur != ""; steps++ {
		require.Less(t, steps, 7, "deck did not shrink")
		method := "Pass"
		if likers[cur] {
			method = "Like"
		}
		resp := h.call(t, method, map[string]any{"user_id": me, "candidate_id": cur})
		assert.Equal(t, true, resp["applied"])
		if method == "Like" {
			assert.Equal(t, true, resp["mutual"])
			match := resp["match"].(map[string]any)
			assert.Equal(t, true, match["is_connected"])
			assert.Equal(t, cur, match["other_user_id"])
		}
		cur = currentID(resp)
		if cur == "" {
			assert.Equal(t, "exhausted", resp["state"])
		}
	}

	matches := h.call(t, "ListMatches", map[string]any{"user_id": me})
	assert.Len(t, matches["matches"], 2)

	stats := h.call(t, "Stats", map[string]any{"user_id": me})
	assert.Equal(t, float64(2), stats["likes_sent"])
	assert.Equal(t, float64(2), stats["likes_received"])
	assert.Equal(t, float64(2), stats["total_matches"])

	chats := h.call(t, "ListChats", map[string]any{"user_id": me})
	assert.Len(t, chats["chats"], 2)

	notes := h.call(t, "ListNotifications", map[string]any{"user_id": me})
	list := notes["notifications"].([]any)
	require.Len(t, list, 2)
	assert.Equal(t, "🎉 New Match!", list[0].(map[string]any)["title"])
	assert.Equal(t, float64(2), notes["unread"])

	read := h.call(t, "MarkAllNotificationsRead", map[string]any{"user_id": me})
	assert.Equal(t, float64(2), read["updated"])

	assert.Equal(t, []string{
		events.MatchCreated, events.MatchConnected,
		events.MatchCreated, events.MatchConnected,
	}, h.events.Types())

	act := h.call(t, "ListActivity", map[string]any{"user_id": me, "category": "Matches", "per_page": 50})
	assert.Equal(t, float64(9), act["total"]) // 7 decisions + 2 matches
}

func TestDecision_NotCurrentCandidate(t *testing.T) {
	h := setup(t, false)
	deck := h.call(t, "LoadDeck", map[string]any{"user_id": me})
	cur := currentID(deck)

	other := "1"
	if cur == "1" {
		other = "2"
	}
	resp := h.call(t, "Like", map[string]any{"user_id": me, "candidate_id": other})
	assert.Equal(t, false, resp["applied"])
	assert.Equal(t, cur, currentID(resp))
}

func TestErrors(t *testing.T) {
	h := setup(t, false)
	ctx := context.Background()

	tests := []struct {
		name   string
		method string
		in     map[string]any
		code   codes.Code
	}{
		{"missing user", "LoadDeck", map[string]any{}, codes.InvalidArgument},
		{"blank candidate", "Like", map[string]any{"user_id": me, "candidate_id": " "}, codes.InvalidArgument},
		{"bad login", "Login", map[string]any{"email": "john.doe@example.com", "password": "nope"}, codes.Unauthenticated},
		{"bad email", "Login", map[string]any{"email": "john", "password": "x"}, codes.InvalidArgument},
		{"unknown chat", "SendMessage", map[string]any{"user_id": me, "chat_id": "missing", "content": "hi"}, codes.NotFound},
		{"bad page token", "ListLikers", map[string]any{"user_id": me, "page_token": "%%%"}, codes.InvalidArgument},
		{"mute self", "Mute", map[string]any{"user_id": me, "target_id": me}, codes.InvalidArgument},
		{"short report", "SubmitReport", map[string]any{
			"user_id": me, "type": "user", "target_id": "2",
			"category": "harassment", "subcategory": "threats", "description": "short",
		}, codes.InvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.client.Call(ctx, tt.method, tt.in)
			assert.Equal(t, tt.code, status.Code(err), "%v", err)
		})
	}
}

func TestListLikers(t *testing.T) {
	h := setup(t, false)

	first := h.call(t, "ListLikers", map[string]any{"user_id": me, "limit": 1})
	require.Len(t, first["likers"], 1)
	token, ok := first["next_page_token"].(string)
	require.True(t, ok)

	second := h.call(t, "ListLikers", map[string]any{"user_id": me, "limit": 1, "page_token": token})
	require.Len(t, second["likers"], 1)
	assert.Nil(t, second["next_page_token"])

	ids := []any{
		first["likers"].([]any)[0].(map[string]any)["user_id"],
		second["likers"].([]any)[0].(map[string]any)["user_id"],
	}
	assert.ElementsMatch(t, []any{"2", "4"}, ids)
}

func TestChatAndBlock(t *testing.T) {
	h := setup(t, false)
	ctx := context.Background()

	// connect with "2" directly through the registry, as an accepted match would
	match, _, err := h.appCtx.Registry.AddMatch(ctx, "2", me, false)
	require.NoError(t, err)
	accepted := h.call(t, "AcceptMatch", map[string]any{"user_id": me, "match_id": match.ID})
	require.NotNil(t, accepted["match"])

	chats := h.call(t, "ListChats", map[string]any{"user_id": me})
	require.Len(t, chats["chats"], 1)
	chatID := chats["chats"].([]any)[0].(map[string]any)["id"].(string)

	sent := h.call(t, "SendMessage", map[string]any{"user_id": me, "chat_id": chatID, "content": "  hello  "})
	assert.Equal(t, "hello", sent["message"].(map[string]any)["content"])

	msgs := h.call(t, "ListMessages", map[string]any{"user_id": "2", "chat_id": chatID})
	require.Len(t, msgs["messages"], 1)
	assert.Equal(t, me, msgs["messages"].([]any)[0].(map[string]any)["sender_id"])

	blocked := h.call(t, "Block", map[string]any{"user_id": "2", "target_id": me, "target_name": "John"})
	assert.Equal(t, true, blocked["changed"])
	assert.Equal(t, "John has been blocked", blocked["message"])

	_, err = h.client.Call(ctx, "SendMessage", map[string]any{"user_id": me, "chat_id": chatID, "content": "still there?"})
	assert.Equal(t, codes.PermissionDenied, status.Code(err))

	again := h.call(t, "Block", map[string]any{"user_id": "2", "target_id": me, "target_name": "John"})
	assert.Equal(t, false, again["changed"])
}

func TestReports(t *testing.T) {
	h := setup(t, false)

	cats := h.call(t, "ReportCategories", map[string]any{"type": "bug"})
	assert.Equal(t, "Report Bug", cats["title"])
	assert.Len(t, cats["categories"], 3)

	resp := h.call(t, "SubmitReport", map[string]any{
		"user_id":     me,
		"type":        "user",
		"target_id":   "3",
		"category":    "impersonation",
		"subcategory": "fake_profile",
		"description": "This profile uses someone else's photos.",
	})
	assert.NotEmpty(t, resp["report_id"])
	assert.Equal(t, []string{events.ReportSubmitted}, h.events.Types())
}

func TestLoginRequiredForUserCalls(t *testing.T) {
	h := setup(t, true)
	ctx := context.Background()

	_, err := h.client.Call(ctx, "Stats", map[string]any{"user_id": me})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	login := h.call(t, "Login", map[string]any{"email": "john.doe@example.com", "password": db.DemoPassword, "remember": true})
	token := login["token"].(string)
	assert.Equal(t, me, login["user"].(map[string]any)["id"])

	authed := metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token)
	_, err = h.client.Call(authed, "Stats", map[string]any{"user_id": me})
	require.NoError(t, err)

	// someone else's token does not open this account
	_, err = h.client.Call(authed, "Stats", map[string]any{"user_id": "1"})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	_, err = h.client.Call(authed, "Logout", map[string]any{"user_id": me})
	require.NoError(t, err)
	_, err = h.client.Call(authed, "Stats", map[string]any{"user_id": me})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestWatchToasts(t *testing.T) {
	h := setup(t, false)

	h.call(t, "Mute", map[string]any{"user_id": me, "target_id": "3", "target_name": "Carol"})
	seq := h.appCtx.Notifications.Sequencer(me)
	require.Eventually(t, func() bool {
		_, ok := seq.Current()
		return ok
	}, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	stream, err := h.client.WatchToasts(ctx, me)
	require.NoError(t, err)

	first, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, "User Muted", first["title"])
	assert.Equal(t, "displayed", first["state"])
	assert.Equal(t, "info", first["kind"])

	// a new match jumps the queue: the mute toast is discarded
	_, err = h.appCtx.Notifications.NotifyUrgent(ctx, me, notify.Note{
		Title: "🎉 New Match!", Message: "You and Carol have matched!", Kind: notify.KindSuccess,
	})
	require.NoError(t, err)

	var states []string
	for len(states) < 3 {
		ev, err := stream.Recv()
		require.NoError(t, err)
		states = append(states, fmt.Sprintf("%s:%s", ev["title"], ev["state"]))
	}
	assert.Equal(t, []string{
		"User Muted:discarded",
		"🎉 New Match!:queued",
		"🎉 New Match!:displayed",
	}, states)
}

func TestDrain_EndsToastStreams(t *testing.T) {
	h := setup(t, false)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	stream, err := h.client.WatchToasts(ctx, me)
	require.NoError(t, err)

	_, err = h.appCtx.Notifications.Info(ctx, me, "Hello", "there")
	require.NoError(t, err)
	_, err = stream.Recv()
	require.NoError(t, err)

	h.reg.Drain()
	assert.True(t, server.GracefulStop(h.srv, 2*time.Second), "no stream left open after drain")

	// buffered events may still arrive, then the stream ends cleanly
	for err == nil {
		_, err = stream.Recv()
	}
	assert.ErrorIs(t, err, io.EOF)
}

func TestRegister_NewProfileJoinsDecks(t *testing.T) {
	h := setup(t, true)
	ctx := context.Background()

	reg := h.call(t, "Register", map[string]any{
		"first_name": "Ada", "last_name": "Lovelace",
		"email": "ada@example.com", "password": "analytical",
	})
	token := reg["token"].(string)
	user := reg["user"].(map[string]any)
	id := user["id"].(string)
	assert.Equal(t, "Ada Lovelace", user["name"])

	_, err := h.client.Call(ctx, "Register", map[string]any{
		"first_name": "Ada", "last_name": "Again",
		"email": "ADA@example.com", "password": "analytical",
	})
	assert.Equal(t, codes.AlreadyExists, status.Code(err))

	authed := metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token)
	cur, err := h.client.Call(authed, "CurrentUser", map[string]any{"user_id": id})
	require.NoError(t, err)
	assert.Equal(t, true, cur["logged_in"])
	assert.Equal(t, "ada@example.com", cur["user"].(map[string]any)["email"])

	updated, err := h.client.Call(authed, "UpdateProfile", map[string]any{
		"user_id": id, "name": "Ada Lovelace", "location": "London",
		"skills": []any{"Go", " go ", "Math"},
	})
	require.NoError(t, err)
	assert.Equal(t, "London", updated["location"])
	assert.Equal(t, []any{"Go", "Math"}, updated["skills"])

	got, err := h.client.Call(authed, "GetProfile", map[string]any{"user_id": id})
	require.NoError(t, err)
	assert.Equal(t, "London", got["location"])

	login := h.call(t, "Login", map[string]any{"email": "john.doe@example.com", "password": db.DemoPassword})
	johnCtx := metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+login["token"].(string))
	deck, err := h.client.Call(johnCtx, "LoadDeck", map[string]any{"user_id": me})
	require.NoError(t, err)
	var ids []string
	for _, p := range deck["deck"].([]any) {
		ids = append(ids, p.(map[string]any)["id"].(string))
	}
	assert.Contains(t, ids, id)
}

func TestRejectMatch(t *testing.T) {
	h := setup(t, false)
	ctx := context.Background()

	deck := h.call(t, "LoadDeck", map[string]any{"user_id": me})
	require.Len(t, deck["deck"], 7)

	match, _, err := h.appCtx.Registry.AddMatch(ctx, "2", me, false)
	require.NoError(t, err)

	resp := h.call(t, "RejectMatch", map[string]any{"user_id": me, "match_id": match.ID})
	m := resp["match"].(map[string]any)
	assert.Equal(t, "rejected", m["status"])
	assert.NotEmpty(t, m["rejected_at"])

	// rejecting twice changes nothing, and the rejected user left the deck
	again := h.call(t, "RejectMatch", map[string]any{"user_id": me, "match_id": match.ID})
	assert.Equal(t, "rejected", again["match"].(map[string]any)["status"])
	deck = h.call(t, "LoadDeck", map[string]any{"user_id": me})
	assert.Len(t, deck["deck"], 6)

	matches := h.call(t, "ListMatches", map[string]any{"user_id": me})
	require.Len(t, matches["matches"], 1)
	assert.Equal(t, "rejected", matches["matches"].([]any)[0].(map[string]any)["status"])
}

func TestToastControls(t *testing.T) {
	h := setup(t, false)

	h.call(t, "Mute", map[string]any{"user_id": me, "target_id": "3", "target_name": "Carol"})
	h.call(t, "Mute", map[string]any{"user_id": me, "target_id": "5", "target_name": "Eve"})
	seq := h.appCtx.Notifications.Sequencer(me)
	require.Eventually(t, func() bool {
		_, ok := seq.Current()
		return ok
	}, time.Second, 5*time.Millisecond)

	cleared := h.call(t, "ClearToasts", map[string]any{"user_id": me})
	assert.Equal(t, float64(1), cleared["updated"])

	dismissed := h.call(t, "DismissToast", map[string]any{"user_id": me})
	assert.Equal(t, float64(1), dismissed["updated"])
	require.Eventually(t, func() bool {
		_, ok := seq.Current()
		return !ok
	}, time.Second, 5*time.Millisecond)

	none := h.call(t, "DismissToast", map[string]any{"user_id": me})
	assert.Equal(t, float64(0), none["updated"])
}

func TestRemoveAndClearNotifications(t *testing.T) {
	h := setup(t, false)
	ctx := context.Background()

	first, err := h.appCtx.Notifications.Info(ctx, me, "One", "first")
	require.NoError(t, err)
	_, err = h.appCtx.Notifications.Info(ctx, me, "Two", "second")
	require.NoError(t, err)

	removed := h.call(t, "RemoveNotification", map[string]any{"user_id": me, "notification_id": first.ID})
	assert.Equal(t, float64(1), removed["updated"])
	missing := h.call(t, "RemoveNotification", map[string]any{"user_id": me, "notification_id": first.ID})
	assert.Equal(t, float64(0), missing["updated"])

	notes := h.call(t, "ListNotifications", map[string]any{"user_id": me})
	require.Len(t, notes["notifications"], 1)

	h.call(t, "ClearNotifications", map[string]any{"user_id": me})
	notes = h.call(t, "ListNotifications", map[string]any{"user_id": me})
	assert.Empty(t, notes["notifications"])
}

func TestPrivacyListsAndStatus(t *testing.T) {
	h := setup(t, false)

	empty := h.call(t, "PrivacyLists", map[string]any{"user_id": me})
	assert.Equal(t, []any{}, empty["muted"])
	assert.Equal(t, []any{}, empty["blocked"])

	h.call(t, "Mute", map[string]any{"user_id": me, "target_id": "3", "target_name": "Carol"})
	h.call(t, "Block", map[string]any{"user_id": me, "target_id": "5", "target_name": "Eve"})

	lists := h.call(t, "PrivacyLists", map[string]any{"user_id": me})
	assert.Equal(t, []any{"3"}, lists["muted"])
	assert.Equal(t, []any{"5"}, lists["blocked"])

	carol := h.call(t, "PrivacyStatus", map[string]any{"user_id": me, "target_id": "3"})
	assert.Equal(t, true, carol["muted"])
	assert.Equal(t, false, carol["blocked"])

	eve := h.call(t, "PrivacyStatus", map[string]any{"user_id": me, "target_id": "5"})
	assert.Equal(t, false, eve["muted"])
	assert.Equal(t, true, eve["blocked"])
}

func TestReportHistoryAndClearActivity(t *testing.T) {
	h := setup(t, false)

	h.call(t, "SubmitReport", map[string]any{
		"user_id":     me,
		"type":        "user",
		"target_id":   "3",
		"category":    "impersonation",
		"subcategory": "fake_profile",
		"description": "This profile uses someone else's photos.",
	})
	hist := h.call(t, "ReportHistory", map[string]any{"user_id": me})
	reports := hist["reports"].([]any)
	require.Len(t, reports, 1)
	assert.Equal(t, "3", reports[0].(map[string]any)["target_id"])

	other := h.call(t, "ReportHistory", map[string]any{"user_id": "2"})
	assert.Equal(t, []any{}, other["reports"])

	act := h.call(t, "ListActivity", map[string]any{"user_id": me})
	assert.NotZero(t, act["total"])

	h.call(t, "ClearActivity", map[string]any{"user_id": me})
	act = h.call(t, "ListActivity", map[string]any{"user_id": me})
	assert.Equal(t, float64(0), act["total"])
}
