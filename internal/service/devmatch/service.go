package devmatch

import (
	"context"
	"strings"
	"time"

	"google.golang.org/grpc/metadata"

	"github.com/oggyb/devmatch/internal/account"
	"github.com/oggyb/devmatch/internal/activity"
	"github.com/oggyb/devmatch/internal/app"
	svcErr "github.com/oggyb/devmatch/internal/errors"
	"github.com/oggyb/devmatch/internal/notify"
	"github.com/oggyb/devmatch/internal/privacy"
	"github.com/oggyb/devmatch/internal/profile"
	"github.com/oggyb/devmatch/internal/report"
	"github.com/oggyb/devmatch/internal/session"
)

// Service implements the DevMatch gRPC API on top of the services held by
// AppContext. Each exported method is one RPC of ServiceDesc.
type Service struct {
	appCtx *app.AppContext
	// requireAuth makes every user-scoped call present the login token.
	requireAuth bool
}

func NewService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx:      appCtx,
		requireAuth: appCtx.Config != nil && appCtx.Config.Auth.Required,
	}
}

func (*Service) devmatchServer() {}

// authorize checks the "authorization" metadata against the token stored at
// login when auth is required. "Bearer " prefixes are accepted.
func (s *Service) authorize(ctx context.Context, userID string) error {
	if !s.requireAuth {
		return nil
	}
	md, _ := metadata.FromIncomingContext(ctx)
	vals := md.Get("authorization")
	if len(vals) == 0 {
		return svcErr.Unauthenticated("missing authorization token")
	}
	token := strings.TrimSpace(strings.TrimPrefix(vals[0], "Bearer "))
	return svcErr.Map(s.appCtx.Accounts.Validate(ctx, strings.TrimSpace(userID), token))
}

//
// Deck
//

// LoadDeck tops up the caller's deck and returns it.
func (s *Service) LoadDeck(ctx context.Context, req *userRequest) (deckView, error) {
	s.appCtx.Logger.Debug("LoadDeck called", "user", req.UserID)

	sess, err := s.appCtx.Sessions.Get(req.UserID)
	if err != nil {
		return deckView{}, err
	}
	added, err := sess.LoadDeck(ctx)
	if err != nil {
		return deckView{}, err
	}
	v := deckOf(sess)
	v.Added = len(added)
	return v, nil
}

// Like records interest in the candidate on top of the caller's deck.
//
// Behavior:
//   - candidate_id must be the current candidate, anything else is a no-op
//     (applied=false).
//   - A mutual like returns the connected match and mutual=true.
func (s *Service) Like(ctx context.Context, req *decisionRequest) (decisionView, error) {
	return s.decide(ctx, req, true)
}

// Pass records a pass on the candidate on top of the caller's deck.
func (s *Service) Pass(ctx context.Context, req *decisionRequest) (decisionView, error) {
	return s.decide(ctx, req, false)
}

func (s *Service) decide(ctx context.Context, req *decisionRequest, liked bool) (decisionView, error) {
	s.appCtx.Logger.Debug("decision called", "user", req.UserID, "candidate", req.CandidateID, "liked", liked)

	sess, err := s.appCtx.Sessions.Get(req.UserID)
	if err != nil {
		return decisionView{}, err
	}
	var out session.Outcome
	if liked {
		out, err = sess.Like(ctx, req.CandidateID)
	} else {
		out, err = sess.Pass(ctx, req.CandidateID)
	}
	if err != nil {
		return decisionView{}, err
	}

	v := decisionView{Applied: out.Applied, Mutual: out.Mutual, State: sess.State()}
	if out.Match != nil {
		m := toMatch(sess.UserID(), *out.Match)
		v.Match = &m
	}
	if cur, ok := sess.Current(); ok {
		p := toProfile(cur)
		v.Current = &p
	}
	return v, nil
}

// AcceptMatch connects a pending match; unknown matches come back empty.
func (s *Service) AcceptMatch(ctx context.Context, req *matchRequest) (matchResultView, error) {
	sess, err := s.appCtx.Sessions.Get(req.UserID)
	if err != nil {
		return matchResultView{}, err
	}
	m, err := sess.AcceptMatch(ctx, req.MatchID)
	if err != nil || m == nil {
		return matchResultView{}, err
	}
	mv := toMatch(sess.UserID(), *m)
	return matchResultView{Match: &mv}, nil
}

// RejectMatch turns down a pending match; connected matches stay connected.
func (s *Service) RejectMatch(ctx context.Context, req *matchRequest) (matchResultView, error) {
	sess, err := s.appCtx.Sessions.Get(req.UserID)
	if err != nil {
		return matchResultView{}, err
	}
	m, err := sess.RejectMatch(ctx, req.MatchID)
	if err != nil || m == nil {
		return matchResultView{}, err
	}
	mv := toMatch(sess.UserID(), *m)
	return matchResultView{Match: &mv}, nil
}

func (s *Service) ListMatches(ctx context.Context, req *userRequest) (matchesView, error) {
	sess, err := s.appCtx.Sessions.Get(req.UserID)
	if err != nil {
		return matchesView{}, err
	}
	matches, err := sess.Matches(ctx)
	if err != nil {
		return matchesView{}, err
	}
	v := matchesView{Matches: make([]matchView, 0, len(matches))}
	for _, m := range matches {
		v.Matches = append(v.Matches, toMatch(sess.UserID(), m))
	}
	return v, nil
}

func (s *Service) Stats(ctx context.Context, req *userRequest) (statsView, error) {
	sess, err := s.appCtx.Sessions.Get(req.UserID)
	if err != nil {
		return statsView{}, err
	}
	st, err := sess.Stats(ctx)
	if err != nil {
		return statsView{}, err
	}
	return statsView{LikesSent: st.LikesSent, LikesReceived: st.LikesReceived, TotalMatches: st.TotalMatches}, nil
}

// ListLikers returns who liked the caller, newest first, minus anyone the
// caller passed on.
func (s *Service) ListLikers(ctx context.Context, req *pageRequest) (likersView, error) {
	swipes, next, err := s.appCtx.Ledger.Likers(ctx, strings.TrimSpace(req.UserID), req.PageToken, req.Limit)
	if err != nil {
		return likersView{}, err
	}
	v := likersView{Likers: make([]likerView, 0, len(swipes)), NextPageToken: next}
	for _, sw := range swipes {
		v.Likers = append(v.Likers, likerView{UserID: sw.SwiperID, LikedAt: sw.UpdatedAt})
	}
	return v, nil
}

func deckOf(sess *session.Session) deckView {
	v := deckView{State: sess.State(), Deck: toProfiles(sess.Deck()), Error: sess.LastError()}
	if cur, ok := sess.Current(); ok {
		p := toProfile(cur)
		v.Current = &p
	}
	return v
}

//
// Notifications
//

// ListNotifications pages through the persistent list, newest first.
func (s *Service) ListNotifications(ctx context.Context, req *pageRequest) (notificationsView, error) {
	center := s.appCtx.Notifications
	list, next, err := center.List(ctx, req.UserID, req.PageToken, req.Limit)
	if err != nil {
		return notificationsView{}, err
	}
	unread, err := center.UnreadCount(ctx, req.UserID)
	if err != nil {
		return notificationsView{}, err
	}
	v := notificationsView{
		Notifications: make([]notificationView, 0, len(list)),
		NextPageToken: next,
		Unread:        unread,
	}
	for _, n := range list {
		v.Notifications = append(v.Notifications, toNotification(n))
	}
	return v, nil
}

func (s *Service) MarkNotificationRead(ctx context.Context, req *notificationRequest) (updatedView, error) {
	ok, err := s.appCtx.Notifications.MarkRead(ctx, req.UserID, req.NotificationID)
	if err != nil {
		return updatedView{}, err
	}
	if !ok {
		return updatedView{}, nil
	}
	return updatedView{Updated: 1}, nil
}

func (s *Service) MarkAllNotificationsRead(ctx context.Context, req *userRequest) (updatedView, error) {
	n, err := s.appCtx.Notifications.MarkAllRead(ctx, req.UserID)
	return updatedView{Updated: n}, err
}

func (s *Service) RemoveNotification(ctx context.Context, req *notificationRequest) (updatedView, error) {
	ok, err := s.appCtx.Notifications.Remove(ctx, req.UserID, req.NotificationID)
	if err != nil || !ok {
		return updatedView{}, err
	}
	return updatedView{Updated: 1}, nil
}

func (s *Service) ClearNotifications(ctx context.Context, req *userRequest) (emptyView, error) {
	return emptyView{}, s.appCtx.Notifications.Clear(ctx, req.UserID)
}

// DismissToast hides the toast on screen; the next one shows right away.
func (s *Service) DismissToast(_ context.Context, req *userRequest) (updatedView, error) {
	if !s.appCtx.Notifications.Sequencer(strings.TrimSpace(req.UserID)).DismissCurrent() {
		return updatedView{}, nil
	}
	return updatedView{Updated: 1}, nil
}

// ClearToasts drops the waiting toasts. The one on screen stays.
func (s *Service) ClearToasts(_ context.Context, req *userRequest) (updatedView, error) {
	n := s.appCtx.Notifications.Sequencer(strings.TrimSpace(req.UserID)).ClearQueue()
	return updatedView{Updated: int64(n)}, nil
}

// WatchToasts streams the caller's toast transitions until the client goes away.
func (s *Service) WatchToasts(ctx context.Context, req *userRequest, send func(toastView) error) error {
	seq := s.appCtx.Notifications.Sequencer(strings.TrimSpace(req.UserID))
	events, cancel := seq.Subscribe()
	defer cancel()

	// the toast already on screen, if any
	if cur, ok := seq.Current(); ok {
		if err := send(toToast(notify.Event{Item: cur, State: notify.StateDisplayed, At: time.Now().UTC()})); err != nil {
			return err
		}
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := send(toToast(ev)); err != nil {
				return err
			}
		}
	}
}

//
// Privacy
//

func (s *Service) Mute(ctx context.Context, req *privacyRequest) (privacyView, error) {
	return privacyResult(s.appCtx.Privacy.Mute(ctx, req.UserID, req.TargetID, req.TargetName))
}

func (s *Service) Unmute(ctx context.Context, req *privacyRequest) (privacyView, error) {
	return privacyResult(s.appCtx.Privacy.Unmute(ctx, req.UserID, req.TargetID, req.TargetName))
}

func (s *Service) Block(ctx context.Context, req *privacyRequest) (privacyView, error) {
	return privacyResult(s.appCtx.Privacy.Block(ctx, req.UserID, req.TargetID, req.TargetName))
}

func (s *Service) Unblock(ctx context.Context, req *privacyRequest) (privacyView, error) {
	return privacyResult(s.appCtx.Privacy.Unblock(ctx, req.UserID, req.TargetID, req.TargetName))
}

func (s *Service) PrivacyLists(ctx context.Context, req *userRequest) (privacyListsView, error) {
	userID := strings.TrimSpace(req.UserID)
	muted, err := s.appCtx.Privacy.Muted(ctx, userID)
	if err != nil {
		return privacyListsView{}, err
	}
	blocked, err := s.appCtx.Privacy.Blocked(ctx, userID)
	if err != nil {
		return privacyListsView{}, err
	}
	v := privacyListsView{Muted: []string{}, Blocked: []string{}}
	v.Muted = append(v.Muted, muted...)
	v.Blocked = append(v.Blocked, blocked...)
	return v, nil
}

func (s *Service) PrivacyStatus(ctx context.Context, req *privacyTargetRequest) (privacyStatusView, error) {
	userID, target := strings.TrimSpace(req.UserID), strings.TrimSpace(req.TargetID)
	muted, err := s.appCtx.Privacy.IsMuted(ctx, userID, target)
	if err != nil {
		return privacyStatusView{}, err
	}
	blocked, err := s.appCtx.Privacy.IsBlocked(ctx, userID, target)
	if err != nil {
		return privacyStatusView{}, err
	}
	return privacyStatusView{Muted: muted, Blocked: blocked}, nil
}

func privacyResult(r privacy.Result, err error) (privacyView, error) {
	if err != nil {
		return privacyView{}, err
	}
	return privacyView{Changed: r.Changed, Message: r.Message}, nil
}

//
// Reports
//

func (s *Service) SubmitReport(ctx context.Context, req *reportRequest) (reportView, error) {
	r, err := s.appCtx.Reports.Submit(ctx, req.UserID, report.Form{
		Type:         req.Type,
		TargetID:     req.TargetID,
		Category:     req.Category,
		Subcategory:  req.Subcategory,
		Description:  req.Description,
		EvidenceSize: req.EvidenceSize,
		ContactInfo:  req.ContactInfo,
	})
	if err != nil {
		return reportView{}, err
	}
	return reportView{ReportID: r.ID, CreatedAt: r.CreatedAt}, nil
}

// ReportHistory lists the caller's own reports, newest first.
func (s *Service) ReportHistory(ctx context.Context, req *userRequest) (reportsView, error) {
	list, err := s.appCtx.Reports.History(ctx, strings.TrimSpace(req.UserID))
	if err != nil {
		return reportsView{}, err
	}
	v := reportsView{Reports: make([]reportDetailView, 0, len(list))}
	for _, r := range list {
		v.Reports = append(v.Reports, toReport(r))
	}
	return v, nil
}

func (s *Service) ReportCategories(_ context.Context, req *categoriesRequest) (categoriesView, error) {
	t := req.Type
	if t == "" {
		t = report.TypeUser
	}
	return categoriesView{Title: report.Title(t), Categories: report.Categories(t)}, nil
}

//
// Chat
//

func (s *Service) ListChats(ctx context.Context, req *userRequest) (chatsView, error) {
	threads, err := s.appCtx.Chat.ListThreads(ctx, strings.TrimSpace(req.UserID))
	if err != nil {
		return chatsView{}, err
	}
	v := chatsView{Chats: make([]chatView, 0, len(threads))}
	for _, t := range threads {
		v.Chats = append(v.Chats, toChat(t))
	}
	return v, nil
}

// ListMessages pages through a chat, newest first, and marks the page read.
func (s *Service) ListMessages(ctx context.Context, req *messagesRequest) (messagesView, error) {
	userID := strings.TrimSpace(req.UserID)
	msgs, next, err := s.appCtx.Chat.ListMessages(ctx, req.ChatID, userID, req.PageToken, req.Limit)
	if err != nil {
		return messagesView{}, err
	}
	if _, err := s.appCtx.Chat.MarkRead(ctx, req.ChatID, userID); err != nil {
		s.appCtx.Logger.Warn("mark chat read failed", "chat", req.ChatID, "err", err)
	}
	v := messagesView{Messages: make([]messageView, 0, len(msgs)), NextPageToken: next}
	for _, m := range msgs {
		v.Messages = append(v.Messages, toMessage(m))
	}
	return v, nil
}

func (s *Service) SendMessage(ctx context.Context, req *sendRequest) (sentView, error) {
	m, err := s.appCtx.Chat.SendMessage(ctx, req.ChatID, strings.TrimSpace(req.UserID), req.Content)
	if err != nil {
		return sentView{}, err
	}
	return sentView{Message: toMessage(m)}, nil
}

//
// Activity
//

func (s *Service) ListActivity(ctx context.Context, req *activityRequest) (activityView, error) {
	userID := strings.TrimSpace(req.UserID)
	page, err := s.appCtx.Activity.List(ctx, userID, activity.Filter{
		Category: activity.Category(req.Category),
		Query:    req.Query,
	}, req.Page, req.PerPage)
	if err != nil {
		return activityView{}, err
	}
	cats, err := s.appCtx.Activity.Categories(ctx, userID)
	if err != nil {
		return activityView{}, err
	}
	entries := page.Entries
	if entries == nil {
		entries = []activity.Entry{}
	}
	if cats == nil {
		cats = []activity.Category{}
	}
	return activityView{
		Entries:    entries,
		Total:      page.Total,
		Page:       page.Page,
		PerPage:    page.PerPage,
		TotalPages: page.TotalPages,
		Categories: cats,
	}, nil
}

func (s *Service) ClearActivity(ctx context.Context, req *userRequest) (emptyView, error) {
	return emptyView{}, s.appCtx.Activity.Clear(ctx, strings.TrimSpace(req.UserID))
}

//
// Profile
//

func (s *Service) GetProfile(ctx context.Context, req *userRequest) (profileView, error) {
	p, err := s.appCtx.Profile.Get(ctx, req.UserID)
	if err != nil {
		return profileView{}, err
	}
	return toProfile(p), nil
}

func (s *Service) UpdateProfile(ctx context.Context, req *profileRequest) (profileView, error) {
	p, err := s.appCtx.Profile.Update(ctx, req.UserID, profile.Edit{
		Name:        req.Name,
		Location:    req.Location,
		Bio:         req.Bio,
		Skills:      req.Skills,
		GithubURL:   req.GithubURL,
		LinkedinURL: req.LinkedinURL,
	})
	if err != nil {
		return profileView{}, err
	}
	return toProfile(p), nil
}

//
// Account
//

// Register signs up a new developer and returns a logged-in session.
func (s *Service) Register(ctx context.Context, req *registerRequest) (loginView, error) {
	sess, err := s.appCtx.Accounts.Register(ctx, account.Registration{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
	})
	if err != nil {
		return loginView{}, err
	}
	return loginView{Token: sess.Token, User: toAccountUser(sess.User)}, nil
}

// CurrentUser returns the stored user while the login is live.
func (s *Service) CurrentUser(ctx context.Context, req *userRequest) (currentUserView, error) {
	u, found, err := s.appCtx.Accounts.CurrentUser(ctx, strings.TrimSpace(req.UserID))
	if err != nil || !found {
		return currentUserView{}, err
	}
	au := toAccountUser(u)
	return currentUserView{LoggedIn: true, User: &au}, nil
}

func (s *Service) Login(ctx context.Context, req *loginRequest) (loginView, error) {
	sess, err := s.appCtx.Accounts.Login(ctx, req.Email, req.Password, req.Remember)
	if err != nil {
		return loginView{}, err
	}
	return loginView{Token: sess.Token, User: toAccountUser(sess.User)}, nil
}

// Logout drops the stored token and the caller's deck.
func (s *Service) Logout(ctx context.Context, req *userRequest) (emptyView, error) {
	userID := strings.TrimSpace(req.UserID)
	if err := s.appCtx.Accounts.Logout(ctx, userID); err != nil {
		return emptyView{}, err
	}
	s.appCtx.Sessions.Drop(userID)
	return emptyView{}, nil
}
