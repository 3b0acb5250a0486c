package membership

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/livequiz/internal/dependencies/mocks"
	"github.com/mcoot/livequiz/internal/model"
	"github.com/mcoot/livequiz/internal/storage/memory"
	"github.com/mcoot/livequiz/internal/testutil"
)

type recordingAdvancer struct {
	mu       sync.Mutex
	expected []time.Time
}

func (a *recordingAdvancer) Advance(ctx context.Context, code model.SessionCode, expected time.Time) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.expected = append(a.expected, expected)
	return nil
}

func (a *recordingAdvancer) Calls() []time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]time.Time(nil), a.expected...)
}

type ServiceSuite struct {
	suite.Suite
	storage  *memory.Storage
	clock    *mocks.MockClock
	advancer *recordingAdvancer
	service  *Service
	ctx      context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.storage = memory.New()
	s.clock = mocks.NewMockClock(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	s.advancer = &recordingAdvancer{}
	s.service = New(s.storage, s.advancer, s.clock, testutil.NopLogger(), 5*time.Minute)
	s.ctx = context.Background()

	settings := model.DefaultSettings(2)
	settings.MaxPlayers = 2
	session := &model.Session{
		Code:     "ABC123",
		HostID:   "host-1",
		Quiz:     model.QuizInfo{ID: "quiz-1", QuestionCount: 2},
		Settings: settings,
		Status:   model.SessionStatusLobby,
	}
	s.Require().NoError(s.storage.CreateSession(s.ctx, session, &model.Host{ID: "host-1", DisplayName: "Host"}))
}

func caller(id string) model.Caller {
	return model.Caller{ID: model.PlayerID(id), DisplayName: id, IsGuest: true}
}

func (s *ServiceSuite) setStatus(status model.SessionStatus) {
	session, err := s.storage.GetSession(s.ctx, "ABC123")
	s.Require().NoError(err)
	session.Status = status
	s.Require().NoError(s.storage.SaveSession(s.ctx, session))
}

// Join tests

func (s *ServiceSuite) TestJoinAddsPlayer() {
	_, err := s.service.Join(s.ctx, "ABC123", caller("alice"))
	s.Require().NoError(err)

	player, err := s.storage.GetPlayer(s.ctx, "ABC123", "alice")
	s.Require().NoError(err)
	s.Equal("alice", player.DisplayName)
	s.True(player.IsGuest)
	s.Equal(s.clock.Now(), player.JoinedAt)
}

func (s *ServiceSuite) TestLogsCarryComponent() {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	service := New(s.storage, s.advancer, s.clock, logger, 5*time.Minute)

	_, err := service.Join(s.ctx, "ABC123", caller("alice"))
	s.Require().NoError(err)

	s.Contains(buf.String(), "component=membership")
	s.Contains(buf.String(), `msg="member joined"`)
}

func (s *ServiceSuite) TestJoinAsHostGoesOnline() {
	_, err := s.service.Join(s.ctx, "ABC123", caller("host-1"))
	s.Require().NoError(err)

	host, err := s.storage.GetHost(s.ctx, "ABC123")
	s.Require().NoError(err)
	s.True(host.Online)

	count, _ := s.storage.CountPlayers(s.ctx, "ABC123")
	s.Equal(0, count)
}

func (s *ServiceSuite) TestJoinSessionNotFound() {
	_, err := s.service.Join(s.ctx, "NOPE00", caller("alice"))
	s.ErrorIs(err, model.ErrSessionNotFound)
}

func (s *ServiceSuite) TestJoinFullForNewPlayer() {
	_, err := s.service.Join(s.ctx, "ABC123", caller("alice"))
	s.Require().NoError(err)
	_, err = s.service.Join(s.ctx, "ABC123", caller("bob"))
	s.Require().NoError(err)

	_, err = s.service.Join(s.ctx, "ABC123", caller("carol"))
	s.ErrorIs(err, model.ErrSessionFull)

	// Members and the host still get in at capacity
	_, err = s.service.Join(s.ctx, "ABC123", caller("alice"))
	s.NoError(err)
	_, err = s.service.Join(s.ctx, "ABC123", caller("host-1"))
	s.NoError(err)
}

func (s *ServiceSuite) TestJoinAfterStart() {
	_, err := s.service.Join(s.ctx, "ABC123", caller("alice"))
	s.Require().NoError(err)
	s.setStatus(model.SessionStatusStarted)

	_, err = s.service.Join(s.ctx, "ABC123", caller("bob"))
	s.ErrorIs(err, model.ErrAlreadyStarted)

	_, err = s.service.Join(s.ctx, "ABC123", caller("alice"))
	s.NoError(err)
	_, err = s.service.Join(s.ctx, "ABC123", caller("host-1"))
	s.NoError(err)
}

func (s *ServiceSuite) TestJoinFullIsReportedBeforeAlreadyStarted() {
	_, _ = s.service.Join(s.ctx, "ABC123", caller("alice"))
	_, _ = s.service.Join(s.ctx, "ABC123", caller("bob"))
	s.setStatus(model.SessionStatusStarted)

	_, err := s.service.Join(s.ctx, "ABC123", caller("carol"))
	s.ErrorIs(err, model.ErrSessionFull)
}

// Kick and ban tests

func (s *ServiceSuite) TestKickRemovesAndBans() {
	_, _ = s.service.Join(s.ctx, "ABC123", caller("alice"))

	_, err := s.service.Kick(s.ctx, "ABC123", "host-1", "alice")
	s.Require().NoError(err)

	_, err = s.storage.GetPlayer(s.ctx, "ABC123", "alice")
	s.ErrorIs(err, model.ErrPlayerNotFound)

	ban, err := s.storage.GetBan(s.ctx, "ABC123", "alice")
	s.Require().NoError(err)
	s.Require().NotNil(ban)
	s.Equal(s.clock.Now(), ban.BannedAt)
}

func (s *ServiceSuite) TestBanWindowBoundary() {
	_, _ = s.service.Join(s.ctx, "ABC123", caller("alice"))
	_, err := s.service.Kick(s.ctx, "ABC123", "host-1", "alice")
	s.Require().NoError(err)

	s.clock.Advance(5 * time.Minute)
	_, err = s.service.Join(s.ctx, "ABC123", caller("alice"))
	s.ErrorIs(err, model.ErrBanned)

	s.clock.Advance(time.Millisecond)
	_, err = s.service.Join(s.ctx, "ABC123", caller("alice"))
	s.NoError(err)
}

func (s *ServiceSuite) TestBanCheckedBeforeCapacity() {
	_, _ = s.service.Join(s.ctx, "ABC123", caller("alice"))
	_, _ = s.service.Kick(s.ctx, "ABC123", "host-1", "alice")
	_, _ = s.service.Join(s.ctx, "ABC123", caller("bob"))
	_, _ = s.service.Join(s.ctx, "ABC123", caller("carol"))

	_, err := s.service.Join(s.ctx, "ABC123", caller("alice"))
	s.ErrorIs(err, model.ErrBanned)
}

func (s *ServiceSuite) TestKickRequiresHost() {
	_, _ = s.service.Join(s.ctx, "ABC123", caller("alice"))
	_, _ = s.service.Join(s.ctx, "ABC123", caller("bob"))

	_, err := s.service.Kick(s.ctx, "ABC123", "alice", "bob")
	s.ErrorIs(err, model.ErrNotHost)

	_, err = s.service.Kick(s.ctx, "ABC123", "host-1", "host-1")
	s.ErrorIs(err, model.ErrCannotKickHost)
}

func (s *ServiceSuite) openQuestion(players ...model.PlayerID) time.Time {
	session, err := s.storage.GetSession(s.ctx, "ABC123")
	s.Require().NoError(err)
	session.Status = model.SessionStatusStarted
	session.Round = model.Round{Phase: model.PhaseQuestion, QuestionIndex: 0, StartedAt: s.clock.Now(), Duration: 20 * time.Second}
	s.Require().NoError(s.storage.SaveSession(s.ctx, session))
	s.Require().NoError(s.storage.SeedAnswers(s.ctx, "ABC123", 0, players))
	return session.Round.StartedAt
}

func (s *ServiceSuite) TestKickDuringQuestionCompletesRound() {
	_, _ = s.service.Join(s.ctx, "ABC123", caller("alice"))
	_, _ = s.service.Join(s.ctx, "ABC123", caller("bob"))
	roundAt := s.openQuestion("alice", "bob")
	_, err := s.storage.RecordAnswer(s.ctx, "ABC123", "alice", &model.Answer{QuestionIndex: 0, Key: "A"})
	s.Require().NoError(err)

	_, err = s.service.Kick(s.ctx, "ABC123", "host-1", "bob")
	s.Require().NoError(err)

	answers, err := s.storage.GetAnswers(s.ctx, "ABC123", 0)
	s.Require().NoError(err)
	s.NotContains(answers, model.PlayerID("bob"))
	s.Equal([]time.Time{roundAt}, s.advancer.Calls())
}

func (s *ServiceSuite) TestKickDuringQuestionWaitsForOthers() {
	_, _ = s.service.Join(s.ctx, "ABC123", caller("alice"))
	_, _ = s.service.Join(s.ctx, "ABC123", caller("bob"))
	s.openQuestion("alice", "bob")

	_, err := s.service.Kick(s.ctx, "ABC123", "host-1", "bob")
	s.Require().NoError(err)

	s.Empty(s.advancer.Calls())
}

// Leave tests

func (s *ServiceSuite) TestLeaveInLobbyRemovesPlayer() {
	_, _ = s.service.Join(s.ctx, "ABC123", caller("alice"))

	_, changed, err := s.service.Leave(s.ctx, "ABC123", "alice")
	s.Require().NoError(err)
	s.True(changed)

	count, _ := s.storage.CountPlayers(s.ctx, "ABC123")
	s.Equal(0, count)

	// Leaving is not a ban
	_, err = s.service.Join(s.ctx, "ABC123", caller("alice"))
	s.NoError(err)
}

func (s *ServiceSuite) TestLeaveAsHostGoesOffline() {
	_, _ = s.service.Join(s.ctx, "ABC123", caller("host-1"))

	_, changed, err := s.service.Leave(s.ctx, "ABC123", "host-1")
	s.Require().NoError(err)
	s.True(changed)

	host, _ := s.storage.GetHost(s.ctx, "ABC123")
	s.False(host.Online)
}

func (s *ServiceSuite) TestLeaveAfterStartIsNoop() {
	_, _ = s.service.Join(s.ctx, "ABC123", caller("alice"))
	s.setStatus(model.SessionStatusStarted)

	_, changed, err := s.service.Leave(s.ctx, "ABC123", "alice")
	s.Require().NoError(err)
	s.False(changed)

	_, err = s.storage.GetPlayer(s.ctx, "ABC123", "alice")
	s.NoError(err)
}

// UpdateProfile tests

func (s *ServiceSuite) TestUpdateProfileForPlayerAndHost() {
	_, _ = s.service.Join(s.ctx, "ABC123", caller("alice"))

	_, err := s.service.UpdateProfile(s.ctx, "ABC123", "alice", model.Profile{DisplayName: "Alice", Avatar: "cat"})
	s.Require().NoError(err)
	_, err = s.service.UpdateProfile(s.ctx, "ABC123", "host-1", model.Profile{Avatar: "crown"})
	s.Require().NoError(err)

	player, _ := s.storage.GetPlayer(s.ctx, "ABC123", "alice")
	s.Equal("Alice", player.DisplayName)
	s.Equal("cat", player.Avatar)

	host, _ := s.storage.GetHost(s.ctx, "ABC123")
	s.Equal("Host", host.DisplayName)
	s.Equal("crown", host.Avatar)
}

func (s *ServiceSuite) TestUpdateProfileForStranger() {
	_, err := s.service.UpdateProfile(s.ctx, "ABC123", "mallory", model.Profile{DisplayName: "M"})
	s.ErrorIs(err, model.ErrNotInSession)
}
