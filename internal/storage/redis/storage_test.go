package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/livequiz/internal/model"
)

type StorageSuite struct {
	suite.Suite
	mini    *miniredis.Miniredis
	storage *Storage
	ctx     context.Context
	now     time.Time
}

func TestStorageSuite(t *testing.T) {
	suite.Run(t, new(StorageSuite))
}

func (s *StorageSuite) SetupTest() {
	s.mini = miniredis.RunT(s.T())

	client := redis.NewClient(&redis.Options{
		Addr: s.mini.Addr(),
	})

	cfg := DefaultConfig()
	cfg.SessionTTL = time.Hour
	cfg.HostLockTTL = time.Hour

	s.storage = NewWithClient(client, cfg)
	s.ctx = context.Background()
	s.now = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
}

func (s *StorageSuite) TearDownTest() {
	if s.storage != nil {
		_ = s.storage.Close()
	}
	if s.mini != nil {
		s.mini.Close()
	}
}

func (s *StorageSuite) newSession(code model.SessionCode) *model.Session {
	quiz := model.QuizInfo{ID: "quiz-1", Title: "Capitals", QuestionCount: 2}
	return &model.Session{
		Code:      code,
		HostID:    "host-1",
		Quiz:      quiz,
		Settings:  model.DefaultSettings(quiz.QuestionCount),
		Status:    model.SessionStatusLobby,
		CreatedAt: s.now,
		UpdatedAt: s.now,
	}
}

func (s *StorageSuite) createSession(code model.SessionCode) *model.Session {
	session := s.newSession(code)
	host := &model.Host{ID: "host-1", DisplayName: "Host", Online: true}
	s.Require().NoError(s.storage.CreateSession(s.ctx, session, host))
	return session
}

func (s *StorageSuite) player(id model.PlayerID, offset time.Duration) *model.Player {
	return &model.Player{ID: id, DisplayName: string(id), JoinedAt: s.now.Add(offset)}
}

// Session tests

func (s *StorageSuite) TestCreateAndGetSession() {
	s.createSession("ABC123")

	retrieved, err := s.storage.GetSession(s.ctx, "ABC123")
	s.Require().NoError(err)
	s.Equal(model.SessionCode("ABC123"), retrieved.Code)
	s.Equal(model.SessionStatusLobby, retrieved.Status)
	s.Equal(8, retrieved.Settings.MaxPlayers)

	host, err := s.storage.GetHost(s.ctx, "ABC123")
	s.Require().NoError(err)
	s.True(host.Online)
}

func (s *StorageSuite) TestCreateSessionRejectsDuplicateCode() {
	s.createSession("ABC123")

	err := s.storage.CreateSession(s.ctx, s.newSession("ABC123"), &model.Host{ID: "host-2"})
	s.ErrorIs(err, model.ErrSessionExists)
}

func (s *StorageSuite) TestGetSessionNotFound() {
	_, err := s.storage.GetSession(s.ctx, "NOPE00")
	s.ErrorIs(err, model.ErrSessionNotFound)

	_, err = s.storage.GetHost(s.ctx, "NOPE00")
	s.ErrorIs(err, model.ErrHostNotFound)
}

func (s *StorageSuite) TestSaveSessionRequiresLiveSession() {
	err := s.storage.SaveSession(s.ctx, s.newSession("GONE00"))
	s.ErrorIs(err, model.ErrSessionNotFound)

	exists, err := s.storage.SessionExists(s.ctx, "GONE00")
	s.Require().NoError(err)
	s.False(exists)
}

func (s *StorageSuite) TestSaveSessionRefreshesNamespaceExpiry() {
	session := s.createSession("ABC123")
	_, err := s.storage.AddPlayer(s.ctx, "ABC123", s.player("p1", 0), 8)
	s.Require().NoError(err)
	s.Require().NoError(s.storage.SeedAnswers(s.ctx, "ABC123", 1, []model.PlayerID{"p1"}))

	s.mini.FastForward(50 * time.Minute)
	s.Require().NoError(s.storage.SaveSession(s.ctx, session))

	s.Equal(time.Hour, s.mini.TTL(sessionKey("ABC123")))
	s.Equal(time.Hour, s.mini.TTL(playersKey("ABC123")))
	s.Equal(time.Hour, s.mini.TTL(answersKey("ABC123", 1)))
}

func (s *StorageSuite) TestSessionExpires() {
	s.createSession("ABC123")

	s.mini.FastForward(time.Hour + time.Second)

	_, err := s.storage.GetSession(s.ctx, "ABC123")
	s.ErrorIs(err, model.ErrSessionNotFound)
}

// Roster tests

func (s *StorageSuite) TestAddPlayerIsIdempotent() {
	s.createSession("ABC123")

	added, err := s.storage.AddPlayer(s.ctx, "ABC123", s.player("p1", 0), 8)
	s.Require().NoError(err)
	s.True(added)

	added, err = s.storage.AddPlayer(s.ctx, "ABC123", s.player("p1", time.Minute), 8)
	s.Require().NoError(err)
	s.False(added)

	p, err := s.storage.GetPlayer(s.ctx, "ABC123", "p1")
	s.Require().NoError(err)
	s.True(s.now.Equal(p.JoinedAt))
}

func (s *StorageSuite) TestAddPlayerRespectsCapacity() {
	s.createSession("ABC123")

	_, err := s.storage.AddPlayer(s.ctx, "ABC123", s.player("p1", 0), 2)
	s.Require().NoError(err)
	_, err = s.storage.AddPlayer(s.ctx, "ABC123", s.player("p2", time.Second), 2)
	s.Require().NoError(err)

	_, err = s.storage.AddPlayer(s.ctx, "ABC123", s.player("p3", 2*time.Second), 2)
	s.ErrorIs(err, model.ErrSessionFull)

	// Existing members are still recognised at capacity
	added, err := s.storage.AddPlayer(s.ctx, "ABC123", s.player("p2", 0), 2)
	s.Require().NoError(err)
	s.False(added)

	count, err := s.storage.CountPlayers(s.ctx, "ABC123")
	s.Require().NoError(err)
	s.Equal(2, count)
}

func (s *StorageSuite) TestGetPlayersInJoinOrder() {
	s.createSession("ABC123")
	for _, p := range []*model.Player{s.player("late", 2*time.Second), s.player("early", 0), s.player("mid", time.Second)} {
		_, err := s.storage.AddPlayer(s.ctx, "ABC123", p, 0)
		s.Require().NoError(err)
	}

	players, err := s.storage.GetPlayers(s.ctx, "ABC123")
	s.Require().NoError(err)
	s.Require().Len(players, 3)
	s.Equal(model.PlayerID("early"), players[0].ID)
	s.Equal(model.PlayerID("mid"), players[1].ID)
	s.Equal(model.PlayerID("late"), players[2].ID)
}

func (s *StorageSuite) TestSavePlayerOnlyUpdatesMembers() {
	s.createSession("ABC123")

	err := s.storage.SavePlayer(s.ctx, "ABC123", s.player("ghost", 0))
	s.ErrorIs(err, model.ErrPlayerNotFound)

	_, err = s.storage.AddPlayer(s.ctx, "ABC123", s.player("p1", 0), 8)
	s.Require().NoError(err)
	p := s.player("p1", 0)
	p.DisplayName = "Renamed"
	s.Require().NoError(s.storage.SavePlayer(s.ctx, "ABC123", p))

	retrieved, err := s.storage.GetPlayer(s.ctx, "ABC123", "p1")
	s.Require().NoError(err)
	s.Equal("Renamed", retrieved.DisplayName)
}

func (s *StorageSuite) TestRemovePlayer() {
	s.createSession("ABC123")
	_, err := s.storage.AddPlayer(s.ctx, "ABC123", s.player("p1", 0), 8)
	s.Require().NoError(err)

	removed, err := s.storage.RemovePlayer(s.ctx, "ABC123", "p1")
	s.Require().NoError(err)
	s.True(removed)

	removed, err = s.storage.RemovePlayer(s.ctx, "ABC123", "p1")
	s.Require().NoError(err)
	s.False(removed)

	_, err = s.storage.GetPlayer(s.ctx, "ABC123", "p1")
	s.ErrorIs(err, model.ErrPlayerNotFound)
}

// Ban tests

func (s *StorageSuite) TestSaveBanReplacesPrevious() {
	s.createSession("ABC123")

	ban, err := s.storage.GetBan(s.ctx, "ABC123", "p1")
	s.Require().NoError(err)
	s.Nil(ban)

	s.Require().NoError(s.storage.SaveBan(s.ctx, "ABC123", model.Ban{PlayerID: "p1", BannedAt: s.now}))
	s.Require().NoError(s.storage.SaveBan(s.ctx, "ABC123", model.Ban{PlayerID: "p1", BannedAt: s.now.Add(time.Minute)}))

	ban, err = s.storage.GetBan(s.ctx, "ABC123", "p1")
	s.Require().NoError(err)
	s.Require().NotNil(ban)
	s.True(ban.BannedAt.Equal(s.now.Add(time.Minute)))

	bans, err := s.storage.GetBans(s.ctx, "ABC123")
	s.Require().NoError(err)
	s.Len(bans, 1)
}

// Question snapshot tests

func (s *StorageSuite) TestSaveAndGetQuestions() {
	s.createSession("ABC123")
	questions := []model.Question{{
		ID:         "q1",
		Text:       "Capital of France?",
		Options:    []model.Option{{Key: "A", Text: "Paris"}, {Key: "B", Text: "Lyon"}},
		CorrectKey: "A",
	}}

	s.Require().NoError(s.storage.SaveQuestions(s.ctx, "ABC123", questions))

	retrieved, err := s.storage.GetQuestions(s.ctx, "ABC123")
	s.Require().NoError(err)
	s.Equal(questions, retrieved)
}

func (s *StorageSuite) TestGetQuestionsNotFound() {
	_, err := s.storage.GetQuestions(s.ctx, "ABC123")
	s.ErrorIs(err, model.ErrQuestionsNotFound)
}

// Answer tests

func (s *StorageSuite) TestSeededPlaceholdersReadAsNil() {
	s.createSession("ABC123")
	s.Require().NoError(s.storage.SeedAnswers(s.ctx, "ABC123", 0, []model.PlayerID{"p1", "p2"}))

	answers, err := s.storage.GetAnswers(s.ctx, "ABC123", 0)
	s.Require().NoError(err)
	s.Len(answers, 2)
	s.Nil(answers["p1"])

	answer, err := s.storage.GetAnswer(s.ctx, "ABC123", 0, "p1")
	s.Require().NoError(err)
	s.Nil(answer)
}

func (s *StorageSuite) TestRecordAnswerIsWriteOnce() {
	s.createSession("ABC123")
	s.Require().NoError(s.storage.SeedAnswers(s.ctx, "ABC123", 0, []model.PlayerID{"p1", "p2"}))

	first := &model.Answer{QuestionIndex: 0, OptionIndex: 0, Key: "A", Score: 3, AnsweredAt: s.now}
	res, err := s.storage.RecordAnswer(s.ctx, "ABC123", "p1", first)
	s.Require().NoError(err)
	s.True(res.Written)
	s.False(res.AllAnswered)

	second := &model.Answer{QuestionIndex: 0, OptionIndex: 1, Key: "B", AnsweredAt: s.now.Add(time.Second)}
	res, err = s.storage.RecordAnswer(s.ctx, "ABC123", "p1", second)
	s.Require().NoError(err)
	s.False(res.Written)

	stored, err := s.storage.GetAnswer(s.ctx, "ABC123", 0, "p1")
	s.Require().NoError(err)
	s.Equal(model.OptionKey("A"), stored.Key)
	s.Equal(3, stored.Score)
}

func (s *StorageSuite) TestRecordAnswerReportsLastPlaceholder() {
	s.createSession("ABC123")
	s.Require().NoError(s.storage.SeedAnswers(s.ctx, "ABC123", 0, []model.PlayerID{"p1", "p2"}))

	res, err := s.storage.RecordAnswer(s.ctx, "ABC123", "p1", &model.Answer{QuestionIndex: 0, Key: "A"})
	s.Require().NoError(err)
	s.False(res.AllAnswered)

	res, err = s.storage.RecordAnswer(s.ctx, "ABC123", "p2", &model.Answer{QuestionIndex: 0, Key: "B", OptionIndex: 1})
	s.Require().NoError(err)
	s.True(res.AllAnswered)

	// A write into an unseeded slot never claims the early transition a second time
	res, err = s.storage.RecordAnswer(s.ctx, "ABC123", "p3", &model.Answer{QuestionIndex: 0, Key: "A"})
	s.Require().NoError(err)
	s.True(res.Written)
	s.False(res.AllAnswered)
}

func (s *StorageSuite) TestRecordAnswerRejectedAfterFlush() {
	s.createSession("ABC123")
	s.Require().NoError(s.storage.SeedAnswers(s.ctx, "ABC123", 0, []model.PlayerID{"p1"}))

	flushed, err := s.storage.FlushScores(s.ctx, "ABC123", 0)
	s.Require().NoError(err)
	s.True(flushed)

	_, err = s.storage.RecordAnswer(s.ctx, "ABC123", "p1", &model.Answer{QuestionIndex: 0, Key: "A"})
	s.ErrorIs(err, model.ErrRoundNotOpen)
}

// Counter and score tests

func (s *StorageSuite) TestRemainingCounter() {
	s.createSession("ABC123")
	s.Require().NoError(s.storage.ResetRemaining(s.ctx, "ABC123", 0, 2))

	n, err := s.storage.DecrRemaining(s.ctx, "ABC123", 0)
	s.Require().NoError(err)
	s.Equal(int64(1), n)

	s.Require().NoError(s.storage.IncrRemaining(s.ctx, "ABC123", 0))
	n, err = s.storage.DecrRemaining(s.ctx, "ABC123", 0)
	s.Require().NoError(err)
	s.Equal(int64(1), n)
}

func (s *StorageSuite) TestFlushScoresOncePerQuestion() {
	s.createSession("ABC123")
	players := []model.PlayerID{"p1", "p2"}
	s.Require().NoError(s.storage.InitScores(s.ctx, "ABC123", players))
	s.Require().NoError(s.storage.SeedAnswers(s.ctx, "ABC123", 0, players))
	_, err := s.storage.RecordAnswer(s.ctx, "ABC123", "p1", &model.Answer{QuestionIndex: 0, Key: "A", Score: 4})
	s.Require().NoError(err)

	flushed, err := s.storage.FlushScores(s.ctx, "ABC123", 0)
	s.Require().NoError(err)
	s.True(flushed)

	flushed, err = s.storage.FlushScores(s.ctx, "ABC123", 0)
	s.Require().NoError(err)
	s.False(flushed)

	scores, err := s.storage.GetScores(s.ctx, "ABC123")
	s.Require().NoError(err)
	s.Equal(map[model.PlayerID]int{"p1": 4, "p2": 0}, scores)
}

func (s *StorageSuite) TestMarkersAreSetOnce() {
	s.createSession("ABC123")

	first, err := s.storage.MarkStarted(s.ctx, "ABC123")
	s.Require().NoError(err)
	s.True(first)
	again, err := s.storage.MarkStarted(s.ctx, "ABC123")
	s.Require().NoError(err)
	s.False(again)

	first, err = s.storage.MarkFinalized(s.ctx, "ABC123")
	s.Require().NoError(err)
	s.True(first)
	again, err = s.storage.MarkFinalized(s.ctx, "ABC123")
	s.Require().NoError(err)
	s.False(again)
}

// Host lock tests

func (s *StorageSuite) TestHostLock() {
	code, acquired, err := s.storage.AcquireHostLock(s.ctx, "host-1", "quiz-1", "ABC123")
	s.Require().NoError(err)
	s.True(acquired)
	s.Equal(model.SessionCode("ABC123"), code)

	code, acquired, err = s.storage.AcquireHostLock(s.ctx, "host-1", "quiz-1", "XYZ789")
	s.Require().NoError(err)
	s.False(acquired)
	s.Equal(model.SessionCode("ABC123"), code)

	// Releasing on behalf of another session leaves the lock in place
	s.Require().NoError(s.storage.ReleaseHostLock(s.ctx, "host-1", "quiz-1", "XYZ789"))
	s.True(s.mini.Exists(hostLockKey("host-1", "quiz-1")))

	s.Require().NoError(s.storage.ReleaseHostLock(s.ctx, "host-1", "quiz-1", "ABC123"))
	s.False(s.mini.Exists(hostLockKey("host-1", "quiz-1")))
}

// Purge tests

func (s *StorageSuite) TestPurgeRemovesNamespace() {
	s.createSession("ABC123")
	s.createSession("OTHER1")
	_, _, err := s.storage.AcquireHostLock(s.ctx, "host-1", "quiz-1", "ABC123")
	s.Require().NoError(err)
	_, err = s.storage.AddPlayer(s.ctx, "ABC123", s.player("p1", 0), 8)
	s.Require().NoError(err)
	s.Require().NoError(s.storage.SaveBan(s.ctx, "ABC123", model.Ban{PlayerID: "p2", BannedAt: s.now}))
	s.Require().NoError(s.storage.SaveQuestions(s.ctx, "ABC123", []model.Question{{ID: "q1"}}))
	s.Require().NoError(s.storage.SeedAnswers(s.ctx, "ABC123", 0, []model.PlayerID{"p1"}))
	s.Require().NoError(s.storage.ResetRemaining(s.ctx, "ABC123", 0, 1))
	s.Require().NoError(s.storage.InitScores(s.ctx, "ABC123", []model.PlayerID{"p1"}))
	_, err = s.storage.FlushScores(s.ctx, "ABC123", 0)
	s.Require().NoError(err)
	_, err = s.storage.MarkStarted(s.ctx, "ABC123")
	s.Require().NoError(err)
	_, err = s.storage.MarkFinalized(s.ctx, "ABC123")
	s.Require().NoError(err)

	s.Require().NoError(s.storage.Purge(s.ctx, "ABC123", "host-1", "quiz-1"))

	s.ElementsMatch([]string{sessionKey("OTHER1"), hostKey("OTHER1")}, s.mini.Keys())
}

func (s *StorageSuite) TestTouchRefreshesWithoutRewriting() {
	session := s.createSession("ABC123")
	_, err := s.storage.AddPlayer(s.ctx, "ABC123", s.player("p1", 0), 8)
	s.Require().NoError(err)
	s.mini.FastForward(30 * time.Minute)

	s.Require().NoError(s.storage.Touch(s.ctx, session))

	s.Equal(time.Hour, s.mini.TTL(sessionKey("ABC123")))
	s.Equal(time.Hour, s.mini.TTL(playersKey("ABC123")))

	err = s.storage.Touch(s.ctx, s.newSession("GONE00"))
	s.ErrorIs(err, model.ErrSessionNotFound)
	s.False(s.mini.Exists(playersKey("GONE00")))
}

func (s *StorageSuite) TestHostLockLivesAsLongAsSession() {
	session := s.createSession("ABC123")
	_, _, err := s.storage.AcquireHostLock(s.ctx, "host-1", "quiz-1", "ABC123")
	s.Require().NoError(err)

	s.mini.FastForward(45 * time.Minute)
	s.Require().NoError(s.storage.SaveSession(s.ctx, session))
	s.Equal(time.Hour, s.mini.TTL(hostLockKey("host-1", "quiz-1")))

	s.mini.FastForward(45 * time.Minute)
	s.Require().NoError(s.storage.Touch(s.ctx, session))
	s.Equal(time.Hour, s.mini.TTL(hostLockKey("host-1", "quiz-1")))

	// Well past the original lock expiry, a second create still finds the live session
	s.mini.FastForward(45 * time.Minute)
	exists, err := s.storage.SessionExists(s.ctx, "ABC123")
	s.Require().NoError(err)
	s.True(exists)
	code, acquired, err := s.storage.AcquireHostLock(s.ctx, "host-1", "quiz-1", "XYZ789")
	s.Require().NoError(err)
	s.False(acquired)
	s.Equal(model.SessionCode("ABC123"), code)
}

func (s *StorageSuite) TestSaveSessionLeavesOtherHostLockAlone() {
	session := s.createSession("ABC123")
	_, _, err := s.storage.AcquireHostLock(s.ctx, "host-1", "quiz-1", "XYZ789")
	s.Require().NoError(err)

	s.mini.FastForward(30 * time.Minute)
	s.Require().NoError(s.storage.SaveSession(s.ctx, session))

	s.Equal(30*time.Minute, s.mini.TTL(hostLockKey("host-1", "quiz-1")))
}

func (s *StorageSuite) TestAddPlayerRejectedOnceStarted() {
	s.createSession("ABC123")
	_, err := s.storage.AddPlayer(s.ctx, "ABC123", s.player("p1", 0), 8)
	s.Require().NoError(err)
	_, err = s.storage.MarkStarted(s.ctx, "ABC123")
	s.Require().NoError(err)

	_, err = s.storage.AddPlayer(s.ctx, "ABC123", s.player("p2", time.Second), 8)
	s.ErrorIs(err, model.ErrAlreadyStarted)

	// Existing members are still a no-op
	added, err := s.storage.AddPlayer(s.ctx, "ABC123", s.player("p1", 0), 8)
	s.Require().NoError(err)
	s.False(added)

	s.Require().NoError(s.storage.ClearStarted(s.ctx, "ABC123"))
	added, err = s.storage.AddPlayer(s.ctx, "ABC123", s.player("p2", time.Second), 8)
	s.Require().NoError(err)
	s.True(added)
}

func (s *StorageSuite) TestClearStartedResetsScores() {
	s.createSession("ABC123")
	_, err := s.storage.MarkStarted(s.ctx, "ABC123")
	s.Require().NoError(err)
	s.Require().NoError(s.storage.InitScores(s.ctx, "ABC123", []model.PlayerID{"p1"}))

	s.Require().NoError(s.storage.ClearStarted(s.ctx, "ABC123"))

	scores, err := s.storage.GetScores(s.ctx, "ABC123")
	s.Require().NoError(err)
	s.Empty(scores)
	first, err := s.storage.MarkStarted(s.ctx, "ABC123")
	s.Require().NoError(err)
	s.True(first)
}

func (s *StorageSuite) TestRemovePlaceholder() {
	s.createSession("ABC123")
	s.Require().NoError(s.storage.SeedAnswers(s.ctx, "ABC123", 0, []model.PlayerID{"p1", "p2", "p3"}))
	_, err := s.storage.RecordAnswer(s.ctx, "ABC123", "p1", &model.Answer{QuestionIndex: 0, Key: "A"})
	s.Require().NoError(err)

	// An answered player keeps their answer
	done, err := s.storage.RemovePlaceholder(s.ctx, "ABC123", 0, "p1")
	s.Require().NoError(err)
	s.False(done)

	done, err = s.storage.RemovePlaceholder(s.ctx, "ABC123", 0, "p2")
	s.Require().NoError(err)
	s.False(done)

	done, err = s.storage.RemovePlaceholder(s.ctx, "ABC123", 0, "p3")
	s.Require().NoError(err)
	s.True(done)

	answers, err := s.storage.GetAnswers(s.ctx, "ABC123", 0)
	s.Require().NoError(err)
	s.Len(answers, 1)
	s.NotNil(answers["p1"])

	done, err = s.storage.RemovePlaceholder(s.ctx, "ABC123", 0, "p3")
	s.Require().NoError(err)
	s.False(done)
}
