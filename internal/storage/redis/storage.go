package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mcoot/livequiz/internal/model"
	"github.com/mcoot/livequiz/internal/storage"
)

// Storage is a Redis-backed implementation of the session store
type Storage struct {
	client *redis.Client
	cfg    Config
}

// New creates a new Redis storage instance
func New(cfg Config) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return &Storage{
		client: client,
		cfg:    cfg,
	}, nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Storage {
	return &Storage{
		client: client,
		cfg:    cfg,
	}
}

// Client returns the underlying client so other Redis-backed components can share the pool
func (s *Storage) Client() *redis.Client {
	return s.client
}

// Ping checks the connection
func (s *Storage) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ensure Storage implements the interface
var _ storage.SessionStore = (*Storage)(nil)

func (s *Storage) ttlSeconds() int64 {
	return int64(s.cfg.SessionTTL / time.Second)
}

func (s *Storage) expire(ctx context.Context, pipe redis.Pipeliner, keys ...string) {
	if s.cfg.SessionTTL <= 0 {
		return
	}
	for _, key := range keys {
		pipe.Expire(ctx, key, s.cfg.SessionTTL)
	}
}

// Session operations

func (s *Storage) CreateSession(ctx context.Context, session *model.Session, host *model.Host) error {
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}
	hostData, err := json.Marshal(host)
	if err != nil {
		return err
	}

	// SET NX keeps codes unique among live sessions
	ok, err := s.client.SetNX(ctx, sessionKey(session.Code), data, s.cfg.SessionTTL).Result()
	if err != nil {
		return err
	}
	if !ok {
		return model.ErrSessionExists
	}

	return s.client.Set(ctx, hostKey(session.Code), hostData, s.cfg.SessionTTL).Err()
}

func (s *Storage) GetSession(ctx context.Context, code model.SessionCode) (*model.Session, error) {
	data, err := s.client.Get(ctx, sessionKey(code)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrSessionNotFound
		}
		return nil, err
	}

	var session model.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *Storage) SaveSession(ctx context.Context, session *model.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}

	// SET XX so a save racing a purge cannot resurrect the session
	pipe := s.client.TxPipeline()
	set := pipe.SetXX(ctx, sessionKey(session.Code), data, s.cfg.SessionTTL)
	s.expire(ctx, pipe, namespaceKeys(session.Code, session.Quiz.QuestionCount)...)
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}
	if !set.Val() {
		return model.ErrSessionNotFound
	}
	return s.refreshHostLock(ctx, session)
}

func (s *Storage) Touch(ctx context.Context, session *model.Session) error {
	code := session.Code
	if s.cfg.SessionTTL <= 0 {
		exists, err := s.SessionExists(ctx, code)
		if err != nil {
			return err
		}
		if !exists {
			return model.ErrSessionNotFound
		}
		return s.refreshHostLock(ctx, session)
	}

	pipe := s.client.TxPipeline()
	alive := pipe.Expire(ctx, sessionKey(code), s.cfg.SessionTTL)
	s.expire(ctx, pipe, namespaceKeys(code, session.Quiz.QuestionCount)...)
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}
	if !alive.Val() {
		return model.ErrSessionNotFound
	}
	return s.refreshHostLock(ctx, session)
}

// refreshHostLock keeps the host/quiz lock alive for as long as the session it points at
func (s *Storage) refreshHostLock(ctx context.Context, session *model.Session) error {
	if s.cfg.HostLockTTL <= 0 {
		return nil
	}
	ttl := max(s.cfg.HostLockTTL, s.cfg.SessionTTL)
	return refreshLockScript.Run(ctx, s.client,
		[]string{hostLockKey(session.HostID, session.Quiz.ID)},
		string(session.Code), ttl.Milliseconds(),
	).Err()
}

func (s *Storage) SessionExists(ctx context.Context, code model.SessionCode) (bool, error) {
	exists, err := s.client.Exists(ctx, sessionKey(code)).Result()
	if err != nil {
		return false, err
	}
	return exists > 0, nil
}

// Host operations

func (s *Storage) GetHost(ctx context.Context, code model.SessionCode) (*model.Host, error) {
	data, err := s.client.Get(ctx, hostKey(code)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrHostNotFound
		}
		return nil, err
	}

	var host model.Host
	if err := json.Unmarshal(data, &host); err != nil {
		return nil, err
	}
	return &host, nil
}

func (s *Storage) SaveHost(ctx context.Context, code model.SessionCode, host *model.Host) error {
	data, err := json.Marshal(host)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, hostKey(code), data, s.cfg.SessionTTL).Err()
}

// Roster operations

func (s *Storage) GetPlayers(ctx context.Context, code model.SessionCode) ([]*model.Player, error) {
	values, err := s.client.HGetAll(ctx, playersKey(code)).Result()
	if err != nil {
		return nil, err
	}

	players := make([]*model.Player, 0, len(values))
	for _, val := range values {
		var player model.Player
		if err := json.Unmarshal([]byte(val), &player); err != nil {
			return nil, fmt.Errorf("decode player: %w", err)
		}
		players = append(players, &player)
	}
	sortByJoinOrder(players)
	return players, nil
}

func (s *Storage) GetPlayer(ctx context.Context, code model.SessionCode, id model.PlayerID) (*model.Player, error) {
	data, err := s.client.HGet(ctx, playersKey(code), string(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrPlayerNotFound
		}
		return nil, err
	}

	var player model.Player
	if err := json.Unmarshal(data, &player); err != nil {
		return nil, err
	}
	return &player, nil
}

func (s *Storage) AddPlayer(ctx context.Context, code model.SessionCode, player *model.Player, maxPlayers int) (bool, error) {
	data, err := json.Marshal(player)
	if err != nil {
		return false, err
	}

	res, err := addPlayerScript.Run(ctx, s.client,
		[]string{playersKey(code), startedKey(code)},
		string(player.ID), data, maxPlayers, s.ttlSeconds(),
	).Int()
	if err != nil {
		return false, err
	}

	switch res {
	case -2:
		return false, model.ErrAlreadyStarted
	case -1:
		return false, model.ErrSessionFull
	case 0:
		return false, nil
	default:
		return true, nil
	}
}

func (s *Storage) SavePlayer(ctx context.Context, code model.SessionCode, player *model.Player) error {
	data, err := json.Marshal(player)
	if err != nil {
		return err
	}

	res, err := updatePlayerScript.Run(ctx, s.client, []string{playersKey(code)}, string(player.ID), data).Int()
	if err != nil {
		return err
	}
	if res == 0 {
		return model.ErrPlayerNotFound
	}
	return nil
}

func (s *Storage) RemovePlayer(ctx context.Context, code model.SessionCode, id model.PlayerID) (bool, error) {
	n, err := s.client.HDel(ctx, playersKey(code), string(id)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Storage) CountPlayers(ctx context.Context, code model.SessionCode) (int, error) {
	n, err := s.client.HLen(ctx, playersKey(code)).Result()
	return int(n), err
}

// Ban operations

func (s *Storage) SaveBan(ctx context.Context, code model.SessionCode, ban model.Ban) error {
	data, err := json.Marshal(ban)
	if err != nil {
		return err
	}

	// A hash field write appends or replaces in one step
	pipe := s.client.Pipeline()
	pipe.HSet(ctx, bansKey(code), string(ban.PlayerID), data)
	s.expire(ctx, pipe, bansKey(code))
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Storage) GetBan(ctx context.Context, code model.SessionCode, id model.PlayerID) (*model.Ban, error) {
	data, err := s.client.HGet(ctx, bansKey(code), string(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var ban model.Ban
	if err := json.Unmarshal(data, &ban); err != nil {
		return nil, err
	}
	return &ban, nil
}

func (s *Storage) GetBans(ctx context.Context, code model.SessionCode) ([]model.Ban, error) {
	values, err := s.client.HGetAll(ctx, bansKey(code)).Result()
	if err != nil {
		return nil, err
	}

	bans := make([]model.Ban, 0, len(values))
	for _, val := range values {
		var ban model.Ban
		if err := json.Unmarshal([]byte(val), &ban); err != nil {
			return nil, fmt.Errorf("decode ban: %w", err)
		}
		bans = append(bans, ban)
	}
	sort.Slice(bans, func(i, j int) bool {
		return bans[i].BannedAt.Before(bans[j].BannedAt)
	})
	return bans, nil
}

// Question snapshot operations

func (s *Storage) SaveQuestions(ctx context.Context, code model.SessionCode, questions []model.Question) error {
	data, err := json.Marshal(questions)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, questionsKey(code), data, s.cfg.SessionTTL).Err()
}

func (s *Storage) GetQuestions(ctx context.Context, code model.SessionCode) ([]model.Question, error) {
	data, err := s.client.Get(ctx, questionsKey(code)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrQuestionsNotFound
		}
		return nil, err
	}

	var questions []model.Question
	if err := json.Unmarshal(data, &questions); err != nil {
		return nil, err
	}
	return questions, nil
}

// Answer operations

func (s *Storage) SeedAnswers(ctx context.Context, code model.SessionCode, question int, players []model.PlayerID) error {
	if len(players) == 0 {
		return nil
	}

	key := answersKey(code, question)
	pipe := s.client.Pipeline()
	for _, id := range players {
		// HSETNX leaves a real answer untouched if seeding is repeated
		pipe.HSetNX(ctx, key, string(id), answerPlaceholder)
	}
	s.expire(ctx, pipe, key)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *Storage) GetAnswers(ctx context.Context, code model.SessionCode, question int) (map[model.PlayerID]*model.Answer, error) {
	values, err := s.client.HGetAll(ctx, answersKey(code, question)).Result()
	if err != nil {
		return nil, err
	}

	answers := make(map[model.PlayerID]*model.Answer, len(values))
	for field, val := range values {
		answer, err := decodeAnswer(val)
		if err != nil {
			return nil, err
		}
		answers[model.PlayerID(field)] = answer
	}
	return answers, nil
}

func (s *Storage) GetAnswer(ctx context.Context, code model.SessionCode, question int, id model.PlayerID) (*model.Answer, error) {
	val, err := s.client.HGet(ctx, answersKey(code, question), string(id)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	return decodeAnswer(val)
}

func (s *Storage) RecordAnswer(ctx context.Context, code model.SessionCode, id model.PlayerID, answer *model.Answer) (storage.RecordResult, error) {
	data, err := json.Marshal(answer)
	if err != nil {
		return storage.RecordResult{}, err
	}

	q := answer.QuestionIndex
	res, err := recordAnswerScript.Run(ctx, s.client,
		[]string{answersKey(code, q), flushedKey(code)},
		string(id), data, q, s.ttlSeconds(),
	).Int()
	if err != nil {
		return storage.RecordResult{}, err
	}

	switch res {
	case -1:
		return storage.RecordResult{}, model.ErrRoundNotOpen
	case 0:
		return storage.RecordResult{}, nil
	case 1:
		return storage.RecordResult{Written: true}, nil
	default:
		return storage.RecordResult{Written: true, AllAnswered: true}, nil
	}
}

func (s *Storage) RemovePlaceholder(ctx context.Context, code model.SessionCode, question int, id model.PlayerID) (bool, error) {
	res, err := removePlaceholderScript.Run(ctx, s.client, []string{answersKey(code, question)}, string(id)).Int()
	if err != nil {
		return false, err
	}
	return res == 2, nil
}

func decodeAnswer(val string) (*model.Answer, error) {
	if val == answerPlaceholder {
		return nil, nil
	}
	var answer model.Answer
	if err := json.Unmarshal([]byte(val), &answer); err != nil {
		return nil, fmt.Errorf("decode answer: %w", err)
	}
	return &answer, nil
}

// Remaining-correct counter operations

func (s *Storage) ResetRemaining(ctx context.Context, code model.SessionCode, question int, n int) error {
	return s.client.Set(ctx, remainingKey(code, question), n, s.cfg.SessionTTL).Err()
}

func (s *Storage) DecrRemaining(ctx context.Context, code model.SessionCode, question int) (int64, error) {
	return s.client.Decr(ctx, remainingKey(code, question)).Result()
}

func (s *Storage) IncrRemaining(ctx context.Context, code model.SessionCode, question int) error {
	return s.client.Incr(ctx, remainingKey(code, question)).Err()
}

// Score accumulator operations

func (s *Storage) InitScores(ctx context.Context, code model.SessionCode, players []model.PlayerID) error {
	if len(players) == 0 {
		return nil
	}

	key := scoresKey(code)
	pipe := s.client.Pipeline()
	for _, id := range players {
		pipe.HSetNX(ctx, key, string(id), 0)
	}
	s.expire(ctx, pipe, key)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *Storage) FlushScores(ctx context.Context, code model.SessionCode, question int) (bool, error) {
	// The flushed marker also closes the question to late writes, so the answers read below are final
	first, err := s.client.HSetNX(ctx, flushedKey(code), strconv.Itoa(question), 1).Result()
	if err != nil {
		return false, err
	}
	if !first {
		return false, nil
	}

	answers, err := s.GetAnswers(ctx, code, question)
	if err != nil {
		return false, err
	}

	key := scoresKey(code)
	pipe := s.client.Pipeline()
	for id, answer := range answers {
		if answer == nil || answer.Score == 0 {
			continue
		}
		pipe.HIncrBy(ctx, key, string(id), int64(answer.Score))
	}
	s.expire(ctx, pipe, key, flushedKey(code))
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Storage) GetScores(ctx context.Context, code model.SessionCode) (map[model.PlayerID]int, error) {
	values, err := s.client.HGetAll(ctx, scoresKey(code)).Result()
	if err != nil {
		return nil, err
	}

	scores := make(map[model.PlayerID]int, len(values))
	for field, val := range values {
		n, err := strconv.Atoi(val)
		if err != nil {
			return nil, fmt.Errorf("decode score: %w", err)
		}
		scores[model.PlayerID(field)] = n
	}
	return scores, nil
}

// Lifecycle markers

func (s *Storage) MarkStarted(ctx context.Context, code model.SessionCode) (bool, error) {
	return s.client.SetNX(ctx, startedKey(code), 1, s.cfg.SessionTTL).Result()
}

func (s *Storage) MarkFinalized(ctx context.Context, code model.SessionCode) (bool, error) {
	return s.client.SetNX(ctx, finalizedKey(code), 1, s.cfg.SessionTTL).Result()
}

func (s *Storage) ClearStarted(ctx context.Context, code model.SessionCode) error {
	return s.client.Del(ctx, startedKey(code), scoresKey(code)).Err()
}

// Host/quiz lock operations

func (s *Storage) AcquireHostLock(ctx context.Context, hostID model.PlayerID, quizID model.QuizID, code model.SessionCode) (model.SessionCode, bool, error) {
	key := hostLockKey(hostID, quizID)

	// The holder may expire between SETNX and GET, so try a few times
	for attempt := 0; attempt < 3; attempt++ {
		ok, err := s.client.SetNX(ctx, key, string(code), s.cfg.HostLockTTL).Result()
		if err != nil {
			return "", false, err
		}
		if ok {
			return code, true, nil
		}

		existing, err := s.client.Get(ctx, key).Result()
		if err == nil {
			return model.SessionCode(existing), false, nil
		}
		if !errors.Is(err, redis.Nil) {
			return "", false, err
		}
	}
	return "", false, fmt.Errorf("acquire host lock %s: contended", key)
}

func (s *Storage) ReleaseHostLock(ctx context.Context, hostID model.PlayerID, quizID model.QuizID, code model.SessionCode) error {
	return releaseLockScript.Run(ctx, s.client, []string{hostLockKey(hostID, quizID)}, string(code)).Err()
}

// Purge

func (s *Storage) Purge(ctx context.Context, code model.SessionCode, hostID model.PlayerID, quizID model.QuizID) error {
	keys := []string{sessionKey(code)}

	iter := s.client.Scan(ctx, 0, sessionPattern(code), 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan session keys: %w", err)
	}

	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return err
	}
	return s.ReleaseHostLock(ctx, hostID, quizID, code)
}

func sortByJoinOrder(players []*model.Player) {
	sort.Slice(players, func(i, j int) bool {
		if players[i].JoinedAt.Equal(players[j].JoinedAt) {
			return players[i].ID < players[j].ID
		}
		return players[i].JoinedAt.Before(players[j].JoinedAt)
	})
}
