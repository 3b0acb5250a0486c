package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/mcoot/livequiz/internal/model"
	"github.com/mcoot/livequiz/internal/storage"
)

// Storage is an in-memory implementation of every storage interface.
// Records do not expire; Purge is the only way session state is removed.
type Storage struct {
	mu sync.RWMutex

	sessions  map[model.SessionCode]*namespace
	hostLocks map[hostLockKey]model.SessionCode
	quizzes   map[model.QuizID]model.Quiz
	results   map[model.ResultID]model.GameResults
}

type hostLockKey struct {
	hostID model.PlayerID
	quizID model.QuizID
}

// namespace holds every record of one session code
type namespace struct {
	session   *model.Session
	host      *model.Host
	players   map[model.PlayerID]model.Player
	bans      map[model.PlayerID]model.Ban
	questions []model.Question
	answers   map[int]map[model.PlayerID]*model.Answer // nil answer is a placeholder
	remaining map[int]int64
	scores    map[model.PlayerID]int
	flushed   map[int]bool
	started   bool
	finalized bool
}

func newNamespace() *namespace {
	return &namespace{
		players:   make(map[model.PlayerID]model.Player),
		bans:      make(map[model.PlayerID]model.Ban),
		answers:   make(map[int]map[model.PlayerID]*model.Answer),
		remaining: make(map[int]int64),
		scores:    make(map[model.PlayerID]int),
		flushed:   make(map[int]bool),
	}
}

// New creates a new in-memory storage instance
func New() *Storage {
	return &Storage{
		sessions:  make(map[model.SessionCode]*namespace),
		hostLocks: make(map[hostLockKey]model.SessionCode),
		quizzes:   make(map[model.QuizID]model.Quiz),
		results:   make(map[model.ResultID]model.GameResults),
	}
}

// Ensure Storage implements the interfaces
var (
	_ storage.SessionStore = (*Storage)(nil)
	_ storage.QuizCatalog  = (*Storage)(nil)
	_ storage.ResultStore  = (*Storage)(nil)
)

// ns returns the namespace for code, creating it if needed. Callers hold the write lock.
func (s *Storage) ns(code model.SessionCode) *namespace {
	n, ok := s.sessions[code]
	if !ok {
		n = newNamespace()
		s.sessions[code] = n
	}
	return n
}

// peek returns the namespace for code without creating it. Callers hold a lock.
func (s *Storage) peek(code model.SessionCode) *namespace {
	if n, ok := s.sessions[code]; ok {
		return n
	}
	return newNamespace()
}

// Session operations

func (s *Storage) CreateSession(ctx context.Context, session *model.Session, host *model.Host) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.ns(session.Code)
	if n.session != nil {
		return model.ErrSessionExists
	}
	sessionCopy, hostCopy := *session, *host
	n.session = &sessionCopy
	n.host = &hostCopy
	return nil
}

func (s *Storage) GetSession(ctx context.Context, code model.SessionCode) (*model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := s.peek(code)
	if n.session == nil {
		return nil, model.ErrSessionNotFound
	}
	session := *n.session
	return &session, nil
}

func (s *Storage) SaveSession(ctx context.Context, session *model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.peek(session.Code)
	if n.session == nil {
		return model.ErrSessionNotFound
	}
	sessionCopy := *session
	n.session = &sessionCopy
	return nil
}

func (s *Storage) Touch(ctx context.Context, session *model.Session) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.peek(session.Code).session == nil {
		return model.ErrSessionNotFound
	}
	return nil
}

func (s *Storage) SessionExists(ctx context.Context, code model.SessionCode) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.peek(code).session != nil, nil
}

// Host operations

func (s *Storage) GetHost(ctx context.Context, code model.SessionCode) (*model.Host, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := s.peek(code)
	if n.host == nil {
		return nil, model.ErrHostNotFound
	}
	host := *n.host
	return &host, nil
}

func (s *Storage) SaveHost(ctx context.Context, code model.SessionCode, host *model.Host) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	hostCopy := *host
	s.ns(code).host = &hostCopy
	return nil
}

// Roster operations

func (s *Storage) GetPlayers(ctx context.Context, code model.SessionCode) ([]*model.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := s.peek(code)
	players := make([]*model.Player, 0, len(n.players))
	for _, p := range n.players {
		player := p
		players = append(players, &player)
	}
	sort.Slice(players, func(i, j int) bool {
		if players[i].JoinedAt.Equal(players[j].JoinedAt) {
			return players[i].ID < players[j].ID
		}
		return players[i].JoinedAt.Before(players[j].JoinedAt)
	})
	return players, nil
}

func (s *Storage) GetPlayer(ctx context.Context, code model.SessionCode, id model.PlayerID) (*model.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	player, ok := s.peek(code).players[id]
	if !ok {
		return nil, model.ErrPlayerNotFound
	}
	return &player, nil
}

func (s *Storage) AddPlayer(ctx context.Context, code model.SessionCode, player *model.Player, maxPlayers int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.ns(code)
	if _, ok := n.players[player.ID]; ok {
		return false, nil
	}
	if maxPlayers > 0 && len(n.players) >= maxPlayers {
		return false, model.ErrSessionFull
	}
	if n.started {
		return false, model.ErrAlreadyStarted
	}
	n.players[player.ID] = *player
	return true, nil
}

func (s *Storage) SavePlayer(ctx context.Context, code model.SessionCode, player *model.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.peek(code)
	if _, ok := n.players[player.ID]; !ok {
		return model.ErrPlayerNotFound
	}
	n.players[player.ID] = *player
	return nil
}

func (s *Storage) RemovePlayer(ctx context.Context, code model.SessionCode, id model.PlayerID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.peek(code)
	if _, ok := n.players[id]; !ok {
		return false, nil
	}
	delete(n.players, id)
	return true, nil
}

func (s *Storage) CountPlayers(ctx context.Context, code model.SessionCode) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.peek(code).players), nil
}

// Ban operations

func (s *Storage) SaveBan(ctx context.Context, code model.SessionCode, ban model.Ban) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ns(code).bans[ban.PlayerID] = ban
	return nil
}

func (s *Storage) GetBan(ctx context.Context, code model.SessionCode, id model.PlayerID) (*model.Ban, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ban, ok := s.peek(code).bans[id]
	if !ok {
		return nil, nil
	}
	return &ban, nil
}

func (s *Storage) GetBans(ctx context.Context, code model.SessionCode) ([]model.Ban, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := s.peek(code)
	bans := make([]model.Ban, 0, len(n.bans))
	for _, ban := range n.bans {
		bans = append(bans, ban)
	}
	sort.Slice(bans, func(i, j int) bool {
		return bans[i].BannedAt.Before(bans[j].BannedAt)
	})
	return bans, nil
}

// Question snapshot operations

func (s *Storage) SaveQuestions(ctx context.Context, code model.SessionCode, questions []model.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ns(code).questions = cloneQuestions(questions)
	return nil
}

func (s *Storage) GetQuestions(ctx context.Context, code model.SessionCode) ([]model.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := s.peek(code)
	if n.questions == nil {
		return nil, model.ErrQuestionsNotFound
	}
	return cloneQuestions(n.questions), nil
}

func cloneQuestions(questions []model.Question) []model.Question {
	out := make([]model.Question, len(questions))
	for i, q := range questions {
		q.Options = append([]model.Option(nil), q.Options...)
		out[i] = q
	}
	return out
}

// Answer operations

func (s *Storage) SeedAnswers(ctx context.Context, code model.SessionCode, question int, players []model.PlayerID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.ns(code)
	answers, ok := n.answers[question]
	if !ok {
		answers = make(map[model.PlayerID]*model.Answer)
		n.answers[question] = answers
	}
	for _, id := range players {
		if _, exists := answers[id]; !exists {
			answers[id] = nil
		}
	}
	return nil
}

func (s *Storage) GetAnswers(ctx context.Context, code model.SessionCode, question int) (map[model.PlayerID]*model.Answer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored := s.peek(code).answers[question]
	answers := make(map[model.PlayerID]*model.Answer, len(stored))
	for id, answer := range stored {
		if answer == nil {
			answers[id] = nil
			continue
		}
		a := *answer
		answers[id] = &a
	}
	return answers, nil
}

func (s *Storage) GetAnswer(ctx context.Context, code model.SessionCode, question int, id model.PlayerID) (*model.Answer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	answer := s.peek(code).answers[question][id]
	if answer == nil {
		return nil, nil
	}
	a := *answer
	return &a, nil
}

func (s *Storage) RecordAnswer(ctx context.Context, code model.SessionCode, id model.PlayerID, answer *model.Answer) (storage.RecordResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.ns(code)
	q := answer.QuestionIndex
	if n.flushed[q] {
		return storage.RecordResult{}, model.ErrRoundNotOpen
	}

	answers, ok := n.answers[q]
	if !ok {
		answers = make(map[model.PlayerID]*model.Answer)
		n.answers[q] = answers
	}
	current, seeded := answers[id]
	if current != nil {
		return storage.RecordResult{}, nil
	}

	a := *answer
	answers[id] = &a
	if !seeded {
		return storage.RecordResult{Written: true}, nil
	}
	for _, other := range answers {
		if other == nil {
			return storage.RecordResult{Written: true}, nil
		}
	}
	return storage.RecordResult{Written: true, AllAnswered: true}, nil
}

func (s *Storage) RemovePlaceholder(ctx context.Context, code model.SessionCode, question int, id model.PlayerID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	answers := s.peek(code).answers[question]
	current, seeded := answers[id]
	if !seeded || current != nil {
		return false, nil
	}
	delete(answers, id)
	for _, other := range answers {
		if other == nil {
			return false, nil
		}
	}
	return true, nil
}

// Remaining-correct counter operations

func (s *Storage) ResetRemaining(ctx context.Context, code model.SessionCode, question int, count int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ns(code).remaining[question] = int64(count)
	return nil
}

func (s *Storage) DecrRemaining(ctx context.Context, code model.SessionCode, question int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.ns(code)
	n.remaining[question]--
	return n.remaining[question], nil
}

func (s *Storage) IncrRemaining(ctx context.Context, code model.SessionCode, question int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ns(code).remaining[question]++
	return nil
}

// Score accumulator operations

func (s *Storage) InitScores(ctx context.Context, code model.SessionCode, players []model.PlayerID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.ns(code)
	for _, id := range players {
		if _, ok := n.scores[id]; !ok {
			n.scores[id] = 0
		}
	}
	return nil
}

func (s *Storage) FlushScores(ctx context.Context, code model.SessionCode, question int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.ns(code)
	if n.flushed[question] {
		return false, nil
	}
	n.flushed[question] = true
	for id, answer := range n.answers[question] {
		if answer == nil || answer.Score == 0 {
			continue
		}
		n.scores[id] += answer.Score
	}
	return true, nil
}

func (s *Storage) GetScores(ctx context.Context, code model.SessionCode) (map[model.PlayerID]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored := s.peek(code).scores
	scores := make(map[model.PlayerID]int, len(stored))
	for id, score := range stored {
		scores[id] = score
	}
	return scores, nil
}

// Lifecycle markers

func (s *Storage) MarkStarted(ctx context.Context, code model.SessionCode) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.ns(code)
	if n.started {
		return false, nil
	}
	n.started = true
	return true, nil
}

func (s *Storage) ClearStarted(ctx context.Context, code model.SessionCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.peek(code)
	n.started = false
	n.scores = make(map[model.PlayerID]int)
	return nil
}

func (s *Storage) MarkFinalized(ctx context.Context, code model.SessionCode) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.ns(code)
	if n.finalized {
		return false, nil
	}
	n.finalized = true
	return true, nil
}

// Host/quiz lock operations

func (s *Storage) AcquireHostLock(ctx context.Context, hostID model.PlayerID, quizID model.QuizID, code model.SessionCode) (model.SessionCode, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := hostLockKey{hostID: hostID, quizID: quizID}
	if existing, ok := s.hostLocks[key]; ok {
		return existing, false, nil
	}
	s.hostLocks[key] = code
	return code, true, nil
}

func (s *Storage) ReleaseHostLock(ctx context.Context, hostID model.PlayerID, quizID model.QuizID, code model.SessionCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releaseHostLockLocked(hostID, quizID, code)
	return nil
}

func (s *Storage) releaseHostLockLocked(hostID model.PlayerID, quizID model.QuizID, code model.SessionCode) {
	key := hostLockKey{hostID: hostID, quizID: quizID}
	if s.hostLocks[key] == code {
		delete(s.hostLocks, key)
	}
}

// Purge

func (s *Storage) Purge(ctx context.Context, code model.SessionCode, hostID model.PlayerID, quizID model.QuizID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, code)
	s.releaseHostLockLocked(hostID, quizID, code)
	return nil
}

// SessionCount returns the number of session namespaces still held
func (s *Storage) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
