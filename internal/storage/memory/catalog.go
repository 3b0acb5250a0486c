package memory

import (
	"context"
	"sort"

	"github.com/mcoot/livequiz/internal/model"
)

// Quiz catalog operations

func (s *Storage) GetQuiz(ctx context.Context, id model.QuizID, hostID model.PlayerID) (*model.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	quiz, ok := s.quizzes[id]
	if !ok || quiz.CreatorID != hostID {
		return nil, model.ErrQuizNotFound
	}
	quiz.Questions = cloneQuestions(quiz.Questions)
	return &quiz, nil
}

func (s *Storage) SaveQuiz(ctx context.Context, quiz *model.Quiz) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *quiz
	stored.Questions = cloneQuestions(quiz.Questions)
	s.quizzes[quiz.ID] = stored
	return nil
}

// Result operations

func (s *Storage) SaveResults(ctx context.Context, results *model.GameResults) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[results.Summary.ID] = *results
	return nil
}

func (s *Storage) GetSummary(ctx context.Context, id model.ResultID) (*model.GameSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	results, ok := s.results[id]
	if !ok {
		return nil, model.ErrResultNotFound
	}
	summary := results.Summary
	return &summary, nil
}

func (s *Storage) GetDetail(ctx context.Context, id model.ResultID) (*model.GameDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	results, ok := s.results[id]
	if !ok {
		return nil, model.ErrResultNotFound
	}
	detail := results.Detail
	return &detail, nil
}

func (s *Storage) ListPlayerResults(ctx context.Context, id model.ResultID) ([]model.PlayerResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	results, ok := s.results[id]
	if !ok {
		return nil, model.ErrResultNotFound
	}
	players := append([]model.PlayerResult(nil), results.Players...)
	sort.SliceStable(players, func(i, j int) bool {
		return players[i].Rank < players[j].Rank
	})
	return players, nil
}

// ResultCount returns the number of finalized games held
func (s *Storage) ResultCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.results)
}
