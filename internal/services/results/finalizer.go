package results

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/mcoot/livequiz/internal/dependencies/clock"
	"github.com/mcoot/livequiz/internal/model"
	"github.com/mcoot/livequiz/internal/services/broadcast"
	"github.com/mcoot/livequiz/internal/storage"
)

// Finalizer persists the results of an ended session and clears its live state
type Finalizer struct {
	sessions    storage.SessionStore
	results     storage.ResultStore
	broadcaster *broadcast.Broadcaster
	clock       clock.Clock
	logger      *slog.Logger
}

// New creates a new Finalizer
func New(
	sessions storage.SessionStore,
	results storage.ResultStore,
	broadcaster *broadcast.Broadcaster,
	clock clock.Clock,
	logger *slog.Logger,
) *Finalizer {
	return &Finalizer{
		sessions:    sessions,
		results:     results,
		broadcaster: broadcaster,
		clock:       clock,
		logger:      logger.With(slog.String("component", "results")),
	}
}

// Finalize writes the summary, detail and per-player results of an ended session,
// broadcasts the final snapshot and purges the session. It runs at most once per session.
//
// If the results cannot be written the session is saved as ended without a result id
// and its keys are left to expire.
func (f *Finalizer) Finalize(ctx context.Context, session *model.Session) error {
	code := session.Code

	first, err := f.sessions.MarkFinalized(ctx, code)
	if err != nil {
		return err
	}
	if !first {
		f.logger.Info("session already finalized", slog.String("session", string(code)))
		return nil
	}

	session.Status = model.SessionStatusEnded
	session.UpdatedAt = f.clock.Now().UTC()

	results, err := f.collect(ctx, session)
	if err == nil {
		err = f.results.SaveResults(ctx, results)
	}
	if err != nil {
		f.logger.Error("failed to persist results",
			slog.String("session", string(code)),
			slog.String("error", err.Error()))
		if saveErr := f.sessions.SaveSession(ctx, session); saveErr == nil {
			f.broadcaster.PublishSession(ctx, session)
		}
		return fmt.Errorf("finalize session %s: %w", code, err)
	}

	session.ResultID = results.Summary.ID
	if err := f.sessions.SaveSession(ctx, session); err != nil {
		return err
	}
	f.broadcaster.PublishSession(ctx, session)

	if err := f.sessions.Purge(ctx, code, session.HostID, session.Quiz.ID); err != nil {
		return err
	}

	attrs := []any{
		slog.String("session", string(code)),
		slog.String("result_id", string(session.ResultID)),
		slog.Int("players", results.Summary.PlayerCount),
	}
	if w := results.Summary.Winner; w != nil {
		attrs = append(attrs, slog.String("winner", string(w.ID)))
	}
	f.logger.Info("session finalized", attrs...)
	return nil
}

// collect reads the live session state and assembles the result documents
func (f *Finalizer) collect(ctx context.Context, session *model.Session) (*model.GameResults, error) {
	code := session.Code

	var (
		players   []*model.Player
		scores    map[model.PlayerID]int
		questions []model.Question
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := f.sessions.GetPlayers(gctx, code)
		players = p
		return err
	})
	g.Go(func() error {
		sc, err := f.sessions.GetScores(gctx, code)
		scores = sc
		return err
	})
	g.Go(func() error {
		q, err := f.sessions.GetQuestions(gctx, code)
		questions = q
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	answers, err := f.loadAnswers(ctx, code, len(questions))
	if err != nil {
		return nil, err
	}

	return Build(session, players, scores, questions, answers, model.ResultID(uuid.NewString()), f.clock.Now().UTC()), nil
}

func (f *Finalizer) loadAnswers(ctx context.Context, code model.SessionCode, count int) ([]map[model.PlayerID]*model.Answer, error) {
	answers := make([]map[model.PlayerID]*model.Answer, count)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for q := 0; q < count; q++ {
		q := q
		g.Go(func() error {
			a, err := f.sessions.GetAnswers(gctx, code, q)
			if err != nil {
				return err
			}
			answers[q] = a
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return answers, nil
}

// Build assembles the result documents.
// Players are ranked by score descending; ties keep roster (join) order and share a rank.
func Build(
	session *model.Session,
	players []*model.Player,
	scores map[model.PlayerID]int,
	questions []model.Question,
	answers []map[model.PlayerID]*model.Answer,
	id model.ResultID,
	now time.Time,
) *model.GameResults {
	ranked := make([]model.PlayerSnapshot, len(players))
	ids := make([]model.PlayerID, len(players))
	for i, p := range players {
		ranked[i] = model.PlayerSnapshot{
			ID:          p.ID,
			IsGuest:     p.IsGuest,
			DisplayName: p.DisplayName,
			Avatar:      p.Avatar,
			TotalScore:  scores[p.ID],
		}
		ids[i] = p.ID
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].TotalScore > ranked[j].TotalScore
	})

	var winner *model.PlayerSnapshot
	if len(ranked) > 0 {
		w := ranked[0]
		winner = &w
	}

	playerResults := make([]model.PlayerResult, len(ranked))
	for i, snap := range ranked {
		rank := i + 1
		if i > 0 && snap.TotalScore == ranked[i-1].TotalScore {
			rank = playerResults[i-1].Rank
		}
		playerResults[i] = model.PlayerResult{
			GameID:     id,
			Player:     snap,
			TotalScore: snap.TotalScore,
			Rank:       rank,
			Answers:    answerLog(snap.ID, len(questions), answers),
		}
	}

	return &model.GameResults{
		Summary: model.GameSummary{
			ID:               id,
			SessionCode:      session.Code,
			Quiz:             session.Quiz,
			HostID:           session.HostID,
			PlayerIDs:        ids,
			PlayerCount:      len(players),
			Winner:           winner,
			SessionCreatedAt: session.CreatedAt,
			CreatedAt:        now,
		},
		Detail: model.GameDetail{
			ID:               id,
			SessionCode:      session.Code,
			Quiz:             session.Quiz,
			Questions:        questions,
			HostID:           session.HostID,
			Players:          ranked,
			Settings:         session.Settings,
			SessionCreatedAt: session.CreatedAt,
			CreatedAt:        now,
		},
		Players: playerResults,
	}
}

// answerLog lists one entry per question, marking the ones the player never answered
func answerLog(id model.PlayerID, count int, answers []map[model.PlayerID]*model.Answer) []model.Answer {
	log := make([]model.Answer, count)
	for q := 0; q < count; q++ {
		log[q] = model.Unanswered(q)
		if q < len(answers) {
			if a := answers[q][id]; a != nil {
				log[q] = *a
			}
		}
	}
	return log
}
