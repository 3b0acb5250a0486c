// Package sqlite persists quizzes and finalized game results in SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mcoot/livequiz/internal/model"
	"github.com/mcoot/livequiz/internal/storage"
	"github.com/mcoot/livequiz/internal/storage/sqlite/migrations"
)

// MemoryPath opens a private in-memory database
const MemoryPath = ":memory:"

// Store is the durable quiz catalog and result store
type Store struct {
	db *sql.DB
}

// Ensure Store implements the interfaces
var (
	_ storage.QuizCatalog = (*Store)(nil)
	_ storage.ResultStore = (*Store)(nil)
)

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

// Open opens the database at path and applies embedded migrations
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	dsn := "file::memory:?_pragma=foreign_keys(1)"
	if path != MemoryPath {
		dsn = "file:" + filepath.Clean(path) + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if path == MemoryPath {
		// Every connection to :memory: is its own database
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(context.Background(), db, migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{db: db}, nil
}

// Ping checks the database handle
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database handle
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Quiz catalog operations

func (s *Store) GetQuiz(ctx context.Context, id model.QuizID, hostID model.PlayerID) (*model.Quiz, error) {
	quiz := model.Quiz{ID: id}
	var questionsJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT creator_id, title, description, questions_json
		   FROM quizzes
		  WHERE id = ? AND creator_id = ?`,
		string(id), string(hostID),
	).Scan(&quiz.CreatorID, &quiz.Title, &quiz.Description, &questionsJSON)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrQuizNotFound
		}
		return nil, fmt.Errorf("get quiz: %w", err)
	}
	if err := json.Unmarshal([]byte(questionsJSON), &quiz.Questions); err != nil {
		return nil, fmt.Errorf("decode quiz questions: %w", err)
	}
	return &quiz, nil
}

func (s *Store) SaveQuiz(ctx context.Context, quiz *model.Quiz) error {
	if quiz.ID == "" {
		return fmt.Errorf("quiz id is required")
	}
	questionsJSON, err := json.Marshal(quiz.Questions)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO quizzes (id, creator_id, title, description, questions_json, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   creator_id = excluded.creator_id,
		   title = excluded.title,
		   description = excluded.description,
		   questions_json = excluded.questions_json,
		   updated_at = excluded.updated_at`,
		string(quiz.ID), string(quiz.CreatorID), quiz.Title, quiz.Description, string(questionsJSON), toMillis(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("save quiz: %w", err)
	}
	return nil
}

// Result operations

func (s *Store) SaveResults(ctx context.Context, results *model.GameResults) error {
	summaryJSON, err := json.Marshal(results.Summary)
	if err != nil {
		return err
	}
	detailJSON, err := json.Marshal(results.Detail)
	if err != nil {
		return err
	}

	var winnerID sql.NullString
	if results.Summary.Winner != nil {
		winnerID = sql.NullString{String: string(results.Summary.Winner.ID), Valid: true}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save results: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	summary := results.Summary
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO game_summaries (id, session_code, quiz_id, host_id, player_count, winner_id, doc_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		string(summary.ID), string(summary.SessionCode), string(summary.Quiz.ID), string(summary.HostID),
		summary.PlayerCount, winnerID, string(summaryJSON), toMillis(summary.CreatedAt),
	); err != nil {
		return fmt.Errorf("insert game summary: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO game_details (id, doc_json) VALUES (?, ?)`,
		string(results.Detail.ID), string(detailJSON),
	); err != nil {
		return fmt.Errorf("insert game detail: %w", err)
	}

	for _, pr := range results.Players {
		prJSON, err := json.Marshal(pr)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO player_results (game_id, player_id, player_rank, total_score, doc_json)
			 VALUES (?, ?, ?, ?, ?)`,
			string(pr.GameID), string(pr.Player.ID), pr.Rank, pr.TotalScore, string(prJSON),
		); err != nil {
			return fmt.Errorf("insert player result %s: %w", pr.Player.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save results: %w", err)
	}
	return nil
}

func (s *Store) GetSummary(ctx context.Context, id model.ResultID) (*model.GameSummary, error) {
	var summary model.GameSummary
	if err := s.getDoc(ctx, `SELECT doc_json FROM game_summaries WHERE id = ?`, id, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

func (s *Store) GetDetail(ctx context.Context, id model.ResultID) (*model.GameDetail, error) {
	var detail model.GameDetail
	if err := s.getDoc(ctx, `SELECT doc_json FROM game_details WHERE id = ?`, id, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

func (s *Store) ListPlayerResults(ctx context.Context, id model.ResultID) ([]model.PlayerResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT doc_json FROM player_results WHERE game_id = ? ORDER BY player_rank ASC, rowid ASC`,
		string(id),
	)
	if err != nil {
		return nil, fmt.Errorf("list player results: %w", err)
	}
	defer rows.Close()

	var results []model.PlayerResult
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan player result: %w", err)
		}
		var pr model.PlayerResult
		if err := json.Unmarshal([]byte(doc), &pr); err != nil {
			return nil, fmt.Errorf("decode player result: %w", err)
		}
		results = append(results, pr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate player results: %w", err)
	}
	if len(results) == 0 {
		exists, err := s.summaryExists(ctx, id)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, model.ErrResultNotFound
		}
	}
	return results, nil
}

func (s *Store) getDoc(ctx context.Context, query string, id model.ResultID, dest any) error {
	var doc string
	if err := s.db.QueryRowContext(ctx, query, string(id)).Scan(&doc); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.ErrResultNotFound
		}
		return fmt.Errorf("get result %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(doc), dest); err != nil {
		return fmt.Errorf("decode result %s: %w", id, err)
	}
	return nil
}

func (s *Store) summaryExists(ctx context.Context, id model.ResultID) (bool, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM game_summaries WHERE id = ?`, string(id)).Scan(&count); err != nil {
		return false, fmt.Errorf("check result %s: %w", id, err)
	}
	return count > 0, nil
}
