package redis

import (
	"fmt"

	"github.com/mcoot/livequiz/internal/model"
)

// Key prefix for all session data
const keyPrefix = "livequiz"

// Placeholder stored in an answer hash until the player answers
const answerPlaceholder = "null"

// sessionKey returns the Redis key for a Session; every satellite key extends it
func sessionKey(code model.SessionCode) string {
	return fmt.Sprintf("%s:session:%s", keyPrefix, code)
}

// sessionPattern matches every satellite key of a session
func sessionPattern(code model.SessionCode) string {
	return sessionKey(code) + ":*"
}

func hostKey(code model.SessionCode) string {
	return sessionKey(code) + ":host"
}

// playersKey returns the HASH of player id -> Player
func playersKey(code model.SessionCode) string {
	return sessionKey(code) + ":players"
}

// bansKey returns the HASH of player id -> Ban
func bansKey(code model.SessionCode) string {
	return sessionKey(code) + ":bans"
}

func questionsKey(code model.SessionCode) string {
	return sessionKey(code) + ":questions"
}

// answersKey returns the HASH of player id -> Answer (or placeholder) for one question
func answersKey(code model.SessionCode, question int) string {
	return fmt.Sprintf("%s:answers:%d", sessionKey(code), question)
}

// remainingKey returns the counter of correct answers still eligible for a bonus
func remainingKey(code model.SessionCode, question int) string {
	return fmt.Sprintf("%s:remaining:%d", sessionKey(code), question)
}

// scoresKey returns the HASH of player id -> accumulated score
func scoresKey(code model.SessionCode) string {
	return sessionKey(code) + ":scores"
}

// flushedKey returns the HASH of question index -> 1 for questions already added to the scores
func flushedKey(code model.SessionCode) string {
	return sessionKey(code) + ":flushed"
}

func startedKey(code model.SessionCode) string {
	return sessionKey(code) + ":started"
}

func finalizedKey(code model.SessionCode) string {
	return sessionKey(code) + ":finalized"
}

// hostLockKey returns the Redis key pointing a (host, quiz) pair at its live session
func hostLockKey(hostID model.PlayerID, quizID model.QuizID) string {
	return fmt.Sprintf("%s:hostlock:%s:%s", keyPrefix, hostID, quizID)
}

// namespaceKeys returns every fixed satellite key plus the per-question keys for n questions
func namespaceKeys(code model.SessionCode, n int) []string {
	keys := []string{
		hostKey(code),
		playersKey(code),
		bansKey(code),
		questionsKey(code),
		scoresKey(code),
		flushedKey(code),
		startedKey(code),
		finalizedKey(code),
	}
	for q := 0; q < n; q++ {
		keys = append(keys, answersKey(code, q), remainingKey(code, q))
	}
	return keys
}
