package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/mcoot/livequiz/internal/api/response"
	"github.com/mcoot/livequiz/internal/services/broadcast"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
}

// NewOutput creates a new Output formatter
func NewOutput(format string) *Output {
	return &Output{format: format}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintError outputs an error
func (o *Output) PrintError(err error) {
	if o.format == "json" {
		errData := map[string]any{
			"error": map[string]string{
				"message": err.Error(),
			},
		}
		data, _ := json.Marshal(errData)
		fmt.Fprintln(os.Stderr, string(data))
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		data, _ := json.Marshal(map[string]string{"message": msg})
		fmt.Println(string(data))
	} else {
		fmt.Println(msg)
	}
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case Identity:
		o.printIdentity(v)
	case broadcast.SessionSnapshot:
		o.printSnapshot(v)
	case response.QuizDetail:
		o.printQuiz(v)
	case response.Summary:
		o.printSummary(v)
	case response.Detail:
		o.printDetail(v)
	case []response.PlayerResult:
		o.printPlayerResults(v)
	case response.HealthResponse:
		o.printHealth(v)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

func (o *Output) printIdentity(i Identity) {
	guestStr := "no"
	if i.Guest {
		guestStr = "yes"
	}
	fmt.Printf("Player: %s (%s)\n", i.DisplayName, i.PlayerID)
	fmt.Printf("Guest: %s\n", guestStr)
}

func (o *Output) printSnapshot(s broadcast.SessionSnapshot) {
	fmt.Printf("Session: %s\n", s.Code)
	fmt.Printf("Status: %s\n", s.Status)
	fmt.Printf("Quiz: %s (%d questions)\n", s.Quiz.Title, s.Quiz.QuestionCount)
	fmt.Printf("Settings: %d questions, %ds each, %ds cooldown, max %d players\n",
		s.Settings.QuestionCount, s.Settings.TimePerQuestion, s.Settings.Cooldown, s.Settings.MaxPlayers)
	if s.Host != nil {
		online := "offline"
		if s.Host.Online {
			online = "online"
		}
		fmt.Printf("Host: %s (%s) - %s\n", s.Host.DisplayName, s.Host.ID, online)
	}

	fmt.Printf("Players (%d):\n", len(s.Players))
	for _, p := range s.Players {
		fmt.Printf("  - %s (%s) - %d points\n", p.DisplayName, p.ID, p.Score)
	}

	if s.Round != nil {
		fmt.Printf("\nRound: %s, question %d, ends %s\n",
			s.Round.Phase, s.Round.QuestionIndex+1, s.Round.EndsAt.Local().Format(time.TimeOnly))
		if q := s.Round.Question; q != nil {
			fmt.Printf("  %s\n", q.Text)
			for i, opt := range q.Options {
				marker := " "
				if q.CorrectKey != "" && opt.Key == q.CorrectKey {
					marker = "*"
				}
				fmt.Printf("  %s [%d] %s) %s\n", marker, i, opt.Key, opt.Text)
			}
		}
	}

	if s.ResultID != "" {
		fmt.Printf("\nResults: %s\n", s.ResultID)
	}
}

func (o *Output) printQuiz(q response.QuizDetail) {
	fmt.Printf("Quiz: %s (%s)\n", q.Title, q.ID)
	if q.Description != "" {
		fmt.Printf("Description: %s\n", q.Description)
	}
	fmt.Printf("Questions (%d):\n", len(q.Questions))
	for i, question := range q.Questions {
		fmt.Printf("  %d. %s [%s]\n", i+1, question.Text, question.CorrectKey)
	}
}

func (o *Output) printSummary(s response.Summary) {
	fmt.Printf("Game: %s\n", s.ID)
	fmt.Printf("Quiz: %s\n", s.Quiz.Title)
	fmt.Printf("Session: %s\n", s.SessionCode)
	fmt.Printf("Players: %d\n", s.PlayerCount)
	if s.Winner != nil {
		fmt.Printf("Winner: %s with %d points\n", s.Winner.DisplayName, s.Winner.TotalScore)
	} else {
		fmt.Println("Winner: none")
	}
	fmt.Printf("Finished: %s\n", s.CreatedAt.Local().Format(time.DateTime))
}

func (o *Output) printDetail(d response.Detail) {
	fmt.Printf("Game: %s\n", d.ID)
	fmt.Printf("Quiz: %s\n", d.Quiz.Title)
	fmt.Printf("Timing: %ds per question, %ds cooldown\n", d.TimePerQuestion, d.Cooldown)
	fmt.Printf("Questions (%d):\n", len(d.Questions))
	for i, q := range d.Questions {
		fmt.Printf("  %d. %s [%s]\n", i+1, q.Text, q.CorrectKey)
	}
}

func (o *Output) printPlayerResults(results []response.PlayerResult) {
	fmt.Println("Standings:")
	for _, r := range results {
		fmt.Printf("  %d. %s - %d points\n", r.Rank, r.Player.DisplayName, r.TotalScore)
		for _, a := range r.Answers {
			if a.Key == nil {
				fmt.Printf("     Q%d: no answer\n", a.QuestionIndex+1)
				continue
			}
			fmt.Printf("     Q%d: %s (%d pts)\n", a.QuestionIndex+1, *a.Key, a.Score)
		}
	}
}

func (o *Output) printHealth(h response.HealthResponse) {
	fmt.Printf("Status: %s\n", h.Status)
	if h.Error != "" {
		fmt.Printf("Error: %s\n", h.Error)
	}
}
