package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mcoot/livequiz/internal/api/request"
	"github.com/mcoot/livequiz/internal/model"
	"github.com/mcoot/livequiz/internal/services/broadcast"
)

func newSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Live session commands",
	}

	cmd.AddCommand(newSessionCreateCmd())
	cmd.AddCommand(newSessionGetCmd())
	cmd.AddCommand(newSessionSimpleCmd("join", "Join a session as a player", model.CommandJoin))
	cmd.AddCommand(newSessionSimpleCmd("leave", "Leave a session", model.CommandLeave))
	cmd.AddCommand(newSessionSimpleCmd("start", "Start the game (host only)", model.CommandStart))
	cmd.AddCommand(newSessionSimpleCmd("close", "Close the session without results (host only)", model.CommandClose))
	cmd.AddCommand(newSessionKickCmd())
	cmd.AddCommand(newSessionSettingsCmd())
	cmd.AddCommand(newSessionProfileCmd())
	cmd.AddCommand(newSessionAnswerCmd())

	return cmd
}

func newSessionCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create <quiz-id>",
		Short: "Host a session for one of your quizzes",
		Long:  "Host a session for one of your quizzes. Hosting the same quiz again returns the open session.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result broadcast.SessionSnapshot

			if err := client.Post("/api/v1/sessions", request.CreateSessionRequest{QuizID: args[0]}, &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}
}

func newSessionGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <code>",
		Short: "Show a session snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result broadcast.SessionSnapshot

			if err := client.Get("/api/v1/sessions/"+sessionCode(args[0]), &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}
}

func newSessionSimpleCmd(use, short string, commandType model.CommandType) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <code>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return sendCommand(args[0], commandType, nil)
		},
	}
}

func newSessionKickCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "kick <code> <player-id>",
		Short: "Remove a player and ban them for a while (host only)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return sendCommand(args[0], model.CommandKick, model.KickPayload{PlayerID: model.PlayerID(args[1])})
		},
	}
}

func newSessionSettingsCmd() *cobra.Command {
	var (
		maxPlayers       int
		questionCount    int
		timePerQuestion  int
		cooldown         int
		shuffleQuestions bool
		shuffleAnswers   bool
	)

	cmd := &cobra.Command{
		Use:   "settings <code>",
		Short: "Change session settings in the lobby (host only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch model.UpdateSettingsPayload
			flags := cmd.Flags()
			if flags.Changed("max-players") {
				patch.MaxPlayers = &maxPlayers
			}
			if flags.Changed("questions") {
				patch.QuestionCount = &questionCount
			}
			if flags.Changed("time") {
				patch.TimePerQuestion = &timePerQuestion
			}
			if flags.Changed("cooldown") {
				patch.Cooldown = &cooldown
			}
			if flags.Changed("shuffle-questions") {
				patch.ShuffleQuestions = &shuffleQuestions
			}
			if flags.Changed("shuffle-answers") {
				patch.ShuffleAnswers = &shuffleAnswers
			}
			return sendCommand(args[0], model.CommandUpdateSettings, patch)
		},
	}

	cmd.Flags().IntVar(&maxPlayers, "max-players", 0, "Maximum number of players")
	cmd.Flags().IntVar(&questionCount, "questions", 0, "Number of questions to play")
	cmd.Flags().IntVar(&timePerQuestion, "time", 0, "Seconds per question")
	cmd.Flags().IntVar(&cooldown, "cooldown", 0, "Seconds between questions")
	cmd.Flags().BoolVar(&shuffleQuestions, "shuffle-questions", false, "Shuffle question order")
	cmd.Flags().BoolVar(&shuffleAnswers, "shuffle-answers", false, "Shuffle answer options")

	return cmd
}

func newSessionProfileCmd() *cobra.Command {
	var avatar string

	cmd := &cobra.Command{
		Use:   "profile <code> <display-name>",
		Short: "Change your display name and avatar in a session",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return sendCommand(args[0], model.CommandUpdateProfile, model.UpdateProfilePayload{
				DisplayName: args[1],
				Avatar:      avatar,
			})
		},
	}

	cmd.Flags().StringVar(&avatar, "avatar", "", "Avatar")

	return cmd
}

func newSessionAnswerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "answer <code> <option-index> <key>",
		Short: "Answer the open question",
		Long:  "Answer the open question. The index and key must both match the option as shown in the session snapshot.",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid option index %q", args[1])
			}
			return sendCommand(args[0], model.CommandSubmitAnswer, model.SubmitAnswerPayload{
				OptionIndex: index,
				Key:         model.OptionKey(strings.ToUpper(args[2])),
			})
		},
	}
}

func sendCommand(code string, commandType model.CommandType, payload any) error {
	if cfg.Identity.PlayerID == "" {
		return fmt.Errorf("no identity set; use --player-id or 'livequiz identity set <name>'")
	}

	req := map[string]any{"type": commandType}
	if payload != nil {
		req["payload"] = payload
	}

	if err := client.Post("/api/v1/sessions/"+sessionCode(code)+"/commands", req, nil); err != nil {
		return err
	}

	out := NewOutput(cfg.Output)
	out.PrintMessage(fmt.Sprintf("%s accepted", commandType))
	return nil
}

func sessionCode(code string) string {
	return strings.ToUpper(code)
}
