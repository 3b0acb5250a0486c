package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mcoot/livequiz/internal/api/request"
	"github.com/mcoot/livequiz/internal/api/response"
)

func newQuizCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quiz",
		Short: "Quiz authoring commands",
	}

	cmd.AddCommand(newQuizImportCmd())
	cmd.AddCommand(newQuizGetCmd())

	return cmd
}

func newQuizImportCmd() *cobra.Command {
	var replace string

	cmd := &cobra.Command{
		Use:   "import <file.json>",
		Short: "Create a quiz from a JSON file",
		Long: `Create a quiz from a JSON file of the form:

  {"title": "...", "description": "...",
   "questions": [{"question": "...", "options": [{"key": "A", "text": "..."}], "correctKey": "A"}]}

With --replace the quiz with that id is overwritten instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			var req request.SaveQuizRequest
			if err := json.Unmarshal(data, &req); err != nil {
				return fmt.Errorf("parse quiz file: %w", err)
			}

			var result response.QuizDetail
			if replace != "" {
				err = client.Put("/api/v1/quizzes/"+replace, req, &result)
			} else {
				err = client.Post("/api/v1/quizzes", req, &result)
			}
			if err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&replace, "replace", "", "Id of an existing quiz to overwrite")

	return cmd
}

func newQuizGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one of your quizzes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result response.QuizDetail

			if err := client.Get("/api/v1/quizzes/"+args[0], &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}
}
