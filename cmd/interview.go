package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/questlabs/interviewd/internal/interview"
	"github.com/questlabs/interviewd/internal/logger"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	PromptYes = "Yes"
	PromptNo  = "No"
)

var errExit = errors.New("exit requested")

var modePrompt = promptui.Select{
	Label: "Choose an interview mode",
	Items: []string{string(interview.ModeExperience), string(interview.ModeTeach)},
}

var interviewCmd = &cobra.Command{
	Use:   "interview",
	Short: "Run an interactive interview in the terminal",
	Run: func(cmd *cobra.Command, _ []string) {
		runInterview(cmd)
	},
}

func init() {
	rootCmd.AddCommand(interviewCmd)

	interviewCmd.Flags().StringP("resume", "r", "", "path to a resume file (required)")
	interviewCmd.Flags().String("job-description", "", "path to a job description file (required)")
	interviewCmd.Flags().StringP("mode", "m", "", "interview mode: experience or teach (prompted when empty)")

	interviewCmd.MarkFlagRequired("resume")
	interviewCmd.MarkFlagRequired("job-description")
}

func runInterview(cmd *cobra.Command) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	resumeText, jdText, err := readInterviewInputs(cmd)
	if err != nil {
		logger.Fatal("reading interview inputs", zap.Error(err))
	}

	mode, err := chooseMode(cmd)
	if err != nil {
		if errors.Is(err, errExit) {
			logger.Info("exiting")
			return
		}
		logger.Fatal("choosing a mode", zap.Error(err))
	}

	engine, _ := buildEngine(ctx, config, logger)

	fmt.Println("Preparing your interview. This can take a moment.")

	start, err := engine.CreateSession(ctx, resumeText, jdText, mode)
	if err != nil {
		logger.Fatal("starting the interview", zap.Error(err))
	}

	question := start.FirstQuestion
	for {
		fmt.Printf("\n%s\n", question)

		answer, err := askAnswer()
		if err != nil {
			logger.Fatal("reading an answer", zap.Error(err))
		}

		result, err := engine.SubmitAnswer(ctx, start.SessionID, question, answer)
		if err != nil {
			logger.Fatal("submitting an answer", zap.Error(err))
		}

		fmt.Printf("\nScore: %d/10\n%s\n", result.Evaluation.Score, result.Evaluation.Feedback)

		if result.Done {
			break
		}
		question = result.NextQuestion
	}

	reportPrompt := promptui.Select{
		Label: "Interview finished. Generate a report?",
		Items: []string{PromptYes, PromptNo},
	}

	_, selected, err := reportPrompt.Run()
	if err != nil || selected == PromptNo {
		return
	}

	report, err := engine.GenerateReport(ctx, start.SessionID)
	if err != nil {
		logger.Fatal("generating a report", zap.Error(err))
	}

	printReport(report)
}

func readInterviewInputs(cmd *cobra.Command) (string, string, error) {
	resumePath, _ := cmd.Flags().GetString("resume")
	jdPath, _ := cmd.Flags().GetString("job-description")

	resumeText, err := os.ReadFile(resumePath)
	if err != nil {
		return "", "", fmt.Errorf("reading the resume file: %w", err)
	}

	jdText, err := os.ReadFile(jdPath)
	if err != nil {
		return "", "", fmt.Errorf("reading the job description file: %w", err)
	}

	return string(resumeText), string(jdText), nil
}

func chooseMode(cmd *cobra.Command) (interview.Mode, error) {
	if flagMode, _ := cmd.Flags().GetString("mode"); flagMode != "" {
		mode := interview.Mode(flagMode)
		if !mode.Valid() {
			return "", fmt.Errorf("unknown interview mode: %s", flagMode)
		}
		return mode, nil
	}

	_, selected, err := modePrompt.Run()
	if err != nil {
		if errors.Is(err, promptui.ErrInterrupt) {
			return "", errExit
		}
		return "", err
	}

	return interview.Mode(selected), nil
}

func askAnswer() (string, error) {
	answer := promptui.Prompt{
		Label: "Your answer",
		Validate: func(input string) error {
			if strings.TrimSpace(input) == "" {
				return errors.New("an answer cannot be empty")
			}
			return nil
		},
	}

	return answer.Run()
}

func printReport(result *interview.ReportResult) {
	fmt.Println("\n=== Interview report ===")

	if result.Report.Raw != "" {
		fmt.Println(result.Report.Raw)
		return
	}

	printSection("Strengths", result.Report.Strengths)
	printSection("Weaknesses", result.Report.Weaknesses)
	printSection("Recommendations", result.Report.Recommendations)
}

func printSection(title string, items []string) {
	if len(items) == 0 {
		return
	}

	fmt.Printf("\n%s:\n", title)
	for _, item := range items {
		fmt.Printf("  - %s\n", item)
	}
}
