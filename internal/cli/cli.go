package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/buger/goterm"
	"github.com/chzyer/readline"
	"github.com/fatih/color"
)

var (
	// Colors for different types of output
	userInputColor   = color.New(color.FgWhite)               // White for user input
	aiOutputColor    = color.New(color.FgCyan)                // Cyan for assistant responses
	titleColor       = color.New(color.FgMagenta, color.Bold) // Bold magenta for titles
	separatorColor   = color.New(color.FgHiBlack)             // Dark grey for separators
	infoColor        = color.New(color.FgGreen)               // Green for informational output
	errorColor       = color.New(color.FgRed)                 // Red for inline errors
	attachmentColor  = color.New(color.FgYellow)              // Yellow for attachment info
	promptColor      = color.New(color.FgHiBlue)              // Bright blue for prompts

	width = goterm.Width()
)

// Separator printed to cli.
func Separator() {
	separator := strings.Repeat("-", width)
	separatorColor.Println(separator)
}

// Title printed to cli.
func Title(text string, args ...any) {
	title := "      " + fmt.Sprintf(text, args...) + "      "
	leftWidth := (width - len(title)) / 2
	if leftWidth < 0 {
		leftWidth = 0
	}
	separator1 := strings.Repeat("-", leftWidth)
	separator2 := strings.Repeat("-", max(width-len(title)-len(separator1), 0))
	output := fmt.Sprintf("%s%s%s", separator1, title, separator2)
	titleColor.Println(output)
}

// UserInput printed to cli.
func UserInput(text string, args ...any) {
	userInputColor.Printf(text, args...)
}

// AIOutput printed to cli.
func AIOutput(text string, args ...any) {
	text = strings.ReplaceAll(text, "%", "%%")
	aiOutputColor.Printf(text, args...)
}

// Info printed to cli.
func Info(text string, args ...any) {
	infoColor.Printf(text, args...)
}

// Error printed to cli.
func Error(text string, args ...any) {
	errorColor.Printf(text, args...)
}

// AttachmentInfo printed to cli.
func AttachmentInfo(text string, args ...any) {
	attachmentColor.Printf(text, args...)
}

// PromptUser for input.
func PromptUser() (string, error) {
	config := &readline.Config{
		Prompt:            promptColor.Sprint("> "),
		InterruptPrompt:   "^C",
		HistoryFile:       filepath.Join(os.TempDir(), "famagent.history"),
		HistorySearchFold: true,
	}

	rl, err := readline.NewEx(config)
	if err != nil {
		return "", err
	}
	defer rl.Close()
	return rl.Readline()
}

// QueryUser a yes/no question.
func QueryUser(question string) bool {
	surveyQuestion := &survey.Confirm{
		Message: question,
	}
	confirm := false
	survey.AskOne(surveyQuestion, &confirm)
	return confirm
}

// QueryUserInput for a one-line answer.
func QueryUserInput(question string) string {
	surveyQuestion := &survey.Input{
		Message: question,
	}
	answer := ""
	survey.AskOne(surveyQuestion, &answer)
	return answer
}

// QueryUserPassword for a masked answer.
func QueryUserPassword(question string) string {
	surveyQuestion := &survey.Password{
		Message: question,
	}
	answer := ""
	survey.AskOne(surveyQuestion, &answer)
	return answer
}

// QueryUserSelect one option among several.
func QueryUserSelect(question string, options []string) string {
	surveyQuestion := &survey.Select{
		Message: question,
		Options: options,
	}
	answer := ""
	survey.AskOne(surveyQuestion, &answer)
	return answer
}
