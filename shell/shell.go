// Package shell is the terminal front end driving the chat core: a readline
// REPL standing in for the visual component tree.
package shell

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/famworld/famagent/auth"
	"github.com/famworld/famagent/chat"
	"github.com/famworld/famagent/internal/attachment"
	"github.com/famworld/famagent/internal/cli"
	"github.com/famworld/famagent/internal/configuration"
	"github.com/famworld/famagent/internal/debug"
	"github.com/famworld/famagent/internal/thumbnail"
	"github.com/famworld/famagent/llm"
	"github.com/famworld/famagent/store"
)

const defaultMaxTokens = 1000

// repl holds the state of one interactive session.
type repl struct {
	config      *configuration.Config
	workspaces  *chat.Store
	authService *auth.Service
	reconciler  *chat.Reconciler

	// Attachments staged for the next turn.
	pending    []*chat.Attachment
	searchMode bool
}

// NewCmd instantiates and returns the chat command.
func NewCmd(config *configuration.Config, docs *store.Store) *cobra.Command {
	var opts struct {
		Model      string
		SearchMode bool
	}
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Back and forth chat with workspaces",
		Long:  "Back and forth chat with workspaces",
		Args:  cobra.ExactArgs(0),
		Run: func(cmd *cobra.Command, args []string) {
			logger := debug.GetLogger()

			encoder := &thumbnail.Encoder{
				MaxWidth: config.Persist.ThumbnailMaxWidth,
				Quality:  config.Persist.ThumbnailQuality,
			}
			sanitizer := chat.NewSanitizer(encoder.EncodeBase64, logger)
			debounce := time.Duration(config.Persist.DebounceMilliseconds) * time.Millisecond
			workspaces := chat.NewStore(docs, sanitizer, debounce, logger)
			defer workspaces.Flush()

			authService := auth.NewService(docs, logger)
			if workspaces.User() == nil {
				user, err := loginFlow(authService)
				cobra.CheckErr(err)
				workspaces.SetUser(user)
			}

			client := llm.NewOpenAIClient(config.APIKey, config.APIHost)
			reconciler := chat.NewReconciler(workspaces, client, opts.Model, defaultMaxTokens, logger)
			reconciler.OnFragment = func(token string) { cli.AIOutput(token) }

			r := &repl{
				config:      config,
				workspaces:  workspaces,
				authService: authService,
				reconciler:  reconciler,
				searchMode:  opts.SearchMode,
			}
			cli.Title("FAMAGENT [%s]", opts.Model)
			cli.Info("Welcome back, %s. /help lists commands.\n", firstName(workspaces.User().Name))
			printMessages(workspaces.LiveMessages())
			r.loop()
		},
	}

	cmd.Flags().StringVarP(&opts.Model, "model", "m", config.Model, "specify a model")
	cmd.Flags().BoolVarP(&opts.SearchMode, "search", "s", false, "ground responses with web search")
	return cmd
}

func (r *repl) loop() {
	for {
		text, err := cli.PromptUser()
		if err != nil {
			// Interrupt or EOF ends the session; pending state is flushed
			// by the deferred Flush.
			return
		}

		if strings.HasPrefix(strings.TrimSpace(text), "/") {
			if quit := r.runCommand(text); quit {
				return
			}
			continue
		}
		r.sendTurn(text)
	}
}

func (r *repl) sendTurn(text string) {
	cli.AIOutput("AGENT: ")
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.config.RequestTimeout)*time.Second)
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	err := r.reconciler.Send(ctx, text, r.pending, r.searchMode)
	stop()
	cancel()
	r.pending = nil

	switch {
	case errors.Is(err, chat.ErrEmptyTurn):
		return
	case errors.Is(err, chat.ErrBusy):
		cli.Error("still responding, hold on\n")
		return
	case errors.Is(err, context.Canceled):
		cli.Info("\n#Interrupted\n")
		return
	}
	cli.AIOutput("\n")
	if last := lastMessage(r.workspaces.LiveMessages()); last != nil && last.Errored {
		cli.Error("%s\n", last.Text)
	}
}

// runCommand dispatches a slash command. Returns true when the REPL should
// exit.
func (r *repl) runCommand(input string) bool {
	fields := strings.Fields(strings.TrimSpace(input))
	command, args := fields[0], fields[1:]
	switch command {
	case "/quit", "/exit":
		return true

	case "/help":
		cli.Info("/workspaces /select <key> /new /delete [key] /attach <file>... /search /profile <name> /logout /quit\n")

	case "/workspaces":
		active := r.workspaces.ActiveWorkspace()
		for _, key := range r.workspaces.WorkspaceKeys() {
			marker := "  "
			if key == active {
				marker = "* "
			}
			cli.Info("%s%s\n", marker, key)
		}

	case "/select":
		if len(args) == 0 {
			cli.Error("usage: /select <key>\n")
			return false
		}
		r.workspaces.SelectWorkspace(strings.Join(args, " "))
		printMessages(r.workspaces.LiveMessages())

	case "/new":
		r.workspaces.NewConversation()
		printMessages(r.workspaces.LiveMessages())

	case "/delete":
		key := strings.Join(args, " ")
		if key == "" {
			key = r.workspaces.ActiveWorkspace()
		}
		if key == "" {
			cli.Error("no workspace to delete\n")
			return false
		}
		if cli.QueryUser(fmt.Sprintf("Delete workspace %q? This cannot be undone.", key)) {
			r.workspaces.DeleteWorkspace(key)
			cli.Info("Workspace %q deleted.\n", key)
		}

	case "/attach":
		if len(args) == 0 {
			cli.Error("usage: /attach <file>...\n")
			return false
		}
		attachments, err := attachment.Load(args)
		if err != nil {
			cli.Error("%s\n", err)
			return false
		}
		for _, a := range attachments {
			cli.AttachmentInfo("attached %s (%s)\n", a.Filename, a.MimeType)
		}
		r.pending = append(r.pending, attachments...)

	case "/search":
		r.searchMode = !r.searchMode
		cli.Info("search mode: %v\n", r.searchMode)

	case "/profile":
		if len(args) == 0 {
			cli.Error("usage: /profile <name>\n")
			return false
		}
		r.updateProfile(strings.Join(args, " "))

	case "/logout":
		r.workspaces.Logout()
		cli.Info("Logged out.\n")
		return true

	default:
		cli.Error("unknown command %s\n", command)
	}
	return false
}

// updateProfile applies the rename locally first, then reconciles with the
// credential service in the background. Divergence is logged, not surfaced.
func (r *repl) updateProfile(name string) {
	user := r.workspaces.User()
	if user == nil {
		return
	}
	user.Name = name
	r.workspaces.SetUser(user)
	go func() {
		if _, err := r.authService.UpdateProfile(user.Email, auth.ProfilePatch{Name: &name}); err != nil {
			debug.GetLogger().Warn("reconciling profile update", "error", err)
		}
	}()
	cli.Info("Profile updated.\n")
}

func printMessages(messages []*chat.Message) {
	for _, message := range messages {
		switch {
		case message.Errored:
			cli.Error("%s\n", message.Text)
		case message.Role == chat.RoleUser:
			cli.UserInput("> %s\n", message.Text)
		default:
			cli.AIOutput(message.Text + "\n")
		}
	}
}

func lastMessage(messages []*chat.Message) *chat.Message {
	if len(messages) == 0 {
		return nil
	}
	return messages[len(messages)-1]
}

func firstName(name string) string {
	if i := strings.IndexByte(name, ' '); i != -1 {
		return name[:i]
	}
	return name
}
