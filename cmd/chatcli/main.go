// Command chatcli opens one group or tutor conversation in the terminal.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"tutor-chat/internal/config"
	"tutor-chat/internal/engine/apiclient"
	"tutor-chat/internal/engine/audio"
	"tutor-chat/internal/engine/connection"
	"tutor-chat/internal/engine/poller"
	"tutor-chat/internal/engine/sender"
	"tutor-chat/internal/engine/session"
	"tutor-chat/internal/engine/store"
	"tutor-chat/internal/models"
)

type options struct {
	cfg     config.ClientConfig
	apiURL  string
	token   string
	userID  int
	groupID int
	chatID  int
	tail    int
}

func main() {
	opts := &options{cfg: config.LoadClient()}

	rootCmd := &cobra.Command{
		Use:   "chatcli",
		Short: "Terminal client for group and tutor chats",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.token == "" || opts.userID == 0 {
				return errors.New("CHAT_TOKEN and CHAT_USER_ID (or --token and --user) are required")
			}
			return nil
		},
		SilenceUsage: true,
	}
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVar(&opts.apiURL, "api", opts.cfg.APIURL, "chat API base url")
	rootCmd.PersistentFlags().StringVar(&opts.token, "token", opts.cfg.Token, "bearer token")
	rootCmd.PersistentFlags().IntVar(&opts.userID, "user", opts.cfg.UserID, "id of the signed-in user")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List the groups and tutor chats you belong to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listConversations(cmd.Context(), opts.client(), cmd.OutOrStdout())
		},
	}

	openCmd := &cobra.Command{
		Use:   "open",
		Short: "Open one conversation and read commands from stdin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return openConversation(cmd.Context(), opts)
		},
	}
	openCmd.Flags().IntVar(&opts.groupID, "group", 0, "group id to open")
	openCmd.Flags().IntVar(&opts.chatID, "tutor-chat", 0, "tutor chat id to open")
	openCmd.Flags().IntVar(&opts.tail, "tail", 20, "messages to print per refresh, 0 for all")
	openCmd.MarkFlagsMutuallyExclusive("group", "tutor-chat")
	openCmd.MarkFlagsOneRequired("group", "tutor-chat")

	rootCmd.AddCommand(listCmd, openCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func (o *options) client() *apiclient.Client {
	return apiclient.New(o.apiURL, o.token, apiclient.WithTimeout(o.cfg.HTTPTimeout))
}

// readLines feeds r line by line until r ends or ctx is done.
func readLines(ctx context.Context, r io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}

func openConversation(parent context.Context, opts *options) error {
	ctx, stop := context.WithCancel(parent)
	defer stop()

	client := opts.client()
	conv, err := findConversation(ctx, client, opts.groupID, opts.chatID)
	if err != nil {
		return err
	}

	cfg := opts.cfg
	out := os.Stdout
	sess := session.New(client, conv, nil, nil, session.Config{
		UserID:       opts.userID,
		MediaBaseURL: opts.apiURL,
		Poll: poller.Config{
			Interval:    cfg.PollInterval,
			RetryBase:   cfg.RetryBase,
			MaxAttempts: cfg.MaxSyncRetries,
		},
		Send: sender.Config{
			RetryDelay:     cfg.SendRetryDelay,
			MaxRetries:     cfg.MaxSendRetries,
			MaxUploadBytes: cfg.MaxUploadBytes,
		},
		Highlight: cfg.Highlight,
	}, session.Hooks{
		SessionExpired: func() {
			fmt.Fprintln(out, "session expired, sign in again")
			stop()
		},
		ConversationClosed: func(_ models.Conversation, err error) {
			fmt.Fprintf(out, "conversation is no longer available: %s\n", apiclient.MessageOf(err))
			stop()
		},
		Error: func(err error) {
			fmt.Fprintf(out, "sync failed: %s (type /reconnect to retry)\n", apiclient.MessageOf(err))
		},
		Focus: func(messageID int) {
			fmt.Fprintf(out, "search hit: message %d\n", messageID)
		},
		MediaError: func(messageID int, err *audio.MediaError) {
			fmt.Fprintf(out, "media error on message %d: %v\n", messageID, err)
		},
	})
	defer sess.Close()

	sess.ObserveStatus(func(s connection.Status) {
		fmt.Fprintf(out, "status: %s\n", s)
	})
	unsubscribe := sess.Subscribe(func(snap store.Snapshot) {
		renderSnapshot(out, snap, sess.Reactions, sess.Cursor().Highlighted, opts.tail)
	})
	defer unsubscribe()

	fmt.Fprintf(out, "opened %s %d %s\n%s\n", conv.Kind, conv.ID, conv.Name, usage)
	sess.Start(ctx)

	lines := readLines(ctx, os.Stdin)

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			cmd, err := parseCommand(line)
			if err != nil {
				fmt.Fprintln(out, err)
				continue
			}
			if cmd.Name == "quit" {
				return nil
			}
			if err := run(ctx, sess, cmd); err != nil {
				fmt.Fprintf(out, "%s failed: %s\n", cmd.Name, apiclient.MessageOf(err))
			}
		}
	}
}

func run(ctx context.Context, sess *session.Session, cmd command) error {
	out := os.Stdout
	switch cmd.Name {
	case "send":
		sess.SetDraftText(cmd.Arg)
		_, err := sess.SendDraft(ctx)
		return err
	case "file":
		path, caption := cmd.fileArgs()
		file, err := readAttachment(path)
		if err != nil {
			return err
		}
		sess.AttachFile(file)
		sess.SetDraftText(caption)
		_, err = sess.SendDraft(ctx)
		return err
	case "search":
		hits := sess.Search(cmd.Arg)
		fmt.Fprintf(out, "%d result(s) for %q\n", len(hits), cmd.Arg)
	case "next":
		if _, ok := sess.NextResult(); !ok {
			fmt.Fprintln(out, "no search results")
		}
	case "prev":
		if _, ok := sess.PreviousResult(); !ok {
			fmt.Fprintln(out, "no search results")
		}
	case "clear":
		sess.ClearSearch()
	case "react":
		res, err := sess.React(ctx, cmd.ID, cmd.Arg)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "reaction %s %s\n", cmd.Arg, res.Action)
	case "pin":
		return sess.Pin(ctx, cmd.ID)
	case "unpin":
		return sess.Unpin(ctx, cmd.ID)
	case "pinned":
		renderPinned(out, sess.Pinned())
	case "edit":
		_, err := sess.Edit(ctx, cmd.ID, cmd.Arg)
		return err
	case "delete":
		return sess.Delete(ctx, cmd.ID)
	case "reconnect":
		sess.Reconnect()
	case "help":
		fmt.Fprintln(out, usage)
	}
	return nil
}

// findConversation resolves an id to a conversation the caller belongs to.
func findConversation(ctx context.Context, client *apiclient.Client, groupID, tutorChatID int) (models.Conversation, error) {
	if groupID != 0 {
		groups, err := client.ListGroups(ctx)
		if err != nil {
			return models.Conversation{}, fmt.Errorf("list groups: %w", err)
		}
		for _, g := range groups {
			if g.ID == groupID {
				return models.GroupConversation(g), nil
			}
		}
		return models.Conversation{}, fmt.Errorf("group %d not found among your groups", groupID)
	}

	chats, err := client.ListTutorChats(ctx)
	if err != nil {
		return models.Conversation{}, fmt.Errorf("list tutor chats: %w", err)
	}
	for _, c := range chats {
		if c.ID == tutorChatID {
			return models.TutorConversation(c), nil
		}
	}
	return models.Conversation{}, fmt.Errorf("tutor chat %d not found among your chats", tutorChatID)
}

func listConversations(ctx context.Context, client *apiclient.Client, w io.Writer) error {
	groups, err := client.ListGroups(ctx)
	if err != nil {
		return fmt.Errorf("list groups: %w", err)
	}
	chats, err := client.ListTutorChats(ctx)
	if err != nil {
		return fmt.Errorf("list tutor chats: %w", err)
	}
	fmt.Fprintln(w, "groups:")
	for _, g := range groups {
		fmt.Fprintf(w, "  --group %d  %s (%d members)\n", g.ID, g.Name, len(g.Members))
	}
	fmt.Fprintln(w, "tutor chats:")
	for _, c := range chats {
		fmt.Fprintf(w, "  --tutor-chat %d  student %d, tutor %d\n", c.ID, c.StudentID, c.TutorID)
	}
	return nil
}

func readAttachment(path string) (apiclient.Attachment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return apiclient.Attachment{}, err
	}
	mimeType := mime.TypeByExtension(filepath.Ext(path))
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	return apiclient.Attachment{Name: filepath.Base(path), MIME: mimeType, Data: data}, nil
}
