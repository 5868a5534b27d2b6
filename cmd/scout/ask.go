package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/go-go-golems/scout/pkg/agent"
	"github.com/go-go-golems/scout/pkg/blocks"
	"github.com/go-go-golems/scout/pkg/config"
	"github.com/go-go-golems/scout/pkg/session"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

type askFlags struct {
	mode         string
	sources      []string
	files        []string
	chatID       string
	messageID    string
	instructions string
	suggestions  bool
	output       string
	render       bool
}

type turnOutput struct {
	ChatID    string         `json:"chatId" yaml:"chatId"`
	MessageID string         `json:"messageId" yaml:"messageId"`
	Blocks    []blocks.Block `json:"blocks" yaml:"blocks"`
}

func newAskCommand() *cobra.Command {
	f := &askFlags{}
	cmd := &cobra.Command{
		Use:   "ask [query]",
		Short: "Answer a question, streaming the answer as it is written",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd, f, strings.Join(args, " "))
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&f.mode, "mode", "", "speed, balanced or quality")
	flags.StringSliceVar(&f.sources, "source", nil, "enabled sources: web, academic, discussions")
	flags.StringSliceVar(&f.files, "file", nil, "uploaded file ids to search")
	flags.StringVar(&f.chatID, "chat", "", "continue this chat")
	flags.StringVar(&f.messageID, "message", "", "message id; reusing one re-answers it and drops later messages")
	flags.StringVar(&f.instructions, "instructions", "", "extra system instructions for the answer")
	flags.BoolVar(&f.suggestions, "suggestions", false, "generate follow-up suggestions")
	flags.StringVarP(&f.output, "output", "o", "text", "text, json or yaml")
	flags.BoolVar(&f.render, "render", false, "render the answer as markdown once complete")
	return cmd
}

func applyAskFlags(cmd *cobra.Command, s *config.Settings, f *askFlags) {
	flags := cmd.Flags()
	if flags.Changed("mode") {
		s.Agent.Mode = f.mode
	}
	if flags.Changed("source") {
		s.Agent.Sources = f.sources
	}
	if flags.Changed("instructions") {
		s.Agent.SystemInstructions = f.instructions
	}
	if flags.Changed("suggestions") {
		s.Agent.Suggestions = f.suggestions
	}
}

// streamText prints the growth of every text block as it arrives.
func streamText(w io.Writer, events <-chan session.Event, done chan<- struct{}) {
	defer close(done)
	r := session.NewReconstructor()
	printed := map[string]int{}
	for ev := range events {
		if err := r.Apply(ev); err != nil {
			log.Warn().Err(err).Uint64("seq", ev.Seq).Msg("could not apply event")
			continue
		}
		id := ev.BlockID
		if ev.Block != nil {
			id = ev.Block.ID
		}
		b, ok := r.Block(id)
		if !ok || b.Type != blocks.TypeText {
			continue
		}
		text, err := b.Text()
		if err != nil || len(text) <= printed[id] {
			continue
		}
		_, _ = io.WriteString(w, text[printed[id]:])
		printed[id] = len(text)
	}
}

func answerText(bs []blocks.Block) string {
	var sb strings.Builder
	for _, b := range bs {
		if b.Type != blocks.TypeText {
			continue
		}
		if text, err := b.Text(); err == nil {
			sb.WriteString(text)
		}
	}
	return sb.String()
}

func printSources(w io.Writer, bs []blocks.Block) {
	for _, b := range bs {
		switch b.Type {
		case blocks.TypeSource:
			chunks, err := b.Sources()
			if err != nil || len(chunks) == 0 {
				continue
			}
			fmt.Fprintln(w, "\nSources:")
			for i, c := range chunks {
				fmt.Fprintf(w, "[%d] %s - %s\n", i+1, c.Title(), c.URL())
			}
		case blocks.TypeSuggestion:
			suggestions, err := b.Suggestions()
			if err != nil || len(suggestions) == 0 {
				continue
			}
			fmt.Fprintln(w, "\nYou could also ask:")
			for _, s := range suggestions {
				fmt.Fprintf(w, "- %s\n", s)
			}
		}
	}
}

func runAsk(cmd *cobra.Command, f *askFlags, query string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	base, err := loadSettings()
	if err != nil {
		return err
	}
	s := base.Clone()
	applyAskFlags(cmd, s, f)

	if strings.TrimSpace(query) == "" {
		if query, err = askQuery(); err != nil {
			return err
		}
	}

	rt, err := config.Build(s)
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close store")
		}
	}()

	cfg := s.TurnConfig()
	cfg.FileIDs = f.files
	in := agent.Input{
		ChatID:    f.chatID,
		MessageID: f.messageID,
		Query:     query,
		Config:    cfg,
	}
	if in.ChatID == "" {
		in.ChatID = uuid.NewString()
	} else {
		msgs, err := rt.Store.ListMessages(ctx, in.ChatID)
		if err != nil {
			return errors.Wrap(err, "load chat")
		}
		in.History = agent.HistoryFromMessages(msgs, in.MessageID)
	}
	if in.MessageID == "" {
		in.MessageID = uuid.NewString()
	}

	return answer(ctx, cmd.OutOrStdout(), rt.Agent, in, f)
}

func answer(ctx context.Context, w io.Writer, a *agent.SearchAgent, in agent.Input, f *askFlags) error {
	sess := session.New(session.WithID(in.MessageID))
	live := f.output == "text" && !f.render

	done := make(chan struct{})
	if live {
		events, err := sess.Subscribe(ctx)
		if err != nil {
			return err
		}
		go streamText(w, events, done)
	} else {
		close(done)
	}

	runErr := a.Run(ctx, sess, in)
	_ = sess.Close()
	<-done

	all := sess.GetAllBlocks()
	switch f.output {
	case "json", "yaml":
		if err := printStructured(w, f.output, turnOutput{ChatID: in.ChatID, MessageID: in.MessageID, Blocks: all}); err != nil {
			return err
		}
	default:
		if f.render {
			rendered, err := renderMarkdown(answerText(all))
			if err != nil {
				return err
			}
			fmt.Fprint(w, rendered)
		} else {
			fmt.Fprintln(w)
		}
		printSources(w, all)
	}
	log.Info().Str("chat_id", in.ChatID).Str("message_id", in.MessageID).Msg("turn finished, continue with --chat")
	return runErr
}
