package chatbot

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"localchat/internal/backend"
	"localchat/internal/cache"
	"localchat/internal/config"
	"localchat/internal/rag"
	"localchat/internal/session"
	"localchat/internal/telemetry"

	"github.com/google/uuid"
)

// State is the conversation loop's position in its turn cycle.
type State int

const (
	StateIdle State = iota
	StateAwaitingModel
	StateTerminated
)

// Streamer is the model-service surface the loop needs. *backend.Client
// satisfies it.
type Streamer interface {
	ChatStream(ctx context.Context, model string, messages []backend.ChatMessage, fn backend.FragmentFunc) (backend.Usage, error)
}

// Retriever supplies optional document context for a turn.
type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]rag.Result, error)
}

// ChatBot drives the interactive conversation loop: one user input, one
// streamed assistant reply, strictly sequential.
type ChatBot struct {
	cfg       config.Config
	store     *session.Store
	model     Streamer
	retriever Retriever // nil when retrieval is disabled
	cache     *cache.Store
	logger    *slog.Logger
	tracer    trace.Tracer
	meter     metric.Meter
	in        io.Reader
	out       io.Writer
	cleanup   func()

	state State
}

// NewChatBot wires the production bot: telemetry, model client, optional
// retrieval index. It validates the configured model against the server and
// fails before the loop starts if the service is unreachable or the model is
// missing.
func NewChatBot(cfg config.Config) (*ChatBot, error) {
	logger, err := telemetry.InitLogger(cfg.Debug)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	ctx := context.Background()
	tracer, meter, cleanup, err := telemetry.InitTelemetry(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	client := backend.NewClient(cfg.OllamaURL)
	client.SetTemperature(cfg.Temperature)

	ok, err := client.HasModel(ctx, cfg.Model)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("model service unreachable at startup: %w", err)
	}
	if !ok {
		cleanup()
		return nil, &config.ConfigurationError{Field: "model", Reason: fmt.Sprintf("%q not available on the server", cfg.Model)}
	}

	var retriever Retriever
	if cfg.RAGEnabled {
		store, err := rag.Open(cfg.RAGStore)
		if err != nil {
			logger.Warn("could not open retrieval index, continuing without context", "path", cfg.RAGStore, "error", err)
		} else {
			retriever = rag.NewRetriever(store, client, cfg.EmbedModel, cfg.RAGTopK)
		}
	}

	cb := newBot(cfg, client, retriever, logger, tracer, meter, os.Stdin, os.Stdout)
	cb.cleanup = cleanup

	logger.Info("chatbot ready", "thread_id", cfg.ThreadID, "model", cfg.Model, "rag", retriever != nil)
	return cb, nil
}

// newBot assembles a bot from explicit collaborators.
func newBot(cfg config.Config, model Streamer, retriever Retriever, logger *slog.Logger, tracer trace.Tracer, meter metric.Meter, in io.Reader, out io.Writer) *ChatBot {
	if logger == nil {
		logger = slog.Default()
	}
	if tracer == nil {
		tracer = otel.Tracer("localchat")
	}
	if meter == nil {
		meter = otel.Meter("localchat")
	}
	return &ChatBot{
		cfg:       cfg,
		store:     session.NewStore(cfg.Model, cfg.MaxTurns),
		model:     model,
		retriever: retriever,
		cache:     cache.NewStore(0),
		logger:    logger,
		tracer:    tracer,
		meter:     meter,
		in:        in,
		out:       out,
		state:     StateIdle,
	}
}

// State reports the loop state.
func (cb *ChatBot) State() State { return cb.state }

// History returns the current thread's transcript.
func (cb *ChatBot) History() []session.Message {
	return cb.store.History(cb.cfg.ThreadID)
}

// Run starts the interactive loop and blocks until termination or EOF.
func (cb *ChatBot) Run(ctx context.Context) error {
	if cb.cleanup != nil {
		defer cb.cleanup()
	}

	fmt.Fprintln(cb.out, "Chatbot is ready!")
	fmt.Fprintf(cb.out, "(Type %s to stop.)\n\n", strings.Join(cb.cfg.QuitWords, "/"))

	scanner := bufio.NewScanner(cb.in)
	for cb.state != StateTerminated {
		fmt.Fprint(cb.out, "You: ")
		if !scanner.Scan() {
			fmt.Fprintln(cb.out)
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			// Re-prompt; empty input is not a failure.
			continue
		}

		if cb.isQuitWord(input) {
			cb.state = StateTerminated
			fmt.Fprintln(cb.out, "Goodbye!")
			break
		}

		if strings.HasPrefix(input, "/") {
			quit, err := cb.handleCommand(input)
			if err != nil {
				fmt.Fprintf(cb.out, "Error: %v\n", err)
			}
			if quit {
				cb.state = StateTerminated
				fmt.Fprintln(cb.out, "Goodbye!")
				break
			}
			continue
		}

		if err := cb.Turn(ctx, input); err != nil {
			// The turn is aborted but the session stays usable.
			fmt.Fprintf(cb.out, "\nError: %v\n", err)
			cb.logger.Error("turn failed", "thread_id", cb.cfg.ThreadID, "error", err)
		}
	}

	cb.logger.Info("loop ended", "thread_id", cb.cfg.ThreadID, "messages", cb.store.Len(cb.cfg.ThreadID))
	return scanner.Err()
}

// Turn executes one conversation turn: append the user message, stream the
// model reply to the output writer fragment by fragment, then persist the
// assembled reply. On a model-service failure no partial assistant message is
// stored; the user message stays in history.
func (cb *ChatBot) Turn(ctx context.Context, input string) error {
	cb.state = StateAwaitingModel
	defer func() {
		if cb.state == StateAwaitingModel {
			cb.state = StateIdle
		}
	}()

	threadID := cb.cfg.ThreadID
	cb.store.GetOrCreate(threadID)
	cb.store.Append(threadID, session.Message{Role: session.RoleUser, Content: input})

	outbound := cb.buildOutbound(ctx, input)

	cacheKey := cache.Key(toSessionMessages(outbound))
	if cached, ok := cb.cache.Get(cacheKey); ok {
		cb.logger.Info("cache hit", "key", cacheKey[:16])
		fmt.Fprintf(cb.out, "Assistant: %s\n\n", cached)
		cb.store.Append(threadID, session.Message{Role: session.RoleAssistant, Content: cached})
		return nil
	}

	ctx, span := cb.tracer.Start(ctx, "model_call")
	defer span.End()

	start := time.Now()
	fmt.Fprint(cb.out, "Assistant: ")

	var full strings.Builder
	usage, err := cb.model.ChatStream(ctx, cb.cfg.Model, outbound, func(fragment string) error {
		full.WriteString(fragment)
		_, werr := io.WriteString(cb.out, fragment)
		return werr
	})
	if err != nil {
		// Drop the partial reply so the next turn's context stays clean.
		return err
	}
	fmt.Fprint(cb.out, "\n\n")

	response := full.String()
	cb.store.Append(threadID, session.Message{Role: session.RoleAssistant, Content: response})
	cb.cache.Put(cacheKey, response)

	cb.recordUsage(ctx, usage, time.Since(start))
	cb.logger.Info("turn complete",
		"thread_id", threadID,
		"prompt_tokens", usage.PromptEvalCount,
		"response_tokens", usage.EvalCount,
		"response_len", len(response),
	)
	return nil
}

// buildOutbound converts the full history to the wire shape. When retrieval
// is enabled and finds matches, the final user turn is prefixed with a
// CONTEXT block; stored history keeps the raw user text.
func (cb *ChatBot) buildOutbound(ctx context.Context, input string) []backend.ChatMessage {
	history := cb.store.History(cb.cfg.ThreadID)
	outbound := make([]backend.ChatMessage, len(history))
	for i, msg := range history {
		outbound[i] = backend.ChatMessage{Role: msg.Role, Content: msg.Content}
	}

	if cb.retriever == nil {
		return outbound
	}

	results, err := cb.retriever.Retrieve(ctx, input)
	if err != nil {
		cb.logger.Warn("context retrieval failed, continuing without context", "error", err)
		return outbound
	}
	if len(results) == 0 {
		return outbound
	}

	last := len(outbound) - 1
	outbound[last].Content = rag.FormatContext(results) + "\n\n" + outbound[last].Content
	return outbound
}

func (cb *ChatBot) isQuitWord(input string) bool {
	for _, w := range cb.cfg.QuitWords {
		if strings.EqualFold(input, w) {
			return true
		}
	}
	return false
}

// recordUsage emits the per-call duration histogram and token counters.
func (cb *ChatBot) recordUsage(ctx context.Context, usage backend.Usage, elapsed time.Duration) {
	histogram, err := cb.meter.Float64Histogram(
		"llm.request.duration",
		metric.WithDescription("Model request duration in milliseconds"),
	)
	if err == nil {
		histogram.Record(ctx, float64(elapsed.Milliseconds()))
	}

	counts := map[string]int64{
		"prompt_eval_count": int64(usage.PromptEvalCount),
		"eval_count":        int64(usage.EvalCount),
	}
	for key, value := range counts {
		counter, err := cb.meter.Int64Counter(
			fmt.Sprintf("llm.usage.%s", key),
			metric.WithDescription(fmt.Sprintf("LLM usage metric: %s", key)),
		)
		if err != nil {
			cb.logger.Warn("failed to create counter", "key", key, "error", err)
			continue
		}
		counter.Add(ctx, value)
	}
}

// handleCommand handles slash commands.
func (cb *ChatBot) handleCommand(cmd string) (bool, error) {
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return false, nil
	}

	switch parts[0] {
	case "/quit", "/exit":
		return true, nil

	case "/new-session":
		cb.cfg.ThreadID = uuid.NewString()
		cb.store.GetOrCreate(cb.cfg.ThreadID)
		cb.logger.Info("created new session", "thread_id", cb.cfg.ThreadID)
		fmt.Fprintln(cb.out, "Started new session:", cb.cfg.ThreadID)
		return false, nil

	case "/history":
		history := cb.store.History(cb.cfg.ThreadID)
		if len(history) == 0 {
			fmt.Fprintln(cb.out, "(empty)")
			return false, nil
		}
		for _, msg := range history {
			fmt.Fprintf(cb.out, "%s: %s\n", msg.Role, msg.Content)
		}
		return false, nil

	case "/help":
		fmt.Fprintln(cb.out, "Available commands:")
		fmt.Fprintln(cb.out, "  /quit, /exit   - Exit the chatbot")
		fmt.Fprintln(cb.out, "  /new-session   - Start a new chat session")
		fmt.Fprintln(cb.out, "  /history       - Print the current transcript")
		fmt.Fprintln(cb.out, "  /help          - Show this help message")
		return false, nil

	default:
		return false, fmt.Errorf("unknown command: %s (try /help)", parts[0])
	}
}

func toSessionMessages(messages []backend.ChatMessage) []session.Message {
	out := make([]session.Message, len(messages))
	for i, m := range messages {
		out[i] = session.Message{Role: m.Role, Content: m.Content}
	}
	return out
}
