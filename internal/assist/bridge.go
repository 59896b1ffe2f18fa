package assist

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"pkt.systems/devdeck/core"
	"pkt.systems/devdeck/schema"
	"pkt.systems/pslog"
)

const (
	// DefaultTimeout bounds a single upstream call.
	DefaultTimeout = 60 * time.Second
	// DefaultCompletionMaxChars is the trailing input kept for completions.
	DefaultCompletionMaxChars = 1500
)

var (
	leadingFence  = regexp.MustCompile("^```[\\w+#.-]*\\r?\\n")
	trailingFence = regexp.MustCompile("\\r?\\n```$")
)

// Config tunes a Bridge.
type Config struct {
	Timeout            time.Duration
	CompletionMaxChars int
}

// Bridge layers prompt templates and failure classification over a Generator.
type Bridge struct {
	gen Generator
	cfg Config
	log pslog.Logger
}

// NewBridge constructs a bridge. A nil generator yields config failures.
func NewBridge(gen Generator, cfg Config, logger pslog.Logger) *Bridge {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.CompletionMaxChars <= 0 {
		cfg.CompletionMaxChars = DefaultCompletionMaxChars
	}
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Bridge{gen: gen, cfg: cfg, log: logger.With("component", "assist")}
}

// Configured reports whether a generator is available.
func (b *Bridge) Configured() bool {
	return b != nil && b.gen != nil
}

// Complete sends prompt and normalizes the outcome.
func (b *Bridge) Complete(ctx context.Context, prompt string) schema.AssistResult {
	text, err := b.generate(ctx, "complete", prompt)
	if err != nil {
		return failure(err)
	}
	return schema.AssistResult{Success: true, Text: text}
}

// Explain asks for an explanation of code.
func (b *Bridge) Explain(ctx context.Context, code string) schema.AssistResult {
	text, err := b.generate(ctx, "explain", "Explain the following code:\n\n"+code)
	if err != nil {
		return failure(err)
	}
	return schema.AssistResult{Success: true, Text: text}
}

// Refactor asks for a refactored version of code and strips code fences.
func (b *Bridge) Refactor(ctx context.Context, code, language string) schema.RefactorResult {
	prompt := fmt.Sprintf("You are an expert %s developer. Refactor the following code and return ONLY the code:\n\n%s", languageName(language), code)
	text, err := b.generate(ctx, "refactor", prompt)
	if err != nil {
		res := failure(err)
		return schema.RefactorResult{Kind: res.Kind, Message: res.Message}
	}
	return schema.RefactorResult{Success: true, Code: StripFences(text)}
}

// InlineCompletion returns a continuation for code, or nil on any failure.
func (b *Bridge) InlineCompletion(ctx context.Context, code, language string) *string {
	prompt := fmt.Sprintf("You are an expert %s developer. Complete the following code and return ONLY the code:\n\n%s", languageName(language), Tail(code, b.cfg.CompletionMaxChars))
	text, err := b.generate(ctx, "inline", prompt)
	if err != nil {
		return nil
	}
	cleaned := StripFences(text)
	if cleaned == "" {
		return nil
	}
	return &cleaned
}

func (b *Bridge) generate(ctx context.Context, op, prompt string) (string, error) {
	log := b.log.With("op", op)
	if !b.Configured() {
		log.Warn("assist request skipped", "err", schema.ErrAssistNotConfigured)
		return "", &core.AssistError{Kind: schema.AssistFailureConfig, Op: op, Message: schema.ErrAssistNotConfigured.Error(), Err: schema.ErrAssistNotConfigured}
	}
	callCtx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()
	start := time.Now()
	text, err := b.gen.Generate(callCtx, prompt)
	if err != nil {
		classified := Classify(op, err)
		log.Warn("assist request failed", "kind", classified.Kind, "status", classified.Status, "err", err, "duration_ms", time.Since(start).Milliseconds())
		return "", classified
	}
	if strings.TrimSpace(text) == "" {
		log.Warn("assist request empty", "duration_ms", time.Since(start).Milliseconds())
		return "", &core.AssistError{Kind: schema.AssistFailureEmpty, Op: op, Message: "empty response"}
	}
	log.Debug("assist request ok", "duration_ms", time.Since(start).Milliseconds(), "chars", utf8.RuneCountInString(text))
	return text, nil
}

// Classify maps a generator error onto a failure kind.
func Classify(op string, err error) *core.AssistError {
	var assistErr *core.AssistError
	if errors.As(err, &assistErr) {
		return assistErr
	}
	var status *StatusError
	if errors.As(err, &status) {
		out := &core.AssistError{Op: op, Status: status.Code, Err: err}
		switch {
		case status.Code == 401 || status.Code == 403,
			status.Code == 400 && strings.Contains(strings.ToLower(status.Message), "api key not valid"):
			out.Kind = schema.AssistFailureAuth
			out.Message = "invalid API key"
		case status.Code == 429:
			out.Kind = schema.AssistFailureRateLimit
			out.Message = "rate limit reached"
		case status.Code == 404:
			out.Kind = schema.AssistFailureNotFound
			out.Message = "model or endpoint not found"
		default:
			msg := status.Message
			if msg == "" {
				msg = "unknown error"
			}
			out.Kind = schema.AssistFailureUpstream
			out.Message = fmt.Sprintf("error %d: %s", status.Code, msg)
		}
		return out
	}
	return &core.AssistError{Kind: schema.AssistFailureNetwork, Op: op, Message: "connection error: " + err.Error(), Err: err}
}

func failure(err error) schema.AssistResult {
	classified := Classify("", err)
	return schema.AssistResult{Kind: classified.Kind, Message: classified.Error()}
}

// StripFences trims a leading ```lang line and a trailing ``` line.
func StripFences(text string) string {
	text = strings.TrimSpace(text)
	text = leadingFence.ReplaceAllString(text, "")
	text = trailingFence.ReplaceAllString(text, "")
	return text
}

// Tail keeps the last max runes of code, prefixed with "..." when cut.
func Tail(code string, max int) string {
	if max <= 0 || utf8.RuneCountInString(code) <= max {
		return code
	}
	runes := []rune(code)
	return "..." + string(runes[len(runes)-max:])
}

func languageName(language string) string {
	language = strings.TrimSpace(language)
	if language == "" {
		return "software"
	}
	return language
}
