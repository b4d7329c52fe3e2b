// Package chunker segments paragraphs into bounded chunks by delegating the
// split decision to a generative model. The source text is never altered:
// the model may only insert separators, and its output is verified against
// the paragraph before being trusted.
package chunker

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/tlefevre/chisel/internal/llm"
	"github.com/tlefevre/chisel/internal/store"
)

// Separator is the single character the model uses to mark chunk boundaries.
const Separator = "/"

const systemPrompt = `You are a mechanical text segmentation agent.
You are NOT allowed to rephrase, correct, translate or normalize anything.

TASK
Split the provided text into coherent sub-parts called "chunks".

ABSOLUTE INVARIANT (CRITICAL):
Concatenating all chunks exactly in order, removing only the "/" separators,
must yield STRICTLY the original text, character for character.

STRICT RULES:
- NEVER modify the text (no word, no space, no punctuation).
- Do NOT fix mistakes, even obvious ones.
- Do NOT translate or change the language.
- Split only at natural idea boundaries (sentences, clauses, transitions).
- Each chunk must remain understandable on its own.
- Avoid chunks shorter than 50 or longer than 800 characters.
- Do not artificially merge distinct ideas to satisfy the size guidance.

OUTPUT FORMAT (MANDATORY):
- A single line.
- Chunks separated ONLY by the "/" character.
- No "/" at the start or end.
- No line breaks.
- No explanatory text.

EXAMPLE:
Input:
"Marie aime les pommes. Elle vit à Paris. Elle travaille dans une librairie."

Output:
"Marie aime les pommes./ Elle vit à Paris./ Elle travaille dans une librairie."`

// Chunker drives one segmentation call per paragraph.
type Chunker struct {
	provider llm.Provider
	delay    time.Duration
	logger   *slog.Logger
}

// New creates a Chunker. delay is a fixed pause after each successful call,
// a deliberate throttle on the backing service rather than a correctness
// mechanism.
func New(provider llm.Provider, delay time.Duration) *Chunker {
	return &Chunker{provider: provider, delay: delay, logger: slog.Default()}
}

// ChunkParagraph segments one paragraph and attaches provenance metadata.
// A service failure is logged and yields zero chunks; the caller still
// records the paragraph. Zero chunks is a valid outcome, never an error.
func (c *Chunker) ChunkParagraph(ctx context.Context, text, documentName string, pageNumber int, parentID string) []store.Chunk {
	temperature := 0.0
	resp, err := c.provider.Complete(ctx, &llm.Prompt{
		SystemPrompt: systemPrompt,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: "TEXT TO SPLIT:\n" + text},
		},
	}, &llm.RequestOptions{Temperature: &temperature})
	if err != nil {
		c.logger.Warn("segmentation call failed, paragraph yields no chunks",
			"document", documentName, "page", pageNumber, "paragraph", parentID, "err", err)
		return nil
	}

	fragments := parse(resp.Content)
	if len(fragments) > 0 && !reconstructs(text, resp.Content) {
		// The model altered the text. Deterministic fallback: the whole
		// paragraph becomes a single chunk.
		c.logger.Warn("segmentation output does not reconstruct the paragraph, falling back to one chunk",
			"document", documentName, "page", pageNumber, "paragraph", parentID)
		fragments = []string{strings.TrimSpace(text)}
	}

	chunks := make([]store.Chunk, 0, len(fragments))
	for _, f := range fragments {
		chunks = append(chunks, store.Chunk{
			ParentParagraphID: parentID,
			PageNumber:        pageNumber,
			DocumentName:      documentName,
			Text:              f,
		})
	}

	c.throttle(ctx)
	return chunks
}

// parse splits the single-line response on the separator, trims each
// fragment and drops empty ones.
func parse(response string) []string {
	var fragments []string
	for _, f := range strings.Split(response, Separator) {
		f = strings.TrimSpace(f)
		if f != "" {
			fragments = append(fragments, f)
		}
	}
	return fragments
}

// reconstructs checks the round-trip invariant: the response with separators
// removed must reproduce the paragraph. Whitespace is ignored on both sides
// because fragments are trimmed at separator boundaries and the model quotes
// its output on a single line.
func reconstructs(original, response string) bool {
	return stripSpace(strings.ReplaceAll(response, Separator, "")) == stripSpace(original)
}

func stripSpace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if !unicode.IsSpace(r) && r != '"' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func (c *Chunker) throttle(ctx context.Context) {
	if c.delay <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(c.delay):
	}
}
