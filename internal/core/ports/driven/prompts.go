package driven

// PromptStore provides access to LLM prompt templates.
// Implementations may load prompts from files, embed them in the binary,
// or fetch them from a remote configuration service.
type PromptStore interface {
	// Load returns the prompt template for the given name.
	// If the prompt is not found, implementations should return a sensible default
	// or an error, depending on whether the prompt is required.
	Load(name string) (string, error)

	// Reload clears any cached prompts, forcing fresh loads on next access.
	// This is useful when prompts may have been edited on disk.
	Reload()
}

// Well-known prompt names used throughout the application.
// These constants define the contract between prompt consumers and providers.
const (
	// PromptAnswer answers a question from retrieved context.
	// The template expects %s (context) then %s (question).
	PromptAnswer = "answer"

	// PromptTopicSummary summarises retrieved context about a topic.
	// The template expects %s (context) then %s (topic).
	PromptTopicSummary = "topic_summary"

	// PromptSummarise summarises a window of document text.
	// The template expects %d (max words) and %s (content) placeholders.
	PromptSummarise = "summarise"

	// PromptCombine merges partial summaries into one.
	// The template expects %d (max words) and %s (partial summaries) placeholders.
	PromptCombine = "combine"
)

// PromptStoreAware is an optional interface for services that can use custom prompts.
// Services implementing this interface can have their prompt templates customised
// by injecting a PromptStore after construction.
type PromptStoreAware interface {
	// SetPromptStore sets the prompt store for loading customisable prompts.
	// If not set, the service should use hardcoded default prompts.
	SetPromptStore(store PromptStore)
}

// DefaultPrompts returns the built-in template for each well-known prompt.
// Grounding text goes in <context> tags and the question or topic in <question> tags.
func DefaultPrompts() map[string]string {
	return map[string]string{
		PromptAnswer: `Answer the question using only the document context below.
If the context does not contain the answer, say that the document does not cover it.

<context>
%s
</context>

<question>%s</question>

Answer:`,

		PromptTopicSummary: `Summarise what the document context below says about the topic.
Use only facts from the context.

<context>
%s
</context>

<question>%s</question>

Summary:`,

		PromptSummarise: `Summarise the following text in at most %d words.
Keep names, numbers and key facts.

<context>
%s
</context>

Summary:`,

		PromptCombine: `Combine these partial summaries into a single summary of at most %d words.
Remove repetition and keep the original order of topics.

<context>
%s
</context>

Summary:`,
	}
}
