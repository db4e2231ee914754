package driven

// PromptStore provides access to oracle prompt templates.
// Implementations may load prompts from files or embed them in the binary.
type PromptStore interface {
	// Load returns the prompt template for the given name.
	Load(name string) (string, error)

	// Reload clears any cached prompts, forcing fresh loads on next access.
	Reload()
}

// Well-known prompt names. Each template expects a single %s placeholder
// for the (possibly truncated) content or query text.
const (
	// PromptDescribeText asks for the key concepts of prose.
	PromptDescribeText = "describe_text"

	// PromptDescribeCode asks for the purpose and behaviour of source code.
	PromptDescribeCode = "describe_code"

	// PromptDescribeStructured asks for the schema and meaning of records.
	PromptDescribeStructured = "describe_structured"

	// PromptDescribeQuery asks what a relevant document would contain.
	PromptDescribeQuery = "describe_query"
)
