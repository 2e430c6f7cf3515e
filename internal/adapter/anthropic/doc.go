// Package anthropic implements the adapter contracts and the Agent for
// Anthropic's Messages API. Tool results travel as tool_result blocks in a
// single user message per round; prompts and resources are exposed to the
// model as synthetic tools.
//
// Importing the package registers the "anthropic" provider.
package anthropic
