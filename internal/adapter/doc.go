// Package adapter defines the translation layer between provider-native
// model output and the wire protocol. Three narrow interfaces split the
// concern: a ToolMapper advertises server capabilities as provider tool
// specs, a CallTranslator turns a requested tool call into a protocol
// request, and a ContentMapper turns protocol results back into
// provider-native history fragments plus UI artifacts.
//
// Providers register a Factory under a name; the orchestrator builds one
// bundle (agent plus adapter) per session through the registry.
package adapter
