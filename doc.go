// Package pulsechat holds the shared conversation types used across the
// agent, completion, tool, and store packages.
//
// The heart of the project is the [github.com/pulsechat/pulsechat/agent]
// package: an iterative reasoning loop that alternates model completions
// with tool invocations and streams its progress as typed events. The
// other packages are the collaborators that loop talks to:
//
//   - [github.com/pulsechat/pulsechat/completion]: text-generation backends
//   - [github.com/pulsechat/pulsechat/tool]: web search and trends retrieval
//   - [github.com/pulsechat/pulsechat/event]: the streamed event protocol
//   - [github.com/pulsechat/pulsechat/store]: conversation persistence
//   - [github.com/pulsechat/pulsechat/server]: HTTP/SSE transport
package pulsechat
