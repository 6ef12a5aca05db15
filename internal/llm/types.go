// Package llm provides the model client used by the coaching agent.
// Types follow the Gemini generateContent shapes closely enough that
// conversion at the wire boundary is mechanical, while keeping callers
// off the provider-specific client.
package llm

import "context"

// Content is one turn of a conversation. Role is "user" or "model";
// tool results travel back as user-role function response parts.
type Content struct {
	Role  string `json:"role"`
	Parts []Part `json:"parts"`
}

// Part is one piece of a turn: text, a model-requested function call,
// or a function response the caller is feeding back.
type Part struct {
	Text             string            `json:"text,omitempty"`
	FunctionCall     *FunctionCall     `json:"functionCall,omitempty"`
	FunctionResponse *FunctionResponse `json:"functionResponse,omitempty"`
}

// FunctionCall is the model asking the caller to run a tool.
type FunctionCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// FunctionResponse carries a tool's result back to the model.
type FunctionResponse struct {
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

// FunctionDeclaration describes one callable tool to the model.
// Parameters is a JSON schema object.
type FunctionDeclaration struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// GenerateRequest is a single model invocation.
type GenerateRequest struct {
	Contents []Content
	Tools    []FunctionDeclaration
}

// GenerateResponse is the model's reply. Parts may mix text and
// function calls; an empty Parts slice is a valid (if unhelpful)
// response and is the caller's problem to handle.
type GenerateResponse struct {
	Parts []Part
}

// Text concatenates the text parts of the response.
func (r *GenerateResponse) Text() string {
	var out string
	for _, p := range r.Parts {
		out += p.Text
	}
	return out
}

// FunctionCalls returns the function call parts of the response.
func (r *GenerateResponse) FunctionCalls() []FunctionCall {
	var calls []FunctionCall
	for _, p := range r.Parts {
		if p.FunctionCall != nil {
			calls = append(calls, *p.FunctionCall)
		}
	}
	return calls
}

// Client generates one model turn. Implementations must be safe for
// concurrent use.
type Client interface {
	Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error)
}
