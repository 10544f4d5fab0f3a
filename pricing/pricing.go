// Package pricing computes the credit cost of third-party generation
// requests. Pricing functions are pure: same request, same quote. Each
// provider table carries a version string that is stamped onto the
// resulting ledger entry so historical charges stay explainable after
// a price change.
package pricing

import (
	"errors"
	"fmt"
)

// ErrUnsupportedModel is returned when no pricing rule matches the request.
var ErrUnsupportedModel = errors.New("pricing: unsupported model")

// UnsupportedModelError reports which request could not be priced.
// It unwraps to ErrUnsupportedModel.
type UnsupportedModelError struct {
	Provider string
	Model    string
}

func (e *UnsupportedModelError) Error() string {
	return fmt.Sprintf("pricing: unsupported model %q for provider %q", e.Model, e.Provider)
}

func (e *UnsupportedModelError) Unwrap() error { return ErrUnsupportedModel }

// Request describes one paid generation call to be priced.
type Request struct {
	Provider  string            `json:"provider"`  // e.g. "flux", "sora"
	Operation string            `json:"operation"` // e.g. "image.generate"
	Model     string            `json:"model"`
	Quantity  int64             `json:"quantity"` // provider-specific unit count; 0 means 1
	Params    map[string]string `json:"params,omitempty"`
}

// Reason returns the ledger reason tag for this request,
// "<provider>.<operation>".
func (r Request) Reason() string {
	return r.Provider + "." + r.Operation
}

func (r Request) quantity() int64 {
	if r.Quantity <= 0 {
		return 1
	}
	return r.Quantity
}

// Quote is the priced result of one request.
type Quote struct {
	Cost    int64             `json:"cost"`    // credits
	Version string            `json:"version"` // pricing table version
	Meta    map[string]string `json:"meta,omitempty"`
}

// Func prices requests for one provider.
type Func func(Request) (Quote, error)

// Registry maps provider names to pricing functions.
type Registry struct {
	providers map[string]Func
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Func)}
}

// Register adds or replaces the pricing function for a provider.
func (r *Registry) Register(provider string, fn Func) *Registry {
	r.providers[provider] = fn
	return r
}

// Compute prices the request. An unknown provider or a provider function
// that cannot match the model yields an *UnsupportedModelError.
func (r *Registry) Compute(req Request) (Quote, error) {
	fn, ok := r.providers[req.Provider]
	if !ok {
		return Quote{}, &UnsupportedModelError{Provider: req.Provider, Model: req.Model}
	}
	return fn(req)
}

// Default returns a registry preloaded with the built-in provider tables.
func Default() *Registry {
	r := NewRegistry()
	r.Register("flux", tablePricer("flux", fluxVersion, fluxTable))
	r.Register("gpt-image", gptImagePricer)
	r.Register("sora", soraPricer)
	r.Register("chat", tablePricer("chat", chatVersion, chatTable))
	return r
}
