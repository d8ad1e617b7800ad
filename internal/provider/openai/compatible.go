package openai

import (
	"strings"

	"github.com/vnmchuo/teleaon-gateway/internal/provider"
)

// Default models used when a caller passes another vendor's model id.
var compatibleDefaults = map[string]string{
	"groq":     "llama-3.1-70b-versatile",
	"deepseek": "deepseek-chat",
}

var compatibleNames = map[string]string{
	"groq":     "Groq",
	"deepseek": "DeepSeek",
}

// NewCompatible returns an adapter for an OpenAI-compatible vendor such as Groq
// or DeepSeek. vendor is the lower-case provider key and doubles as the model prefix.
func NewCompatible(vendor, baseURL string, transport *provider.Transport) *ChatProvider {
	vendor = strings.ToLower(vendor)
	display, ok := compatibleNames[vendor]
	if !ok {
		display = vendor
	}
	return NewChatProvider(vendor, display, baseURL, transport, WithResolver(func(model string) string {
		return ResolveCompatibleModel(vendor, model)
	}))
}

// ResolveCompatibleModel strips vendor+"/" from model. A foreign vendor id is
// replaced by the vendor's default, or by its last path segment when the vendor
// has no default.
func ResolveCompatibleModel(vendor, model string) string {
	if m, ok := provider.StripVendorPrefix(model, vendor); ok {
		return m
	}
	if def, ok := compatibleDefaults[vendor]; ok {
		return def
	}
	return model[strings.LastIndex(model, "/")+1:]
}
