package provider

import "strings"

// StripVendorPrefix applies the shared prefix rule. A model id containing "/"
// that does not start with vendor+"/" belongs to another vendor: ok is false and
// the caller substitutes its own default. Otherwise the vendor prefix, if any,
// is removed.
func StripVendorPrefix(model, vendor string) (resolved string, ok bool) {
	prefix := vendor + "/"
	if strings.Contains(model, "/") && !strings.HasPrefix(model, prefix) {
		return "", false
	}
	return strings.TrimPrefix(model, prefix), true
}
