// Package catalog wires the built-in vendor adapters into a registry.
// Registration is explicit so the supported provider set stays a closed,
// reviewable list.
package catalog

import (
	"tabhq/internal/provider"
	"tabhq/internal/provider/flutterwave"
	"tabhq/internal/provider/paypal"
	"tabhq/internal/provider/stripe"
)

// Default returns a registry with all built-in providers registered.
func Default() *provider.Registry {
	r := provider.NewRegistry()
	r.Register(provider.NameStripe, func() provider.Adapter { return stripe.New() })
	r.Register(provider.NameFlutterwave, func() provider.Adapter { return flutterwave.New() })
	r.Register(provider.NamePayPal, func() provider.Adapter { return paypal.New() })
	return r
}
