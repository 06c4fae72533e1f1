package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tabhq/internal/provider"
)

func TestDefault_ResolvesAllBuiltins(t *testing.T) {
	r := Default()
	for _, name := range []provider.Name{provider.NameStripe, provider.NameFlutterwave, provider.NamePayPal} {
		a, err := r.Resolve(name.String())
		require.NoError(t, err, name)
		assert.Equal(t, name, a.Name())
	}
	assert.Len(t, r.Names(), 3)
}
