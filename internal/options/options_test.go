package options

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type testConfig struct {
	capacity int
	name     string
	calls    []string
}

func withCapacity(n int) Option[*testConfig] {
	return New(func(c *testConfig) error {
		if n < 0 {
			return errors.New("capacity cannot be negative")
		}
		c.capacity = n
		c.calls = append(c.calls, "capacity")

		return nil
	})
}

func withName(name string) Option[*testConfig] {
	return NoError(func(c *testConfig) {
		c.name = name
		c.calls = append(c.calls, "name")
	})
}

func TestApply(t *testing.T) {
	t.Run("applies options in order", func(t *testing.T) {
		cfg := &testConfig{}
		require.NoError(t, Apply(cfg, withName("a"), withCapacity(8), withName("b")))
		require.Equal(t, 8, cfg.capacity)
		require.Equal(t, "b", cfg.name)
		require.Equal(t, []string{"name", "capacity", "name"}, cfg.calls)
	})

	t.Run("stops at the first error", func(t *testing.T) {
		cfg := &testConfig{}
		err := Apply(cfg, withCapacity(-1), withName("never"))
		require.ErrorContains(t, err, "negative")
		require.Empty(t, cfg.name)
	})

	t.Run("skips nil options", func(t *testing.T) {
		cfg := &testConfig{}
		require.NoError(t, Apply(cfg, nil, withName("x")))
		require.Equal(t, "x", cfg.name)
	})

	t.Run("no options", func(t *testing.T) {
		cfg := &testConfig{capacity: 3}
		require.NoError(t, Apply(cfg))
		require.Equal(t, 3, cfg.capacity)
	})
}
