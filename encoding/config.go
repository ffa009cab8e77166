package encoding

import "github.com/arloliu/mws/internal/options"

// EncoderConfig holds the options shared by harvest and query encoders.
type EncoderConfig struct {
	renameCi bool
}

// EncoderOption is a functional option for configuring an Encoder.
type EncoderOption = options.Option[*EncoderConfig]

// WithRenameCi enables alpha-renaming of single-character identifiers.
//
// When enabled, every single-character ci element of a formula is replaced by
// a positional placeholder (~1, ~2, ...) in order of first occurrence, so
// x+y and a+b encode identically. The identifiers P and p and the operator
// position of an apply are never renamed.
// Default is false.
func WithRenameCi(enabled bool) EncoderOption {
	return options.NoError(func(c *EncoderConfig) {
		c.renameCi = enabled
	})
}
