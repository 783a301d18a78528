package synchrony

// Embedding defaults.
const (
	DefaultDimension = 10 // embedding dimension d
	DefaultLag       = 1  // embedding lag T in samples
)

// Search defaults.
const (
	DefaultPRef     = 0.05          // reference neighbour probability
	DefaultStride   = 4             // subsampling stride Q for the averaging step
	DefaultStep     = 1e-6          // threshold grid step δ
	DefaultMaxSteps = 1_000_000_000 // δ increments before a search is declared exhausted
)

// Window derivation.
const (
	w2RateDivisor = 2 // W2 defaults to half the sample rate, in samples
)

// Recording limits.
const (
	maxChannels = 1024 // matrix output is dense M×M
)

// Text matrix formatting defaults.
const (
	DefaultDelimiter = ", " // field delimiter between values of a row
	DefaultPrecision = 8    // decimals written per value
)
