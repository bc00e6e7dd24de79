package domain

// Image sizes accepted by the realtime service.
const (
	ImageSizeSquareHD     = "square_hd"
	ImageSizeSquare       = "square"
	ImageSizePortrait43   = "portrait_4_3"
	ImageSizePortrait169  = "portrait_16_9"
	ImageSizeLandscape43  = "landscape_4_3"
	ImageSizeLandscape169 = "landscape_16_9"
)

// ValidImageSize reports whether s is one of the known image size values.
func ValidImageSize(s string) bool {
	switch s {
	case ImageSizeSquareHD, ImageSizeSquare,
		ImageSizePortrait43, ImageSizePortrait169,
		ImageSizeLandscape43, ImageSizeLandscape169:
		return true
	}
	return false
}

// RequestFrame is the outbound parameter set for one render.
// It is the fixed defaults with the current prompt and seed overlaid.
type RequestFrame struct {
	Prompt string
	Seed   int64

	// NumInferenceSteps is an integer carried as text on the wire.
	NumInferenceSteps string

	ImageSize           string
	EnableSafetyChecker bool
	SyncMode            bool
	NumImages           int
}

// WithInput returns a copy of f with prompt and seed overlaid.
func (f RequestFrame) WithInput(prompt string, seed int64) RequestFrame {
	f.Prompt = prompt
	f.Seed = seed
	return f
}

// WithSteps returns a copy of f using the given step count.
func (f RequestFrame) WithSteps(steps string) RequestFrame {
	f.NumInferenceSteps = steps
	return f
}

// Image is one rendered image payload inside a ResultFrame.
type Image struct {
	Content     []byte
	ContentType string
	URL         string
	Width       int
	Height      int
}

// Timings is the server-side timing breakdown of a result.
type Timings struct {
	// Inference is the time spent producing the result, in seconds.
	Inference float64
}

// ResultFrame is one inbound result.
type ResultFrame struct {
	Images  []Image
	Timings *Timings
	Seed    int64

	// RequestID is informational only. It is never used to match results
	// with the frames that caused them.
	RequestID string
}
