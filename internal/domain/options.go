package domain

import "fmt"

// OptionAuto is the zero value for every option enum; auto values are
// omitted before dispatch rather than sent explicitly.
const OptionAuto = "auto"

// Recognized option values. Providers may accept more; these are the ones
// the pipeline validates.
const (
	SizeSquare    = "1024x1024"
	SizePortrait  = "1024x1536"
	SizeLandscape = "1536x1024"

	QualityLow    = "low"
	QualityMedium = "medium"
	QualityHigh   = "high"

	FormatPNG  = "png"
	FormatJPEG = "jpeg"
	FormatWebP = "webp"

	BackgroundTransparent = "transparent"
	BackgroundOpaque      = "opaque"
)

// GenerateOptions is the typed configuration bag attached to a job.
type GenerateOptions struct {
	Size        string `json:"size,omitempty"`
	Quality     string `json:"quality,omitempty"`
	Format      string `json:"format,omitempty"`
	Compression *int   `json:"compression,omitempty"`
	Background  string `json:"background,omitempty"`
}

// Validate checks enum membership and the compression constraints. The zero
// value and "auto" are always accepted.
func (o GenerateOptions) Validate() error {
	if !oneOf(o.Size, SizeSquare, SizePortrait, SizeLandscape) {
		return fmt.Errorf("invalid size %q", o.Size)
	}
	if !oneOf(o.Quality, QualityLow, QualityMedium, QualityHigh) {
		return fmt.Errorf("invalid quality %q", o.Quality)
	}
	if !oneOf(o.Format, FormatPNG, FormatJPEG, FormatWebP) {
		return fmt.Errorf("invalid format %q", o.Format)
	}
	if !oneOf(o.Background, BackgroundTransparent, BackgroundOpaque) {
		return fmt.Errorf("invalid background %q", o.Background)
	}
	if o.Compression != nil {
		if *o.Compression < 0 || *o.Compression > 100 {
			return fmt.Errorf("compression %d out of range", *o.Compression)
		}
		if o.Format != FormatJPEG && o.Format != FormatWebP {
			return fmt.Errorf("compression requires a lossy format, got %q", o.Format)
		}
	}
	return nil
}

// Normalize returns a copy with auto/unset values dropped so the provider
// request only carries explicit choices.
func (o GenerateOptions) Normalize() GenerateOptions {
	out := o
	if out.Size == OptionAuto {
		out.Size = ""
	}
	if out.Quality == OptionAuto {
		out.Quality = ""
	}
	if out.Format == OptionAuto {
		out.Format = ""
	}
	if out.Background == OptionAuto {
		out.Background = ""
	}
	if out.Compression != nil && (out.Format != FormatJPEG && out.Format != FormatWebP) {
		out.Compression = nil
	}
	return out
}

func oneOf(v string, allowed ...string) bool {
	if v == "" || v == OptionAuto {
		return true
	}
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
