package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateOptionsValidate(t *testing.T) {
	comp := 80

	cases := []struct {
		name string
		opts GenerateOptions
		ok   bool
	}{
		{name: "zero value", opts: GenerateOptions{}, ok: true},
		{name: "all auto", opts: GenerateOptions{Size: OptionAuto, Quality: OptionAuto, Format: OptionAuto, Background: OptionAuto}, ok: true},
		{name: "explicit values", opts: GenerateOptions{Size: SizePortrait, Quality: QualityHigh, Format: FormatPNG, Background: BackgroundTransparent}, ok: true},
		{name: "compression on jpeg", opts: GenerateOptions{Format: FormatJPEG, Compression: &comp}, ok: true},
		{name: "compression on webp", opts: GenerateOptions{Format: FormatWebP, Compression: &comp}, ok: true},
		{name: "compression on png", opts: GenerateOptions{Format: FormatPNG, Compression: &comp}, ok: false},
		{name: "compression without format", opts: GenerateOptions{Compression: &comp}, ok: false},
		{name: "unknown size", opts: GenerateOptions{Size: "4096x4096"}, ok: false},
		{name: "unknown quality", opts: GenerateOptions{Quality: "ultra"}, ok: false},
		{name: "unknown format", opts: GenerateOptions{Format: "gif"}, ok: false},
		{name: "unknown background", opts: GenerateOptions{Background: "blurred"}, ok: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.opts.Validate()
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestGenerateOptionsValidateCompressionRange(t *testing.T) {
	for _, v := range []int{-1, 101} {
		comp := v
		err := GenerateOptions{Format: FormatJPEG, Compression: &comp}.Validate()
		assert.Error(t, err, "compression %d", v)
	}
	for _, v := range []int{0, 100} {
		comp := v
		err := GenerateOptions{Format: FormatJPEG, Compression: &comp}.Validate()
		assert.NoError(t, err, "compression %d", v)
	}
}

func TestGenerateOptionsNormalizeDropsAuto(t *testing.T) {
	in := GenerateOptions{Size: OptionAuto, Quality: OptionAuto, Format: OptionAuto, Background: OptionAuto}
	out := in.Normalize()
	assert.Equal(t, GenerateOptions{}, out)
}

func TestGenerateOptionsNormalizeKeepsExplicit(t *testing.T) {
	comp := 60
	in := GenerateOptions{Size: SizeLandscape, Quality: QualityLow, Format: FormatWebP, Compression: &comp, Background: BackgroundOpaque}
	out := in.Normalize()
	assert.Equal(t, in, out)
}

func TestGenerateOptionsNormalizeStripsCompressionOnLossless(t *testing.T) {
	comp := 60
	out := GenerateOptions{Format: FormatPNG, Compression: &comp}.Normalize()
	assert.Nil(t, out.Compression)
	assert.Equal(t, FormatPNG, out.Format)
}

func TestJobStatusTerminal(t *testing.T) {
	assert.False(t, JobStatusPending.Terminal())
	assert.False(t, JobStatusProcessing.Terminal())
	assert.True(t, JobStatusCompleted.Terminal())
	assert.True(t, JobStatusFailed.Terminal())
	assert.True(t, JobStatusCancelled.Terminal())
}

func TestJobHasUsableImage(t *testing.T) {
	require.False(t, (&Job{}).HasUsableImage())
	assert.True(t, (&Job{Result: &GenerationResult{URL: "https://img.example/a.png"}}).HasUsableImage())
	assert.True(t, (&Job{Result: &GenerationResult{StorageKey: "generated/a.png"}}).HasUsableImage())
	assert.True(t, (&Job{Result: &GenerationResult{Data: []byte{1}}}).HasUsableImage())
	assert.False(t, (&Job{Result: &GenerationResult{}}).HasUsableImage())
}
