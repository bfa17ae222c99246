package entity

import (
	"fmt"

	"github.com/andreyxaxa/Photo-Pipeline/pkg/types/errs"
)

type OutputType string

const (
	OutputImage OutputType = "image"
	OutputText  OutputType = "text"
)

// Procedure describes one worker operation reachable through the broker.
// The set is closed: dispatch by arbitrary string name is not allowed.
type Procedure struct {
	Name     string
	Queue    string
	Advanced bool
	Output   OutputType
	// Terminal marks procedures whose output is kept even mid-chain,
	// e.g. text extraction.
	Terminal bool

	RequiredParams []string
}

const (
	ProcResize     = "resize"
	ProcCrop       = "crop"
	ProcRotate     = "rotate"
	ProcBrightness = "brightness"
	ProcContrast   = "contrast"
	ProcSaturation = "saturation"
	ProcBlur       = "blur"
	ProcSharpen    = "sharpen"
	ProcGrayscale  = "grayscale"
	ProcWatermark  = "watermark"

	ProcAIUpscale       = "ai-upscale"
	ProcAIBackgroundCut = "ai-background-remove"
	ProcAIStyleTransfer = "ai-style-transfer"
	ProcAITextExtract   = "ai-text-extract"
)

var procedures = map[string]Procedure{
	ProcResize:     {Name: ProcResize, Queue: "resize", Output: OutputImage, RequiredParams: []string{"width", "height"}},
	ProcCrop:       {Name: ProcCrop, Queue: "crop", Output: OutputImage, RequiredParams: []string{"x", "y", "width", "height"}},
	ProcRotate:     {Name: ProcRotate, Queue: "rotate", Output: OutputImage, RequiredParams: []string{"angle"}},
	ProcBrightness: {Name: ProcBrightness, Queue: "brightness", Output: OutputImage, RequiredParams: []string{"amount"}},
	ProcContrast:   {Name: ProcContrast, Queue: "contrast", Output: OutputImage, RequiredParams: []string{"amount"}},
	ProcSaturation: {Name: ProcSaturation, Queue: "saturation", Output: OutputImage, RequiredParams: []string{"amount"}},
	ProcBlur:       {Name: ProcBlur, Queue: "blur", Output: OutputImage, RequiredParams: []string{"radius"}},
	ProcSharpen:    {Name: ProcSharpen, Queue: "sharpen", Output: OutputImage, RequiredParams: []string{"amount"}},
	ProcGrayscale:  {Name: ProcGrayscale, Queue: "grayscale", Output: OutputImage},
	ProcWatermark:  {Name: ProcWatermark, Queue: "watermark", Output: OutputImage, RequiredParams: []string{"text"}},

	ProcAIUpscale:       {Name: ProcAIUpscale, Queue: "ai-upscale", Advanced: true, Output: OutputImage, RequiredParams: []string{"factor"}},
	ProcAIBackgroundCut: {Name: ProcAIBackgroundCut, Queue: "ai-background-remove", Advanced: true, Output: OutputImage},
	ProcAIStyleTransfer: {Name: ProcAIStyleTransfer, Queue: "ai-style-transfer", Advanced: true, Output: OutputImage, RequiredParams: []string{"style"}},
	ProcAITextExtract:   {Name: ProcAITextExtract, Queue: "ai-text-extract", Advanced: true, Output: OutputText, Terminal: true},
}

func LookupProcedure(name string) (Procedure, bool) {
	p, ok := procedures[name]

	return p, ok
}

// ValidateTool checks the procedure against the registry and the required
// parameter keys at the boundary.
func ValidateTool(name string, params map[string]interface{}) error {
	proc, ok := procedures[name]
	if !ok {
		return fmt.Errorf("entity - ValidateTool - %q: %w", name, errs.ErrUnknownProcedure)
	}

	for _, key := range proc.RequiredParams {
		if _, ok := params[key]; !ok {
			return fmt.Errorf("entity - ValidateTool - %q requires param %q", name, key)
		}
	}

	return nil
}
