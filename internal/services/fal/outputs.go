package fal

// File is a media file produced by a model.
type File struct {
	URL         string `json:"url"`
	ContentType string `json:"content_type,omitempty"`
	FileName    string `json:"file_name,omitempty"`
	Width       int    `json:"width,omitempty"`
	Height      int    `json:"height,omitempty"`
}

// ImageOutput is the response shape of text-to-image models.
type ImageOutput struct {
	Images []File `json:"images"`
	Seed   int64  `json:"seed"`
	Prompt string `json:"prompt"`
}

// VideoOutput is the response shape of image-to-video models.
type VideoOutput struct {
	Video File  `json:"video"`
	Seed  int64 `json:"seed"`
}

// UpscaleOutput is the response shape of upscaling models.
type UpscaleOutput struct {
	Image File `json:"image"`
}

// ImageSize is a width/height pair accepted by image models.
type ImageSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

var presetSizes = map[string]string{
	"16:9": "landscape_16_9",
	"9:16": "portrait_16_9",
	"1:1":  "square_hd",
	"4:3":  "landscape_4_3",
	"3:4":  "portrait_4_3",
}

// ImageSizeFor maps a project aspect ratio to the image_size argument.
// Ratios without a named preset get explicit dimensions.
func ImageSizeFor(aspectRatio string) any {
	if preset, ok := presetSizes[aspectRatio]; ok {
		return preset
	}
	if aspectRatio == "21:9" {
		return ImageSize{Width: 1568, Height: 672}
	}
	return presetSizes["16:9"]
}
