package validate

const (
	MaxFileSize int64 = 25 * 1024 * 1024

	MaxProjectNameLen int = 128
	MaxToolCount      int = 32
)

var (
	AllowedContentTypes = map[string]bool{
		"image/jpeg": true,
		"image/jpg":  true,
		"image/png":  true,
		"image/webp": true,
	}

	AllowedExtensions = map[string]bool{
		".jpg":  true,
		".jpeg": true,
		".png":  true,
		".webp": true,
	}
)
