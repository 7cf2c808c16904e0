// ABOUTME: Loads image files for upload from the terminal

package main

import (
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/2389/merti-gateway/internal/webhook"
)

// maxImageBytes matches the widget's upload limit.
const maxImageBytes = 10 << 20

func readImageFile(path string) (*webhook.Image, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("reading image: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("reading image: %s is a directory", path)
	}
	if info.Size() > maxImageBytes {
		return nil, fmt.Errorf("image %s is larger than %d MB", path, maxImageBytes>>20)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading image: %w", err)
	}

	mimeType := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if !strings.HasPrefix(mimeType, "image/") {
		mimeType = http.DetectContentType(data)
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return nil, fmt.Errorf("%s is not an image (%s)", path, mimeType)
	}

	return &webhook.Image{
		Data:     data,
		Filename: filepath.Base(path),
		MimeType: mimeType,
		Size:     info.Size(),
	}, nil
}
