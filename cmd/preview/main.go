package main

import (
	"context"
	"flag"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/rs/zerolog/log"

	"tomato-demo/internal/domain/valueobjects"
	"tomato-demo/internal/infrastructure/external"
	"tomato-demo/internal/logger"
)

var validExtensions = []string{".jpg", ".png", ".jpeg"}

func main() {
	inDir := flag.String("in", "images", "Directory holding the source images")
	outDir := flag.String("out", "encoded", "Directory the data URI files are written to")
	maxEdge := flag.Int("max-edge", external.DefaultPreviewMaxEdge, "Longest edge of the preview in pixels")
	flag.Parse()

	logger.Init("tomato-preview", "INFO")

	count, err := convertDir(context.Background(), *inDir, *outDir, external.NewPreviewGenerator(*maxEdge))
	if err != nil {
		log.Fatal().Err(err).Msg("preview conversion failed")
	}
	log.Info().Int("files", count).Str("out", *outDir).Msg("previews written")
}

// convertDir writes <name>.txt with a data URI for every jpg/png in inDir.
// Files that cannot be decoded are skipped.
func convertDir(ctx context.Context, inDir, outDir string, generator *external.PreviewGenerator) (int, error) {
	files, err := os.ReadDir(inDir)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return 0, err
	}

	count := 0
	for _, file := range files {
		ext := strings.ToLower(filepath.Ext(file.Name()))
		if file.IsDir() || !slices.Contains(validExtensions, ext) {
			continue
		}

		data, err := os.ReadFile(filepath.Join(inDir, file.Name()))
		if err != nil {
			return count, err
		}
		image, err := valueobjects.NewImageData(data, mime.TypeByExtension(ext))
		if err != nil {
			log.Warn().Err(err).Str("file", file.Name()).Msg("skipped")
			continue
		}

		uri, err := generator.Generate(ctx, image)
		if err != nil {
			log.Warn().Err(err).Str("file", file.Name()).Msg("skipped")
			continue
		}

		// 拡張子を除いたファイル名で保存
		name := strings.TrimSuffix(file.Name(), filepath.Ext(file.Name()))
		if err := os.WriteFile(filepath.Join(outDir, fmt.Sprintf("%s.txt", name)), []byte(uri), 0o644); err != nil {
			return count, err
		}
		count++
	}

	return count, nil
}
