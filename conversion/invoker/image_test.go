package invoker

import (
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"cadconverter/conversion"
)

func createTestPNG(t *testing.T, path string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			img.Set(x, y, color.RGBA{uint8(x * 8), uint8(y * 8), 128, 255})
		}
	}

	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create test image: %v", err)
	}
	defer file.Close()

	if err := png.Encode(file, img); err != nil {
		t.Fatalf("Failed to encode test image: %v", err)
	}
}

func TestImageInvoker_PNGToJPEG(t *testing.T) {
	inv := NewImageInvoker(zaptest.NewLogger(t))

	workDir := t.TempDir()
	inputPath := filepath.Join(workDir, "input.png")
	createTestPNG(t, inputPath)

	rec, err := inv.Convert(context.Background(), Request{
		InputPath:    inputPath,
		OutputDir:    workDir,
		SourceFormat: "png",
		TargetFormat: "jpg",
		Timeout:      5 * time.Second,
	})
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}

	file, err := os.Open(rec.OutputPath)
	if err != nil {
		t.Fatalf("Failed to open output: %v", err)
	}
	defer file.Close()

	if _, err := jpeg.Decode(file); err != nil {
		t.Fatalf("Output is not valid JPEG: %v", err)
	}
}

func TestImageInvoker_MissingInput(t *testing.T) {
	inv := NewImageInvoker(zaptest.NewLogger(t))

	_, err := inv.Convert(context.Background(), Request{
		InputPath:    "/nonexistent/input.png",
		OutputDir:    t.TempDir(),
		SourceFormat: "png",
		TargetFormat: "jpg",
		Timeout:      5 * time.Second,
	})
	if conversion.KindOf(err) != conversion.KindConversionFailed {
		t.Errorf("Expected conversion_failed, got %v", err)
	}
}

func TestImageInvoker_Healthy(t *testing.T) {
	inv := NewImageInvoker(zaptest.NewLogger(t))
	if err := inv.Healthy(context.Background()); err != nil {
		t.Errorf("Expected healthy, got %v", err)
	}
}
