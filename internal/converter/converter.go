package converter

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	defaultDPI         = 200
	officeConvertLimit = 60 * time.Second
)

// Converter renders uploaded documents into per-page PNG rasters by driving
// external tools: pdftoppm for PDF, libreoffice headless for PPT/PPTX (via
// an intermediate PDF). It is a collaborator of the viewer core, not part of
// the render path.
type Converter struct {
	dpi    int
	logger *zap.Logger
}

// New constructs a converter rendering at the given DPI.
func New(dpi int, logger *zap.Logger) *Converter {
	if dpi <= 0 {
		dpi = defaultDPI
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Converter{dpi: dpi, logger: logger}
}

// Convert renders the source file into outDir as page_1.png..page_N.png and
// returns the page count.
func (c *Converter) Convert(ctx context.Context, srcPath, fileType, outDir string) (int, error) {
	switch strings.ToLower(fileType) {
	case "pdf":
		return c.convertPDF(ctx, srcPath, outDir)
	case "ppt", "pptx":
		pdfPath, err := c.officeToPDF(ctx, srcPath)
		if err != nil {
			return 0, err
		}
		return c.convertPDF(ctx, pdfPath, outDir)
	default:
		return 0, fmt.Errorf("converter: unsupported file type %q", fileType)
	}
}

// convertPDF shells out to pdftoppm, then renames its zero-padded output to
// the page_N.png convention the page store expects.
func (c *Converter) convertPDF(ctx context.Context, pdfPath, outDir string) (int, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return 0, fmt.Errorf("converter: create output dir: %w", err)
	}

	prefix := filepath.Join(outDir, "pg")
	cmd := exec.CommandContext(ctx, "pdftoppm", "-png", "-r", fmt.Sprint(c.dpi), pdfPath, prefix)
	if output, err := cmd.CombinedOutput(); err != nil {
		return 0, fmt.Errorf("converter: pdftoppm: %w: %s", err, strings.TrimSpace(string(output)))
	}

	rendered, err := filepath.Glob(prefix + "-*.png")
	if err != nil {
		return 0, err
	}
	if len(rendered) == 0 {
		return 0, fmt.Errorf("converter: pdftoppm produced no pages for %s", pdfPath)
	}
	sort.Strings(rendered)

	for i, path := range rendered {
		target := filepath.Join(outDir, fmt.Sprintf("page_%d.png", i+1))
		if err := os.Rename(path, target); err != nil {
			return 0, fmt.Errorf("converter: rename page %d: %w", i+1, err)
		}
	}

	c.logger.Info("document converted",
		zap.String("source", pdfPath),
		zap.Int("pages", len(rendered)))
	return len(rendered), nil
}

// officeToPDF converts a presentation to PDF via libreoffice headless, which
// writes the PDF next to the source file.
func (c *Converter) officeToPDF(ctx context.Context, srcPath string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, officeConvertLimit)
	defer cancel()

	cmd := exec.CommandContext(ctx, "libreoffice",
		"--headless",
		"--convert-to", "pdf",
		"--outdir", filepath.Dir(srcPath),
		srcPath)
	if output, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("converter: libreoffice: %w: %s", err, strings.TrimSpace(string(output)))
	}

	ext := filepath.Ext(srcPath)
	pdfPath := strings.TrimSuffix(srcPath, ext) + ".pdf"
	if _, err := os.Stat(pdfPath); err != nil {
		return "", fmt.Errorf("converter: expected pdf output missing: %w", err)
	}
	return pdfPath, nil
}
