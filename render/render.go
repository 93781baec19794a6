// ABOUTME: Renders DOT source text to SVG/PNG by piping it through the graphviz dot binary.
// ABOUTME: The "dot" format is a passthrough so callers can always fall back to the raw definition.
package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Supported output formats.
const (
	FormatDOT = "dot"
	FormatSVG = "svg"
	FormatPNG = "png"
)

// ErrGraphvizMissing is returned when svg/png output is requested but the dot
// binary is not on PATH.
var ErrGraphvizMissing = errors.New("graphviz dot command not found")

// lookPath is swapped in tests.
var lookPath = exec.LookPath

// GraphvizAvailable reports whether the graphviz dot command is installed.
func GraphvizAvailable() bool {
	_, err := lookPath("dot")
	return err == nil
}

// RenderDOTSource renders DOT text to format. For "dot" it returns the input unchanged.
func RenderDOTSource(ctx context.Context, dotText string, format string) ([]byte, error) {
	if strings.TrimSpace(dotText) == "" {
		return nil, fmt.Errorf("cannot render empty DOT text")
	}

	switch format {
	case FormatDOT:
		return []byte(dotText), nil
	case FormatSVG, FormatPNG:
		return renderWithGraphviz(ctx, dotText, format)
	default:
		return nil, fmt.Errorf("unsupported format %q: supported formats are dot, svg, png", format)
	}
}

// renderWithGraphviz pipes dotText to `dot -T<format>`.
func renderWithGraphviz(ctx context.Context, dotText string, format string) ([]byte, error) {
	bin, err := lookPath("dot")
	if err != nil {
		return nil, fmt.Errorf("%w: install graphviz to render %s output", ErrGraphvizMissing, format)
	}

	cmd := exec.CommandContext(ctx, bin, "-T"+format)
	cmd.Stdin = strings.NewReader(dotText)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("graphviz dot command failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}
