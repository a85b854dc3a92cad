package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"mockupstudio/internal/assets"
	"mockupstudio/internal/composite"
	"mockupstudio/internal/fonts"
	"mockupstudio/internal/hydrate"
	"mockupstudio/internal/scene"
)

// valuesFile is the YAML form of a customer's values:
//
//	text:
//	  Name: Ana
//	images:
//	  Foto 1: ./photo.jpg
//	colors:
//	  Accent: "#ff6600"
type valuesFile struct {
	Text   map[string]string `yaml:"text"`
	Images map[string]string `yaml:"images"`
	Colors map[string]string `yaml:"colors"`
}

func loadValues(path string) (hydrate.Values, error) {
	if path == "" {
		return hydrate.Values{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return hydrate.Values{}, fmt.Errorf("read values: %w", err)
	}
	var vf valuesFile
	if err := yaml.Unmarshal(data, &vf); err != nil {
		return hydrate.Values{}, fmt.Errorf("parse values %s: %w", path, err)
	}
	return hydrate.Values{Text: vf.Text, Image: vf.Images, Color: vf.Colors}, nil
}

func loadDocument(path string) (*scene.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read template: %w", err)
	}
	doc, err := scene.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("load template %s: %w", path, err)
	}
	return doc, nil
}

// localLoader reads image values that are file paths from disk and hands
// URLs to the remote loader.
type localLoader struct {
	remote *assets.Loader
}

func (l localLoader) Load(ctx context.Context, src string) (image.Image, error) {
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		return l.remote.Load(ctx, src)
	}
	data, err := os.ReadFile(strings.TrimPrefix(src, "file://"))
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	img, _, err := assets.Decode(data)
	return img, err
}

type renderFlags struct {
	values     string
	output     string
	quality    string
	format     string
	multiplier float64
	fontDir    string
	asDesigned bool
}

func newRenderCmd() *cobra.Command {
	var f renderFlags
	cmd := &cobra.Command{
		Use:   "render <template.json>",
		Short: "Render a template state with customer values",
		Long: `Render a template state file to PNG or JPEG.

Values are read from a YAML file with text, images and colors maps keyed by
slot name. Image values may be URLs or local file paths. Values naming
unknown slots and images that fail to load are reported and skipped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(cmd.Context(), args[0], f, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	cmd.Flags().StringVarP(&f.values, "values", "v", "", "YAML file with customer values")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", `output file, "-" for stdout (default <template>.<format>)`)
	cmd.Flags().StringVarP(&f.quality, "quality", "q", "standard", "export quality (standard, high)")
	cmd.Flags().StringVarP(&f.format, "format", "f", "png", "image format (png, jpeg)")
	cmd.Flags().Float64Var(&f.multiplier, "multiplier", 0, "pixel multiplier, overrides the quality default")
	cmd.Flags().StringVar(&f.fontDir, "font-dir", os.Getenv("FONT_DIR"), "directory with additional font files")
	cmd.Flags().BoolVar(&f.asDesigned, "as-designed", false, "render the designer view, without placeholders or values")
	return cmd
}

func runRender(ctx context.Context, path string, f renderFlags, stdout, stderr io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	switch f.quality {
	case "standard", "high":
	default:
		return fmt.Errorf("unsupported quality: %s (supported: standard, high)", f.quality)
	}
	switch f.format {
	case "png", "jpeg", "jpg":
	default:
		return fmt.Errorf("unsupported format: %s (supported: png, jpeg)", f.format)
	}

	doc, err := loadDocument(path)
	if err != nil {
		return err
	}
	values, err := loadValues(f.values)
	if err != nil {
		return err
	}

	images := localLoader{remote: assets.New(assets.Options{})}
	if !f.asDesigned {
		h := hydrate.New(doc, images, hydrate.Options{})
		if err := reportApplyErrors(h.Apply(ctx, values), stderr); err != nil {
			return err
		}
		doc = h.Document()
	}

	var source fonts.Source
	if f.fontDir != "" {
		source = fonts.DirSource{Dir: f.fontDir}
	}
	renderer := composite.NewRenderer(fonts.NewRegistry(source), images)
	opts := composite.ExportOptions{
		Quality:    composite.ParseQuality(f.quality),
		Format:     composite.ParseFormat(f.format),
		Multiplier: f.multiplier,
	}

	out := f.output
	if out == "" {
		out = strings.TrimSuffix(path, ".json") + "." + opts.Format.Extension()
	}
	if out == "-" {
		return renderer.Export(ctx, doc, opts, stdout)
	}

	file, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if err := renderer.Export(ctx, doc, opts, file); err != nil {
		file.Close()
		os.Remove(out)
		return err
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	w, h := scene.DisplaySize(doc, exportMultiplier(renderer, opts))
	fmt.Fprintf(stderr, "wrote %s (%dx%d)\n", out, w, h)
	return nil
}

func exportMultiplier(r *composite.Renderer, opts composite.ExportOptions) float64 {
	switch {
	case opts.Multiplier > 0:
		return opts.Multiplier
	case opts.Quality == composite.QualityHigh:
		return r.HighMultiplier
	}
	return 1
}

// reportApplyErrors prints soft failures as warnings and returns the rest.
func reportApplyErrors(err error, stderr io.Writer) error {
	if err == nil {
		return nil
	}
	errs := []error{err}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		errs = joined.Unwrap()
	}
	var hard []error
	for _, e := range errs {
		if errors.Is(e, hydrate.ErrAsset) || errors.Is(e, hydrate.ErrUnknownSlot) {
			fmt.Fprintln(stderr, "warning:", e)
			continue
		}
		hard = append(hard, e)
	}
	return errors.Join(hard...)
}
