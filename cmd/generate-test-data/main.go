package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/MeKo-Tech/shapectx/internal/testutil"
)

// fixture records what analyzing a generated silhouette should yield.
type fixture struct {
	Name        string  `json:"name"`
	InputFile   string  `json:"input_file"`
	Shape       string  `json:"shape"`
	Rotation    float64 `json:"rotation"`
	Inverted    bool    `json:"inverted"`
	Contours    int     `json:"contours"`
	OuterBorder int     `json:"outer_contours"`
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	var (
		outDir           = flag.String("out", "testdata", "output directory below the project root")
		generateFixtures = flag.Bool("fixtures", true, "write expected results next to the images")
		verbose          = flag.Bool("v", false, "Verbose output")
		help             = flag.Bool("h", false, "Show help")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Generate silhouette images for shapectx testing.\n\n")
		fmt.Fprintf(os.Stderr, "OPTIONS:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEXAMPLES:\n")
		fmt.Fprintf(os.Stderr, "  %s                    # Generate images and fixtures\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -fixtures=false    # Generate only images\n", os.Args[0])
	}

	flag.Parse()

	if *help {
		flag.Usage()
		return
	}

	root, err := testutil.GetProjectRoot()
	if err != nil {
		slog.Error("Failed to find project root", "error", err)
		os.Exit(1)
	}
	if err := os.Chdir(root); err != nil {
		slog.Error("Failed to change to project root", "error", err)
		os.Exit(1)
	}

	fixtures, err := generateSilhouettes(*outDir, *verbose)
	if err != nil {
		slog.Error("Failed to generate silhouettes", "error", err)
		os.Exit(1)
	}
	slog.Info("Generated silhouette images", "count", len(fixtures))

	if *generateFixtures {
		if err := saveFixtures(fixtures, filepath.Join(*outDir, "fixtures")); err != nil {
			slog.Error("Failed to save fixtures", "error", err)
			os.Exit(1)
		}
		slog.Info("Generated fixtures", "count", len(fixtures))
	}
}

// generateSilhouettes writes every shape upright and rotated, light on dark
// and dark on light.
func generateSilhouettes(outDir string, verbose bool) ([]fixture, error) {
	dir := filepath.Join(outDir, "silhouettes")
	if err := testutil.EnsureDir(dir); err != nil {
		return nil, fmt.Errorf("failed to create silhouette directory: %w", err)
	}

	shapes := []testutil.Shape{
		testutil.ShapeRect, testutil.ShapeDisk, testutil.ShapeRing, testutil.ShapeTriangle, testutil.ShapeL,
	}
	var fixtures []fixture
	for _, shape := range shapes {
		for _, rotation := range []float64{0, 30} {
			for _, inverted := range []bool{false, true} {
				config := testutil.DefaultSilhouetteConfig()
				config.Shape = shape
				config.Size = testutil.LargeSize
				config.Rotation = rotation
				if inverted {
					config.Background, config.Foreground = config.Foreground, config.Background
				}
				img, err := testutil.GenerateSilhouette(config)
				if err != nil {
					return nil, fmt.Errorf("failed to generate %s: %w", shape, err)
				}

				name := fmt.Sprintf("%s_r%.0f", shape, rotation)
				if inverted {
					name += "_inv"
				}
				path := filepath.Join(dir, name+".png")
				if err := savePNG(img, path); err != nil {
					return nil, err
				}
				if verbose {
					slog.Info("Wrote silhouette", "file", path)
				}

				contours := 1
				if shape == testutil.ShapeRing {
					contours = 2
				}
				fixtures = append(fixtures, fixture{
					Name:        name,
					InputFile:   filepath.ToSlash(filepath.Join("silhouettes", name+".png")),
					Shape:       string(shape),
					Rotation:    rotation,
					Inverted:    inverted,
					Contours:    contours,
					OuterBorder: 1,
				})
			}
		}
	}
	return fixtures, nil
}

func savePNG(img image.Image, path string) error {
	file, err := os.Create(path) //nolint:gosec // G304: Test data generation uses controlled paths
	if err != nil {
		return fmt.Errorf("failed to create image file: %w", err)
	}
	if err := png.Encode(file, img); err != nil {
		_ = file.Close()
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return file.Close()
}

func saveFixtures(fixtures []fixture, dir string) error {
	if err := testutil.EnsureDir(dir); err != nil {
		return fmt.Errorf("failed to create fixtures directory: %w", err)
	}
	for _, f := range fixtures {
		data, err := json.MarshalIndent(f, "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(dir, f.Name+".json"), data, 0o600); err != nil {
			return fmt.Errorf("failed to save fixture %s: %w", f.Name, err)
		}
	}
	return nil
}
