package support

import (
	"fmt"
	"image/color"
	"image/png"
	"os"
	"path/filepath"

	"github.com/cucumber/godog"

	"github.com/MeKo-Tech/shapectx/internal/testutil"
)

// RegisterImageSteps registers steps that create silhouette images.
func (testCtx *TestContext) RegisterImageSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a silhouette image "([^"]*)" with a (rect|disk|ring|triangle|l)$`, testCtx.aSilhouetteImage)
	sc.Step(`^an inverted silhouette image "([^"]*)" with a (rect|disk|ring|triangle|l)$`,
		testCtx.anInvertedSilhouetteImage)
	sc.Step(`^a silhouette image "([^"]*)" with a (rect|disk|ring|triangle|l) rotated by (\d+) degrees$`,
		testCtx.aRotatedSilhouetteImage)
	sc.Step(`^a file "([^"]*)" containing "([^"]*)"$`, testCtx.aFileContaining)
}

func (testCtx *TestContext) aSilhouetteImage(name, shape string) error {
	return testCtx.writeSilhouette(name, testutil.SilhouetteConfig{
		Shape:      testutil.Shape(shape),
		Size:       testutil.MediumSize,
		Background: color.Black,
		Foreground: color.White,
	})
}

func (testCtx *TestContext) anInvertedSilhouetteImage(name, shape string) error {
	return testCtx.writeSilhouette(name, testutil.SilhouetteConfig{
		Shape:      testutil.Shape(shape),
		Size:       testutil.MediumSize,
		Background: color.White,
		Foreground: color.Black,
	})
}

func (testCtx *TestContext) aRotatedSilhouetteImage(name, shape string, degrees int) error {
	cfg := testutil.DefaultSilhouetteConfig()
	cfg.Shape = testutil.Shape(shape)
	cfg.Rotation = float64(degrees)
	return testCtx.writeSilhouette(name, cfg)
}

func (testCtx *TestContext) writeSilhouette(name string, cfg testutil.SilhouetteConfig) error {
	img, err := testutil.GenerateSilhouette(cfg)
	if err != nil {
		return err
	}
	path := testCtx.Path(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", name, err)
	}
	f, err := os.Create(path) //nolint:gosec // G304: scenario temp path
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", name, err)
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	testCtx.Images[name] = path
	return nil
}

func (testCtx *TestContext) aFileContaining(name, content string) error {
	path := testCtx.Path(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0o600)
}
