package server

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/shapectx/internal/cache"
	"github.com/MeKo-Tech/shapectx/internal/pipeline"
	"github.com/MeKo-Tech/shapectx/internal/testutil"
)

func newTestServer(t *testing.T, modify func(*Config)) *Server {
	t.Helper()

	mem, err := cache.NewMemory(16, 0)
	require.NoError(t, err)

	config := Config{
		CORSOrigin:     "*",
		MaxUploadMB:    5,
		TimeoutSec:     10,
		PipelineConfig: pipeline.DefaultConfig(),
		Precision:      17,
		OverlayEnabled: true,
		OverlayStyle:   pipeline.DefaultOverlayStyle(),
		Cache:          mem,
	}
	if modify != nil {
		modify(&config)
	}
	s, err := NewServer(config)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// silhouettePNG returns a PNG of the given test shape on a black background.
func silhouettePNG(t *testing.T, shape testutil.Shape) []byte {
	t.Helper()

	config := testutil.DefaultSilhouetteConfig()
	config.Shape = shape
	img, err := testutil.GenerateSilhouette(config)
	require.NoError(t, err)
	return testutil.EncodePNG(t, img)
}

// createMultipartRequest builds a POST to /v1/analyze with an optional image
// part and form fields.
func createMultipartRequest(t *testing.T, image []byte, fields map[string]string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if image != nil {
		part, err := writer.CreateFormFile("image", "shape.png")
		require.NoError(t, err)
		_, err = part.Write(image)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/analyze", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}
