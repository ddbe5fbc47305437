package render

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/sifan077/PowerQR/internal/app/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func squareMatrix(n int) [][]bool {
	m := make([][]bool, n)
	for y := range m {
		m[y] = make([]bool, n)
		for x := range m[y] {
			m[y][x] = true
		}
	}
	return m
}

func TestBuildScene_SkipsFinderModules(t *testing.T) {
	cfg := testConfig(210)
	cfg.MarginPx = 0
	sc := buildScene(cfg, squareMatrix(21), 0, 0)

	modules := 0
	corners := 0
	for _, s := range sc.shapes {
		if s.layer == layerModules {
			modules++
		} else {
			corners++
		}
	}
	assert.Equal(t, 21*21-3*49, modules)
	assert.Equal(t, 6, corners)
	assert.InDelta(t, 10.0, sc.cell, 1e-9)
	assert.Nil(t, sc.logoBox)
}

func TestBuildScene_OversizedMarginIgnored(t *testing.T) {
	cfg := testConfig(100)
	cfg.MarginPx = 60
	sc := buildScene(cfg, squareMatrix(21), 0, 0)
	assert.InDelta(t, 100.0, sc.qrSize, 1e-9)
}

func TestBuildScene_LogoBoxKeepsAspect(t *testing.T) {
	cfg := testConfig(200)
	cfg.MarginPx = 0
	cfg.LogoSizeRatio = 0.25
	sc := buildScene(cfg, squareMatrix(21), 100, 50)

	require.NotNil(t, sc.logoBox)
	assert.InDelta(t, 50.0, sc.logoBox.w, 1e-9)
	assert.InDelta(t, 25.0, sc.logoBox.h, 1e-9)
	assert.InDelta(t, 75.0, sc.logoBox.x, 1e-9)
}

func TestBox_RoundedCorner(t *testing.T) {
	b := box{x: 0, y: 0, w: 10, h: 10, r: uniform(5)}
	assert.True(t, b.contains(5, 5))
	assert.False(t, b.contains(0.2, 0.2))
	assert.True(t, b.contains(5, 0.1))
}

func TestFinderRing_HasHole(t *testing.T) {
	s := finderRing(string(model.OuterCornerSquare), 0, 0, 1)
	assert.True(t, s.contains(0.5, 0.5))
	assert.False(t, s.contains(3.5, 3.5))
}

func TestGradientPaint_Endpoints(t *testing.T) {
	p := gradientPaint(model.Gradient{
		Rotation: 0,
		Stops:    []model.ColorStop{{Offset: 0, Color: "#000000"}, {Offset: 1, Color: "#ffffff"}},
	}, 100, 100)

	assert.Equal(t, uint8(0), p(0, 50).R)
	assert.Equal(t, uint8(0xff), p(100, 50).R)
	mid := p(50, 50).R
	assert.InDelta(t, 128, int(mid), 2)
}

func TestDecodeDataURI(t *testing.T) {
	data, mime, err := DecodeDataURI("data:text/plain;base64,aGVsbG8=")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
	assert.Equal(t, "text/plain", mime)

	data, _, err = DecodeDataURI("data:text/plain,a%20b")
	require.NoError(t, err)
	assert.Equal(t, "a b", string(data))

	_, _, err = DecodeDataURI("data:nothing")
	assert.ErrorIs(t, err, ErrUnsupportedLogo)
}

func TestLogoLoader_CachesRemoteFetch(t *testing.T) {
	var hits atomic.Int32
	payload := tinyPNG(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	l := NewLogoLoader(LogoLoaderConfig{}, srv.Client(), nil)
	for i := 0; i < 3; i++ {
		logo, err := l.Load(context.Background(), srv.URL+"/logo.png")
		require.NoError(t, err)
		assert.Equal(t, "image/png", logo.MIME)
	}
	assert.Equal(t, int32(1), hits.Load())
}

func TestLogoLoader_RejectsUnknownScheme(t *testing.T) {
	l := NewLogoLoader(LogoLoaderConfig{}, nil, nil)
	_, err := l.Load(context.Background(), "file:///etc/passwd")
	assert.ErrorIs(t, err, ErrUnsupportedLogo)
}

func TestLogoLoader_RejectsOversizedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(make([]byte, 64))
	}))
	defer srv.Close()

	l := NewLogoLoader(LogoLoaderConfig{MaxBytes: 16}, srv.Client(), nil)
	_, err := l.Load(context.Background(), srv.URL)
	assert.Error(t, err)
}

func tinyPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}
