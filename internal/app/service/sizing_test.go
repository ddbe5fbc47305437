package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSizingPolicy_PreviewClamp(t *testing.T) {
	p := DefaultSizingPolicy()
	in := []int{50, 100, 320, 350, 500}
	want := []int{100, 100, 320, 350, 350}
	for i, v := range in {
		assert.Equal(t, want[i], p.Preview(v), "preview(%d)", v)
	}
}

func TestSizingPolicy_ExportClamp(t *testing.T) {
	p := DefaultSizingPolicy()
	assert.Equal(t, ExportMinPx, p.Export(10))
	assert.Equal(t, 1024, p.Export(1024))
	assert.Equal(t, ExportMaxPx, p.Export(9000))
}

func TestSizingPolicy_DomainsIndependent(t *testing.T) {
	p := DefaultSizingPolicy()
	// A size valid for export is clamped as a preview, and the other way round.
	assert.Equal(t, PreviewMaxPx, p.Preview(2048))
	assert.Equal(t, 2048, p.Export(2048))
	assert.Equal(t, ExportMinPx, p.Export(120))
	assert.Equal(t, 120, p.Preview(120))
}

func TestSizingPolicy_Normalized(t *testing.T) {
	p := SizingPolicy{PreviewMin: 0, PreviewMax: -1, ExportMin: 20, ExportMax: 10}.Normalized()
	assert.Equal(t, PreviewMinPx, p.PreviewMin)
	assert.Equal(t, PreviewMaxPx, p.PreviewMax)
	assert.Equal(t, EngineMinPx, p.ExportMin)
	assert.Equal(t, ExportMaxPx, p.ExportMax)

	custom := SizingPolicy{PreviewMin: 150, PreviewMax: 400, ExportMin: 512, ExportMax: 2048}.Normalized()
	assert.Equal(t, SizingPolicy{PreviewMin: 150, PreviewMax: 400, ExportMin: 512, ExportMax: 2048}, custom)
}
