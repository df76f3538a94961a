package chart_test

import (
	"bytes"
	"image/png"
	"testing"
	"time"

	"codeberg.org/mutker/senselog/internal/chart"
	"codeberg.org/mutker/senselog/internal/sample"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samples(n int) []sample.Sample {
	base := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
	out := make([]sample.Sample, n)
	for i := range out {
		out[i] = sample.Sample{
			Temperature: sample.Of(70 + float64(i)),
			Humidity:    sample.Of(45 - float64(i)/2),
			Altitude:    sample.Of(-65),
			Time:        base.Add(time.Duration(i) * 5 * time.Second),
		}
	}
	return out
}

func TestSeriesExcludesFirstSample(t *testing.T) {
	assert.Empty(t, chart.Series(nil))
	assert.Empty(t, chart.Series(samples(1)))

	for _, n := range []int{2, 3, 10} {
		all := samples(n)
		series := chart.Series(all)
		require.Len(t, series, n-1)
		assert.Equal(t, all[1], series[0])
		assert.Equal(t, all[n-1], series[n-2])
	}
}

func decode(t *testing.T, data []byte) (int, int) {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	return img.Bounds().Dx(), img.Bounds().Dy()
}

func TestRenderPlaceholder(t *testing.T) {
	r := chart.NewRenderer()

	for _, n := range []int{0, 1} {
		data, err := r.Render(samples(n))
		require.NoError(t, err)

		w, h := decode(t, data)
		assert.Equal(t, chart.DefaultWidth, w)
		assert.Greater(t, h, 2*chart.DefaultPanelHeight)
	}
}

func TestRenderSeries(t *testing.T) {
	r := &chart.Renderer{Width: 640, PanelHeight: 240, Title: "Test"}

	// Two samples give a single plotted point, constant altitude.
	for _, n := range []int{2, 3, 12} {
		data, err := r.Render(samples(n))
		require.NoError(t, err, "n=%d", n)

		w, h := decode(t, data)
		assert.Equal(t, 640, w)
		assert.Greater(t, h, 480)
	}
}

func TestRenderMissingChannel(t *testing.T) {
	in := samples(4)
	for i := range in {
		in[i].Altitude = sample.Value{}
	}

	data, err := chart.NewRenderer().Render(in)
	require.NoError(t, err)
	decode(t, data)
}
