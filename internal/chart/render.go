// Package chart renders the live two-panel sensor chart and publishes the
// result for HTTP readers.
package chart

import (
	"bytes"
	"image"
	"image/png"
	"math"
	"time"

	"codeberg.org/mutker/senselog/internal/errors"
	"codeberg.org/mutker/senselog/internal/sample"
	gochart "github.com/wcharczuk/go-chart/v2"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	DefaultWidth       = 800
	DefaultPanelHeight = 300
	DefaultTitle       = "Live Sensor Data"

	titleHeight   = 28
	waitingText   = "Waiting for data"
	minRangeDelta = 1.0
)

// Renderer draws temperature and humidity in the upper panel and altitude in
// the lower panel, sharing the time axis.
type Renderer struct {
	Width       int
	PanelHeight int
	Title       string
}

func NewRenderer() *Renderer {
	return &Renderer{
		Width:       DefaultWidth,
		PanelHeight: DefaultPanelHeight,
		Title:       DefaultTitle,
	}
}

// Series returns the samples that are plotted. The first sample is a
// warm-up reading and is never shown.
func Series(samples []sample.Sample) []sample.Sample {
	if len(samples) <= 1 {
		return nil
	}
	return samples[1:]
}

// Render returns the chart for samples encoded as PNG.
func (r *Renderer) Render(samples []sample.Sample) ([]byte, error) {
	errFactory := errors.New()
	points := Series(samples)

	upper, err := r.panel(points, "Temperature and Humidity ~F %rH",
		line{name: "Temperature", value: func(s sample.Sample) sample.Value { return s.Temperature }},
		line{name: "Humidity", value: func(s sample.Sample) sample.Value { return s.Humidity }},
	)
	if err != nil {
		return nil, errFactory.Wrap(errors.ErrRenderChart, err)
	}

	lower, err := r.panel(points, "Altitude ~feet",
		line{name: "Altitude", value: func(s sample.Sample) sample.Value { return s.Altitude }},
	)
	if err != nil {
		return nil, errFactory.Wrap(errors.ErrRenderChart, err)
	}

	dst := image.NewRGBA(image.Rect(0, 0, r.Width, titleHeight+2*r.PanelHeight))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	drawText(dst, r.Title, titleHeight-9)
	draw.Draw(dst, image.Rect(0, titleHeight, r.Width, titleHeight+r.PanelHeight), upper, upper.Bounds().Min, draw.Src)
	draw.Draw(dst, image.Rect(0, titleHeight+r.PanelHeight, r.Width, titleHeight+2*r.PanelHeight), lower, lower.Bounds().Min, draw.Src)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, errFactory.Wrap(errors.ErrRenderChart, err)
	}
	return buf.Bytes(), nil
}

type line struct {
	name  string
	value func(sample.Sample) sample.Value
}

func (r *Renderer) panel(points []sample.Sample, yName string, lines ...line) (image.Image, error) {
	var (
		series     []gochart.Series
		minT, maxT time.Time
		minY       = math.Inf(1)
		maxY       = math.Inf(-1)
	)

	for _, l := range lines {
		ts := gochart.TimeSeries{Name: l.name}
		for _, s := range points {
			v, ok := l.value(s).Get()
			if !ok {
				continue
			}
			ts.XValues = append(ts.XValues, s.Time)
			ts.YValues = append(ts.YValues, v)

			if minT.IsZero() || s.Time.Before(minT) {
				minT = s.Time
			}
			if s.Time.After(maxT) {
				maxT = s.Time
			}
			minY = math.Min(minY, v)
			maxY = math.Max(maxY, v)
		}
		if len(ts.XValues) > 0 {
			series = append(series, ts)
		}
	}

	if len(series) == 0 {
		return placeholder(r.Width, r.PanelHeight, yName), nil
	}

	// Constant or single point series would give the axes a zero range.
	if maxY-minY < minRangeDelta {
		mid := (maxY + minY) / 2
		minY, maxY = mid-minRangeDelta/2, mid+minRangeDelta/2
	}
	if !maxT.After(minT) {
		minT, maxT = minT.Add(-time.Second), maxT.Add(time.Second)
	}

	ch := gochart.Chart{
		Width:      r.Width,
		Height:     r.PanelHeight,
		Background: gochart.Style{Padding: gochart.Box{Top: 20, Left: 16, Right: 16, Bottom: 12}},
		XAxis: gochart.XAxis{
			Name:           "Time",
			ValueFormatter: gochart.TimeValueFormatterWithFormat("15:04:05"),
			Range: &gochart.ContinuousRange{
				Min: gochart.TimeToFloat64(minT),
				Max: gochart.TimeToFloat64(maxT),
			},
		},
		YAxis: gochart.YAxis{
			Name:  yName,
			Range: &gochart.ContinuousRange{Min: minY, Max: maxY},
		},
		Series: series,
	}
	ch.Elements = []gochart.Renderable{gochart.Legend(&ch)}

	var buf bytes.Buffer
	if err := ch.Render(gochart.PNG, &buf); err != nil {
		return nil, err
	}
	return png.Decode(&buf)
}

func placeholder(width, height int, label string) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)
	drawText(img, label, height/2-10)
	drawText(img, waitingText, height/2+10)
	return img
}

// drawText centers text horizontally with its baseline at y.
func drawText(dst draw.Image, text string, y int) {
	drawer := &font.Drawer{
		Dst:  dst,
		Src:  image.Black,
		Face: basicfont.Face7x13,
	}
	x := (dst.Bounds().Dx() - drawer.MeasureString(text).Ceil()) / 2
	drawer.Dot = fixed.P(x, y)
	drawer.DrawString(text)
}
