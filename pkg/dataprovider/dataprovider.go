// Package dataprovider implements the Content Data Provider: a parallel,
// never-failing pre-fetch of weather and color-bar data for major refreshes.
// It uses golang.org/x/sync/errgroup rather than raw goroutines and a
// WaitGroup.
package dataprovider

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/flapboard/contentcore/pkg/model"
	"github.com/flapboard/contentcore/pkg/ports"
)

// Provider fetches weather and color-bar data concurrently.
type Provider struct {
	weather  ports.WeatherService
	colorBar ports.ColorBarService
	timeout  time.Duration
}

// New builds a Provider. timeout bounds each individual source fetch
// (spec default 10s).
func New(weather ports.WeatherService, colorBar ports.ColorBarService, timeout time.Duration) *Provider {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Provider{weather: weather, colorBar: colorBar, timeout: timeout}
}

// FetchData never fails: each source's failure degrades to a warning
// instead of aborting the other, and the result always carries FetchedAt.
func (p *Provider) FetchData(ctx context.Context) *model.ContentData {
	data := &model.ContentData{FetchedAt: time.Now()}

	g, gctx := errgroup.WithContext(ctx)
	var weatherWarning, colorBarWarning string

	g.Go(func() error {
		fetchCtx, cancel := context.WithTimeout(gctx, p.timeout)
		defer cancel()

		if p.weather == nil {
			weatherWarning = "weather service not configured"
			return nil
		}
		w, err := p.weather.GetWeather(fetchCtx)
		if err != nil {
			weatherWarning = fmt.Sprintf("weather fetch failed: %v", err)
			return nil
		}
		if w == nil {
			weatherWarning = "weather fetch returned no data"
			return nil
		}
		data.Weather = w
		return nil
	})

	g.Go(func() error {
		fetchCtx, cancel := context.WithTimeout(gctx, p.timeout)
		defer cancel()

		if p.colorBar == nil {
			colorBarWarning = "color bar service not configured"
			return nil
		}
		c, err := p.colorBar.GetColors(fetchCtx)
		if err != nil {
			colorBarWarning = fmt.Sprintf("color bar fetch failed: %v", err)
			return nil
		}
		if c == nil {
			colorBarWarning = "color bar fetch returned no data"
			return nil
		}
		data.ColorBar = c
		return nil
	})

	// Both goroutines only ever return nil; Wait exists purely to join them
	// before the warnings they collected (in goroutine-local variables, to
	// avoid a concurrent-append race on data.Warnings) are merged in a fixed
	// order below.
	_ = g.Wait()

	if weatherWarning != "" {
		data.AddWarning(weatherWarning)
	}
	if colorBarWarning != "" {
		data.AddWarning(colorBarWarning)
	}

	return data
}
