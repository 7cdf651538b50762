package tools

import (
	"context"
	"fmt"
	"net/url"

	"github.com/nulzo/polly/internal/httpclient"
)

// WorldTime reports the current local time for a city, combining Open-Meteo
// geocoding with worldtimeapi.org (no API key).
type WorldTime struct {
	client httpclient.HTTPClient
}

func NewWorldTime(client httpclient.HTTPClient) *WorldTime {
	return &WorldTime{client: client}
}

func (t *WorldTime) Name() string { return "world_time" }

func (t *WorldTime) Description() string {
	return "Get the current local time for a city. Input should be a city name like 'Hyderabad' or 'Tokyo'."
}

func (t *WorldTime) Invoke(ctx context.Context, input string) string {
	loc, err := geocode(ctx, t.client, input)
	if err != nil {
		return fmt.Sprintf("Time lookup failed: %v", err)
	}
	if loc == nil {
		return fmt.Sprintf("No location found for %s.", input)
	}

	var resp struct {
		Datetime string `json:"datetime"`
	}
	u := fmt.Sprintf("https://worldtimeapi.org/api/timezone/%s", url.PathEscape(loc.Timezone))
	if err := getJSON(ctx, t.client, u, nil, &resp); err != nil {
		return fmt.Sprintf("Time lookup failed: %v", err)
	}

	return fmt.Sprintf("Local time in %s, %s (%s): %s", loc.Name, loc.Country, loc.Timezone, resp.Datetime)
}
