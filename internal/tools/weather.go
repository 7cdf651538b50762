package tools

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/nulzo/polly/internal/httpclient"
)

const geocodingURL = "https://geocoding-api.open-meteo.com/v1/search"

type geocodeResponse struct {
	Results []geocodeResult `json:"results"`
}

type geocodeResult struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Name      string  `json:"name"`
	Country   string  `json:"country"`
	Timezone  string  `json:"timezone"`
}

func geocode(ctx context.Context, client httpclient.HTTPClient, place string) (*geocodeResult, error) {
	u := fmt.Sprintf("%s?name=%s&count=1&language=en&format=json", geocodingURL, url.QueryEscape(strings.TrimSpace(place)))
	var resp geocodeResponse
	if err := getJSON(ctx, client, u, nil, &resp); err != nil {
		return nil, err
	}
	if len(resp.Results) == 0 {
		return nil, nil
	}
	return &resp.Results[0], nil
}

// Weather reports current conditions for a place via Open-Meteo (no API key).
type Weather struct {
	client httpclient.HTTPClient
}

func NewWeather(client httpclient.HTTPClient) *Weather {
	return &Weather{client: client}
}

func (w *Weather) Name() string { return "open_meteo_weather" }

func (w *Weather) Description() string {
	return "Get current weather for a place. Input should be a city name like 'Hyderabad' or 'Paris'. " +
		"Returns temperature (°C), humidity (%), wind (m/s), and a short summary."
}

type forecastResponse struct {
	Current struct {
		Temperature float64 `json:"temperature_2m"`
		Humidity    float64 `json:"relative_humidity_2m"`
		WindSpeed   float64 `json:"wind_speed_10m"`
		WeatherCode int     `json:"weather_code"`
	} `json:"current"`
}

func (w *Weather) Invoke(ctx context.Context, input string) string {
	loc, err := geocode(ctx, w.client, input)
	if err != nil {
		return fmt.Sprintf("Weather lookup failed: %v", err)
	}
	if loc == nil {
		return fmt.Sprintf("No location found for %s.", input)
	}

	u := fmt.Sprintf("https://api.open-meteo.com/v1/forecast?latitude=%f&longitude=%f&current=temperature_2m,relative_humidity_2m,wind_speed_10m,weather_code&timezone=%s",
		loc.Latitude, loc.Longitude, url.QueryEscape(loc.Timezone))
	var resp forecastResponse
	if err := getJSON(ctx, w.client, u, nil, &resp); err != nil {
		return fmt.Sprintf("Weather lookup failed: %v", err)
	}

	return fmt.Sprintf("Location: %s, %s (tz: %s)\nTemperature: %g °C\nHumidity: %g %%\nWind: %g m/s\nWeatherCode: %d",
		loc.Name, loc.Country, loc.Timezone,
		resp.Current.Temperature, resp.Current.Humidity, resp.Current.WindSpeed, resp.Current.WeatherCode)
}
