package widgets

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-go-golems/scout/pkg/llm"
	"github.com/go-go-golems/scout/pkg/turns"
	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
)

const (
	TypeWeather = "weather"

	DefaultGeocodingURL = "https://geocoding-api.open-meteo.com/v1/search"
	DefaultForecastURL  = "https://api.open-meteo.com/v1/forecast"
)

type WeatherParams struct {
	Location  string   `json:"location,omitempty" jsonschema:"description=City or place name, e.g. Paris or San Francisco CA"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

func (p WeatherParams) complete() bool {
	return strings.TrimSpace(p.Location) != "" || (p.Latitude != nil && p.Longitude != nil)
}

type WeatherCurrent struct {
	Time          string  `json:"time"`
	Temperature   float64 `json:"temperature"`
	FeelsLike     float64 `json:"feelsLike"`
	Humidity      float64 `json:"humidity"`
	Precipitation float64 `json:"precipitation"`
	WindSpeed     float64 `json:"windSpeed"`
	WeatherCode   int     `json:"weatherCode"`
	Condition     string  `json:"condition"`
	IsDay         bool    `json:"isDay"`
}

type WeatherDay struct {
	Date      string  `json:"date"`
	Min       float64 `json:"min"`
	Max       float64 `json:"max"`
	Condition string  `json:"condition"`
}

type WeatherData struct {
	Location  string         `json:"location"`
	Latitude  float64        `json:"latitude"`
	Longitude float64        `json:"longitude"`
	Timezone  string         `json:"timezone"`
	Current   WeatherCurrent `json:"current"`
	Daily     []WeatherDay   `json:"daily"`
	Units     string         `json:"units"`
}

type WeatherWidget struct {
	Client       *http.Client
	GeocodingURL string
	ForecastURL  string
}

var _ Widget = (*WeatherWidget)(nil)

func NewWeatherWidget(client *http.Client, geocodingURL, forecastURL string) *WeatherWidget {
	if client == nil {
		client = http.DefaultClient
	}
	if geocodingURL == "" {
		geocodingURL = DefaultGeocodingURL
	}
	if forecastURL == "" {
		forecastURL = DefaultForecastURL
	}
	return &WeatherWidget{Client: client, GeocodingURL: geocodingURL, ForecastURL: forecastURL}
}

func (w *WeatherWidget) Type() string {
	return TypeWeather
}

func (w *WeatherWidget) Description() string {
	return "Current conditions and a short forecast for a place. Params: location name, or latitude and longitude."
}

func (w *WeatherWidget) Schema() *jsonschema.Schema {
	return llm.ReflectSchema(WeatherParams{})
}

func (w *WeatherWidget) ShouldExecute(c turns.Classification) bool {
	return selected(TypeWeather, c)
}

func (w *WeatherWidget) Execute(ctx context.Context, in Input) (*Output, error) {
	params, ok, err := resolveParams(ctx, in, TypeWeather,
		"Find the place the user wants the weather for.",
		WeatherParams.complete)
	if err != nil || !ok {
		return nil, err
	}
	data, err := w.Lookup(ctx, params)
	if err != nil {
		return nil, err
	}
	return &Output{Type: TypeWeather, Data: data, LLMContext: data.Summary()}, nil
}

type geocodingResponse struct {
	Results []struct {
		Name      string  `json:"name"`
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
		Country   string  `json:"country"`
		Admin1    string  `json:"admin1"`
	} `json:"results"`
}

type forecastResponse struct {
	Timezone string `json:"timezone"`
	Current  struct {
		Time                string  `json:"time"`
		Temperature2m       float64 `json:"temperature_2m"`
		RelativeHumidity2m  float64 `json:"relative_humidity_2m"`
		ApparentTemperature float64 `json:"apparent_temperature"`
		IsDay               int     `json:"is_day"`
		Precipitation       float64 `json:"precipitation"`
		WeatherCode         int     `json:"weather_code"`
		WindSpeed10m        float64 `json:"wind_speed_10m"`
	} `json:"current"`
	Daily struct {
		Time             []string  `json:"time"`
		Temperature2mMax []float64 `json:"temperature_2m_max"`
		Temperature2mMin []float64 `json:"temperature_2m_min"`
		WeatherCode      []int     `json:"weather_code"`
	} `json:"daily"`
}

// Lookup geocodes the location when needed and fetches the forecast.
func (w *WeatherWidget) Lookup(ctx context.Context, p WeatherParams) (*WeatherData, error) {
	data := &WeatherData{Units: "metric"}
	if p.Latitude != nil && p.Longitude != nil {
		data.Latitude, data.Longitude = *p.Latitude, *p.Longitude
		data.Location = p.Location
		if data.Location == "" {
			data.Location = fmt.Sprintf("%.2f, %.2f", data.Latitude, data.Longitude)
		}
	} else {
		var geo geocodingResponse
		err := getJSON(ctx, w.Client, w.GeocodingURL, url.Values{
			"name":     {p.Location},
			"count":    {"1"},
			"language": {"en"},
			"format":   {"json"},
		}, &geo)
		if err != nil {
			return nil, errors.Wrap(err, "geocode")
		}
		if len(geo.Results) == 0 {
			return nil, errors.Errorf("location %q not found", p.Location)
		}
		r := geo.Results[0]
		data.Latitude, data.Longitude = r.Latitude, r.Longitude
		parts := []string{r.Name}
		for _, s := range []string{r.Admin1, r.Country} {
			if s != "" && s != r.Name {
				parts = append(parts, s)
			}
		}
		data.Location = strings.Join(parts, ", ")
	}

	var fc forecastResponse
	err := getJSON(ctx, w.Client, w.ForecastURL, url.Values{
		"latitude":      {strconv.FormatFloat(data.Latitude, 'f', 4, 64)},
		"longitude":     {strconv.FormatFloat(data.Longitude, 'f', 4, 64)},
		"current":       {"temperature_2m,relative_humidity_2m,apparent_temperature,is_day,precipitation,weather_code,wind_speed_10m"},
		"daily":         {"temperature_2m_max,temperature_2m_min,weather_code"},
		"timezone":      {"auto"},
		"forecast_days": {"3"},
	}, &fc)
	if err != nil {
		return nil, errors.Wrap(err, "forecast")
	}
	data.Timezone = fc.Timezone
	data.Current = WeatherCurrent{
		Time:          fc.Current.Time,
		Temperature:   fc.Current.Temperature2m,
		FeelsLike:     fc.Current.ApparentTemperature,
		Humidity:      fc.Current.RelativeHumidity2m,
		Precipitation: fc.Current.Precipitation,
		WindSpeed:     fc.Current.WindSpeed10m,
		WeatherCode:   fc.Current.WeatherCode,
		Condition:     WeatherCondition(fc.Current.WeatherCode),
		IsDay:         fc.Current.IsDay == 1,
	}
	for i, day := range fc.Daily.Time {
		if i >= len(fc.Daily.Temperature2mMax) || i >= len(fc.Daily.Temperature2mMin) || i >= len(fc.Daily.WeatherCode) {
			break
		}
		data.Daily = append(data.Daily, WeatherDay{
			Date:      day,
			Min:       fc.Daily.Temperature2mMin[i],
			Max:       fc.Daily.Temperature2mMax[i],
			Condition: WeatherCondition(fc.Daily.WeatherCode[i]),
		})
	}
	return data, nil
}

func (d *WeatherData) Summary() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Weather in %s (already shown to the user): %s, %.1f°C (feels like %.1f°C), humidity %.0f%%, wind %.1f km/h, precipitation %.1f mm.",
		d.Location, d.Current.Condition, d.Current.Temperature, d.Current.FeelsLike,
		d.Current.Humidity, d.Current.WindSpeed, d.Current.Precipitation)
	for _, day := range d.Daily {
		fmt.Fprintf(&sb, " %s: %s, %.0f to %.0f°C.", day.Date, day.Condition, day.Min, day.Max)
	}
	return sb.String()
}

// WeatherCondition maps a WMO weather code to a short description.
func WeatherCondition(code int) string {
	switch {
	case code == 0:
		return "clear sky"
	case code <= 2:
		return "partly cloudy"
	case code == 3:
		return "overcast"
	case code == 45 || code == 48:
		return "fog"
	case code >= 51 && code <= 57:
		return "drizzle"
	case code >= 61 && code <= 67:
		return "rain"
	case code >= 71 && code <= 77:
		return "snow"
	case code >= 80 && code <= 82:
		return "rain showers"
	case code == 85 || code == 86:
		return "snow showers"
	case code >= 95:
		return "thunderstorm"
	default:
		return "unknown"
	}
}
