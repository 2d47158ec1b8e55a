package providers

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-poller/internal/weather"
)

// DefaultOpenWeatherURL is the OpenWeatherMap current weather endpoint.
const DefaultOpenWeatherURL = "https://api.openweathermap.org/data/2.5/weather"

var _ weather.Fetcher = (*OpenWeatherProvider)(nil)

// OpenWeatherProvider implements weather.Fetcher for OpenWeatherMap.
type OpenWeatherProvider struct {
	name    string
	apiKey  string
	baseURL string
	client  *http.Client

	breaker  BreakerConfig
	mu       sync.Mutex
	circuits map[string]*gobreaker.CircuitBreaker // keyed by Location.Key
}

// NewOpenWeatherProvider creates a provider. An empty baseURL selects DefaultOpenWeatherURL.
func NewOpenWeatherProvider(client *http.Client, apiKey, baseURL string, breaker BreakerConfig) *OpenWeatherProvider {
	if baseURL == "" {
		baseURL = DefaultOpenWeatherURL
	}
	return &OpenWeatherProvider{
		name:    "openweathermap",
		apiKey:  apiKey,
		baseURL: baseURL,
		client:   client,
		breaker:  breaker,
		circuits: make(map[string]*gobreaker.CircuitBreaker),
	}
}

// circuitFor returns the breaker for loc, creating it on first use. Each
// location trips and recovers on its own failures only.
func (p *OpenWeatherProvider) circuitFor(loc weather.Location) *gobreaker.CircuitBreaker {
	key := loc.Key()

	p.mu.Lock()
	defer p.mu.Unlock()
	cb, ok := p.circuits[key]
	if !ok {
		cb = newCircuitBreaker("openweather "+key, p.breaker)
		p.circuits[key] = cb
	}
	return cb
}

func (p *OpenWeatherProvider) Name() string {
	return p.name
}

// Fetch requests the current weather at loc's coordinates. Temperatures are
// left in Kelvin (no units parameter is sent).
func (p *OpenWeatherProvider) Fetch(ctx context.Context, loc weather.Location) (weather.Observation, error) {
	if p.apiKey == "" {
		return weather.Observation{}, fmt.Errorf("openweather api key is not configured")
	}
	if !loc.HasCoordinates() {
		return weather.Observation{}, weather.ErrMissingCoordinates
	}

	values := url.Values{}
	values.Set("lat", strconv.FormatFloat(*loc.Lat, 'f', -1, 64))
	values.Set("lon", strconv.FormatFloat(*loc.Lon, 'f', -1, 64))
	values.Set("appid", p.apiKey)

	u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
	req, err := http.NewRequest(http.MethodGet, u, nil)
	if err != nil {
		return weather.Observation{}, err
	}

	body, err := doRequest(ctx, p.name, p.client, p.circuitFor(loc), req)
	if err != nil {
		return weather.Observation{}, err
	}

	return p.decode(body)
}

type openWeatherPayload struct {
	Name string `json:"name"`
	Dt   int64  `json:"dt"`
	Main *struct {
		TempMin  *float64 `json:"temp_min"`
		TempMax  *float64 `json:"temp_max"`
		Temp     *float64 `json:"temp"`
		Humidity *float64 `json:"humidity"`
	} `json:"main"`
	Weather []struct {
		Main string `json:"main"`
	} `json:"weather"`
}

func (p *OpenWeatherProvider) decode(body []byte) (weather.Observation, error) {
	var payload openWeatherPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return weather.Observation{}, &weather.MalformedResponseError{Provider: p.name, Err: err}
	}

	obs := weather.Observation{
		Name:      payload.Name,
		Condition: mapOpenWeatherCondition(payload.Weather),
	}
	if payload.Dt > 0 {
		obs.ObservedAt = time.Unix(payload.Dt, 0).UTC()
	}

	m := payload.Main
	if m != nil && m.TempMin != nil && m.TempMax != nil && m.Temp != nil && m.Humidity != nil {
		obs.Readings = &weather.Readings{
			TempMin:  *m.TempMin,
			TempMax:  *m.TempMax,
			Temp:     *m.Temp,
			Humidity: int(math.Round(*m.Humidity)),
		}
	}
	return obs, nil
}

func mapOpenWeatherCondition(items []struct {
	Main string `json:"main"`
}) string {
	if len(items) == 0 {
		return "unknown"
	}
	switch items[0].Main {
	case "Clear":
		return "clear"
	case "Clouds":
		return "cloudy"
	case "Rain", "Drizzle":
		return "rain"
	case "Snow":
		return "snow"
	case "Thunderstorm":
		return "storm"
	case "Mist", "Fog", "Haze":
		return "mist"
	default:
		return "unknown"
	}
}
