package handler

import (
	"errors"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/markyourfish/fishing-log/internal/weather"
)

// WeatherHandler proxies the upstream weather provider and decorates each
// reading with a fishing-conditions assessment. Responses are served from
// the Redis cache middleware, so the provider only sees one call per
// coordinate pair per TTL window.
type WeatherHandler struct {
	Client *weather.Client
}

func NewWeatherHandler(client *weather.Client) *WeatherHandler {
	return &WeatherHandler{Client: client}
}

func coordinates(c echo.Context) (lat, lon float64, err error) {
	lat, latErr := strconv.ParseFloat(c.QueryParam("lat"), 64)
	lon, lonErr := strconv.ParseFloat(c.QueryParam("lon"), 64)
	if latErr != nil || lonErr != nil || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return 0, 0, errors.New("invalid coordinates")
	}
	return lat, lon, nil
}

func weatherError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, weather.ErrNotConfigured):
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "weather service not configured"})
	case errors.Is(err, weather.ErrUpstream):
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "weather provider error"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to fetch weather data"})
	}
}

func firstCondition(list []weather.Conditions) weather.Conditions {
	if len(list) > 0 {
		return list[0]
	}
	return weather.Conditions{}
}

// Current returns present conditions plus the fishing assessment for a
// coordinate pair.
func (h *WeatherHandler) Current(c echo.Context) error {
	lat, lon, err := coordinates(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "lat and lon query parameters are required"})
	}

	cur, err := h.Client.Current(c.Request().Context(), lat, lon)
	if err != nil {
		return weatherError(c, err)
	}

	cond := firstCondition(cur.Weather)
	assessment := weather.Assess(weather.Sample{
		TempC:     cur.Main.Temp,
		WindSpeed: cur.Wind.Speed,
		Pressure:  cur.Main.Pressure,
		Sky:       cond.Main,
	})

	return c.JSON(http.StatusOK, echo.Map{
		"weather": echo.Map{
			"location": echo.Map{"lat": lat, "lon": lon, "name": cur.Name},
			"current": echo.Map{
				"temperature": cur.Main.Temp,
				"feelsLike":   cur.Main.FeelsLike,
				"humidity":    cur.Main.Humidity,
				"pressure":    cur.Main.Pressure,
				"visibility":  cur.Visibility / 1000, // km
				"wind": echo.Map{
					"speed":     cur.Wind.Speed,
					"direction": cur.Wind.Deg,
					"gust":      cur.Wind.Gust,
				},
				"clouds":     cur.Clouds.All,
				"conditions": cond,
				"sunrise":    time.Unix(cur.Sys.Sunrise, 0).UTC().Format(time.RFC3339),
				"sunset":     time.Unix(cur.Sys.Sunset, 0).UTC().Format(time.RFC3339),
				"timestamp":  time.Unix(cur.DT, 0).UTC().Format(time.RFC3339),
			},
			"fishing": assessment,
		},
	})
}

type forecastSlot struct {
	Time                string             `json:"time"`
	Temperature         float64            `json:"temperature"`
	Humidity            float64            `json:"humidity"`
	Pressure            float64            `json:"pressure"`
	Wind                echo.Map           `json:"wind"`
	Conditions          weather.Conditions `json:"conditions"`
	PrecipitationChance float64            `json:"precipitationChance"`
	Fishing             weather.Assessment `json:"fishing"`
}

type forecastDay struct {
	Date      string             `json:"date"`
	Forecasts []forecastSlot     `json:"forecasts"`
	Daily     echo.Map           `json:"daily"`
	Fishing   weather.Assessment `json:"fishing"`

	tempMin, tempMax float64
	pressure, wind   float64
	pop              float64
	sky              weather.Conditions
}

// Forecast returns up to five days of 3-hour forecasts, each slot and each
// day scored for fishing.
func (h *WeatherHandler) Forecast(c echo.Context) error {
	lat, lon, err := coordinates(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "lat and lon query parameters are required"})
	}
	days := queryInt(c, "days", 5)
	if days > 5 {
		days = 5
	}

	fc, err := h.Client.FiveDay(c.Request().Context(), lat, lon, 40)
	if err != nil {
		return weatherError(c, err)
	}

	byDate := map[string]*forecastDay{}
	for _, entry := range fc.List {
		ts := time.Unix(entry.DT, 0).UTC()
		date := ts.Format("2006-01-02")
		cond := firstCondition(entry.Weather)

		day, ok := byDate[date]
		if !ok {
			day = &forecastDay{
				Date:    date,
				tempMin: entry.Main.TempMin,
				tempMax: entry.Main.TempMax,
				pressure: entry.Main.Pressure,
				wind:     entry.Wind.Speed,
				pop:      entry.POP,
				sky:      cond,
			}
			byDate[date] = day
		} else {
			if entry.Main.TempMin < day.tempMin {
				day.tempMin = entry.Main.TempMin
			}
			if entry.Main.TempMax > day.tempMax {
				day.tempMax = entry.Main.TempMax
			}
			if entry.POP > day.pop {
				day.pop = entry.POP
			}
		}

		day.Forecasts = append(day.Forecasts, forecastSlot{
			Time:        ts.Format(time.RFC3339),
			Temperature: entry.Main.Temp,
			Humidity:    entry.Main.Humidity,
			Pressure:    entry.Main.Pressure,
			Wind: echo.Map{
				"speed":     entry.Wind.Speed,
				"direction": entry.Wind.Deg,
			},
			Conditions:          cond,
			PrecipitationChance: entry.POP,
			Fishing: weather.Assess(weather.Sample{
				TempC:     entry.Main.Temp,
				WindSpeed: entry.Wind.Speed,
				Pressure:  entry.Main.Pressure,
				Sky:       cond.Main,
			}),
		})
	}

	dates := make([]string, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	if len(dates) > days {
		dates = dates[:days]
	}

	out := make([]*forecastDay, 0, len(dates))
	for _, d := range dates {
		day := byDate[d]
		day.Daily = echo.Map{
			"tempMin":             day.tempMin,
			"tempMax":             day.tempMax,
			"pressure":            day.pressure,
			"windSpeed":           day.wind,
			"conditions":          day.sky,
			"precipitationChance": day.pop,
		}
		day.Fishing = weather.Assess(weather.Sample{
			TempC:     (day.tempMin + day.tempMax) / 2,
			WindSpeed: day.wind,
			Pressure:  day.pressure,
			Sky:       day.sky.Main,
		})
		out = append(out, day)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"forecast": echo.Map{
			"location": echo.Map{"lat": lat, "lon": lon, "name": fc.City.Name},
			"days":     out,
		},
	})
}
