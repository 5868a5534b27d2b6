package widgets

import "net/http"

type URLs struct {
	Geocoding string `mapstructure:"geocoding_url" yaml:"geocoding_url"`
	Forecast  string `mapstructure:"forecast_url" yaml:"forecast_url"`
	Yahoo     string `mapstructure:"yahoo_url" yaml:"yahoo_url"`
}

// NewBuiltinRegistry registers weather, stock and calculation widgets.
func NewBuiltinRegistry(client *http.Client, urls URLs) *Registry {
	r := NewRegistry()
	for _, w := range []Widget{
		NewWeatherWidget(client, urls.Geocoding, urls.Forecast),
		NewStockWidget(client, urls.Yahoo),
		CalculationWidget{},
	} {
		if err := r.Register(w); err != nil {
			panic(err)
		}
	}
	return r
}
