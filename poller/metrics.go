package poller

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/alepar/aranet4/aranet"
)

// metrics to expose to Prometheus
var (
	gaugeCo2Level    = newGauge("air_co2_level", "Air Carbon Dioxide level (units: ppm)")
	gaugeTemperature = newGauge("air_temperature", "Air Temperature (units: degrees Celsius)")
	gaugeHumidity    = newGauge("air_humidity", "Humidity (units: % of relative Humidity)")
	gaugeAtmPressure = newGauge("air_atm_pressure", "Atmospheric Pressure (units: hPa)")
	gaugeBattery     = newGauge("aranet_battery", "Device battery level (units: %)")
	gaugeStatus      = newGauge("aranet_status", "CO2 status light (0 unknown, 1 green, 2 yellow, 3 red)")
	gaugeLastReading = newGauge("aranet_last_reading_timestamp_seconds", "Time of the last successful reading")

	readCycles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aranet_read_cycles_total",
			Help: "Read cycles by outcome",
		},
		[]string{"outcome"},
	)
	readDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "aranet_read_cycle_duration_seconds",
			Help:    "Duration of read cycles, including the scan window",
			Buckets: []float64{1, 2.5, 5, 7.5, 10, 15, 20, 30, 60},
		},
	)
	appendFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "aranet_history_append_failures_total",
			Help: "Readings that could not be written to history",
		},
	)
)

func newGauge(name string, help string) prometheus.Gauge {
	return prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: name,
			Help: help,
		},
	)
}

// MustRegister registers the poller metrics with r.
func MustRegister(r prometheus.Registerer) {
	r.MustRegister(
		gaugeCo2Level,
		gaugeTemperature,
		gaugeHumidity,
		gaugeAtmPressure,
		gaugeBattery,
		gaugeStatus,
		gaugeLastReading,
		readCycles,
		readDuration,
		appendFailures,
	)
}

func observeReading(r aranet.Reading) {
	gaugeCo2Level.Set(float64(r.CO2))
	gaugeTemperature.Set(float64(r.Temperature))
	gaugeHumidity.Set(float64(r.Humidity))
	gaugeAtmPressure.Set(float64(r.Pressure))
	gaugeBattery.Set(float64(r.Battery))
	gaugeStatus.Set(float64(r.Status))
	gaugeLastReading.Set(float64(r.Timestamp))
}
