package safety

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/roboticsmick/ORCA-open-spectrometer-sub000/config"
	"github.com/roboticsmick/ORCA-open-spectrometer-sub000/internal/model"
	"github.com/roboticsmick/ORCA-open-spectrometer-sub000/internal/telemetry"
)

// TempFanController periodically reads an I2cTempSensor and drives a
// GpioOutput fan pin off a configurable threshold. Ported from
// temp_sensor.py's update loop: the fan runs whenever the last good
// reading is at or above threshold, defaults to always-on (threshold 0),
// and keeps running off the last good reading during transient read
// failures rather than flapping.
type TempFanController struct {
	sensor  model.I2cTempSensor
	fan     model.GpioOutput
	metrics *telemetry.Metrics
	log     *slog.Logger

	mu           sync.RWMutex
	thresholdC   float64
	lastGood     *float64
	fanOn        bool
	sensorGaveUp bool

	consecutiveFailures int
}

// NewTempFanController wires the controller. sensor and fan may be nil
// when disabled in config. If both are nil, Run returns immediately; if
// only the sensor is nil, every tick counts as a failed read and the fan
// follows the read-failure policy in tick.
func NewTempFanController(sensor model.I2cTempSensor, fan model.GpioOutput, metrics *telemetry.Metrics, log *slog.Logger) *TempFanController {
	return &TempFanController{
		sensor:     sensor,
		fan:        fan,
		metrics:    metrics,
		log:        log,
		thresholdC: config.FanThresholdDefaultC,
	}
}

// Run polls the sensor on config.TempUpdateInterval until ctx is
// cancelled. Initialization retries (config.TempSensorInitRetries) are
// the concrete I2cTempSensor's concern, not this loop's; Run assumes the
// sensor, if non-nil, is already open.
func (c *TempFanController) Run(ctx context.Context) {
	if c.fan == nil && c.sensor == nil {
		return
	}

	ticker := time.NewTicker(config.TempUpdateInterval)
	defer ticker.Stop()

	c.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			c.setFan(false)
			return
		case <-ticker.C:
			c.tick(ctx)
		}
	}
}

func (c *TempFanController) tick(ctx context.Context) {
	temp, ok := c.readTemp(ctx)

	c.mu.Lock()
	threshold := c.thresholdC
	var shouldFanBeOn bool
	if ok {
		c.lastGood = &temp
		shouldFanBeOn = temp >= threshold
	} else {
		// read failed: hold the fan's current state, or force it on if
		// threshold <= 0 means "always on" regardless of sensor health.
		shouldFanBeOn = threshold <= 0 || c.fanOn
	}
	c.mu.Unlock()

	if ok {
		c.metrics.TemperatureC.Set(temp)
	}
	c.setFan(shouldFanBeOn)
}

// readTemp reads the sensor once, tracking consecutive failures and
// permanently giving up after config.TempSensorMaxFailures, mirroring
// _sensor_gave_up in temp_sensor.py so a failing I2C bus cannot keep
// blocking this loop indefinitely.
func (c *TempFanController) readTemp(ctx context.Context) (float64, bool) {
	c.mu.RLock()
	gaveUp := c.sensorGaveUp
	c.mu.RUnlock()
	if c.sensor == nil || gaveUp {
		c.metrics.TempSensorOK.Set(0)
		return 0, false
	}

	temp, err := c.sensor.ReadCelsius(ctx)
	if err != nil {
		c.mu.Lock()
		c.consecutiveFailures++
		giveUp := c.consecutiveFailures >= config.TempSensorMaxFailures
		if giveUp {
			c.sensorGaveUp = true
		}
		c.mu.Unlock()

		if giveUp {
			c.log.Error("temperature sensor exceeded max consecutive failures, giving up", "max", config.TempSensorMaxFailures)
			c.metrics.TempSensorOK.Set(0)
		} else {
			c.log.Debug("temperature read failed", "err", err, "consecutive", c.consecutiveFailures)
		}
		return 0, false
	}

	c.mu.Lock()
	c.consecutiveFailures = 0
	c.mu.Unlock()
	c.metrics.TempSensorOK.Set(1)
	return temp, true
}

func (c *TempFanController) setFan(on bool) {
	c.mu.Lock()
	changed := c.fanOn != on
	c.fanOn = on
	c.mu.Unlock()

	if c.fan != nil {
		if err := c.fan.Set(on); err != nil {
			c.log.Error("failed to set fan state", "err", err)
			return
		}
	}
	if changed {
		if on {
			c.metrics.FanOn.Set(1)
		} else {
			c.metrics.FanOn.Set(0)
		}
	}
}

// SetThresholdC updates the fan activation threshold at runtime (the
// menu's fan threshold control). Values <= 0 mean "always on".
func (c *TempFanController) SetThresholdC(thresholdC float64) {
	c.mu.Lock()
	c.thresholdC = thresholdC
	c.mu.Unlock()
}

// ThresholdC returns the current fan activation threshold.
func (c *TempFanController) ThresholdC() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.thresholdC
}

// LastTemperatureC returns the last successfully read temperature, or nil
// if no reading has ever succeeded.
func (c *TempFanController) LastTemperatureC() *float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastGood
}

// FanOn reports the fan's last commanded state.
func (c *TempFanController) FanOn() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fanOn
}
