package main

import (
	"fmt"
	"strings"
	"time"

	georitm "github.com/caarlos0/georitm-bridge"
	"github.com/caarlos0/georitm-bridge/internal/entity"
	"github.com/caarlos0/georitm-bridge/internal/mqtt"
	logp "github.com/charmbracelet/log"
	"golang.org/x/exp/slices"
)

type Config struct {
	Login        string        `env:"LOGIN"`
	Email        string        `env:"EMAIL"`
	Password     string        `env:"PASSWORD,notEmpty"`
	BaseURL      string        `env:"BASE_URL"      envDefault:"https://core.geo.ritm.ru"`
	Timeout      time.Duration `env:"TIMEOUT"       envDefault:"15s"`
	PollInterval time.Duration `env:"POLL_INTERVAL" envDefault:"30s"`
	Devices      []string      `env:"DEVICES"`
	Language     string        `env:"LANGUAGE"      envDefault:"en"`
	Address      string        `env:"LISTEN"        envDefault:":9009"`
	Pin          string        `env:"HOMEKIT_PIN"   envDefault:"00102003"`
	StateDB      string        `env:"STATE_DB"      envDefault:"./db/state.db"`
	LogLevel     string        `env:"LOG_LEVEL"     envDefault:"info"`
	MQTT         MQTTConfig    `envPrefix:"MQTT_"`
}

type MQTTConfig struct {
	Broker          string `env:"BROKER"`
	Username        string `env:"USERNAME"`
	Password        string `env:"PASSWORD"`
	ClientID        string `env:"CLIENT_ID"`
	TopicPrefix     string `env:"TOPIC_PREFIX"     envDefault:"georitm"`
	DiscoveryPrefix string `env:"DISCOVERY_PREFIX" envDefault:"homeassistant"`
}

func (c Config) credentials() (georitm.Credentials, error) {
	return georitm.NewCredentials(c.Login, c.Email, c.Password)
}

func (c Config) labels() (entity.Labels, error) {
	return entity.LabelsFor(strings.ToLower(strings.TrimSpace(c.Language)))
}

func (c Config) logLevel() (logp.Level, error) {
	level, err := logp.ParseLevel(c.LogLevel)
	if err != nil {
		return logp.InfoLevel, fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	return level, nil
}

func (c Config) mqtt() mqtt.Config {
	return mqtt.Config{
		Broker:          c.MQTT.Broker,
		Username:        c.MQTT.Username,
		Password:        c.MQTT.Password,
		ClientID:        c.MQTT.ClientID,
		TopicPrefix:     c.MQTT.TopicPrefix,
		DiscoveryPrefix: c.MQTT.DiscoveryPrefix,
	}
}

// filterDevices keeps the configured devices, or all of them if none
// were configured.
func (c Config) filterDevices(devices []georitm.Device) []georitm.Device {
	if len(c.Devices) == 0 {
		return devices
	}
	var result []georitm.Device
	for _, dev := range devices {
		if slices.Contains(c.Devices, dev.ID.String()) {
			result = append(result, dev)
		}
	}
	return result
}

type allDevices []georitm.Device

func (a allDevices) String() string {
	var lines []string
	for _, dev := range a {
		lines = append(
			lines,
			fmt.Sprintf("device %s: %q (%s, %d areas)", dev.ID, dev.Name, dev.Type(), len(dev.Areas)),
		)
	}
	return strings.Join(lines, "\n")
}
