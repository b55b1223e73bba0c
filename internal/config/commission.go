package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// CommissionConfig holds the platform commission rates per session type.
// Donations always settle gross; the other types carry a fixed platform cut.
type CommissionConfig struct {
	Rates map[string]float64 `mapstructure:"rates"`
}

func DefaultCommissionConfig() CommissionConfig {
	return CommissionConfig{
		Rates: map[string]float64{
			"donation":     0,
			"purchase":     0.10,
			"subscription": 0.10,
			"topup":        0.10,
		},
	}
}

type CommissionHolder struct {
	current atomic.Value // holds CommissionConfig
}

func NewCommissionHolder() (*CommissionHolder, error) {
	v := viper.New()

	v.SetConfigName("commission")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/fanstage")
	v.AddConfigPath(".")

	v.SetEnvPrefix("FANSTAGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		defaults := DefaultCommissionConfig()
		v.SetDefault("commission.rates", defaults.Rates)
	}

	var cfg CommissionConfig
	if err := v.UnmarshalKey("commission", &cfg); err != nil {
		return nil, err
	}
	if err := validateCommissionConfig(cfg); err != nil {
		return nil, err
	}

	holder := &CommissionHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated CommissionConfig
		if err := v.UnmarshalKey("commission", &updated); err != nil {
			log.Printf("[commission-config] reload failed: %v", err)
			return
		}
		if err := validateCommissionConfig(updated); err != nil {
			log.Printf("[commission-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[commission-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *CommissionHolder) Get() CommissionConfig {
	return h.current.Load().(CommissionConfig)
}

// Rate returns the commission rate for a session type, 0 for unknown types.
func (h *CommissionHolder) Rate(sessionType string) float64 {
	cfg := h.Get()
	rate, ok := cfg.Rates[strings.ToLower(strings.TrimSpace(sessionType))]
	if !ok {
		return 0
	}
	return rate
}

func validateCommissionConfig(cfg CommissionConfig) error {
	if len(cfg.Rates) == 0 {
		return errors.New("commission.rates cannot be empty")
	}
	for sessionType, rate := range cfg.Rates {
		if rate < 0 || rate >= 1 {
			return errors.New("commission rate out of range for " + sessionType)
		}
	}
	return nil
}
