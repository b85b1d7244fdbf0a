package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// ReconcileConfig holds the tunables of the session/order reconciliation
// engine. Values are reloadable at runtime from an optional config file.
type ReconcileConfig struct {
	SessionTTLMinutes       int `mapstructure:"sessionTtlMinutes"`
	DeliveryEstimateMinDays int `mapstructure:"deliveryEstimateMinDays"`
	DeliveryEstimateMaxDays int `mapstructure:"deliveryEstimateMaxDays"`
	NotifyTimeoutSeconds    int `mapstructure:"notifyTimeoutSeconds"`
	SweepIntervalSeconds    int `mapstructure:"sweepIntervalSeconds"`
}

func (c ReconcileConfig) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLMinutes) * time.Minute
}

func (c ReconcileConfig) NotifyTimeout() time.Duration {
	return time.Duration(c.NotifyTimeoutSeconds) * time.Second
}

func (c ReconcileConfig) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}

func DefaultReconcileConfig() ReconcileConfig {
	return ReconcileConfig{
		SessionTTLMinutes:       30,
		DeliveryEstimateMinDays: 4,
		DeliveryEstimateMaxDays: 6,
		NotifyTimeoutSeconds:    10,
		SweepIntervalSeconds:    60,
	}
}

type ReconcileConfigHolder struct {
	current atomic.Value // holds ReconcileConfig
}

func NewReconcileConfigHolder() (*ReconcileConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("reconcile")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/bookpay")
	v.AddConfigPath(".")

	v.SetEnvPrefix("BOOKPAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultReconcileConfig()
	v.SetDefault("reconcile.sessionTtlMinutes", defaults.SessionTTLMinutes)
	v.SetDefault("reconcile.deliveryEstimateMinDays", defaults.DeliveryEstimateMinDays)
	v.SetDefault("reconcile.deliveryEstimateMaxDays", defaults.DeliveryEstimateMaxDays)
	v.SetDefault("reconcile.notifyTimeoutSeconds", defaults.NotifyTimeoutSeconds)
	v.SetDefault("reconcile.sweepIntervalSeconds", defaults.SweepIntervalSeconds)

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileFound = false
	}

	var cfg ReconcileConfig
	if err := v.UnmarshalKey("reconcile", &cfg); err != nil {
		return nil, err
	}
	if err := validateReconcileConfig(cfg); err != nil {
		return nil, err
	}

	holder := &ReconcileConfigHolder{}
	holder.current.Store(cfg)

	if fileFound {
		v.WatchConfig()
		v.OnConfigChange(func(e fsnotify.Event) {
			var updated ReconcileConfig
			if err := v.UnmarshalKey("reconcile", &updated); err != nil {
				log.Printf("[reconcile-config] reload failed: %v", err)
				return
			}
			if err := validateReconcileConfig(updated); err != nil {
				log.Printf("[reconcile-config] invalid config ignored: %v", err)
				return
			}
			holder.current.Store(updated)
			log.Printf("[reconcile-config] reloaded from %s", e.Name)
		})
	}

	return holder, nil
}

// NewStaticReconcileConfigHolder is for tests and embedders that need fixed
// tunables without a config file.
func NewStaticReconcileConfigHolder(cfg ReconcileConfig) *ReconcileConfigHolder {
	holder := &ReconcileConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func (h *ReconcileConfigHolder) Get() ReconcileConfig {
	return h.current.Load().(ReconcileConfig)
}

func validateReconcileConfig(cfg ReconcileConfig) error {
	if cfg.SessionTTLMinutes <= 0 {
		return errors.New("reconcile.sessionTtlMinutes must be positive")
	}
	if cfg.DeliveryEstimateMinDays <= 0 || cfg.DeliveryEstimateMaxDays < cfg.DeliveryEstimateMinDays {
		return errors.New("reconcile.deliveryEstimate window is invalid")
	}
	if cfg.NotifyTimeoutSeconds <= 0 {
		return errors.New("reconcile.notifyTimeoutSeconds must be positive")
	}
	if cfg.SweepIntervalSeconds <= 0 {
		return errors.New("reconcile.sweepIntervalSeconds must be positive")
	}
	return nil
}
