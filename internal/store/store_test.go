package store

import (
	"github.com/hacksignal/hacksignal/internal/config"
)

func configWithDriver(driver string) config.StoreConfig {
	return config.StoreConfig{Driver: driver, DatabaseURL: ":memory:"}
}
