package mq

import "github.com/control-eventos/apiserver/config"

func configWithBackend(backend string) config.Config {
	return config.Config{MQ: config.MQConfig{Backend: backend}}
}
