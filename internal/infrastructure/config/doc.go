// Package config loads and validates the Insteon bridge configuration.
//
// Values come from built-in defaults, then the YAML file, then environment
// variables named GRAYLOGIC_INSTEON_<SECTION>_<KEY>. Credentials such as
// the MQTT password should be supplied through the environment.
//
// Usage:
//
//	cfg, err := config.Load("configs/insteon.yaml")
//	if err != nil {
//	    return err
//	}
//	fmt.Println(cfg.Modem.Port)
package config
