package firewall

import (
	"errors"
	"fmt"
	"slices"
)

type ForgivableError struct {
	DurationInMinute uint `yaml:"duration_in_minute"`
	Count            uint `yaml:"count"`
}

type FirewallConfig struct {
	Provider         string          `yaml:"provider"`
	ProviderIP       string          `yaml:"provider_ip"`
	ProviderUser     string          `yaml:"provider_user"`
	ProviderPassword string          `yaml:"provider_password"`
	ListUUID         string          `yaml:"list_uuid"`
	BanMinutes       uint            `yaml:"ban_minutes"`
	Whitelist        []string        `yaml:"whitelist"`
	Forgivable       ForgivableError `yaml:"forgivable"`

	CityDBFile        string `yaml:"city_db_file"`
	UpdatedCityDBFile string `yaml:"updated_city_db_file"`
	ASNDBFile         string `yaml:"asn_db_file"`
	UpdatedASNDBFile  string `yaml:"updated_asn_db_file"`

	GoogleKeyFile   string `yaml:"google_key_file"`
	GoogleProjectID string `yaml:"google_project_id"`
}

var (
	supportedProviders = []string{"none", "ros", "opn", "pf"}
)

const (
	defaultBanMinutes       = 10
	defaultDurationInMinute = 10
	defaultCount            = 3
)

// Validate checks required fields and fills defaults.
func (c *FirewallConfig) Validate() error {
	if !slices.Contains(supportedProviders, c.Provider) {
		return fmt.Errorf("firewall provider %q is not supported", c.Provider)
	}

	var errs []error
	if c.Provider != "none" {
		if c.ProviderIP == "" {
			errs = append(errs, errors.New("provider_ip is missing"))
		}
		if c.ProviderUser == "" {
			errs = append(errs, errors.New("provider_user is missing"))
		}
		if c.ProviderPassword == "" {
			errs = append(errs, errors.New("provider_password is missing"))
		}
		if c.Provider == "opn" && c.ListUUID == "" {
			errs = append(errs, errors.New("list_uuid is missing"))
		}
	}

	if c.CityDBFile == "" {
		errs = append(errs, errors.New("city_db_file is missing"))
	}
	if c.UpdatedCityDBFile == "" {
		errs = append(errs, errors.New("updated_city_db_file is missing"))
	}
	if c.ASNDBFile == "" {
		errs = append(errs, errors.New("asn_db_file is missing"))
	}
	if c.UpdatedASNDBFile == "" {
		errs = append(errs, errors.New("updated_asn_db_file is missing"))
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	c.applyDefault()
	return nil
}

func (c *FirewallConfig) applyDefault() {
	if c.BanMinutes == 0 {
		c.BanMinutes = defaultBanMinutes
	}

	if c.Forgivable.DurationInMinute == 0 {
		c.Forgivable.DurationInMinute = defaultDurationInMinute
	}

	if c.Forgivable.Count == 0 {
		c.Forgivable.Count = defaultCount
	}
}
