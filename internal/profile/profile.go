// Package profile holds the persisted configuration record (avatar, name,
// persona, endpoint credentials) and the store that loads and saves it.
package profile

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Defaults substituted for blank optional fields.
const (
	DefaultAvatar  = "https://via.placeholder.com/40/eee/333?text=AI"
	DefaultName    = "My AI"
	DefaultSetting = "You are my friend. Talk naturally and keep replies short."
)

// ErrMissingCredentials is returned when the endpoint URL or API key is blank.
var ErrMissingCredentials = errors.New("api url and api key are required")

var validate = validator.New()

// Profile is the configuration record. It is either absent or fully valid;
// Save refuses records that fail Validate.
type Profile struct {
	Avatar  string `json:"avatar"`
	Name    string `json:"name"    validate:"required"`
	Setting string `json:"setting" validate:"required"`
	APIURL  string `json:"apiUrl"  validate:"required"`
	APIKey  string `json:"apiKey"  validate:"required"`
	// Model overrides the deployment's default model identifier when set.
	Model string `json:"model,omitempty"`
}

// New builds a Profile from raw form input: every field is trimmed and
// blank optional fields get their defaults. The result still needs Validate.
func New(avatar, name, setting, apiURL, apiKey, model string) Profile {
	return Profile{
		Avatar:  orDefault(avatar, DefaultAvatar),
		Name:    orDefault(name, DefaultName),
		Setting: orDefault(setting, DefaultSetting),
		APIURL:  strings.TrimSpace(apiURL),
		APIKey:  strings.TrimSpace(apiKey),
		Model:   strings.TrimSpace(model),
	}
}

// Validate reports ErrMissingCredentials when the record must not be persisted.
func (p Profile) Validate() error {
	if strings.TrimSpace(p.APIURL) == "" || strings.TrimSpace(p.APIKey) == "" {
		return ErrMissingCredentials
	}
	return validate.Struct(p)
}

// Public is the profile as shown to the page; it never carries the API key.
type Public struct {
	Avatar string `json:"avatar"`
	Name   string `json:"name"`
	Model  string `json:"model,omitempty"`
}

// Public strips credentials.
func (p Profile) Public() Public {
	return Public{Avatar: p.Avatar, Name: p.Name, Model: p.Model}
}

func orDefault(v, def string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return def
	}
	return v
}
