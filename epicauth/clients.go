package epicauth

import (
	"encoding/base64"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ClientCredentials is one identity-provider client pair. The provider
// scopes permissions per client: a pair that supports the public device-code
// grant may lack permission to mint durable device credentials and vice
// versa, so pairs are configured as an ordered fallback list rather than
// hard-coded. The first entry drives the device-code grant; later entries
// are tried in order when device-auth creation hits a permission failure.
type ClientCredentials struct {
	Label  string `yaml:"label"`
	ID     string `yaml:"id"`
	Secret string `yaml:"secret"`
}

// BasicToken returns the HTTP Basic payload for this pair. This is the
// value persisted alongside device-auth secrets so liveness checks can
// replay the same client.
func (c ClientCredentials) BasicToken() string {
	return base64.StdEncoding.EncodeToString([]byte(fmt.Sprintf("%s:%s", c.ID, c.Secret)))
}

// DefaultClients returns the built-in fallback list: the Switch game client
// (supports device_code) first, the Android game client (holds the
// deviceAuths permission) second.
func DefaultClients() []ClientCredentials {
	return []ClientCredentials{
		{
			Label:  "fortniteNewSwitchGameClient",
			ID:     "98f7e42c2e3a4f86a74eb43fbb41ed39",
			Secret: "0a2449a2-001a-451e-afec-3e812901c4d7",
		},
		{
			Label:  "fortniteAndroidGameClient",
			ID:     "3f69e56c7649492c8cc29f1af08a8a12",
			Secret: "b51ee9cb12234f50a69efa67ef53812e",
		},
	}
}

type clientsFile struct {
	Clients []ClientCredentials `yaml:"clients"`
}

// LoadClients reads the ordered client list from a YAML file. A missing
// file falls back to DefaultClients so operators only need the file when
// the provider's client permissions shift.
func LoadClients(path string) ([]ClientCredentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultClients(), nil
		}
		return nil, errors.Wrap(err, "[LoadClients] read")
	}

	var parsed clientsFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, errors.Wrap(err, "[LoadClients] parse")
	}
	if len(parsed.Clients) == 0 {
		return nil, errors.Errorf("[LoadClients] %s has no clients", path)
	}
	for i, client := range parsed.Clients {
		if client.ID == "" || client.Secret == "" {
			return nil, errors.Errorf("[LoadClients] client %d is missing id or secret", i)
		}
	}
	return parsed.Clients, nil
}
