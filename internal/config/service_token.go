package config

import (
	"fmt"
	"strings"
)

// ServiceToken is a fastdeploy bearer token for one backend and target.
type ServiceToken struct {
	Backend string
	Target  string
	Token   string
}

func (t *ServiceToken) EnvDecode(value string) error {
	if value == "" {
		return nil
	}

	parts := strings.Split(value, "|")
	if len(parts) != 3 {
		return fmt.Errorf(`invalid service token entry: %q. Must be on format "backend|target|token"`, value)
	}

	backend := strings.TrimSpace(parts[0])
	if backend == "" {
		return fmt.Errorf("invalid service token entry: %q. Backend must not be empty", value)
	}

	target := strings.TrimSpace(parts[1])
	if target == "" {
		return fmt.Errorf("invalid service token entry: %q. Target must not be empty", value)
	}

	token := strings.TrimSpace(parts[2])
	if token == "" {
		return fmt.Errorf("invalid service token entry: %q. Token must not be empty", value)
	}

	*t = ServiceToken{
		Backend: strings.ToLower(backend),
		Target:  strings.ToLower(target),
		Token:   token,
	}
	return nil
}

func parseServiceTokens(entries []string) ([]ServiceToken, error) {
	ret := make([]ServiceToken, 0, len(entries))
	for _, entry := range entries {
		if strings.TrimSpace(entry) == "" {
			continue
		}
		t := ServiceToken{}
		if err := t.EnvDecode(entry); err != nil {
			return nil, err
		}
		ret = append(ret, t)
	}
	return ret, nil
}
