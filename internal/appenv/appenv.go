// Package appenv resolves the deployment mode once at startup. The mode is
// passed explicitly to everything that branches on it.
package appenv

import (
	"fmt"
	"strings"
)

type Mode string

const (
	Development Mode = "development"
	Test        Mode = "test"
	Production  Mode = "production"
)

// Parse accepts development|test|production plus the common dev/prod
// abbreviations. Empty input is development.
func Parse(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "development", "dev":
		return Development, nil
	case "test":
		return Test, nil
	case "production", "prod":
		return Production, nil
	default:
		return "", fmt.Errorf("unknown environment %q (valid environments are development|test|production)", s)
	}
}

func (m Mode) IsProduction() bool { return m == Production }

func (m Mode) String() string {
	if m == "" {
		return string(Development)
	}
	return string(m)
}
