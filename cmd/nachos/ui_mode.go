package main

import (
	"fmt"
	"os"
	"strings"
)

// uiMode selects the stress progress view. It implements pflag.Value so
// cobra validates --ui while parsing.
type uiMode string

const (
	uiModeAuto uiMode = "auto"
	uiModeOn   uiMode = "on"
	uiModeOff  uiMode = "off"
)

func (m *uiMode) String() string { return string(*m) }

func (m *uiMode) Type() string { return "auto|on|off" }

func (m *uiMode) Set(value string) error {
	switch v := uiMode(strings.TrimSpace(strings.ToLower(value))); v {
	case "":
		*m = uiModeAuto
	case uiModeAuto, uiModeOn, uiModeOff:
		*m = v
	default:
		return fmt.Errorf("invalid value %q (expected auto|on|off)", value)
	}
	return nil
}

// interactive reports whether to draw the progress view. --quiet always
// wins; auto draws only on a terminal.
func (m uiMode) interactive(quiet bool) bool {
	if quiet {
		return false
	}
	switch m {
	case uiModeOn:
		return true
	case uiModeOff:
		return false
	}
	return isTerminal(os.Stdout)
}
