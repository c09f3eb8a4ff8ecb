// Package prompt wraps promptui for the handful of interactive inputs
// the init command needs, normalizing Ctrl+C into a single sentinel
// error so callers don't special-case promptui's own error values.
package prompt

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/manifoldco/promptui"
)

// ErrAborted is returned when the user cancels a prompt.
var ErrAborted = errors.New("aborted")

// IsAborted reports whether err indicates the user cancelled.
func IsAborted(err error) bool {
	return errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrAbort) || errors.Is(err, ErrAborted)
}

func wrapError(err error) error {
	if err == nil {
		return nil
	}
	if IsAborted(err) {
		return ErrAborted
	}
	return err
}

// Input prompts for text, falling back to defaultValue on empty input.
func Input(label, defaultValue string) (string, error) {
	p := promptui.Prompt{Label: label, Default: defaultValue}
	result, err := p.Run()
	return result, wrapError(err)
}

// InputRequired prompts for text that cannot be left empty.
func InputRequired(label string) (string, error) {
	p := promptui.Prompt{
		Label: label,
		Validate: func(input string) error {
			if input == "" {
				return fmt.Errorf("value is required")
			}
			return nil
		},
	}
	result, err := p.Run()
	return result, wrapError(err)
}

// InputInt prompts for an integer, falling back to defaultValue on empty input.
func InputInt(label string, defaultValue int) (int, error) {
	p := promptui.Prompt{
		Label:   label,
		Default: strconv.Itoa(defaultValue),
		Validate: func(input string) error {
			_, err := strconv.Atoi(input)
			if err != nil {
				return fmt.Errorf("must be a valid integer")
			}
			return nil
		},
	}
	result, err := p.Run()
	if err != nil {
		return 0, wrapError(err)
	}
	value, _ := strconv.Atoi(result)
	return value, nil
}

// InputPort prompts for a TCP port in [1, 65535].
func InputPort(label string, defaultValue int) (int, error) {
	p := promptui.Prompt{
		Label:   label,
		Default: strconv.Itoa(defaultValue),
		Validate: func(input string) error {
			port, err := strconv.Atoi(input)
			if err != nil {
				return fmt.Errorf("must be a valid integer")
			}
			if port < 1 || port > 65535 {
				return fmt.Errorf("must be a valid port (1-65535)")
			}
			return nil
		},
	}
	result, err := p.Run()
	if err != nil {
		return 0, wrapError(err)
	}
	value, _ := strconv.Atoi(result)
	return value, nil
}

// Confirm asks a yes/no question, defaulting to defaultYes.
func Confirm(label string, defaultYes bool) (bool, error) {
	defaultValue := "y"
	if !defaultYes {
		defaultValue = "n"
	}
	p := promptui.Prompt{
		Label:     label,
		Default:   defaultValue,
		IsConfirm: true,
	}
	_, err := p.Run()
	if err != nil {
		if errors.Is(err, promptui.ErrAbort) {
			return false, nil
		}
		return false, wrapError(err)
	}
	return true, nil
}
