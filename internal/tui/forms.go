package tui

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
)

// Confirm shows a yes/no confirmation prompt.
func Confirm(message string, defaultValue bool) (bool, error) {
	result := defaultValue
	err := huh.NewConfirm().
		Title(message).
		Affirmative("Yes").
		Negative("No").
		Value(&result).
		Run()
	if err != nil {
		return defaultValue, err
	}
	return result, nil
}

// InputSecret prompts for a value without echoing it.
func InputSecret(title string) (string, error) {
	var result string
	err := huh.NewInput().
		Title(title).
		EchoMode(huh.EchoModePassword).
		Value(&result).
		Validate(func(s string) error {
			if strings.TrimSpace(s) == "" {
				return errors.New("this field is required")
			}
			return nil
		}).
		Run()
	return strings.TrimSpace(result), err
}

// InputPage prompts for a page number, suggesting current.
func InputPage(current int) (int, error) {
	value := strconv.Itoa(max(current, 1))
	err := huh.NewInput().
		Title("Go to page").
		Value(&value).
		Validate(func(s string) error {
			_, err := ParsePageNumber(s)
			return err
		}).
		Run()
	if err != nil {
		return 0, err
	}
	return ParsePageNumber(value)
}

// ParsePageNumber parses a 1-based page number.
func ParsePageNumber(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	if n < 1 {
		return 0, errors.New("page must be 1 or greater")
	}
	return n, nil
}
