package utils

import (
	"fmt"
	"strings"
)

// CombineErrors combines multiple errors into one, nil when all are nil
func CombineErrors(errs ...error) error {
	var messages []string
	for _, err := range errs {
		if err != nil {
			messages = append(messages, err.Error())
		}
	}
	if len(messages) == 0 {
		return nil
	}
	return fmt.Errorf("multiple errors: %s", strings.Join(messages, "; "))
}
