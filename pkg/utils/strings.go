package utils

import (
	"fmt"
	"strings"
)

// FormatSlice joins the default formatting of every item with separator
func FormatSlice[T any](input []T, separator string) string {
	var builder strings.Builder

	for i, value := range input {
		if i > 0 {
			builder.WriteString(separator)
		}
		builder.WriteString(fmt.Sprint(value))
	}

	return builder.String()
}
