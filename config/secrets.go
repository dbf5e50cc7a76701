/* Copyright © 2025-2026 Mike Brown. All Rights Reserved.
 *
 * See LICENSE file at the root of this repository for license terms
 */
package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// ReadToken returns inline if set, otherwise the first line of file. When
// prefixes are given the token must start with one of them.
func ReadToken(name string, inline string, file string,
	prefixes ...string) (string, error) {

	token := strings.TrimSpace(inline)
	if token == "" && file != "" {
		f, err := os.Open(file)
		if err != nil {
			return "", fmt.Errorf("%w: %v token file: %v", ErrInvalidConfig,
				name, err)
		}
		defer f.Close()

		scanner := bufio.NewScanner(f)
		if scanner.Scan() {
			token = strings.TrimSpace(scanner.Text())
		}
		if err := scanner.Err(); err != nil {
			return "", fmt.Errorf("%w: %v token file: %v", ErrInvalidConfig,
				name, err)
		}
	}
	if token == "" {
		return "", nil
	}

	if len(prefixes) == 0 {
		return token, nil
	}
	for _, p := range prefixes {
		if strings.HasPrefix(token, p) {
			return token, nil
		}
	}

	return "", fmt.Errorf("%w: %v token not of the right format",
		ErrInvalidConfig, name)
}
