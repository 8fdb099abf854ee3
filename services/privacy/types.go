// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.
package privacy

import (
	"fmt"
	"regexp"
)

// PatternFile is the top-level shape of the embedded masking rules YAML.
//
// Unlike the policy engine's classification file, patterns are NOT sorted
// after load: masking applies them in declaration order, and the broad
// trailing digit rule depends on the specific formats running first.
type PatternFile struct {
	Patterns []MaskPattern `yaml:"patterns"`
}

// MaskPattern is one named sensitive-data detection rule.
type MaskPattern struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Regex       string `yaml:"regex"`

	compiled *regexp.Regexp `yaml:"-"`
}

// CompileRegexes compiles every pattern, preserving declaration order.
func (p *PatternFile) CompileRegexes() error {
	for i := range p.Patterns {
		pattern := &p.Patterns[i]
		re, err := regexp.Compile(pattern.Regex)
		if err != nil {
			return fmt.Errorf("failed to compile the regex %s: %w", pattern.Regex, err)
		}
		pattern.compiled = re
	}
	return nil
}
