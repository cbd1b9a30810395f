package rewrite

import (
	"regexp"
	"strings"
)

// Helpers that edit collaborator source files during a release source export.
// Every helper degrades safely: content without a clean anchor match is
// returned unchanged, never truncated.

var (
	quotedNameRe  = regexp.MustCompile(`['"](\w+)['"]`)
	includeRe     = regexp.MustCompile(`include\(['"](\w+)\.urls['"]\)`)
	appLabelRe    = regexp.MustCompile(`appLabel="(\w+)"`)
	keyedArrayRe  = regexp.MustCompile(`^['"](\w+)['"]:\s*\[`)
	pathBranchRe  = regexp.MustCompile(`else if \(path\.includes\('/(\w+)'\)`)
	sectionHeadRe = regexp.MustCompile(`// ============ .*? ============`)
)

// FilterLines rebuilds content keeping only lines for which keep returns true.
func FilterLines(content string, keep func(line string) bool) string {
	lines := strings.Split(content, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if keep(line) {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

// FilterRegistrationList drops entries of named declaration lists (for
// example INSTALLED_APPS and PROJECT_APPS) whose quoted name is a known local
// module outside the allow set. Lines naming anything else, third-party
// entries included, pass through untouched.
func FilterRegistrationList(content string, listHeads []string, drop func(name string) bool) string {
	lines := strings.Split(content, "\n")
	kept := make([]string, 0, len(lines))
	inList := false

	for _, line := range lines {
		stripped := strings.TrimSpace(line)

		if !inList {
			for _, head := range listHeads {
				if strings.HasPrefix(stripped, head) {
					inList = true
					break
				}
			}
			kept = append(kept, line)
			continue
		}

		if stripped == "]" {
			inList = false
			kept = append(kept, line)
			continue
		}

		if m := quotedNameRe.FindStringSubmatch(stripped); m != nil && drop(m[1]) {
			continue
		}
		kept = append(kept, line)
	}

	return strings.Join(kept, "\n")
}

// FilterRouteIncludes drops route lines including the URL module of an
// excluded local module; all other lines pass through.
func FilterRouteIncludes(content string, drop func(name string) bool) string {
	return FilterLines(content, func(line string) bool {
		m := includeRe.FindStringSubmatch(strings.TrimSpace(line))
		return m == nil || !drop(m[1])
	})
}

// RemoveImportLines drops import statements mentioning any of the names.
func RemoveImportLines(content string, names []string) string {
	return FilterLines(content, func(line string) bool {
		stripped := strings.TrimSpace(line)
		if !strings.HasPrefix(stripped, "import ") {
			return true
		}
		for _, name := range names {
			if strings.Contains(stripped, name) {
				return false
			}
		}
		return true
	})
}

// RemoveGuardedRouteBlocks strips route-guard blocks whose appLabel attribute
// names an excluded module, from the anchor line through the matching closing
// </Route> tag.
func RemoveGuardedRouteBlocks(content string, drop func(label string) bool) string {
	lines := strings.Split(content, "\n")
	kept := make([]string, 0, len(lines))
	skipping := false

	for _, line := range lines {
		stripped := strings.TrimSpace(line)

		if !skipping {
			if m := appLabelRe.FindStringSubmatch(stripped); m != nil && drop(m[1]) {
				skipping = true
			}
		}
		if skipping {
			if strings.Contains(stripped, "</Route>") {
				skipping = false
			}
			continue
		}
		kept = append(kept, line)
	}

	return strings.Join(kept, "\n")
}

// RemoveKeyedArrayEntries strips whole named-array entries ('label': [ ... ])
// from a module-menu config for every key that drop selects. The close marker
// is a line starting with "]" optionally followed by a comma.
func RemoveKeyedArrayEntries(content string, drop func(key string) bool) string {
	lines := strings.Split(content, "\n")
	kept := make([]string, 0, len(lines))
	skipping := false

	for _, line := range lines {
		stripped := strings.TrimSpace(line)

		if skipping {
			if strings.HasPrefix(stripped, "],") || strings.HasPrefix(stripped, "]") {
				skipping = false
			}
			continue
		}

		if m := keyedArrayRe.FindStringSubmatch(stripped); m != nil && drop(m[1]) {
			skipping = true
			continue
		}
		kept = append(kept, line)
	}

	return strings.Join(kept, "\n")
}

// RemovePathBranches strips `else if (path.includes('/label')) { ... }`
// branches for excluded modules. The cut runs from the `else` keyword to the
// balanced close of the branch body, so a cuddled chain stitches back
// together as `} else if (next) {`. A braceless branch is cut to end of line.
func RemovePathBranches(content string, drop func(label string) bool) string {
	for {
		cut := false
		for _, m := range pathBranchRe.FindAllStringSubmatchIndex(content, -1) {
			if !drop(content[m[2]:m[3]]) {
				continue
			}
			end, ok := pathBranchEnd(content, m[1])
			if !ok {
				continue
			}
			content = content[:m[0]] + content[end:]
			cut = true
			break
		}
		if !cut {
			return content
		}
	}
}

// pathBranchEnd locates the end of a branch whose condition match stops at
// idx: the balanced close of the first brace on the same line, or end of line
// when the branch has no block.
func pathBranchEnd(content string, idx int) (int, bool) {
	eol := strings.IndexByte(content[idx:], '\n')
	if eol == -1 {
		eol = len(content) - idx
	}
	if brace := strings.IndexByte(content[idx:idx+eol], '{'); brace != -1 {
		closeIdx, ok := ScanBalanced(content, idx+brace)
		if !ok {
			return 0, false
		}
		return closeIdx + 1, true
	}
	return idx + eol, true
}

// RemoveSection deletes a labeled section starting at header and running to
// the next section header of any module, or end of file if none follows.
func RemoveSection(content, header string) string {
	start := strings.Index(content, header)
	if start == -1 {
		return content
	}

	rest := content[start+len(header):]
	end := len(content)
	if loc := sectionHeadRe.FindStringIndex(rest); loc != nil {
		end = start + len(header) + loc[0]
	}

	return content[:start] + content[end:]
}

// RemoveArrowFunction deletes an arrow-function declaration identified by the
// start of its signature, scanning from the body's opening token ({ or () to
// its balanced close. Trailing semicolon and whitespace are consumed.
func RemoveArrowFunction(content, signature string) string {
	start := strings.Index(content, signature)
	if start == -1 {
		return content
	}

	arrow := strings.Index(content[start:], "=>")
	if arrow == -1 {
		return content
	}
	bodyIdx := skipSpace(content, start+arrow+2)
	for bodyIdx < len(content) && content[bodyIdx] == '\n' {
		bodyIdx = skipSpace(content, bodyIdx+1)
	}
	if bodyIdx >= len(content) {
		return content
	}

	closeIdx, ok := ScanBalanced(content, bodyIdx)
	if !ok {
		return content
	}

	end := closeIdx + 1
	for end < len(content) && strings.ContainsRune("; \t\r\n", rune(content[end])) {
		end++
	}

	return content[:lineStart(content, start)] + content[end:]
}

// RemoveAsyncFunction deletes an `export const name = async (...) => {...};`
// declaration by name, using the same balanced scan as RemoveArrowFunction
// but anchored on the first brace after the declaration.
func RemoveAsyncFunction(content, name string) string {
	signature := "export const " + name + " = async"
	start := strings.Index(content, signature)
	if start == -1 {
		return content
	}

	openIdx := strings.IndexByte(content[start:], '{')
	if openIdx == -1 {
		return content
	}
	closeIdx, ok := ScanBalanced(content, start+openIdx)
	if !ok {
		return content
	}

	end := closeIdx + 1
	if end < len(content) && content[end] == ';' {
		end++
	}
	if end < len(content) && content[end] == '\n' {
		end++
	}

	return content[:lineStart(content, start)] + content[end:]
}

// RemoveObjectByID deletes an object literal containing `id: '<value>'`,
// scanning backwards to the object's opening brace and forwards to its
// balanced close, consuming a trailing comma. Content without the id, or
// with unbalanced braces, is returned unchanged.
func RemoveObjectByID(content, id string) string {
	idIdx := strings.Index(content, "id: '"+id+"'")
	if idIdx == -1 {
		idIdx = strings.Index(content, `id: "`+id+`"`)
		if idIdx == -1 {
			return content
		}
	}

	// Walk back to the opening brace enclosing the id property.
	openIdx := -1
	balance := 0
	for i := idIdx; i >= 0; i-- {
		switch content[i] {
		case '}':
			balance++
		case '{':
			if balance > 0 {
				balance--
			} else {
				openIdx = i
			}
		}
		if openIdx != -1 {
			break
		}
	}
	if openIdx == -1 {
		return content
	}

	closeIdx, ok := ScanBalanced(content, openIdx)
	if !ok {
		return content
	}

	end := closeIdx + 1
	for end < len(content) && (content[end] == ' ' || content[end] == '\t' || content[end] == '\n' || content[end] == '\r') {
		end++
	}
	if end < len(content) && content[end] == ',' {
		end++
	}

	return content[:openIdx] + content[end:]
}

// RemoveRegexMatches deletes every match of pattern; a helper for the
// single-shot strip rules (action buttons, modal tags, state hooks).
func RemoveRegexMatches(content string, pattern *regexp.Regexp) string {
	return pattern.ReplaceAllString(content, "")
}

// ReplaceAll is a convenience wrapper used by fix-up rules that must apply a
// final, unconditional substitution after the general rewrites.
func ReplaceAll(content, old, new string) string {
	return strings.ReplaceAll(content, old, new)
}
