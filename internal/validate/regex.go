package validate

import "regexp"

// findRegex returns the first capture group if the pattern has one, the full
// match otherwise.
func findRegex(re *regexp.Regexp, body string) (string, bool) {
	match := re.FindStringSubmatch(body)
	if match == nil {
		return "", false
	}
	if len(match) > 1 {
		return match[1], true
	}
	return match[0], true
}
