package preference

import "strings"

// DisplayName is the one rendering of a person's name shared by the profile
// and list endpoints. Anonymous callers have no name; otherwise the trimmed
// full name is used, falling back to the username.
func DisplayName(username, firstName, lastName string) string {
	if username == "" {
		return ""
	}
	fullName := strings.TrimSpace(firstName + " " + lastName)
	if fullName == "" {
		return username
	}
	return fullName
}
