package assets

import _ "embed"

//go:embed help.txt
var helpText string

// HelpText is the body of /start and /help.
func HelpText() string {
	return helpText
}
