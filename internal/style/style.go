package style

import (
	"fmt"
	"sort"
	"strings"

	"github.com/heroku/color"
)

// Symbol formats a value as a symbol: colored when color is enabled, quoted
// otherwise.
var Symbol = func(value string) string {
	if color.Enabled() {
		return Key(value)
	}
	return "'" + value + "'"
}

// SymbolF formats a format string as a symbol.
var SymbolF = func(format string, a ...interface{}) string {
	if color.Enabled() {
		return Key(format, a...)
	}
	return "'" + fmt.Sprintf(format, a...) + "'"
}

// Map formats a map as sorted KEY=value pairs.
var Map = func(elements map[string]string, prefix, separator string) string {
	elementStrings := []string{}
	for k, v := range elements {
		elementStrings = append(elementStrings, fmt.Sprintf("%s%s=%s", prefix, k, v))
	}
	sort.Strings(elementStrings)

	joined := strings.Join(elementStrings, separator)
	if color.Enabled() {
		return Key(joined)
	}
	return "'" + joined + "'"
}

var Key = color.HiBlueString

var Tip = color.New(color.FgGreen, color.Bold).SprintfFunc()

var Warn = color.New(color.FgYellow, color.Bold).SprintfFunc()

var Error = color.New(color.FgRed, color.Bold).SprintfFunc()

var Step = func(format string, a ...interface{}) string {
	return color.CyanString("===> "+format, a...)
}

var Prefix = color.CyanString

// Pull-progress phrases, colored by how far along they are.
var Waiting = color.HiCyanString

var Working = color.HiBlueString

var Complete = color.GreenString

var ProgressBar = color.HiBlueString
