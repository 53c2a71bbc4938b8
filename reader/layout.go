package reader

import (
	"fmt"
	"strings"
)

// strftime directives and their Go layout equivalents
var strftimeLayout = map[byte]string{
	'Y': "2006",
	'y': "06",
	'm': "01",
	'd': "02",
	'e': "_2",
	'j': "002",
	'H': "15",
	'I': "03",
	'M': "04",
	'S': "05",
	'p': "PM",
	'b': "Jan",
	'h': "Jan",
	'B': "January",
	'a': "Mon",
	'A': "Monday",
	'z': "-0700",
	'Z': "MST",
	'%': "%",
}

// Layout converts a datetime column format to a Go time layout. Formats
// containing '%' are read as strftime patterns ("%Y-%m-%d"); anything else
// is taken to be a Go layout already ("2006-01-02").
func Layout(format string) (string, error) {
	if !strings.Contains(format, "%") {
		return format, nil
	}

	var b strings.Builder
	for i := 0; i < len(format); i++ {
		c := format[i]
		if c != '%' {
			b.WriteByte(c)
			continue
		}
		if i+1 >= len(format) {
			return "", fmt.Errorf("datetime format %q ends with a lone %%", format)
		}
		i++
		layout, ok := strftimeLayout[format[i]]
		if !ok {
			return "", fmt.Errorf("datetime format %q: unsupported directive %%%c", format, format[i])
		}
		b.WriteString(layout)
	}
	return b.String(), nil
}
